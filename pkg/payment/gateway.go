package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/freshmart/pkg/config"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusPending Status = "PENDING"
)

type Result struct {
	Status  Status
	TradeID string
	Code    string
}

// Gateway is the third-party payment provider.
type Gateway interface {
	Query(ctx context.Context, orderID string) (Result, error)
	BuildPaymentRedirectURL(orderID string, amount decimal.Decimal) (string, error)
}

// Gateway response codes and trade states.
const (
	codeOK            = "10000"
	codeTradeNotExist = "40004"

	tradeSuccess = "TRADE_SUCCESS"
	tradeWaitPay = "WAIT_BUYER_PAY"
)

// Classify maps a gateway query response onto a Status. A trade the gateway
// does not know yet is still pending.
func Classify(code, tradeStatus string) Status {
	switch {
	case code == codeOK && tradeStatus == tradeSuccess:
		return StatusSuccess
	case code == codeTradeNotExist, code == codeOK && tradeStatus == tradeWaitPay:
		return StatusPending
	default:
		return StatusFailure
	}
}

type HTTPGateway struct {
	cfg    config.PaymentConfig
	client *http.Client
}

func NewHTTPGateway(cfg config.PaymentConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type queryResponse struct {
	Code        string `json:"code"`
	Msg         string `json:"msg"`
	TradeStatus string `json:"trade_status"`
	TradeNo     string `json:"trade_no"`
}

func (g *HTTPGateway) Query(ctx context.Context, orderID string) (Result, error) {
	params := url.Values{}
	params.Set("app_id", g.cfg.AppID)
	params.Set("out_trade_no", orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.QueryURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build query request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to query payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{}, fmt.Errorf("payment gateway returned %d", resp.StatusCode)
	}

	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("failed to decode payment response: %w", err)
	}

	return Result{
		Status:  Classify(body.Code, body.TradeStatus),
		TradeID: body.TradeNo,
		Code:    body.Code,
	}, nil
}

func (g *HTTPGateway) BuildPaymentRedirectURL(orderID string, amount decimal.Decimal) (string, error) {
	if g.cfg.PayURL == "" {
		return "", fmt.Errorf("payment pay_url is not configured")
	}
	params := url.Values{}
	params.Set("app_id", g.cfg.AppID)
	params.Set("out_trade_no", orderID)
	params.Set("total_amount", amount.StringFixed(2))
	params.Set("subject", g.cfg.Subject)
	return g.cfg.PayURL + "?" + params.Encode(), nil
}
