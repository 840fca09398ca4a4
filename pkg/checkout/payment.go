package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/freshmart/pkg/failure"
	"github.com/example/freshmart/pkg/models"
	"github.com/example/freshmart/pkg/payment"
	"github.com/example/freshmart/pkg/repository"
	"github.com/example/freshmart/pkg/tasks"
	"go.uber.org/zap"
)

type PaymentResult struct {
	OrderID string             `json:"order_id"`
	TradeID string             `json:"trade_id"`
	Status  models.OrderStatus `json:"status"`
}

// PaymentURL returns the gateway page where the user pays for the order.
func (s *Service) PaymentURL(ctx context.Context, userID int64, orderID string) (string, error) {
	order, err := s.payableOrder(ctx, userID, orderID)
	if err != nil {
		return "", failure.From(s.logUnexpected("PaymentURL", orderID, err))
	}

	url, err := s.gateway.BuildPaymentRedirectURL(order.OrderID, order.TotalAmount)
	if err != nil {
		return "", failure.From(s.logUnexpected("PaymentURL", orderID, err))
	}
	return url, nil
}

// ConfirmPayment polls the gateway until the payment settles. Pending
// answers are retried with exponential backoff, bounded by both the attempt
// limit and the poll timeout; running out of either is a PaymentTimeout.
func (s *Service) ConfirmPayment(ctx context.Context, userID int64, orderID string) (*PaymentResult, error) {
	order, err := s.payableOrder(ctx, userID, orderID)
	if err != nil {
		return nil, failure.From(s.logUnexpected("ConfirmPayment", orderID, err))
	}

	res, err := s.pollGateway(ctx, order.OrderID)
	if err != nil {
		return nil, failure.From(s.logUnexpected("ConfirmPayment", orderID, err))
	}

	tradeID := res.TradeID
	ok, err := s.store.UpdateOrderStatus(ctx, order.OrderID, models.StatusAwaitingPayment, models.StatusAwaitingReview, &tradeID)
	if err != nil {
		return nil, failure.From(s.logUnexpected("ConfirmPayment", orderID, err))
	}
	if !ok {
		return nil, failure.New(failure.InvalidOrderStatus, "order %s is no longer awaiting payment", orderID)
	}

	s.dispatch(&tasks.PaymentConfirmed{OrderID: order.OrderID, UserID: userID, TradeID: tradeID})
	s.logger.Info("Payment confirmed", zap.String("order_id", order.OrderID), zap.String("trade_id", tradeID))

	return &PaymentResult{OrderID: order.OrderID, TradeID: tradeID, Status: models.StatusAwaitingReview}, nil
}

func (s *Service) pollGateway(ctx context.Context, orderID string) (payment.Result, error) {
	poll := s.cfg.Poll
	ctx, cancel := context.WithTimeout(ctx, poll.Timeout)
	defer cancel()

	backoff := poll.InitialBackoff
	for attempt := 1; attempt <= poll.MaxAttempts; attempt++ {
		res, err := s.gateway.Query(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.metrics.PaymentPolls.WithLabelValues("error").Inc()
			s.logger.Warn("Payment query failed",
				zap.String("order_id", orderID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else {
			s.metrics.PaymentPolls.WithLabelValues(string(res.Status)).Inc()
			switch res.Status {
			case payment.StatusSuccess:
				return res, nil
			case payment.StatusFailure:
				return payment.Result{}, failure.New(failure.PaymentFailed, "payment for order %s failed", orderID)
			}
		}

		if attempt == poll.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, backoff); err != nil {
			break
		}
		backoff *= 2
		if backoff > poll.MaxBackoff {
			backoff = poll.MaxBackoff
		}
	}

	return payment.Result{}, failure.New(failure.PaymentTimeout, "payment for order %s is not confirmed yet", orderID)
}

// payableOrder loads an order the user can still pay through the gateway.
func (s *Service) payableOrder(ctx context.Context, userID int64, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, failure.New(failure.MissingParameter, "order_id is required")
	}

	order, err := s.store.FindOrder(ctx, userID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, failure.New(failure.OrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if order.Status != models.StatusAwaitingPayment {
		return nil, failure.New(failure.InvalidOrderStatus, "order %s is not awaiting payment", orderID)
	}
	if order.PayMethod != models.PayGateway {
		return nil, failure.New(failure.InvalidPaymentMethod, "order %s is not paid online", orderID)
	}
	return order, nil
}

// logUnexpected logs errors that are not user-facing failures and passes
// err through unchanged.
func (s *Service) logUnexpected(op, orderID string, err error) error {
	var f *failure.Failure
	if !errors.As(err, &f) {
		s.logger.Error("Order operation failed", zap.String("op", op), zap.String("order_id", orderID), zap.Error(err))
	}
	return err
}
