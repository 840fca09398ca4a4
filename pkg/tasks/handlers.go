package tasks

import (
	"context"
	"fmt"

	"github.com/example/freshmart/pkg/events"
	"github.com/example/freshmart/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type Handler interface {
	Handle(ctx context.Context, task Task) error
}

type HandlerFunc func(ctx context.Context, task Task) error

func (f HandlerFunc) Handle(ctx context.Context, task Task) error {
	return f(ctx, task)
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order *OrderPlaced) error
}

// LogMailer writes confirmations to the log instead of an SMTP relay.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOrderConfirmation(_ context.Context, order *OrderPlaced) error {
	m.logger.Info("Order confirmation mail",
		zap.String("order_id", order.OrderID),
		zap.Int64("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return nil
}

func MailHandler(m Mailer) Handler {
	return HandlerFunc(func(ctx context.Context, task Task) error {
		placed, ok := task.(*OrderPlaced)
		if !ok {
			return nil
		}
		return m.SendOrderConfirmation(ctx, placed)
	})
}

type AuditSink interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

func AuditHandler(sink AuditSink, service string) Handler {
	return HandlerFunc(func(ctx context.Context, task Task) error {
		entry := &repository.AuditLog{Service: service, OrderID: task.OrderRef()}

		switch t := task.(type) {
		case *OrderPlaced:
			entry.Action = "place_order"
			entry.UserID = t.UserID
			entry.Data = bson.M{
				"total_count":  t.TotalCount,
				"total_amount": t.TotalAmount.String(),
				"pay_method":   t.PayMethod,
				"lines":        len(t.Lines),
			}
		case *PaymentConfirmed:
			entry.Action = "confirm_payment"
			entry.UserID = t.UserID
			entry.Data = bson.M{"trade_id": t.TradeID}
		case *OrderReviewed:
			entry.Action = "submit_review"
			entry.UserID = t.UserID
			entry.Data = bson.M{"reviewed": t.Reviewed}
		case *StatusChanged:
			entry.Action = "update_status"
			entry.UserID = t.UserID
			entry.Data = bson.M{"from": t.From, "to": t.To}
		default:
			return fmt.Errorf("unknown task %T", task)
		}

		if err := sink.CreateAuditLog(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, orderID string, payload any) error
}

func EventHandler(pub EventPublisher) Handler {
	return HandlerFunc(func(ctx context.Context, task Task) error {
		var eventType string
		switch task.(type) {
		case *OrderPlaced:
			eventType = events.EventOrderPlaced
		case *PaymentConfirmed:
			eventType = events.EventPaymentConfirmed
		case *OrderReviewed:
			eventType = events.EventOrderReviewed
		case *StatusChanged:
			eventType = events.EventStatusChanged
		default:
			return fmt.Errorf("unknown task %T", task)
		}
		return pub.Publish(ctx, eventType, task.OrderRef(), task)
	})
}
