package services

import (
	"context"
	"strings"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"

	"github.com/shopspring/decimal"
)

// Clock - источник текущего времени.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает время системы в UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// PaymentConfirmer подтверждает, что оплата документов существует.
// Списание средств выполняется вне движка.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, bidId string, purchaser models.PurchaserRef, paymentRef string, amount decimal.Decimal) error
}

// ReferencePaymentConfirmer принимает любую непустую ссылку на платеж.
// Бесплатные документы подтверждаются без ссылки.
type ReferencePaymentConfirmer struct{}

func (ReferencePaymentConfirmer) ConfirmPayment(ctx context.Context, bidId string, purchaser models.PurchaserRef, paymentRef string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount.IsPositive() && strings.TrimSpace(paymentRef) == "" {
		return models.NewEngineError(models.KindBadRequest, "", "payment reference is required for bid %s", bidId)
	}
	return nil
}

// PresenceTracker сообщает, подключен ли поставщик к realtime каналу.
type PresenceTracker interface {
	IsOnline(providerId string) bool
}

// Notifier доставляет разбитое множество получателей.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// JobQueue принимает фоновые задачи. Возвращает false, если задача отброшена.
type JobQueue interface {
	Enqueue(name string, run func(ctx context.Context) error) bool
}
