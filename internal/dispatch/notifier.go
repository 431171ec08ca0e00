package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/socket"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// EmailMessage - транзакционное уведомление одному поставщику.
type EmailMessage struct {
	ProviderID string           `json:"providerId"`
	BidID      string           `json:"bidId"`
	BidName    string           `json:"bidName"`
	Event      models.EventKind `json:"event"`
	Status     models.BidStatus `json:"status"`
	Deadline   *time.Time       `json:"deadline,omitempty"`
}

// EmailSender доставляет транзакционные уведомления.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// RealtimeSender доставляет легкие уведомления подключенным поставщикам.
type RealtimeSender interface {
	Send(providerId string, message []byte) error
}

// RealtimeMessage - тело websocket сообщения.
type RealtimeMessage struct {
	Type   models.EventKind `json:"type"`
	BidID  string           `json:"bidId"`
	Status models.BidStatus `json:"status"`
	At     time.Time        `json:"at"`
}

// Notifier рассылает разбитое множество получателей по двум каналам параллельно.
type Notifier struct {
	email    EmailSender
	realtime RealtimeSender
	logger   *log.Logger
}

// NewNotifier создает новый экземпляр Notifier.
func NewNotifier(email EmailSender, realtime RealtimeSender, logger *log.Logger) *Notifier {
	return &Notifier{email: email, realtime: realtime, logger: logger}
}

// DeliveryError - частично неудачная рассылка. Pending содержит только
// получателей с временными ошибками; повтор задачи должен идти по ним.
type DeliveryError struct {
	Pending models.NotificationReceiverSet
	err     error
}

func (e *DeliveryError) Error() string { return e.err.Error() }
func (e *DeliveryError) Unwrap() error { return e.err }

// Notify отправляет email получателям ActualReceivers и websocket сообщение
// получателям RealtimeReceivers. Получатели с неповторяемыми ошибками
// отбрасываются; если остались временные ошибки, возвращается *DeliveryError.
func (n *Notifier) Notify(ctx context.Context, notification models.Notification) error {
	if notification.Bid == nil {
		return Permanent(errors.New("notification without bid"))
	}
	bid := notification.Bid
	receivers := notification.Receivers

	var (
		mu        sync.Mutex
		transient *multierror.Error
		permanent *multierror.Error
		pending   = models.NotificationReceiverSet{BidID: receivers.BidID, Event: receivers.Event}
	)
	collect := func(err error, retry func()) {
		mu.Lock()
		defer mu.Unlock()
		if IsPermanent(err) {
			permanent = multierror.Append(permanent, err)
			return
		}
		transient = multierror.Append(transient, err)
		retry()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, providerId := range receivers.ActualReceivers {
			msg := EmailMessage{
				ProviderID: providerId,
				BidID:      bid.ID,
				BidName:    bid.Name,
				Event:      notification.Event,
				Status:     bid.Status,
				Deadline:   bid.StoppingPeriodEndsAt,
			}
			if err := n.email.SendEmail(gctx, msg); err != nil {
				collect(fmt.Errorf("email to %s: %w", providerId, err), func() {
					pending.ActualReceivers = append(pending.ActualReceivers, providerId)
				})
			}
		}
		return nil
	})
	g.Go(func() error {
		payload, err := json.Marshal(RealtimeMessage{
			Type:   notification.Event,
			BidID:  bid.ID,
			Status: bid.Status,
			At:     notification.CreatedAt,
		})
		if err != nil {
			return err
		}
		for _, providerId := range receivers.RealtimeReceivers {
			err := n.realtime.Send(providerId, payload)
			if errors.Is(err, socket.ErrOffline) {
				continue
			}
			if err != nil {
				collect(fmt.Errorf("realtime to %s: %w", providerId, err), func() {
					pending.RealtimeReceivers = append(pending.RealtimeReceivers, providerId)
				})
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Permanent(err)
	}

	if err := permanent.ErrorOrNil(); err != nil {
		n.logger.Printf("notification rejected for some receivers: bid=%s event=%s err=%v", bid.ID, notification.Event, err)
	}
	if err := transient.ErrorOrNil(); err != nil {
		return &DeliveryError{Pending: pending, err: err}
	}
	if err := permanent.ErrorOrNil(); err != nil {
		return Permanent(err)
	}

	n.logger.Printf("notification sent: bid=%s event=%s actual=%d realtime=%d",
		bid.ID, notification.Event, len(receivers.ActualReceivers), len(receivers.RealtimeReceivers))
	return nil
}
