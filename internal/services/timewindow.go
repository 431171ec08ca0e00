package services

import (
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"

	"github.com/google/uuid"
)

// TimeWindowGate ведет срок приема (stopping period) тендера и его продления.
// Единственный источник срока - Bid.StoppingPeriodEndsAt.
type TimeWindowGate struct {
	defaultPeriod time.Duration
}

// NewTimeWindowGate создает новый экземпляр TimeWindowGate.
func NewTimeWindowGate(defaultPeriod time.Duration) *TimeWindowGate {
	return &TimeWindowGate{defaultPeriod: defaultPeriod}
}

// DefaultDeadline возвращает срок, назначаемый при публикации.
func (g *TimeWindowGate) DefaultDeadline(bid *models.Bid) time.Time {
	return bid.CreatedAt.Add(g.defaultPeriod)
}

// Extend переносит срок приема на более поздний и переводит тендер в Extended.
// При ошибке тендер не изменяется.
func (g *TimeWindowGate) Extend(bid *models.Bid, newDeadline time.Time, actor models.Actor, now time.Time) (*models.Extension, error) {
	if !bid.Status.IsOpen() {
		return nil, models.NewEngineError(models.KindInvalidStateTransition, models.CodeIllegalTransition,
			"cannot extend bid in status %s", bid.Status)
	}
	if newDeadline.IsZero() {
		return nil, models.NewEngineError(models.KindTimeWindow, models.CodeInvalidExtension, "new deadline is required")
	}
	current := bid.StoppingPeriodEndsAt
	if current != nil && !newDeadline.After(*current) {
		return nil, models.NewEngineError(models.KindTimeWindow, models.CodeInvalidExtension,
			"new deadline %s must be later than current deadline %s",
			newDeadline.UTC().Format(time.RFC3339), current.UTC().Format(time.RFC3339))
	}
	if !newDeadline.After(now) {
		return nil, models.NewEngineError(models.KindTimeWindow, models.CodeInvalidExtension,
			"new deadline %s is in the past", newDeadline.UTC().Format(time.RFC3339))
	}

	ext := &models.Extension{
		ID:            uuid.NewString(),
		NewDeadline:   newDeadline.UTC(),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		CreatedAt:     now,
	}
	if current != nil {
		prev := *current
		ext.PreviousDeadline = &prev
	}

	deadline := newDeadline.UTC()
	bid.StoppingPeriodEndsAt = &deadline
	bid.Status = models.ExtendedBid
	bid.Extensions = append(bid.Extensions, *ext)
	return ext, nil
}

// windowOpen сравнивает текущее время со сроком приема.
func (g *TimeWindowGate) windowOpen(bid *models.Bid, now time.Time) bool {
	return bid.StoppingPeriodEndsAt != nil && now.Before(*bid.StoppingPeriodEndsAt)
}

// IsPurchaseOpen сообщает, можно ли сейчас покупать документы.
func (g *TimeWindowGate) IsPurchaseOpen(bid *models.Bid, now time.Time) bool {
	return bid.Status.IsOpen() && g.windowOpen(bid, now)
}

// IsSubmissionOpen сообщает, можно ли сейчас подавать предложения.
func (g *TimeWindowGate) IsSubmissionOpen(bid *models.Bid, now time.Time) bool {
	return bid.Status.IsOpen() && g.windowOpen(bid, now)
}
