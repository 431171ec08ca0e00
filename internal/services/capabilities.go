package services

import (
	"context"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"
)

// Возможности движка. Engine зависит только от этих интерфейсов,
// поэтому каждую можно проверять и подменять отдельно.

// TransitionPlanner проверяет запрос на переход и вычисляет новое состояние тендера.
type TransitionPlanner interface {
	Plan(bid *models.Bid, req models.TransitionRequest, now time.Time) (*Transition, error)
}

// EligibilityChecker вычисляет возможность покупки документов.
type EligibilityChecker interface {
	Resolve(ctx context.Context, bid *models.Bid, purchaser models.Purchaser, now time.Time) (models.PurchaseEligibility, error)
}

// WindowGate отвечает на вопросы о сроке приема.
type WindowGate interface {
	IsPurchaseOpen(bid *models.Bid, now time.Time) bool
	IsSubmissionOpen(bid *models.Bid, now time.Time) bool
}

// ReceiverPartitioner строит множество получателей уведомления.
type ReceiverPartitioner interface {
	Partition(ctx context.Context, bidId string, event models.EventKind) (models.NotificationReceiverSet, error)
}

// InvitationPolicy управляет приглашениями и видимостью.
type InvitationPolicy interface {
	Invite(ctx context.Context, bid *models.Bid, automatic bool, providerIds []string, now time.Time) ([]models.InvitationRecord, error)
	IsVisibleTo(ctx context.Context, bid *models.Bid, providerId string) (bool, error)
	Subscribe(ctx context.Context, bid *models.Bid, providerId string) error
	Logs(ctx context.Context, bidId string, limit, offset int) ([]models.InvitationRecord, error)
}

var (
	_ TransitionPlanner   = (*StateMachine)(nil)
	_ EligibilityChecker  = (*EligibilityResolver)(nil)
	_ WindowGate          = (*TimeWindowGate)(nil)
	_ ReceiverPartitioner = (*NotificationPartitioner)(nil)
	_ InvitationPolicy    = (*InvitationManager)(nil)
)
