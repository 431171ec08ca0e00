package services

import (
	"context"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/repository"
	"github.com/senyabanana/tender-orchestrator/internal/utils"
)

// EligibilityResolver определяет, может ли покупатель купить документы тендера.
// Все проверки выполняются всегда, без выхода на первой неудаче.
type EligibilityResolver struct {
	purchases repository.PurchaseRepository
	providers repository.ProviderRepository
	gate      *TimeWindowGate
}

// NewEligibilityResolver создает новый экземпляр EligibilityResolver.
func NewEligibilityResolver(purchases repository.PurchaseRepository, providers repository.ProviderRepository, gate *TimeWindowGate) *EligibilityResolver {
	return &EligibilityResolver{purchases: purchases, providers: providers, gate: gate}
}

// Resolve возвращает результат со всеми применимыми причинами отказа
// в порядке models.ForbiddenReasonOrder.
func (r *EligibilityResolver) Resolve(ctx context.Context, bid *models.Bid, purchaser models.Purchaser, now time.Time) (models.PurchaseEligibility, error) {
	failed := make(map[models.ForbiddenReason]bool, len(models.ForbiddenReasonOrder))

	failed[models.BidNotOpen] = !bid.Status.IsOpen()

	purchased, err := r.purchases.HasPurchased(ctx, bid.ID, purchaser.Ref)
	if err != nil {
		return models.PurchaseEligibility{}, err
	}
	failed[models.AlreadyPurchased] = purchased

	failed[models.SectorMismatch] = bid.SectorRestricted && !utils.Intersects(purchaser.Sectors, bid.Classifications)

	suspended, err := r.providers.IsSuspended(ctx, bid.EntityID, purchaser.Ref)
	if err != nil {
		return models.PurchaseEligibility{}, err
	}
	failed[models.PurchaserSuspended] = suspended

	failed[models.OutsideStoppingPeriod] = !r.gate.windowOpen(bid, now)

	result := models.PurchaseEligibility{
		BidID:     bid.ID,
		Purchaser: purchaser.Ref,
		Reasons:   []models.ForbiddenReason{},
	}
	for _, reason := range models.ForbiddenReasonOrder {
		if failed[reason] {
			result.Reasons = append(result.Reasons, reason)
		}
	}
	result.Eligible = len(result.Reasons) == 0
	return result, nil
}
