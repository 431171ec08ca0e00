package services

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/repository"
	"github.com/senyabanana/tender-orchestrator/internal/utils"

	"github.com/google/uuid"
)

// invitableStatuses - статусы, в которых тендер принимает приглашения.
var invitableStatuses = []models.BidStatus{models.DraftBid, models.PublishedBid, models.ExtendedBid}

// InvitationManager решает, какие поставщики видят тендер сверх публичного списка.
type InvitationManager struct {
	invitations repository.InvitationRepository
	providers   repository.ProviderRepository
	purchases   repository.PurchaseRepository
}

// NewInvitationManager создает новый экземпляр InvitationManager.
func NewInvitationManager(invitations repository.InvitationRepository, providers repository.ProviderRepository, purchases repository.PurchaseRepository) *InvitationManager {
	return &InvitationManager{invitations: invitations, providers: providers, purchases: purchases}
}

// Invite приглашает поставщиков с тем же коммерческим сектором (automatic=true)
// или из явного списка. Уже приглашенные пропускаются; возвращаются только новые записи.
func (m *InvitationManager) Invite(ctx context.Context, bid *models.Bid, automatic bool, providerIds []string, now time.Time) ([]models.InvitationRecord, error) {
	if !utils.Contains(invitableStatuses, bid.Status) {
		return nil, models.NewEngineError(models.KindInvalidStateTransition, models.CodeIllegalTransition,
			"cannot invite providers to bid in status %s", bid.Status)
	}

	var (
		targets []string
		channel models.InvitationChannel
	)
	if automatic {
		channel = models.AutomaticInvitation
		matched, err := m.providers.ProvidersBySectors(ctx, bid.Classifications)
		if err != nil {
			return nil, err
		}
		for _, p := range matched {
			targets = append(targets, p.ID)
		}
	} else {
		channel = models.ManualInvitation
		if len(providerIds) == 0 {
			return nil, models.NewEngineError(models.KindBadRequest, "", "providerIds are required for manual invitation")
		}
		for _, id := range providerIds {
			if utils.Contains(targets, id) {
				continue
			}
			if _, err := m.providers.GetProvider(ctx, id); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, models.NewEngineError(models.KindBadRequest, "", "unknown provider %s", id)
				}
				return nil, err
			}
			targets = append(targets, id)
		}
	}

	if len(targets) == 0 {
		return []models.InvitationRecord{}, nil
	}

	records := make([]models.InvitationRecord, 0, len(targets))
	for _, id := range targets {
		records = append(records, models.InvitationRecord{
			ID:         uuid.NewString(),
			BidID:      bid.ID,
			ProviderID: id,
			Channel:    channel,
			InvitedAt:  now,
		})
	}
	created, err := m.invitations.CreateInvitations(ctx, records)
	if err != nil {
		return nil, err
	}
	if created == nil {
		created = []models.InvitationRecord{}
	}
	return created, nil
}

// IsVisibleTo сообщает, видит ли поставщик тендер.
// Черновик не виден никому из поставщиков; публичный тендер виден всем;
// закрытый - приглашенным, купившим, подписанным или после принудительного раскрытия.
func (m *InvitationManager) IsVisibleTo(ctx context.Context, bid *models.Bid, providerId string) (bool, error) {
	if bid.Status == models.DraftBid {
		return false, nil
	}
	if !bid.Private || bid.ForcedReveal {
		return true, nil
	}

	invited, err := m.invitations.IsInvited(ctx, bid.ID, providerId)
	if err != nil || invited {
		return invited, err
	}

	purchased, err := m.purchases.PurchasedProviders(ctx, bid.ID)
	if err != nil {
		return false, err
	}
	if utils.Contains(purchased, providerId) {
		return true, nil
	}

	return m.providers.HasInterest(ctx, bid.ID, providerId, models.InterestSubscribed)
}

// Subscribe подписывает поставщика на обновления тендера.
func (m *InvitationManager) Subscribe(ctx context.Context, bid *models.Bid, providerId string) error {
	if !bid.SubscriptionEnabled {
		return models.NewEngineError(models.KindBadRequest, "", "subscription is disabled for bid %s", bid.ID)
	}
	if !bid.Status.IsOpen() {
		return models.NewEngineError(models.KindInvalidStateTransition, models.CodeIllegalTransition,
			"cannot subscribe to bid in status %s", bid.Status)
	}
	if _, err := m.providers.GetProvider(ctx, providerId); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.NewEngineError(models.KindBadRequest, "", "unknown provider %s", providerId)
		}
		return err
	}
	return m.providers.RecordInterest(ctx, bid.ID, providerId, models.InterestSubscribed)
}

// Logs возвращает журнал приглашений.
func (m *InvitationManager) Logs(ctx context.Context, bidId string, limit, offset int) ([]models.InvitationRecord, error) {
	records, err := m.invitations.ListInvitations(ctx, bidId, limit, offset)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.InvitationRecord{}
	}
	return records, nil
}
