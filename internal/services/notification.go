package services

import (
	"context"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/repository"
)

// NotificationPartitioner делит заинтересованных поставщиков на получателей
// полного уведомления и получателей realtime уведомления.
type NotificationPartitioner struct {
	providers repository.ProviderRepository
	purchases repository.PurchaseRepository
	presence  PresenceTracker
}

// NewNotificationPartitioner создает новый экземпляр NotificationPartitioner.
func NewNotificationPartitioner(providers repository.ProviderRepository, purchases repository.PurchaseRepository, presence PresenceTracker) *NotificationPartitioner {
	return &NotificationPartitioner{providers: providers, purchases: purchases, presence: presence}
}

// Partition применяет к одному множеству кандидатов два независимых фильтра:
// купившие документы и подключенные сейчас. Поставщик может попасть в оба списка.
func (p *NotificationPartitioner) Partition(ctx context.Context, bidId string, event models.EventKind) (models.NotificationReceiverSet, error) {
	set := models.NotificationReceiverSet{
		BidID:             bidId,
		Event:             event,
		ActualReceivers:   []string{},
		RealtimeReceivers: []string{},
	}

	candidates, err := p.providers.InterestedProviders(ctx, bidId)
	if err != nil {
		return set, err
	}
	if len(candidates) == 0 {
		return set, nil
	}

	purchasedList, err := p.purchases.PurchasedProviders(ctx, bidId)
	if err != nil {
		return set, err
	}
	purchased := make(map[string]bool, len(purchasedList))
	for _, id := range purchasedList {
		purchased[id] = true
	}

	for _, id := range candidates {
		if purchased[id] {
			set.ActualReceivers = append(set.ActualReceivers, id)
		}
		if p.presence != nil && p.presence.IsOnline(id) {
			set.RealtimeReceivers = append(set.RealtimeReceivers, id)
		}
	}
	return set, nil
}
