package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/utils"
)

// MemoryStore - реализация всех репозиториев в памяти процесса.
// Используется при STORAGE_DRIVER=memory и в тестах.
type MemoryStore struct {
	mu sync.RWMutex

	bids        map[string]*models.Bid
	history     map[string][]models.StatusChange
	purchases   map[string][]models.Purchase
	invitations map[string][]models.InvitationRecord
	interest    map[string]map[string][]models.InterestKind

	providers     map[string]models.Provider
	providerUsers map[string][]string
	suspensions   map[string]struct{}
	users         map[string]struct{}
	responsible   map[string][]string
	bidActors     map[string][]models.ActorRole
	globalRoles   map[string][]models.ActorRole
}

// NewMemoryStore создает пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bids:          make(map[string]*models.Bid),
		history:       make(map[string][]models.StatusChange),
		purchases:     make(map[string][]models.Purchase),
		invitations:   make(map[string][]models.InvitationRecord),
		interest:      make(map[string]map[string][]models.InterestKind),
		providers:     make(map[string]models.Provider),
		providerUsers: make(map[string][]string),
		suspensions:   make(map[string]struct{}),
		users:         make(map[string]struct{}),
		responsible:   make(map[string][]string),
		bidActors:     make(map[string][]models.ActorRole),
		globalRoles:   make(map[string][]models.ActorRole),
	}
}

// AddUser регистрирует пользователя.
func (s *MemoryStore) AddUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = struct{}{}
}

// AddProvider регистрирует поставщика и его пользователей.
func (s *MemoryStore) AddProvider(p models.Provider, usernames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
	for _, u := range usernames {
		s.users[u] = struct{}{}
		s.providerUsers[p.ID] = append(s.providerUsers[p.ID], u)
	}
}

// AddResponsible назначает пользователя ответственным за заказчика.
func (s *MemoryStore) AddResponsible(username, entityId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = struct{}{}
	s.responsible[username] = append(s.responsible[username], entityId)
}

// AddBidActor назначает пользователю роль на конкретном тендере.
// Пустой bidId означает роль на всей площадке.
func (s *MemoryStore) AddBidActor(username, bidId string, role models.ActorRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = struct{}{}
	if bidId == "" {
		s.globalRoles[username] = append(s.globalRoles[username], role)
		return
	}
	key := bidId + "|" + username
	s.bidActors[key] = append(s.bidActors[key], role)
}

// Suspend блокирует покупателя у заказчика.
func (s *MemoryStore) Suspend(entityId string, ref models.PurchaserRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspensions[entityId+"|"+ref.Key()] = struct{}{}
}

func (s *MemoryStore) CreateBid(_ context.Context, bid *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bids[bid.ID]; ok {
		return ErrDuplicate
	}
	s.bids[bid.ID] = bid.Clone()
	return nil
}

func (s *MemoryStore) GetBid(_ context.Context, bidId string) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bid, ok := s.bids[bidId]
	if !ok {
		return nil, ErrNotFound
	}
	return bid.Clone(), nil
}

func (s *MemoryStore) UpdateBid(_ context.Context, bid *models.Bid, expectedVersion int, change *models.StatusChange, ext *models.Extension) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.bids[bid.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrStaleVersion
	}

	next := stored.Clone()
	next.Status = bid.Status
	next.StoppingPeriodEndsAt = bid.StoppingPeriodEndsAt
	next.PublishedAt = bid.PublishedAt
	next.SubscriptionEnabled = bid.SubscriptionEnabled
	next.ForcedReveal = bid.ForcedReveal
	next.Version = expectedVersion + 1
	if ext != nil {
		next.Extensions = append(next.Extensions, *ext)
	}
	s.bids[bid.ID] = next
	if change != nil {
		c := *change
		c.BidID = bid.ID
		s.history[bid.ID] = append(s.history[bid.ID], c)
	}

	bid.Version = next.Version
	bid.Extensions = next.Clone().Extensions
	return nil
}

func (s *MemoryStore) DeleteBid(_ context.Context, bidId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bids[bidId]; !ok {
		return ErrNotFound
	}
	delete(s.bids, bidId)
	delete(s.history, bidId)
	delete(s.purchases, bidId)
	delete(s.invitations, bidId)
	delete(s.interest, bidId)
	return nil
}

func (s *MemoryStore) GetBidHistory(_ context.Context, bidId string) ([]models.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.StatusChange, len(s.history[bidId]))
	copy(out, s.history[bidId])
	return out, nil
}

func (s *MemoryStore) IncrementViewCount(_ context.Context, bidId string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bid, ok := s.bids[bidId]
	if !ok {
		return 0, ErrNotFound
	}
	bid.ViewCount++
	return bid.ViewCount, nil
}

func (s *MemoryStore) HasPurchased(_ context.Context, bidId string, ref models.PurchaserRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.purchases[bidId] {
		if p.Purchaser == ref {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreatePurchase(_ context.Context, purchase *models.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases[purchase.BidID] {
		if p.Purchaser == purchase.Purchaser {
			return ErrDuplicate
		}
	}
	s.purchases[purchase.BidID] = append(s.purchases[purchase.BidID], *purchase)
	return nil
}

func (s *MemoryStore) PurchasedProviders(_ context.Context, bidId string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]struct{})
	for _, p := range s.purchases[bidId] {
		set[p.ProviderID] = struct{}{}
	}
	return sortedKeys(set), nil
}

func (s *MemoryStore) CreateInvitations(_ context.Context, records []models.InvitationRecord) ([]models.InvitationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var created []models.InvitationRecord
	for _, rec := range records {
		if s.invitedLocked(rec.BidID, rec.ProviderID) {
			continue
		}
		s.invitations[rec.BidID] = append(s.invitations[rec.BidID], rec)
		created = append(created, rec)
	}
	return created, nil
}

func (s *MemoryStore) invitedLocked(bidId, providerId string) bool {
	for _, rec := range s.invitations[bidId] {
		if rec.ProviderID == providerId {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InvitedProviders(_ context.Context, bidId string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]struct{})
	for _, rec := range s.invitations[bidId] {
		set[rec.ProviderID] = struct{}{}
	}
	return sortedKeys(set), nil
}

func (s *MemoryStore) IsInvited(_ context.Context, bidId, providerId string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invitedLocked(bidId, providerId), nil
}

func (s *MemoryStore) ListInvitations(_ context.Context, bidId string, limit, offset int) ([]models.InvitationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.invitations[bidId]
	if offset >= len(records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	out := make([]models.InvitationRecord, end-offset)
	copy(out, records[offset:end])
	return out, nil
}

func (s *MemoryStore) GetProvider(_ context.Context, providerId string) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[providerId]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) GetPurchaser(_ context.Context, ref models.PurchaserRef) (*models.Purchaser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.Ref == ref {
			return &models.Purchaser{Ref: p.Ref, Name: p.Name, ProviderID: p.ID, Sectors: p.Sectors}, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) PurchasersForUser(_ context.Context, username string) ([]models.Purchaser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Purchaser
	for id, users := range s.providerUsers {
		if !utils.Contains(users, username) {
			continue
		}
		p := s.providers[id]
		out = append(out, models.Purchaser{Ref: p.Ref, Name: p.Name, ProviderID: p.ID, Sectors: p.Sectors})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.Key() < out[j].Ref.Key() })
	return out, nil
}

func (s *MemoryStore) ProvidersBySectors(_ context.Context, sectors []string) ([]models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Provider
	for _, p := range s.providers {
		if utils.Intersects(p.Sectors, sectors) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) IsSuspended(_ context.Context, entityId string, ref models.PurchaserRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.suspensions[entityId+"|"+ref.Key()]
	return ok, nil
}

func (s *MemoryStore) RecordInterest(_ context.Context, bidId, providerId string, kind models.InterestKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interest[bidId] == nil {
		s.interest[bidId] = make(map[string][]models.InterestKind)
	}
	if !utils.Contains(s.interest[bidId][providerId], kind) {
		s.interest[bidId][providerId] = append(s.interest[bidId][providerId], kind)
	}
	return nil
}

func (s *MemoryStore) HasInterest(_ context.Context, bidId, providerId string, kind models.InterestKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return utils.Contains(s.interest[bidId][providerId], kind), nil
}

func (s *MemoryStore) InterestedProviders(_ context.Context, bidId string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]struct{})
	for id := range s.interest[bidId] {
		set[id] = struct{}{}
	}
	for _, rec := range s.invitations[bidId] {
		set[rec.ProviderID] = struct{}{}
	}
	for _, p := range s.purchases[bidId] {
		set[p.ProviderID] = struct{}{}
	}
	return sortedKeys(set), nil
}

func (s *MemoryStore) ProviderUsers(_ context.Context, providerId string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.providerUsers[providerId]))
	copy(out, s.providerUsers[providerId])
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) UserExists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok, nil
}

func (s *MemoryStore) RolesFor(_ context.Context, username string, bid *models.Bid) ([]models.ActorRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roles []models.ActorRole
	if bid.CreatorUsername == username || utils.Contains(s.responsible[username], bid.EntityID) {
		roles = append(roles, models.Creator)
	}
	add := func(rs []models.ActorRole) {
		for _, r := range rs {
			if !utils.Contains(roles, r) {
				roles = append(roles, r)
			}
		}
	}
	add(s.bidActors[bid.ID+"|"+username])
	add(s.globalRoles[username])
	for _, users := range s.providerUsers {
		if utils.Contains(users, username) {
			add([]models.ActorRole{models.ProviderRole})
			break
		}
	}
	return roles, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
