package services

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/repository"

	"github.com/stretchr/testify/require"
)

const (
	testEntity = "org-1"
	testPeriod = 14 * 24 * time.Hour
)

var (
	acmeRef = models.PurchaserRef{Kind: models.Company, ID: "acme-co"}
	betaRef = models.PurchaserRef{Kind: models.Company, ID: "beta-co"}
	soloRef = models.PurchaserRef{Kind: models.Freelancer, ID: "solo-fl"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type queuedJob struct {
	name string
	run  func(ctx context.Context) error
}

// recordingQueue копит задачи; тест запускает их явно.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
	full bool
}

func (q *recordingQueue) Enqueue(name string, run func(ctx context.Context) error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, queuedJob{name: name, run: run})
	return true
}

func (q *recordingQueue) drain(t *testing.T) []string {
	t.Helper()
	q.mu.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.mu.Unlock()

	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		require.NoError(t, j.run(context.Background()), j.name)
		names = append(names, j.name)
	}
	return names
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, notification)
	return nil
}

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func (p *fakePresence) IsOnline(providerId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[providerId]
}

func (p *fakePresence) set(providerId string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[providerId] = online
}

type fixture struct {
	engine   *Engine
	store    *repository.MemoryStore
	clock    *fakeClock
	queue    *recordingQueue
	notifier *recordingNotifier
	presence *fakePresence
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func seedStore(store *repository.MemoryStore) {
	store.AddResponsible("creator", testEntity)
	store.AddBidActor("admin", "", models.Administrator)
	store.AddBidActor("donor", "", models.Donor)
	store.AddBidActor("supervisor", "", models.SupervisingBody)
	store.AddUser("stranger")

	store.AddProvider(models.Provider{ID: "acme", Name: "Acme", Ref: acmeRef, Sectors: []string{"construction"}}, "acme_user")
	store.AddProvider(models.Provider{ID: "beta", Name: "Beta", Ref: betaRef, Sectors: []string{"construction", "roads"}}, "beta_user")
	store.AddProvider(models.Provider{ID: "solo", Name: "Solo", Ref: soloRef, Sectors: []string{"consulting"}}, "solo_user")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	seedStore(store)

	f := &fixture{
		store:    store,
		clock:    &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		queue:    &recordingQueue{},
		notifier: &recordingNotifier{},
		presence: &fakePresence{online: map[string]bool{}},
	}
	f.rebuild(f.notifier)
	return f
}

// rebuild пересоздает движок над тем же хранилищем с другим Notifier.
func (f *fixture) rebuild(notifier Notifier) {
	f.engine = NewEngine(Dependencies{
		Bids:        f.store,
		Purchases:   f.store,
		Invitations: f.store,
		Providers:   f.store,
		Identity:    f.store,
		Presence:    f.presence,
		Notifier:    notifier,
		Queue:       f.queue,
		Clock:       f.clock,
	}, EngineConfig{DefaultStoppingPeriod: testPeriod, CollaboratorTimeout: time.Second}, discardLogger())
}

func actor(username string, role models.ActorRole) models.Actor {
	return models.Actor{Username: username, Role: role}
}

func (f *fixture) createBid(t *testing.T, mutate func(req *models.BidRequest)) *models.Bid {
	t.Helper()
	req := models.BidRequest{
		Name:            "Road repair",
		Description:     "Repair of the main road",
		EntityID:        testEntity,
		CreatorUsername: "creator",
		Classifications: []string{"construction"},
	}
	if mutate != nil {
		mutate(&req)
	}
	bid, err := f.engine.CreateBid(context.Background(), req)
	require.NoError(t, err)
	return bid
}

func (f *fixture) transition(bidId string, a models.Actor, target models.BidStatus, payload models.DecisionPayload) (*models.Bid, error) {
	return f.engine.RequestTransition(context.Background(), models.TransitionRequest{
		BidID:   bidId,
		Actor:   a,
		Target:  target,
		Payload: payload,
	})
}

func (f *fixture) publishedBid(t *testing.T, mutate func(req *models.BidRequest)) *models.Bid {
	t.Helper()
	bid := f.createBid(t, mutate)
	bid, err := f.transition(bid.ID, actor("creator", models.Creator), models.PublishedBid, nil)
	require.NoError(t, err)
	return bid
}
