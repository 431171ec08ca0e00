package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/dispatch"
	"github.com/senyabanana/tender-orchestrator/internal/lock"
	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/repository"
	"github.com/senyabanana/tender-orchestrator/internal/utils"

	"github.com/google/uuid"
)

// EngineConfig - параметры движка.
type EngineConfig struct {
	DefaultStoppingPeriod time.Duration
	CollaboratorTimeout   time.Duration
}

// Dependencies - внешние коллабораторы движка.
type Dependencies struct {
	Bids        repository.BidRepository
	Purchases   repository.PurchaseRepository
	Invitations repository.InvitationRepository
	Providers   repository.ProviderRepository
	Identity    repository.IdentityRepository
	Payments    PaymentConfirmer
	Presence    PresenceTracker
	Notifier    Notifier
	Queue       JobQueue
	Clock       Clock
}

// Engine - точка входа оркестрации жизненного цикла тендера.
// Изменения статуса и срока выполняются под блокировкой тендера,
// покупка - под блокировкой пары тендер+покупатель.
type Engine struct {
	deps   Dependencies
	cfg    EngineConfig
	logger *log.Logger

	machine     TransitionPlanner
	eligibility EligibilityChecker
	window      WindowGate
	partitioner ReceiverPartitioner
	invitations InvitationPolicy

	bidLocks      *lock.Keyed
	purchaseLocks *lock.Keyed
}

// NewEngine создает движок со стандартными реализациями возможностей.
func NewEngine(deps Dependencies, cfg EngineConfig, logger *log.Logger) *Engine {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Payments == nil {
		deps.Payments = ReferencePaymentConfirmer{}
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = 3 * time.Second
	}

	gate := NewTimeWindowGate(cfg.DefaultStoppingPeriod)
	return &Engine{
		deps:          deps,
		cfg:           cfg,
		logger:        logger,
		machine:       NewStateMachine(gate),
		eligibility:   NewEligibilityResolver(deps.Purchases, deps.Providers, gate),
		window:        gate,
		partitioner:   NewNotificationPartitioner(deps.Providers, deps.Purchases, deps.Presence),
		invitations:   NewInvitationManager(deps.Invitations, deps.Providers, deps.Purchases),
		bidLocks:      lock.NewKeyed(),
		purchaseLocks: lock.NewKeyed(),
	}
}

// bounded ограничивает вызов коллаборатора таймаутом.
func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.CollaboratorTimeout)
}

func (e *Engine) lockBid(ctx context.Context, bidId string) (func(), error) {
	lctx, cancel := e.bounded(ctx)
	defer cancel()
	unlock, err := e.bidLocks.Lock(lctx, bidId)
	if err != nil {
		return nil, lockError("bid "+bidId, err)
	}
	return unlock, nil
}

// checkBidID отсекает пустой и неразбираемый идентификатор до обращения к хранилищу.
func checkBidID(bidId string) error {
	if bidId == "" {
		return models.NewEngineError(models.KindBadRequest, "", "bidId is required")
	}
	if _, err := uuid.Parse(bidId); err != nil {
		return models.NewEngineError(models.KindNotFound, "", "bid %s: not found", bidId)
	}
	return nil
}

func (e *Engine) loadBid(ctx context.Context, bidId string) (*models.Bid, error) {
	if err := checkBidID(bidId); err != nil {
		return nil, err
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	bid, err := e.deps.Bids.GetBid(cctx, bidId)
	if err != nil {
		return nil, storageError("bid "+bidId, err)
	}
	return bid, nil
}

func (e *Engine) saveBid(ctx context.Context, bid *models.Bid, expectedVersion int, change *models.StatusChange, ext *models.Extension) error {
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	return storageError("bid "+bid.ID, e.deps.Bids.UpdateBid(cctx, bid, expectedVersion, change, ext))
}

// CreateBid создает тендер в статусе Draft.
func (e *Engine) CreateBid(ctx context.Context, req models.BidRequest) (*models.Bid, error) {
	if strings.TrimSpace(req.Name) == "" || req.EntityID == "" || req.CreatorUsername == "" {
		return nil, models.NewEngineError(models.KindBadRequest, "", "missing required fields")
	}
	if len(req.Name) > 100 {
		return nil, models.NewEngineError(models.KindBadRequest, "", "name must be at most 100 characters")
	}
	if req.DocumentPrice.IsNegative() {
		return nil, models.NewEngineError(models.KindBadRequest, "", "documentPrice must not be negative")
	}
	if req.SectorRestricted && len(req.Classifications) == 0 {
		return nil, models.NewEngineError(models.KindBadRequest, "", "sector restricted bid requires classifications")
	}

	cctx, cancel := e.bounded(ctx)
	defer cancel()
	exists, err := e.deps.Identity.UserExists(cctx, req.CreatorUsername)
	if err != nil {
		return nil, storageError("user "+req.CreatorUsername, err)
	}
	if !exists {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, "user does not exist")
	}

	bid := &models.Bid{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Description:      req.Description,
		Status:           models.DraftBid,
		EntityID:         req.EntityID,
		CreatorUsername:  req.CreatorUsername,
		Classifications:  append([]string{}, req.Classifications...),
		SectorRestricted: req.SectorRestricted,
		Private:          req.Private,
		AutoInvite:       req.AutoInvite,
		DocumentPrice:    req.DocumentPrice,
		Extensions:       []models.Extension{},
		Version:          1,
		CreatedAt:        e.deps.Clock.Now(),
	}
	if err := e.deps.Bids.CreateBid(cctx, bid); err != nil {
		return nil, storageError("create bid", err)
	}
	e.logger.Printf("bid created: bid=%s entity=%s creator=%s", bid.ID, bid.EntityID, bid.CreatorUsername)
	return bid, nil
}

// GetBid возвращает тендер.
func (e *Engine) GetBid(ctx context.Context, bidId string) (*models.Bid, error) {
	return e.loadBid(ctx, bidId)
}

// GetBidHistory возвращает историю переходов тендера.
func (e *Engine) GetBidHistory(ctx context.Context, bidId string) ([]models.StatusChange, error) {
	if _, err := e.loadBid(ctx, bidId); err != nil {
		return nil, err
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	history, err := e.deps.Bids.GetBidHistory(cctx, bidId)
	if err != nil {
		return nil, storageError("bid history "+bidId, err)
	}
	if history == nil {
		history = []models.StatusChange{}
	}
	return history, nil
}

// GetWindowStatus возвращает состояние срока приема тендера.
func (e *Engine) GetWindowStatus(ctx context.Context, bidId string) (*models.WindowStatus, error) {
	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	now := e.deps.Clock.Now()
	return &models.WindowStatus{
		BidID:                bid.ID,
		Status:               bid.Status,
		StoppingPeriodEndsAt: bid.StoppingPeriodEndsAt,
		PurchaseOpen:         e.window.IsPurchaseOpen(bid, now),
		SubmissionOpen:       e.window.IsSubmissionOpen(bid, now),
		Extensions:           len(bid.Extensions),
	}, nil
}

// ResolveActor определяет роль пользователя относительно тендера.
// Без явной роли используется единственная роль пользователя.
func (e *Engine) ResolveActor(ctx context.Context, bidId, username string, requested models.ActorRole) (models.Actor, error) {
	if username == "" {
		return models.Actor{}, models.NewEngineError(models.KindBadRequest, "", "username is required")
	}
	if requested != "" && !requested.Valid() {
		return models.Actor{}, models.NewEngineError(models.KindBadRequest, "", "unknown role %s", requested)
	}

	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return models.Actor{}, err
	}

	cctx, cancel := e.bounded(ctx)
	defer cancel()
	exists, err := e.deps.Identity.UserExists(cctx, username)
	if err != nil {
		return models.Actor{}, storageError("user "+username, err)
	}
	if !exists {
		return models.Actor{}, models.NewErrorResponse(http.StatusUnauthorized, "user does not exist")
	}
	roles, err := e.deps.Identity.RolesFor(cctx, username, bid)
	if err != nil {
		return models.Actor{}, models.NewEngineError(models.KindCollaboratorUnavailable, "", "identity provider failure").Wrap(err)
	}

	switch {
	case requested != "" && utils.Contains(roles, requested):
		return models.Actor{Username: username, Role: requested}, nil
	case requested != "":
		return models.Actor{}, models.NewEngineError(models.KindInvalidStateTransition, models.CodeRoleNotAuthorized,
			"user %s does not hold role %s for bid %s", username, requested, bidId)
	case len(roles) == 1:
		return models.Actor{Username: username, Role: roles[0]}, nil
	case len(roles) == 0:
		return models.Actor{}, models.NewEngineError(models.KindInvalidStateTransition, models.CodeRoleNotAuthorized,
			"user %s has no role for bid %s", username, bidId)
	default:
		return models.Actor{}, models.NewEngineError(models.KindBadRequest, "",
			"user %s holds several roles for bid %s, role parameter is required", username, bidId)
	}
}

// RequestTransition переводит тендер в целевой статус от имени роли.
// При любой ошибке тендер не изменяется. Побочные эффекты ставятся в очередь после фиксации.
func (e *Engine) RequestTransition(ctx context.Context, req models.TransitionRequest) (*models.Bid, error) {
	if !req.Target.Valid() {
		return nil, models.NewEngineError(models.KindBadRequest, "", "unknown target status %s", req.Target)
	}
	if !req.Actor.Role.Valid() {
		return nil, models.NewEngineError(models.KindBadRequest, "", "unknown role %s", req.Actor.Role)
	}

	unlock, err := e.lockBid(ctx, req.BidID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	bid, err := e.loadBid(ctx, req.BidID)
	if err != nil {
		return nil, err
	}

	tr, err := e.machine.Plan(bid, req, e.deps.Clock.Now())
	if err != nil {
		return nil, err
	}
	if err := e.saveBid(ctx, tr.Bid, bid.Version, &tr.Change, tr.Extension); err != nil {
		return nil, err
	}

	e.logger.Printf("bid transition: bid=%s from=%s to=%s actor=%s role=%s",
		bid.ID, tr.Change.From, tr.Change.To, req.Actor.Username, req.Actor.Role)

	e.notify(tr.Bid, tr.Event)
	if tr.Change.From == models.DraftBid && tr.Change.To == models.PublishedBid && tr.Bid.AutoInvite {
		e.scheduleAutoInvite(tr.Bid.ID)
	}
	return tr.Bid, nil
}

// ExtendStoppingPeriod переносит срок приема на более поздний.
func (e *Engine) ExtendStoppingPeriod(ctx context.Context, bidId string, newDeadline time.Time, actor models.Actor) (*models.Bid, error) {
	return e.RequestTransition(ctx, models.TransitionRequest{
		BidID:   bidId,
		Actor:   actor,
		Target:  models.ExtendedBid,
		Payload: models.ExtensionPayload{NewDeadline: newDeadline},
	})
}

// DeleteDraftBid удаляет тендер, пока он в статусе Draft.
func (e *Engine) DeleteDraftBid(ctx context.Context, bidId string, actor models.Actor) error {
	if actor.Role != models.Creator {
		return models.NewEngineError(models.KindInvalidStateTransition, models.CodeRoleNotAuthorized,
			"role %s is not authorized to delete bids", actor.Role)
	}

	unlock, err := e.lockBid(ctx, bidId)
	if err != nil {
		return err
	}
	defer unlock()

	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return err
	}
	if bid.Status != models.DraftBid {
		return models.NewEngineError(models.KindInvalidStateTransition, models.CodeIllegalTransition,
			"only draft bids can be deleted, bid %s is %s", bidId, bid.Status)
	}

	cctx, cancel := e.bounded(ctx)
	defer cancel()
	if err := e.deps.Bids.DeleteBid(cctx, bidId); err != nil {
		return storageError("delete bid "+bidId, err)
	}
	e.logger.Printf("draft bid deleted: bid=%s actor=%s", bidId, actor.Username)
	return nil
}

// ToggleSubscription включает или выключает подписку поставщиков на тендер.
func (e *Engine) ToggleSubscription(ctx context.Context, bidId string, enabled bool) (*models.Bid, error) {
	return e.updateFlags(ctx, bidId, func(bid *models.Bid) { bid.SubscriptionEnabled = enabled })
}

// ForceReveal делает тендер видимым поставщикам без подписки.
func (e *Engine) ForceReveal(ctx context.Context, bidId string) (*models.Bid, error) {
	return e.updateFlags(ctx, bidId, func(bid *models.Bid) { bid.ForcedReveal = true })
}

func (e *Engine) updateFlags(ctx context.Context, bidId string, apply func(bid *models.Bid)) (*models.Bid, error) {
	unlock, err := e.lockBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	next := bid.Clone()
	apply(next)
	if next.SubscriptionEnabled == bid.SubscriptionEnabled && next.ForcedReveal == bid.ForcedReveal {
		return bid, nil
	}
	if err := e.saveBid(ctx, next, bid.Version, nil, nil); err != nil {
		return nil, err
	}
	e.logger.Printf("bid visibility updated: bid=%s subscription=%t forcedReveal=%t",
		bidId, next.SubscriptionEnabled, next.ForcedReveal)
	return next, nil
}

// purchasersFor возвращает покупателей для проверки: одного явно указанного
// или всех, которыми управляет пользователь.
func (e *Engine) purchasersFor(ctx context.Context, username string, ref *models.PurchaserRef) ([]models.Purchaser, error) {
	cctx, cancel := e.bounded(ctx)
	defer cancel()

	if ref == nil {
		if username == "" {
			return nil, models.NewEngineError(models.KindBadRequest, "", "username or purchaser is required")
		}
		purchasers, err := e.deps.Providers.PurchasersForUser(cctx, username)
		if err != nil {
			return nil, storageError("purchasers of "+username, err)
		}
		return purchasers, nil
	}

	if !ref.Valid() {
		return nil, models.NewEngineError(models.KindBadRequest, "", "purchaser must be a Company or Freelancer with id")
	}
	purchaser, err := e.deps.Providers.GetPurchaser(cctx, *ref)
	if err != nil {
		return nil, storageError("purchaser "+ref.Key(), err)
	}
	if username != "" {
		owned, err := e.deps.Providers.PurchasersForUser(cctx, username)
		if err != nil {
			return nil, storageError("purchasers of "+username, err)
		}
		found := false
		for _, p := range owned {
			if p.Ref == *ref {
				found = true
				break
			}
		}
		if !found {
			return nil, models.NewEngineError(models.KindNotFound, "", "purchaser %s is not managed by %s", ref.Key(), username)
		}
	}
	return []models.Purchaser{*purchaser}, nil
}

// ResolveEligibility проверяет возможность покупки документов для одного покупателя
// или для всех покупателей пользователя.
func (e *Engine) ResolveEligibility(ctx context.Context, bidId, username string, ref *models.PurchaserRef) ([]models.PurchaseEligibility, error) {
	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	purchasers, err := e.purchasersFor(ctx, username, ref)
	if err != nil {
		return nil, err
	}

	now := e.deps.Clock.Now()
	results := make([]models.PurchaseEligibility, 0, len(purchasers))
	for _, p := range purchasers {
		cctx, cancel := e.bounded(ctx)
		res, err := e.eligibility.Resolve(cctx, bid, p, now)
		cancel()
		if err != nil {
			return nil, storageError("eligibility "+p.Ref.Key(), err)
		}
		results = append(results, res)
	}
	return results, nil
}

// PurchaseDocuments покупает документы тендера. Проверка возможности покупки
// и запись покупки выполняются под блокировкой пары тендер+покупатель.
func (e *Engine) PurchaseDocuments(ctx context.Context, bidId, username string, req models.PurchaseRequest) (*models.Purchase, error) {
	// Покупатель должен принадлежать пользователю, поэтому username обязателен.
	if username == "" {
		return nil, models.NewEngineError(models.KindBadRequest, "", "username is required")
	}
	purchasers, err := e.purchasersFor(ctx, username, &req.Purchaser)
	if err != nil {
		return nil, err
	}
	purchaser := purchasers[0]

	key := bidId + "|" + purchaser.Ref.Key()
	lctx, lcancel := e.bounded(ctx)
	unlock, err := e.purchaseLocks.Lock(lctx, key)
	lcancel()
	if err != nil {
		return nil, lockError(key, err)
	}
	defer unlock()

	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return nil, err
	}

	now := e.deps.Clock.Now()
	cctx, cancel := e.bounded(ctx)
	eligibility, err := e.eligibility.Resolve(cctx, bid, purchaser, now)
	cancel()
	if err != nil {
		return nil, storageError("eligibility "+key, err)
	}
	if !eligibility.Eligible {
		return nil, denied(bidId, purchaser.Ref, eligibility.Reasons)
	}

	pctx, pcancel := e.bounded(ctx)
	err = e.deps.Payments.ConfirmPayment(pctx, bid.ID, purchaser.Ref, req.PaymentRef, bid.DocumentPrice)
	pcancel()
	if err != nil {
		var engineErr *models.EngineError
		if errors.As(err, &engineErr) {
			return nil, err
		}
		return nil, models.NewEngineError(models.KindCollaboratorUnavailable, "", "payment confirmation failed").Wrap(err)
	}

	purchase := &models.Purchase{
		ID:         uuid.NewString(),
		BidID:      bid.ID,
		Purchaser:  purchaser.Ref,
		ProviderID: purchaser.ProviderID,
		PaymentRef: req.PaymentRef,
		Amount:     bid.DocumentPrice,
		CreatedAt:  now,
	}
	sctx, scancel := e.bounded(ctx)
	defer scancel()
	if err := e.deps.Purchases.CreatePurchase(sctx, purchase); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, denied(bidId, purchaser.Ref, []models.ForbiddenReason{models.AlreadyPurchased})
		}
		return nil, storageError("purchase "+key, err)
	}
	if err := e.deps.Providers.RecordInterest(sctx, bid.ID, purchaser.ProviderID, models.InterestPurchased); err != nil {
		e.logger.Printf("failed to record purchase interest: bid=%s provider=%s err=%v", bid.ID, purchaser.ProviderID, err)
	}

	e.logger.Printf("documents purchased: bid=%s purchaser=%s amount=%s", bid.ID, purchaser.Ref.Key(), purchase.Amount.StringFixed(2))
	e.notify(bid, models.EventDocumentPurchase)
	return purchase, nil
}

func denied(bidId string, ref models.PurchaserRef, reasons []models.ForbiddenReason) error {
	names := make([]string, len(reasons))
	for i, r := range reasons {
		names[i] = string(r)
	}
	err := models.NewEngineError(models.KindEligibilityDenied, "",
		"purchaser %s cannot buy documents of bid %s: %s", ref.Key(), bidId, strings.Join(names, ", "))
	err.Reasons = reasons
	return err
}

// PartitionNotificationReceivers строит множество получателей уведомления о событии.
func (e *Engine) PartitionNotificationReceivers(ctx context.Context, bidId string, event models.EventKind) (models.NotificationReceiverSet, error) {
	if !event.Valid() {
		return models.NotificationReceiverSet{}, models.NewEngineError(models.KindBadRequest, "", "unknown event %q", event)
	}
	if _, err := e.loadBid(ctx, bidId); err != nil {
		return models.NotificationReceiverSet{}, err
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	set, err := e.partitioner.Partition(cctx, bidId, event)
	if err != nil {
		return models.NotificationReceiverSet{}, storageError("receivers "+bidId, err)
	}
	return set, nil
}

// InviteProviders приглашает поставщиков по сектору или по явному списку.
func (e *Engine) InviteProviders(ctx context.Context, bidId string, automatic bool, providerIds []string) ([]models.InvitationRecord, error) {
	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	records, err := e.invitations.Invite(cctx, bid, automatic, providerIds, e.deps.Clock.Now())
	if err != nil {
		return nil, storageError("invite "+bidId, err)
	}
	if len(records) > 0 {
		e.logger.Printf("providers invited: bid=%s automatic=%t count=%d", bidId, automatic, len(records))
	}
	return records, nil
}

// GetProviderInvitationLogs возвращает журнал приглашений тендера.
func (e *Engine) GetProviderInvitationLogs(ctx context.Context, bidId string, limit, offset int) ([]models.InvitationRecord, error) {
	if _, err := e.loadBid(ctx, bidId); err != nil {
		return nil, err
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	records, err := e.invitations.Logs(cctx, bidId, limit, offset)
	if err != nil {
		return nil, storageError("invitation logs "+bidId, err)
	}
	return records, nil
}

// IsVisibleTo сообщает, видит ли поставщик тендер.
func (e *Engine) IsVisibleTo(ctx context.Context, bidId, providerId string) (bool, error) {
	if providerId == "" {
		return false, models.NewEngineError(models.KindBadRequest, "", "providerId is required")
	}
	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return false, err
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	visible, err := e.invitations.IsVisibleTo(cctx, bid, providerId)
	if err != nil {
		return false, storageError("visibility "+bidId, err)
	}
	return visible, nil
}

// Subscribe подписывает поставщика на обновления тендера.
func (e *Engine) Subscribe(ctx context.Context, bidId, providerId string) error {
	bid, err := e.loadBid(ctx, bidId)
	if err != nil {
		return err
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	return storageError("subscribe "+bidId, e.invitations.Subscribe(cctx, bid, providerId))
}

// IncreaseBidViewCount увеличивает счетчик просмотров и отмечает интерес поставщика.
func (e *Engine) IncreaseBidViewCount(ctx context.Context, bidId, providerId string) (int64, error) {
	if err := checkBidID(bidId); err != nil {
		return 0, err
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	count, err := e.deps.Bids.IncrementViewCount(cctx, bidId)
	if err != nil {
		return 0, storageError("view count "+bidId, err)
	}
	if providerId != "" {
		if err := e.deps.Providers.RecordInterest(cctx, bidId, providerId, models.InterestViewed); err != nil {
			e.logger.Printf("failed to record view interest: bid=%s provider=%s err=%v", bidId, providerId, err)
		}
	}
	return count, nil
}

// notify ставит уведомление в очередь. Получатели вычисляются сразу после события;
// если это не удалось, задача вычислит их сама.
func (e *Engine) notify(bid *models.Bid, event models.EventKind) {
	if e.deps.Queue == nil || e.deps.Notifier == nil {
		return
	}
	snapshot := bid.Clone()
	createdAt := e.deps.Clock.Now()

	var receivers *models.NotificationReceiverSet
	ctx, cancel := e.bounded(context.Background())
	set, err := e.partitioner.Partition(ctx, bid.ID, event)
	cancel()
	if err != nil {
		e.logger.Printf("deferred receiver partition: bid=%s event=%s err=%v", bid.ID, event, err)
	} else {
		receivers = &set
	}

	name := fmt.Sprintf("notify:%s:%s", event, bid.ID)
	ok := e.deps.Queue.Enqueue(name, func(ctx context.Context) error {
		if receivers == nil {
			set, err := e.partitioner.Partition(ctx, snapshot.ID, event)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return dispatch.Permanent(err)
				}
				return err
			}
			receivers = &set
		}
		err := e.deps.Notifier.Notify(ctx, models.Notification{
			ID:        uuid.NewString(),
			Bid:       snapshot,
			Event:     event,
			Receivers: *receivers,
			CreatedAt: createdAt,
		})
		// Повтор идет только по тем, кому доставка не удалась.
		var partial *dispatch.DeliveryError
		if errors.As(err, &partial) {
			pending := partial.Pending
			receivers = &pending
		}
		return err
	})
	if !ok {
		e.logger.Printf("notification dropped: bid=%s event=%s", bid.ID, event)
	}
}

// scheduleAutoInvite ставит в очередь приглашение поставщиков с тем же сектором.
func (e *Engine) scheduleAutoInvite(bidId string) {
	if e.deps.Queue == nil {
		return
	}
	ok := e.deps.Queue.Enqueue("auto-invite:"+bidId, func(ctx context.Context) error {
		bid, err := e.deps.Bids.GetBid(ctx, bidId)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return dispatch.Permanent(err)
			}
			return err
		}
		records, err := e.invitations.Invite(ctx, bid, true, nil, e.deps.Clock.Now())
		if err != nil {
			if models.IsRetryable(err) {
				return err
			}
			var engineErr *models.EngineError
			if errors.As(err, &engineErr) {
				return dispatch.Permanent(err)
			}
			return err
		}
		e.logger.Printf("auto invitation done: bid=%s count=%d", bidId, len(records))
		return nil
	})
	if !ok {
		e.logger.Printf("auto invitation dropped: bid=%s", bidId)
	}
}
