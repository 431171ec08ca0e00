package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/utils"

	"github.com/go-chi/chi/v5"
)

// BidEngine - операции движка, доступные HTTP слою.
type BidEngine interface {
	CreateBid(ctx context.Context, req models.BidRequest) (*models.Bid, error)
	GetBid(ctx context.Context, bidId string) (*models.Bid, error)
	GetBidHistory(ctx context.Context, bidId string) ([]models.StatusChange, error)
	GetWindowStatus(ctx context.Context, bidId string) (*models.WindowStatus, error)
	ResolveActor(ctx context.Context, bidId, username string, requested models.ActorRole) (models.Actor, error)
	RequestTransition(ctx context.Context, req models.TransitionRequest) (*models.Bid, error)
	ExtendStoppingPeriod(ctx context.Context, bidId string, newDeadline time.Time, actor models.Actor) (*models.Bid, error)
	DeleteDraftBid(ctx context.Context, bidId string, actor models.Actor) error
	ResolveEligibility(ctx context.Context, bidId, username string, ref *models.PurchaserRef) ([]models.PurchaseEligibility, error)
	PurchaseDocuments(ctx context.Context, bidId, username string, req models.PurchaseRequest) (*models.Purchase, error)
	PartitionNotificationReceivers(ctx context.Context, bidId string, event models.EventKind) (models.NotificationReceiverSet, error)
	InviteProviders(ctx context.Context, bidId string, automatic bool, providerIds []string) ([]models.InvitationRecord, error)
	GetProviderInvitationLogs(ctx context.Context, bidId string, limit, offset int) ([]models.InvitationRecord, error)
	ToggleSubscription(ctx context.Context, bidId string, enabled bool) (*models.Bid, error)
	ForceReveal(ctx context.Context, bidId string) (*models.Bid, error)
	Subscribe(ctx context.Context, bidId, providerId string) error
	IsVisibleTo(ctx context.Context, bidId, providerId string) (bool, error)
	IncreaseBidViewCount(ctx context.Context, bidId, providerId string) (int64, error)
}

// BidHandler - структура для обработки HTTP-запросов.
type BidHandler struct {
	Engine  BidEngine
	Logger  *log.Logger
	Timeout time.Duration
}

// NewBidHandler создает новый экземпляр BidHandler.
func NewBidHandler(engine BidEngine, logger *log.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Engine:  engine,
		Logger:  logger,
		Timeout: timeout,
	}
}

func (h *BidHandler) fail(w http.ResponseWriter, err error) {
	h.Logger.Println(err)
	utils.SendError(w, models.ToErrorResponse(err))
}

// manager определяет пользователя, управляющего видимостью тендера.
func (h *BidHandler) manager(ctx context.Context, r *http.Request, bidId string) (models.Actor, error) {
	actor, err := h.Engine.ResolveActor(ctx, bidId, r.URL.Query().Get("username"), models.ActorRole(r.URL.Query().Get("role")))
	if err != nil {
		return actor, err
	}
	if actor.Role != models.Creator && actor.Role != models.Administrator {
		return actor, models.NewEngineError(models.KindInvalidStateTransition, models.CodeRoleNotAuthorized,
			"role %s cannot manage bid visibility", actor.Role)
	}
	return actor, nil
}

// CreateBid обрабатывает запросы для создания тендера.
func (h *BidHandler) CreateBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var bidReq models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&bidReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newBid, err := h.Engine.CreateBid(ctx, bidReq)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, newBid)
}

// GetBid обрабатывает запросы для получения тендера.
func (h *BidHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Engine.GetBid(ctx, chi.URLParam(r, "bidId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, bid)
}

// GetBidHistory обрабатывает запросы для получения истории статусов.
func (h *BidHandler) GetBidHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	history, err := h.Engine.GetBidHistory(ctx, chi.URLParam(r, "bidId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, history)
}

// GetWindowStatus обрабатывает запросы о сроке приема.
func (h *BidHandler) GetWindowStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	status, err := h.Engine.GetWindowStatus(ctx, chi.URLParam(r, "bidId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, status)
}

// DeleteDraftBid обрабатывает запросы на удаление черновика.
func (h *BidHandler) DeleteDraftBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bidId := chi.URLParam(r, "bidId")
	actor, err := h.Engine.ResolveActor(ctx, bidId, r.URL.Query().Get("username"), models.Creator)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.Engine.DeleteDraftBid(ctx, bidId, actor); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateBidStatus обрабатывает запросы на смену статуса тендера.
func (h *BidHandler) UpdateBidStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var body models.TransitionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bidId := chi.URLParam(r, "bidId")
	actor, err := h.Engine.ResolveActor(ctx, bidId, r.URL.Query().Get("username"), models.ActorRole(r.URL.Query().Get("role")))
	if err != nil {
		h.fail(w, err)
		return
	}
	payload, err := body.Payload(actor.Role)
	if err != nil {
		h.fail(w, err)
		return
	}

	bid, err := h.Engine.RequestTransition(ctx, models.TransitionRequest{
		BidID:   bidId,
		Actor:   actor,
		Target:  body.TargetStatus,
		Payload: payload,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, bid)
}

// ExtendStoppingPeriod обрабатывает запросы на продление срока приема.
func (h *BidHandler) ExtendStoppingPeriod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var body struct {
		NewDeadline time.Time `json:"newDeadline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bidId := chi.URLParam(r, "bidId")
	actor, err := h.Engine.ResolveActor(ctx, bidId, r.URL.Query().Get("username"), models.ActorRole(r.URL.Query().Get("role")))
	if err != nil {
		h.fail(w, err)
		return
	}

	bid, err := h.Engine.ExtendStoppingPeriod(ctx, bidId, body.NewDeadline, actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, bid)
}

// ResolveEligibility обрабатывает запросы на проверку возможности покупки документов.
func (h *BidHandler) ResolveEligibility(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	query := r.URL.Query()
	var ref *models.PurchaserRef
	if kind, id := query.Get("purchaserKind"), query.Get("purchaserId"); kind != "" || id != "" {
		ref = &models.PurchaserRef{Kind: models.PurchaserKind(kind), ID: id}
	}

	result, err := h.Engine.ResolveEligibility(ctx, chi.URLParam(r, "bidId"), query.Get("username"), ref)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, result)
}

// PurchaseDocuments обрабатывает запросы на покупку документов тендера.
func (h *BidHandler) PurchaseDocuments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	purchase, err := h.Engine.PurchaseDocuments(ctx, chi.URLParam(r, "bidId"), r.URL.Query().Get("username"), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, purchase)
}

// GetNotificationReceivers обрабатывает запросы на разбиение получателей уведомления.
func (h *BidHandler) GetNotificationReceivers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	event := models.EventKind(r.URL.Query().Get("event"))
	if event == "" {
		event = models.EventStatusChanged
	}

	set, err := h.Engine.PartitionNotificationReceivers(ctx, chi.URLParam(r, "bidId"), event)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, set)
}

// InviteProviders обрабатывает запросы на приглашение поставщиков.
func (h *BidHandler) InviteProviders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.InvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bidId := chi.URLParam(r, "bidId")
	if _, err := h.manager(ctx, r, bidId); err != nil {
		h.fail(w, err)
		return
	}

	records, err := h.Engine.InviteProviders(ctx, bidId, req.Automatic, req.ProviderIDs)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, records)
}

// GetProviderInvitationLogs обрабатывает запросы на получение журнала приглашений.
func (h *BidHandler) GetProviderInvitationLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.Engine.GetProviderInvitationLogs(ctx, chi.URLParam(r, "bidId"), limit, offset)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, records)
}

// ToggleSubscription обрабатывает запросы на включение подписки на тендер.
func (h *BidHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "enabled must be true or false")
		return
	}

	bidId := chi.URLParam(r, "bidId")
	if _, err := h.manager(ctx, r, bidId); err != nil {
		h.fail(w, err)
		return
	}

	bid, err := h.Engine.ToggleSubscription(ctx, bidId, enabled)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, bid)
}

// ForceReveal обрабатывает запросы на принудительное раскрытие тендера.
func (h *BidHandler) ForceReveal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bidId := chi.URLParam(r, "bidId")
	if _, err := h.manager(ctx, r, bidId); err != nil {
		h.fail(w, err)
		return
	}

	bid, err := h.Engine.ForceReveal(ctx, bidId)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, bid)
}

// Subscribe обрабатывает запросы поставщика на подписку.
func (h *BidHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Engine.Subscribe(ctx, chi.URLParam(r, "bidId"), r.URL.Query().Get("providerId")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetVisibility обрабатывает запросы о видимости тендера для поставщика.
func (h *BidHandler) GetVisibility(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	providerId := r.URL.Query().Get("providerId")
	visible, err := h.Engine.IsVisibleTo(ctx, chi.URLParam(r, "bidId"), providerId)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, map[string]any{"providerId": providerId, "visible": visible})
}

// IncreaseViewCount обрабатывает запросы на учет просмотра тендера.
func (h *BidHandler) IncreaseViewCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	count, err := h.Engine.IncreaseBidViewCount(ctx, chi.URLParam(r, "bidId"), r.URL.Query().Get("providerId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, map[string]int64{"viewCount": count})
}
