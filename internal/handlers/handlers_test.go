package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/handlers"
	"github.com/senyabanana/tender-orchestrator/internal/handlers/testutils"
	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/repository"
	"github.com/senyabanana/tender-orchestrator/internal/services"

	"github.com/stretchr/testify/require"
)

const entityID = "org-1"

var acmeRef = models.PurchaserRef{Kind: models.Company, ID: "acme-co"}

func newTestHandler(t *testing.T) (*handlers.BidHandler, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.AddResponsible("creator", entityID)
	store.AddBidActor("admin", "", models.Administrator)
	store.AddBidActor("donor", "", models.Donor)
	store.AddProvider(models.Provider{ID: "acme", Name: "Acme", Ref: acmeRef, Sectors: []string{"construction"}}, "acme_user")

	logger := log.New(io.Discard, "", 0)
	engine := services.NewEngine(services.Dependencies{
		Bids:        store,
		Purchases:   store,
		Invitations: store,
		Providers:   store,
		Identity:    store,
	}, services.EngineConfig{DefaultStoppingPeriod: 14 * 24 * time.Hour, CollaboratorTimeout: time.Second}, logger)
	return handlers.NewBidHandler(engine, logger, 5*time.Second), store
}

func createBid(t *testing.T, h *handlers.BidHandler, body string) models.Bid {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/bids/new", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateBid(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var bid models.Bid
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&bid))
	return bid
}

func draftBody() string {
	return `{"name":"Road repair","entityId":"` + entityID + `","creatorUsername":"creator","classifications":["construction"]}`
}

func publish(t *testing.T, h *handlers.BidHandler, bidId string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/bids/"+bidId+"/status?username=creator", strings.NewReader(`{"targetStatus":"Published"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"bidId": bidId})
	rr := httptest.NewRecorder()
	h.UpdateBidStatus(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestCreateBid(t *testing.T) {
	h, _ := newTestHandler(t)

	bid := createBid(t, h, draftBody())
	require.Equal(t, models.DraftBid, bid.Status)
	require.NotEmpty(t, bid.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/bids/new", strings.NewReader(`{"name":"x","entityId":"`+entityID+`","creatorUsername":"ghost"}`))
	rr := httptest.NewRecorder()
	h.CreateBid(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/bids/new", strings.NewReader(`{`))
	rr = httptest.NewRecorder()
	h.CreateBid(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetBid_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bids/missing", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"bidId": "missing"})
	rr := httptest.NewRecorder()
	h.GetBid(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, models.KindNotFound, decodeError(t, rr).Kind)
}

func TestUpdateBidStatus(t *testing.T) {
	h, _ := newTestHandler(t)
	bid := createBid(t, h, draftBody())

	tests := []struct {
		name     string
		query    string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "admin without decision", query: "username=admin", body: `{"targetStatus":"Published"}`, wantCode: http.StatusConflict, wantErr: models.CodeMissingDecision},
		{name: "donor cannot publish", query: "username=donor", body: `{"targetStatus":"Published"}`, wantCode: http.StatusForbidden, wantErr: models.CodeRoleNotAuthorized},
		{name: "bad decision value", query: "username=admin", body: `{"targetStatus":"Published","decision":"Maybe"}`, wantCode: http.StatusBadRequest},
		{name: "unknown role", query: "username=admin&role=Janitor", body: `{"targetStatus":"Published"}`, wantCode: http.StatusBadRequest},
		{name: "admin approves", query: "username=admin&role=Administrator", body: `{"targetStatus":"Published","decision":"Approved"}`, wantCode: http.StatusOK},
		{name: "creator publishes twice", query: "username=creator", body: `{"targetStatus":"Published"}`, wantCode: http.StatusConflict, wantErr: models.CodeIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/bids/"+bid.ID+"/status?"+tt.query, strings.NewReader(tt.body))
			req = testutils.WithChiURLParams(req, map[string]string{"bidId": bid.ID})
			rr := httptest.NewRecorder()

			h.UpdateBidStatus(rr, req)

			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantErr != "" {
				require.Equal(t, tt.wantErr, decodeError(t, rr).Code)
			}
		})
	}
}

func TestExtendStoppingPeriod(t *testing.T) {
	h, _ := newTestHandler(t)
	bid := createBid(t, h, draftBody())
	publish(t, h, bid.ID)

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodPut, "/api/bids/"+bid.ID+"/extend?username=creator", strings.NewReader(`{"newDeadline":"`+past+`"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"bidId": bid.ID})
	rr := httptest.NewRecorder()
	h.ExtendStoppingPeriod(rr, req)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, models.CodeInvalidExtension, decodeError(t, rr).Code)

	future := time.Now().Add(60 * 24 * time.Hour).UTC().Format(time.RFC3339)
	req = httptest.NewRequest(http.MethodPut, "/api/bids/"+bid.ID+"/extend?username=creator", strings.NewReader(`{"newDeadline":"`+future+`"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"bidId": bid.ID})
	rr = httptest.NewRecorder()
	h.ExtendStoppingPeriod(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var extended models.Bid
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&extended))
	require.Equal(t, models.ExtendedBid, extended.Status)
}

func TestPurchaseDocuments(t *testing.T) {
	h, _ := newTestHandler(t)
	bid := createBid(t, h, draftBody())

	purchase := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/bids/"+bid.ID+"/purchase?username=acme_user",
			strings.NewReader(`{"purchaser":{"kind":"Company","id":"acme-co"}}`))
		req = testutils.WithChiURLParams(req, map[string]string{"bidId": bid.ID})
		rr := httptest.NewRecorder()
		h.PurchaseDocuments(rr, req)
		return rr
	}

	rr := purchase()
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, []models.ForbiddenReason{models.BidNotOpen, models.OutsideStoppingPeriod}, decodeError(t, rr).Reasons)

	publish(t, h, bid.ID)
	rr = purchase()
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = purchase()
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, []models.ForbiddenReason{models.AlreadyPurchased}, decodeError(t, rr).Reasons)

	req := httptest.NewRequest(http.MethodGet, "/api/bids/"+bid.ID+"/eligibility?username=acme_user", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"bidId": bid.ID})
	rr = httptest.NewRecorder()
	h.ResolveEligibility(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var results []models.PurchaseEligibility
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&results))
	require.Len(t, results, 1)
	require.False(t, results[0].Eligible)
}

func TestVisibilityManagement(t *testing.T) {
	h, _ := newTestHandler(t)
	bid := createBid(t, h, `{"name":"Closed","entityId":"`+entityID+`","creatorUsername":"creator","private":true}`)
	publish(t, h, bid.ID)
	params := map[string]string{"bidId": bid.ID}

	visibility := func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/bids/"+bid.ID+"/visibility?providerId=acme", nil)
		rr := httptest.NewRecorder()
		h.GetVisibility(rr, testutils.WithChiURLParams(req, params))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Visible bool `json:"visible"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		return resp.Visible
	}
	require.False(t, visibility())

	req := httptest.NewRequest(http.MethodPut, "/api/bids/"+bid.ID+"/reveal?username=donor", nil)
	rr := httptest.NewRecorder()
	h.ForceReveal(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/bids/"+bid.ID+"/invitations?username=creator", strings.NewReader(`{"providerIds":["acme"]}`))
	rr = httptest.NewRecorder()
	h.InviteProviders(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, visibility())

	req = httptest.NewRequest(http.MethodGet, "/api/bids/"+bid.ID+"/invitations?limit=10", nil)
	rr = httptest.NewRecorder()
	h.GetProviderInvitationLogs(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusOK, rr.Code)
	var logs []models.InvitationRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&logs))
	require.Len(t, logs, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/bids/"+bid.ID+"/invitations?limit=100", nil)
	rr = httptest.NewRecorder()
	h.GetProviderInvitationLogs(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/bids/"+bid.ID+"/subscription?username=admin&enabled=yes", nil)
	rr = httptest.NewRecorder()
	h.ToggleSubscription(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/bids/"+bid.ID+"/subscription?username=admin&enabled=true", nil)
	rr = httptest.NewRecorder()
	h.ToggleSubscription(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestDeleteDraftBid(t *testing.T) {
	h, _ := newTestHandler(t)
	bid := createBid(t, h, draftBody())
	params := map[string]string{"bidId": bid.ID}

	req := httptest.NewRequest(http.MethodDelete, "/api/bids/"+bid.ID+"?username=creator", nil)
	rr := httptest.NewRecorder()
	h.DeleteDraftBid(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/bids/"+bid.ID+"/history", nil)
	rr = httptest.NewRecorder()
	h.GetBidHistory(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestIncreaseViewCount(t *testing.T) {
	h, _ := newTestHandler(t)
	bid := createBid(t, h, draftBody())
	params := map[string]string{"bidId": bid.ID}

	for i := 1; i <= 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/bids/"+bid.ID+"/view?providerId=acme", nil)
		rr := httptest.NewRecorder()
		h.IncreaseViewCount(rr, testutils.WithChiURLParams(req, params))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]int64
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.EqualValues(t, i, resp["viewCount"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/bids/"+bid.ID+"/receivers", nil)
	rr := httptest.NewRecorder()
	h.GetNotificationReceivers(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusOK, rr.Code)

	var set models.NotificationReceiverSet
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&set))
	require.Equal(t, models.EventStatusChanged, set.Event)
	require.Empty(t, set.ActualReceivers)
}

// MockEngine подменяет движок, когда нужен конкретный сбой коллаборатора.
type MockEngine struct {
	handlers.BidEngine
	GetWindowStatusFunc func(ctx context.Context, bidId string) (*models.WindowStatus, error)
}

func (m *MockEngine) GetWindowStatus(ctx context.Context, bidId string) (*models.WindowStatus, error) {
	return m.GetWindowStatusFunc(ctx, bidId)
}

func TestGetNotificationReceivers_Event(t *testing.T) {
	h, _ := newTestHandler(t)
	bid := createBid(t, h, draftBody())
	params := map[string]string{"bidId": bid.ID}

	req := httptest.NewRequest(http.MethodGet, "/api/bids/"+bid.ID+"/receivers?event=RFIAnswered", nil)
	rr := httptest.NewRecorder()
	h.GetNotificationReceivers(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var set models.NotificationReceiverSet
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&set))
	require.Equal(t, models.EventRFIAnswered, set.Event)

	req = httptest.NewRequest(http.MethodGet, "/api/bids/"+bid.ID+"/receivers?event=Bogus", nil)
	rr = httptest.NewRecorder()
	h.GetNotificationReceivers(rr, testutils.WithChiURLParams(req, params))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, models.KindBadRequest, decodeError(t, rr).Kind)
}

func TestGetWindowStatus_CollaboratorUnavailable(t *testing.T) {
	engine := &MockEngine{
		GetWindowStatusFunc: func(ctx context.Context, bidId string) (*models.WindowStatus, error) {
			return nil, models.NewEngineError(models.KindCollaboratorUnavailable, "", "storage failure").Wrap(errors.New("connection refused"))
		},
	}
	h := handlers.NewBidHandler(engine, log.New(io.Discard, "", 0), time.Second)

	req := httptest.NewRequest(http.MethodGet, "/api/bids/b1/window", nil)
	rr := httptest.NewRecorder()
	h.GetWindowStatus(rr, testutils.WithChiURLParams(req, map[string]string{"bidId": "b1"}))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp := decodeError(t, rr)
	require.True(t, resp.Retryable)
	require.Equal(t, models.KindCollaboratorUnavailable, resp.Kind)
}

func TestPingHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rr := httptest.NewRecorder()
	handlers.PingHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}
