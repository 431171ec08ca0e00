package services

import (
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/utils"

	"github.com/google/uuid"
)

type payloadRule int

const (
	payloadNone payloadRule = iota
	payloadAdminApprove
	payloadAdminReject
	payloadDonorApprove
	payloadDonorReject
	payloadSupervisingApprove
	payloadSupervisingReject
	payloadExtension
)

type windowRule int

const (
	windowAny     windowRule = iota
	windowOpen               // срок приема еще не истек
	windowElapsed            // срок приема истек
)

type edge struct {
	from    []models.BidStatus
	to      models.BidStatus
	roles   []models.ActorRole
	payload payloadRule
	window  windowRule
}

// allowedTransitions - полный граф статусов. Переходы вне графа запрещены для всех ролей.
var allowedTransitions = []edge{
	{
		from:  []models.BidStatus{models.DraftBid},
		to:    models.PublishedBid,
		roles: []models.ActorRole{models.Creator},
	},
	{
		from:    []models.BidStatus{models.DraftBid},
		to:      models.PublishedBid,
		roles:   []models.ActorRole{models.Administrator},
		payload: payloadAdminApprove,
	},
	{
		from:    []models.BidStatus{models.DraftBid},
		to:      models.RejectedBid,
		roles:   []models.ActorRole{models.Administrator},
		payload: payloadAdminReject,
	},
	{
		from:  []models.BidStatus{models.DraftBid},
		to:    models.CancelledBid,
		roles: []models.ActorRole{models.Creator},
	},
	{
		from:    []models.BidStatus{models.PublishedBid, models.ExtendedBid},
		to:      models.ExtendedBid,
		roles:   []models.ActorRole{models.Creator, models.Administrator},
		payload: payloadExtension,
	},
	{
		from:   []models.BidStatus{models.ExtendedBid},
		to:     models.PublishedBid,
		roles:  []models.ActorRole{models.Creator, models.Administrator},
		window: windowOpen,
	},
	{
		from:   []models.BidStatus{models.PublishedBid, models.ExtendedBid},
		to:     models.UnderDonorReviewBid,
		roles:  []models.ActorRole{models.Creator},
		window: windowElapsed,
	},
	{
		from:    []models.BidStatus{models.PublishedBid, models.ExtendedBid, models.UnderDonorReviewBid},
		to:      models.RejectedBid,
		roles:   []models.ActorRole{models.Donor},
		payload: payloadDonorReject,
	},
	{
		from:    []models.BidStatus{models.UnderDonorReviewBid},
		to:      models.UnderSupervisingReviewBid,
		roles:   []models.ActorRole{models.Donor},
		payload: payloadDonorApprove,
	},
	{
		from:    []models.BidStatus{models.UnderSupervisingReviewBid},
		to:      models.AwardedBid,
		roles:   []models.ActorRole{models.SupervisingBody},
		payload: payloadSupervisingApprove,
	},
	{
		from:    []models.BidStatus{models.UnderSupervisingReviewBid},
		to:      models.RejectedBid,
		roles:   []models.ActorRole{models.SupervisingBody},
		payload: payloadSupervisingReject,
	},
	{
		from:  []models.BidStatus{models.PublishedBid, models.ExtendedBid},
		to:    models.CancelledBid,
		roles: []models.ActorRole{models.Creator, models.Administrator},
	},
}

func (r payloadRule) matches(p models.DecisionPayload) bool {
	switch r {
	case payloadNone:
		return true
	case payloadAdminApprove, payloadAdminReject:
		v, ok := p.(models.AdminAction)
		return ok && v.Approve == (r == payloadAdminApprove)
	case payloadDonorApprove, payloadDonorReject:
		v, ok := p.(models.DonorResponse)
		return ok && v.Approve == (r == payloadDonorApprove)
	case payloadSupervisingApprove, payloadSupervisingReject:
		v, ok := p.(models.SupervisingAction)
		return ok && v.Approve == (r == payloadSupervisingApprove)
	case payloadExtension:
		_, ok := p.(models.ExtensionPayload)
		return ok
	}
	return false
}

func (r payloadRule) String() string {
	switch r {
	case payloadAdminApprove:
		return "approving AdminAction"
	case payloadAdminReject:
		return "rejecting AdminAction"
	case payloadDonorApprove:
		return "approving DonorResponse"
	case payloadDonorReject:
		return "rejecting DonorResponse"
	case payloadSupervisingApprove:
		return "approving SupervisingAction"
	case payloadSupervisingReject:
		return "rejecting SupervisingAction"
	case payloadExtension:
		return "new deadline"
	}
	return "no payload"
}

// Transition - результат успешной проверки перехода.
type Transition struct {
	Bid       *models.Bid
	Change    models.StatusChange
	Extension *models.Extension
	Event     models.EventKind
}

// StateMachine проверяет запросы на переход по таблице ребер и вычисляет новое состояние тендера.
type StateMachine struct {
	edges []edge
	gate  *TimeWindowGate
}

// NewStateMachine создает новый экземпляр StateMachine.
func NewStateMachine(gate *TimeWindowGate) *StateMachine {
	return &StateMachine{edges: allowedTransitions, gate: gate}
}

// CanReach сообщает, есть ли у роли хотя бы одно ребро в целевой статус.
func (m *StateMachine) CanReach(role models.ActorRole, target models.BidStatus) bool {
	for _, e := range m.edges {
		if e.to == target && utils.Contains(e.roles, role) {
			return true
		}
	}
	return false
}

// Targets возвращает статусы, доступные роли из текущего статуса.
func (m *StateMachine) Targets(from models.BidStatus, role models.ActorRole) []models.BidStatus {
	var out []models.BidStatus
	for _, e := range m.edges {
		if utils.Contains(e.from, from) && utils.Contains(e.roles, role) && !utils.Contains(out, e.to) {
			out = append(out, e.to)
		}
	}
	return out
}

func (m *StateMachine) find(from, to models.BidStatus, role models.ActorRole) (edge, bool) {
	for _, e := range m.edges {
		if e.to == to && utils.Contains(e.from, from) && utils.Contains(e.roles, role) {
			return e, true
		}
	}
	return edge{}, false
}

// Plan проверяет запрос в порядке: роль, ребро, решение, срок.
// Возвращает копию тендера в новом состоянии; исходный тендер не изменяется.
func (m *StateMachine) Plan(bid *models.Bid, req models.TransitionRequest, now time.Time) (*Transition, error) {
	if !m.CanReach(req.Actor.Role, req.Target) {
		return nil, models.NewEngineError(models.KindInvalidStateTransition, models.CodeRoleNotAuthorized,
			"role %s is not authorized to move bids to %s", req.Actor.Role, req.Target)
	}

	e, ok := m.find(bid.Status, req.Target, req.Actor.Role)
	if !ok {
		return nil, models.NewEngineError(models.KindInvalidStateTransition, models.CodeIllegalTransition,
			"cannot move bid from %s to %s", bid.Status, req.Target)
	}

	if !e.payload.matches(req.Payload) {
		return nil, models.NewEngineError(models.KindInvalidStateTransition, models.CodeMissingDecision,
			"transition from %s to %s by %s requires %s", bid.Status, req.Target, req.Actor.Role, e.payload)
	}

	switch e.window {
	case windowOpen:
		if !m.gate.windowOpen(bid, now) {
			return nil, models.NewEngineError(models.KindTimeWindow, models.CodeWindowExpired,
				"stopping period of bid %s has elapsed", bid.ID)
		}
	case windowElapsed:
		if m.gate.windowOpen(bid, now) {
			return nil, models.NewEngineError(models.KindTimeWindow, models.CodeWindowStillOpen,
				"stopping period of bid %s is still open", bid.ID)
		}
	}

	next := bid.Clone()
	tr := &Transition{Bid: next, Event: models.EventStatusChanged}

	switch {
	case e.payload == payloadExtension:
		ext, err := m.gate.Extend(next, req.Payload.(models.ExtensionPayload).NewDeadline, req.Actor, now)
		if err != nil {
			return nil, err
		}
		tr.Extension = ext
		tr.Event = models.EventDeadlineExtended
	case bid.Status == models.DraftBid && req.Target == models.PublishedBid:
		deadline := m.gate.DefaultDeadline(bid)
		published := now
		next.StoppingPeriodEndsAt = &deadline
		next.PublishedAt = &published
		next.Status = req.Target
	default:
		next.Status = req.Target
	}

	decision, comment := models.DecisionSummary(req.Payload)
	tr.Change = models.StatusChange{
		ID:            uuid.NewString(),
		BidID:         bid.ID,
		From:          bid.Status,
		To:            next.Status,
		ActorUsername: req.Actor.Username,
		ActorRole:     req.Actor.Role,
		Decision:      decision,
		Comment:       comment,
		CreatedAt:     now,
	}
	return tr, nil
}
