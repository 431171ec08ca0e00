package models

import "time"

// DecisionPayload - вариант полезной нагрузки запроса на переход.
// Реализации: DonorResponse, SupervisingAction, AdminAction, ExtensionPayload.
type DecisionPayload interface {
	decisionKind() string
}

// DonorResponse - решение донора по тендеру.
type DonorResponse struct {
	Approve bool   `json:"approve"`
	Comment string `json:"comment,omitempty"`
}

// SupervisingAction - решение надзорного органа.
type SupervisingAction struct {
	Approve bool   `json:"approve"`
	Comment string `json:"comment,omitempty"`
}

// AdminAction - решение администратора по публикации тендера.
type AdminAction struct {
	Approve bool   `json:"approve"`
	Comment string `json:"comment,omitempty"`
}

// ExtensionPayload - новый срок окончания приема.
type ExtensionPayload struct {
	NewDeadline time.Time `json:"newDeadline"`
}

func (DonorResponse) decisionKind() string     { return "donor" }
func (SupervisingAction) decisionKind() string { return "supervising" }
func (AdminAction) decisionKind() string       { return "admin" }
func (ExtensionPayload) decisionKind() string  { return "extension" }

// DecisionSummary возвращает решение и комментарий для записи в историю.
func DecisionSummary(p DecisionPayload) (decision, comment string) {
	verdict := func(approve bool) string {
		if approve {
			return "Approved"
		}
		return "Rejected"
	}
	switch v := p.(type) {
	case DonorResponse:
		return verdict(v.Approve), v.Comment
	case SupervisingAction:
		return verdict(v.Approve), v.Comment
	case AdminAction:
		return verdict(v.Approve), v.Comment
	case ExtensionPayload:
		return "Extended", v.NewDeadline.UTC().Format(time.RFC3339)
	}
	return "", ""
}

// TransitionRequest - запрос на смену статуса тендера.
type TransitionRequest struct {
	BidID   string          `json:"bidId"`
	Actor   Actor           `json:"actor"`
	Target  BidStatus       `json:"targetStatus"`
	Payload DecisionPayload `json:"-"`
}

// TransitionRequestBody представляет тело HTTP запроса на переход.
type TransitionRequestBody struct {
	TargetStatus BidStatus  `json:"targetStatus"`
	Decision     *string    `json:"decision,omitempty"` // Approved | Rejected
	Comment      string     `json:"comment,omitempty"`
	NewDeadline  *time.Time `json:"newDeadline,omitempty"`
}

// Payload собирает вариант решения для роли из тела запроса.
func (b TransitionRequestBody) Payload(role ActorRole) (DecisionPayload, error) {
	if b.NewDeadline != nil {
		return ExtensionPayload{NewDeadline: *b.NewDeadline}, nil
	}
	if b.Decision == nil {
		return nil, nil
	}

	var approve bool
	switch *b.Decision {
	case "Approved":
		approve = true
	case "Rejected":
		approve = false
	default:
		return nil, NewEngineError(KindBadRequest, "", "decision must be Approved or Rejected")
	}

	switch role {
	case Donor:
		return DonorResponse{Approve: approve, Comment: b.Comment}, nil
	case SupervisingBody:
		return SupervisingAction{Approve: approve, Comment: b.Comment}, nil
	case Administrator:
		return AdminAction{Approve: approve, Comment: b.Comment}, nil
	}
	return nil, NewEngineError(KindBadRequest, "", "role %s cannot submit a decision", role)
}
