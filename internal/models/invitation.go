package models

import "time"

type (
	InvitationChannel string // Способ приглашения
	InterestKind      string // Вид интереса поставщика к тендеру
	EventKind         string // Событие, вызвавшее уведомление
)

const (
	AutomaticInvitation InvitationChannel = "Automatic" // По совпадению сектора
	ManualInvitation    InvitationChannel = "Manual"    // Явный список

	InterestInvited    InterestKind = "Invited"
	InterestPurchased  InterestKind = "Purchased"
	InterestViewed     InterestKind = "Viewed"
	InterestSubscribed InterestKind = "Subscribed"

	EventStatusChanged    EventKind = "StatusChanged"
	EventDeadlineExtended EventKind = "DeadlineExtended"
	EventDocumentPurchase EventKind = "DocumentPurchased"
	EventRFIAnswered      EventKind = "RFIAnswered"
)

// Valid проверяет, что событие известно.
func (k EventKind) Valid() bool {
	switch k {
	case EventStatusChanged, EventDeadlineExtended, EventDocumentPurchase, EventRFIAnswered:
		return true
	}
	return false
}

// Provider представляет поставщика, зарегистрированного на площадке.
type Provider struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Ref     PurchaserRef `json:"ref"`
	Sectors []string     `json:"sectors"`
}

// InvitationRecord - запись о приглашении поставщика.
type InvitationRecord struct {
	ID         string            `json:"id"`
	BidID      string            `json:"bidId"`
	ProviderID string            `json:"providerId"`
	Channel    InvitationChannel `json:"channel"`
	InvitedAt  time.Time         `json:"invitedAt"`
}

// InvitationRequest представляет тело запроса на приглашение поставщиков.
type InvitationRequest struct {
	Automatic   bool     `json:"automatic"`
	ProviderIDs []string `json:"providerIds"`
}

// NotificationReceiverSet - разбиение получателей уведомления.
// Пересечение множеств допустимо.
type NotificationReceiverSet struct {
	BidID             string    `json:"bidId"`
	Event             EventKind `json:"event"`
	ActualReceivers   []string  `json:"actualReceivers"`
	RealtimeReceivers []string  `json:"realtimeReceivers"`
}

// Notification - задача на доставку уведомления.
type Notification struct {
	ID        string                  `json:"id"`
	Bid       *Bid                    `json:"bid"`
	Event     EventKind               `json:"event"`
	Receivers NotificationReceiverSet `json:"receivers"`
	CreatedAt time.Time               `json:"createdAt"`
}
