package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BidStatus string // Статус тендера (bid)

const (
	DraftBid                  BidStatus = "Draft"                  // Черновик
	PublishedBid              BidStatus = "Published"              // Опубликован, открыт для покупки документов
	ExtendedBid               BidStatus = "Extended"               // Опубликован, срок продлен
	UnderDonorReviewBid       BidStatus = "UnderDonorReview"       // На рассмотрении у донора
	UnderSupervisingReviewBid BidStatus = "UnderSupervisingReview" // На рассмотрении у надзорного органа
	AwardedBid                BidStatus = "Awarded"                // Присужден
	RejectedBid               BidStatus = "Rejected"               // Отклонен
	CancelledBid              BidStatus = "Cancelled"              // Отменен
)

// AllBidStatuses перечисляет все статусы в порядке жизненного цикла.
var AllBidStatuses = []BidStatus{
	DraftBid,
	PublishedBid,
	ExtendedBid,
	UnderDonorReviewBid,
	UnderSupervisingReviewBid,
	AwardedBid,
	RejectedBid,
	CancelledBid,
}

// Valid проверяет, что статус входит в перечисление.
func (s BidStatus) Valid() bool {
	for _, st := range AllBidStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsOpen сообщает, открыт ли тендер для покупки документов и подачи предложений.
func (s BidStatus) IsOpen() bool {
	return s == PublishedBid || s == ExtendedBid
}

// Bid представляет модель тендера.
type Bid struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	Status               BidStatus       `json:"status"`
	EntityID             string          `json:"entityId"`
	CreatorUsername      string          `json:"creatorUsername"`
	Classifications      []string        `json:"classifications"`
	SectorRestricted     bool            `json:"sectorRestricted"`
	Private              bool            `json:"private"`
	AutoInvite           bool            `json:"autoInvite"`
	DocumentPrice        decimal.Decimal `json:"documentPrice"`
	SubscriptionEnabled  bool            `json:"subscriptionEnabled"`
	ForcedReveal         bool            `json:"forcedReveal"`
	ViewCount            int64           `json:"viewCount"`
	StoppingPeriodEndsAt *time.Time      `json:"stoppingPeriodEndsAt,omitempty"`
	Extensions           []Extension     `json:"extensions"`
	Version              int             `json:"version"`
	CreatedAt            time.Time       `json:"createdAt"`
	PublishedAt          *time.Time      `json:"publishedAt,omitempty"`
}

// Clone возвращает копию тендера, не разделяющую срезы с оригиналом.
func (b *Bid) Clone() *Bid {
	c := *b
	c.Classifications = append([]string(nil), b.Classifications...)
	c.Extensions = append([]Extension(nil), b.Extensions...)
	if b.StoppingPeriodEndsAt != nil {
		t := *b.StoppingPeriodEndsAt
		c.StoppingPeriodEndsAt = &t
	}
	if b.PublishedAt != nil {
		t := *b.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

// Extension - запись о продлении срока приема.
type Extension struct {
	ID               string     `json:"id"`
	PreviousDeadline *time.Time `json:"previousDeadline,omitempty"`
	NewDeadline      time.Time  `json:"newDeadline"`
	ActorUsername    string     `json:"actorUsername"`
	ActorRole        ActorRole  `json:"actorRole"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// StatusChange - запись истории смены статуса.
type StatusChange struct {
	ID            string    `json:"id"`
	BidID         string    `json:"bidId"`
	From          BidStatus `json:"from"`
	To            BidStatus `json:"to"`
	ActorUsername string    `json:"actorUsername"`
	ActorRole     ActorRole `json:"actorRole"`
	Decision      string    `json:"decision,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BidRequest представляет структуру запроса для создания тендера.
type BidRequest struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	EntityID         string          `json:"entityId"`
	CreatorUsername  string          `json:"creatorUsername"`
	Classifications  []string        `json:"classifications"`
	SectorRestricted bool            `json:"sectorRestricted"`
	Private          bool            `json:"private"`
	AutoInvite       bool            `json:"autoInvite"`
	DocumentPrice    decimal.Decimal `json:"documentPrice"`
}

// WindowStatus - состояние срока приема на момент запроса.
type WindowStatus struct {
	BidID                string     `json:"bidId"`
	Status               BidStatus  `json:"status"`
	StoppingPeriodEndsAt *time.Time `json:"stoppingPeriodEndsAt,omitempty"`
	PurchaseOpen         bool       `json:"purchaseOpen"`
	SubmissionOpen       bool       `json:"submissionOpen"`
	Extensions           int        `json:"extensions"`
}
