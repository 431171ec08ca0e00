package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	PurchaserKind   string // Тип покупателя документов
	ForbiddenReason string // Причина запрета покупки
)

const (
	Company    PurchaserKind = "Company"    // Компания
	Freelancer PurchaserKind = "Freelancer" // Фрилансер

	BidNotOpen            ForbiddenReason = "BidNotOpen"            // Тендер не опубликован
	AlreadyPurchased      ForbiddenReason = "AlreadyPurchased"      // Документы уже куплены
	SectorMismatch        ForbiddenReason = "SectorMismatch"        // Сектор не совпадает
	PurchaserSuspended    ForbiddenReason = "PurchaserSuspended"    // Покупатель заблокирован
	OutsideStoppingPeriod ForbiddenReason = "OutsideStoppingPeriod" // Срок приема истек
)

// ForbiddenReasonOrder задает порядок причин в ответе.
var ForbiddenReasonOrder = []ForbiddenReason{
	BidNotOpen,
	AlreadyPurchased,
	SectorMismatch,
	PurchaserSuspended,
	OutsideStoppingPeriod,
}

// PurchaserRef ссылается на компанию или фрилансера.
type PurchaserRef struct {
	Kind PurchaserKind `json:"kind"`
	ID   string        `json:"id"`
}

// Valid проверяет заполненность ссылки.
func (r PurchaserRef) Valid() bool {
	return (r.Kind == Company || r.Kind == Freelancer) && r.ID != ""
}

// Key возвращает строковый ключ для блокировок и карт.
func (r PurchaserRef) Key() string {
	return string(r.Kind) + ":" + r.ID
}

// Purchaser представляет покупателя документов (поставщика).
type Purchaser struct {
	Ref        PurchaserRef `json:"ref"`
	Name       string       `json:"name"`
	ProviderID string       `json:"providerId"`
	Sectors    []string     `json:"sectors"`
}

// PurchaseEligibility - результат проверки возможности покупки.
// Eligible всегда равно len(Reasons) == 0.
type PurchaseEligibility struct {
	BidID     string            `json:"bidId"`
	Purchaser PurchaserRef      `json:"purchaser"`
	Eligible  bool              `json:"eligible"`
	Reasons   []ForbiddenReason `json:"reasons"`
}

// Purchase - завершенная покупка документов.
type Purchase struct {
	ID         string          `json:"id"`
	BidID      string          `json:"bidId"`
	Purchaser  PurchaserRef    `json:"purchaser"`
	ProviderID string          `json:"providerId"`
	PaymentRef string          `json:"paymentRef"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// PurchaseRequest представляет тело запроса на покупку документов.
type PurchaseRequest struct {
	Purchaser  PurchaserRef `json:"purchaser"`
	PaymentRef string       `json:"paymentRef"`
}
