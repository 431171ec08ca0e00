package repository

import (
	"context"

	"github.com/senyabanana/tender-orchestrator/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PurchaseRepository - интерфейс для работы с покупками документов.
type PurchaseRepository interface {
	HasPurchased(ctx context.Context, bidId string, ref models.PurchaserRef) (bool, error)
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	PurchasedProviders(ctx context.Context, bidId string) ([]string, error)
}

// PostgresPurchaseRepository - реализация PurchaseRepository для базы данных.
type PostgresPurchaseRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresPurchaseRepository создает новый экземпляр PostgresPurchaseRepository.
func NewPostgresPurchaseRepository(db *pgxpool.Pool) *PostgresPurchaseRepository {
	return &PostgresPurchaseRepository{DB: db}
}

// HasPurchased проверяет, купил ли покупатель документы тендера.
func (r *PostgresPurchaseRepository) HasPurchased(ctx context.Context, bidId string, ref models.PurchaserRef) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM document_purchase WHERE bid_id = $1 AND purchaser_kind = $2 AND purchaser_id = $3)`
	err := r.DB.QueryRow(ctx, query, bidId, ref.Kind, ref.ID).Scan(&exists)
	return exists, err
}

// CreatePurchase записывает покупку. Повторная покупка возвращает ErrDuplicate.
func (r *PostgresPurchaseRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	insertQuery := `INSERT INTO document_purchase (id, bid_id, purchaser_kind, purchaser_id, provider_id, payment_ref, amount, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		purchase.ID,
		purchase.BidID,
		purchase.Purchaser.Kind,
		purchase.Purchaser.ID,
		purchase.ProviderID,
		purchase.PaymentRef,
		purchase.Amount,
		purchase.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// PurchasedProviders возвращает поставщиков, купивших документы тендера.
func (r *PostgresPurchaseRepository) PurchasedProviders(ctx context.Context, bidId string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT DISTINCT provider_id FROM document_purchase WHERE bid_id = $1 ORDER BY provider_id`, bidId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		providers = append(providers, id)
	}
	return providers, rows.Err()
}
