package repository

import (
	"context"

	"github.com/senyabanana/tender-orchestrator/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InvitationRepository - интерфейс для работы с приглашениями.
type InvitationRepository interface {
	CreateInvitations(ctx context.Context, records []models.InvitationRecord) ([]models.InvitationRecord, error)
	InvitedProviders(ctx context.Context, bidId string) ([]string, error)
	IsInvited(ctx context.Context, bidId, providerId string) (bool, error)
	ListInvitations(ctx context.Context, bidId string, limit, offset int) ([]models.InvitationRecord, error)
}

// PostgresInvitationRepository - реализация InvitationRepository для базы данных.
type PostgresInvitationRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresInvitationRepository создает новый экземпляр PostgresInvitationRepository.
func NewPostgresInvitationRepository(db *pgxpool.Pool) *PostgresInvitationRepository {
	return &PostgresInvitationRepository{DB: db}
}

// CreateInvitations сохраняет приглашения, пропуская уже приглашенных поставщиков.
// Возвращает только созданные записи.
func (r *PostgresInvitationRepository) CreateInvitations(ctx context.Context, records []models.InvitationRecord) ([]models.InvitationRecord, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	insertQuery := `INSERT INTO bid_invitation (id, bid_id, provider_id, channel, invited_at)
                   VALUES ($1, $2, $3, $4, $5)
                   ON CONFLICT (bid_id, provider_id) DO NOTHING`
	var created []models.InvitationRecord
	for _, rec := range records {
		tag, err := tx.Exec(ctx, insertQuery, rec.ID, rec.BidID, rec.ProviderID, rec.Channel, rec.InvitedAt)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 1 {
			created = append(created, rec)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// InvitedProviders возвращает приглашенных поставщиков.
func (r *PostgresInvitationRepository) InvitedProviders(ctx context.Context, bidId string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT provider_id FROM bid_invitation WHERE bid_id = $1 ORDER BY provider_id`, bidId)
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

// IsInvited проверяет, приглашен ли поставщик.
func (r *PostgresInvitationRepository) IsInvited(ctx context.Context, bidId, providerId string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bid_invitation WHERE bid_id = $1 AND provider_id = $2)`, bidId, providerId).Scan(&exists)
	return exists, err
}

// ListInvitations возвращает журнал приглашений тендера.
func (r *PostgresInvitationRepository) ListInvitations(ctx context.Context, bidId string, limit, offset int) ([]models.InvitationRecord, error) {
	query := `
		SELECT id, bid_id, provider_id, channel, invited_at
		FROM bid_invitation
		WHERE bid_id = $1
		ORDER BY invited_at, provider_id
		LIMIT $2 OFFSET $3`
	rows, err := r.DB.Query(ctx, query, bidId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.InvitationRecord
	for rows.Next() {
		var rec models.InvitationRecord
		if err := rows.Scan(&rec.ID, &rec.BidID, &rec.ProviderID, &rec.Channel, &rec.InvitedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
