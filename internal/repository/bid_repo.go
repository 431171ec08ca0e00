package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/tender-orchestrator/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository - интерфейс для работы с тендерами.
type BidRepository interface {
	CreateBid(ctx context.Context, bid *models.Bid) error
	GetBid(ctx context.Context, bidId string) (*models.Bid, error)
	UpdateBid(ctx context.Context, bid *models.Bid, expectedVersion int, change *models.StatusChange, ext *models.Extension) error
	DeleteBid(ctx context.Context, bidId string) error
	GetBidHistory(ctx context.Context, bidId string) ([]models.StatusChange, error)
	IncrementViewCount(ctx context.Context, bidId string) (int64, error)
}

// PostgresBidRepository - реализация BidRepository для базы данных.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository создает новый экземпляр PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

const bidColumns = `id, name, description, status, entity_id, creator_username, classifications,
	sector_restricted, private, auto_invite, document_price, subscription_enabled, forced_reveal,
	view_count, stopping_period_ends_at, published_at, version, created_at`

func scanBid(row pgx.Row) (*models.Bid, error) {
	var bid models.Bid
	err := row.Scan(
		&bid.ID,
		&bid.Name,
		&bid.Description,
		&bid.Status,
		&bid.EntityID,
		&bid.CreatorUsername,
		&bid.Classifications,
		&bid.SectorRestricted,
		&bid.Private,
		&bid.AutoInvite,
		&bid.DocumentPrice,
		&bid.SubscriptionEnabled,
		&bid.ForcedReveal,
		&bid.ViewCount,
		&bid.StoppingPeriodEndsAt,
		&bid.PublishedAt,
		&bid.Version,
		&bid.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// CreateBid создает новый тендер.
func (r *PostgresBidRepository) CreateBid(ctx context.Context, bid *models.Bid) error {
	insertQuery := `INSERT INTO bid (` + bidColumns + `)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		bid.ID,
		bid.Name,
		bid.Description,
		bid.Status,
		bid.EntityID,
		bid.CreatorUsername,
		bid.Classifications,
		bid.SectorRestricted,
		bid.Private,
		bid.AutoInvite,
		bid.DocumentPrice,
		bid.SubscriptionEnabled,
		bid.ForcedReveal,
		bid.ViewCount,
		bid.StoppingPeriodEndsAt,
		bid.PublishedAt,
		bid.Version,
		bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBid возвращает тендер вместе с историей продлений.
func (r *PostgresBidRepository) GetBid(ctx context.Context, bidId string) (*models.Bid, error) {
	bid, err := scanBid(r.DB.QueryRow(ctx, `SELECT `+bidColumns+` FROM bid WHERE id = $1`, bidId))
	if err != nil {
		return nil, err
	}

	query := `SELECT id, previous_deadline, new_deadline, actor_username, actor_role, created_at
	          FROM bid_extension WHERE bid_id = $1 ORDER BY created_at, id`
	rows, err := r.DB.Query(ctx, query, bidId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ext models.Extension
		if err := rows.Scan(
			&ext.ID,
			&ext.PreviousDeadline,
			&ext.NewDeadline,
			&ext.ActorUsername,
			&ext.ActorRole,
			&ext.CreatedAt); err != nil {
			return nil, err
		}
		bid.Extensions = append(bid.Extensions, ext)
	}
	return bid, rows.Err()
}

// UpdateBid сохраняет изменяемые поля тендера с проверкой версии и записывает историю
// в одной транзакции.
func (r *PostgresBidRepository) UpdateBid(ctx context.Context, bid *models.Bid, expectedVersion int, change *models.StatusChange, ext *models.Extension) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	updateQuery := `
		UPDATE bid SET status = $1, stopping_period_ends_at = $2, published_at = $3,
		               subscription_enabled = $4, forced_reveal = $5, version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version`
	var newVersion int
	err = tx.QueryRow(
		ctx,
		updateQuery,
		bid.Status,
		bid.StoppingPeriodEndsAt,
		bid.PublishedAt,
		bid.SubscriptionEnabled,
		bid.ForcedReveal,
		bid.ID,
		expectedVersion).Scan(&newVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bid WHERE id = $1)`, bid.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleVersion
	}
	if err != nil {
		return err
	}

	if change != nil {
		historyInsertQuery := `INSERT INTO bid_status_history (id, bid_id, from_status, to_status, actor_username, actor_role, decision, comment, created_at)
                              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err = tx.Exec(
			ctx,
			historyInsertQuery,
			change.ID,
			bid.ID,
			change.From,
			change.To,
			change.ActorUsername,
			change.ActorRole,
			change.Decision,
			change.Comment,
			change.CreatedAt)
		if err != nil {
			return err
		}
	}

	if ext != nil {
		extensionInsertQuery := `INSERT INTO bid_extension (id, bid_id, previous_deadline, new_deadline, actor_username, actor_role, created_at)
                                VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err = tx.Exec(
			ctx,
			extensionInsertQuery,
			ext.ID,
			bid.ID,
			ext.PreviousDeadline,
			ext.NewDeadline,
			ext.ActorUsername,
			ext.ActorRole,
			ext.CreatedAt)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	bid.Version = newVersion
	return nil
}

// DeleteBid удаляет тендер.
func (r *PostgresBidRepository) DeleteBid(ctx context.Context, bidId string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM bid WHERE id = $1`, bidId)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBidHistory возвращает историю смены статусов тендера.
func (r *PostgresBidRepository) GetBidHistory(ctx context.Context, bidId string) ([]models.StatusChange, error) {
	query := `
		SELECT id, bid_id, from_status, to_status, actor_username, actor_role, decision, comment, created_at
		FROM bid_status_history
		WHERE bid_id = $1
		ORDER BY created_at, id`
	rows, err := r.DB.Query(ctx, query, bidId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.StatusChange
	for rows.Next() {
		var change models.StatusChange
		if err := rows.Scan(
			&change.ID,
			&change.BidID,
			&change.From,
			&change.To,
			&change.ActorUsername,
			&change.ActorRole,
			&change.Decision,
			&change.Comment,
			&change.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, change)
	}
	return history, rows.Err()
}

// IncrementViewCount атомарно увеличивает счетчик просмотров.
func (r *PostgresBidRepository) IncrementViewCount(ctx context.Context, bidId string) (int64, error) {
	var count int64
	err := r.DB.QueryRow(ctx, `UPDATE bid SET view_count = view_count + 1 WHERE id = $1 RETURNING view_count`, bidId).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
		return 0, ErrNotFound
	}
	return count, err
}
