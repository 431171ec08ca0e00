package repository

import (
	"context"
	"errors"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// ProviderRepository - интерфейс справочника поставщиков и их интереса к тендерам.
type ProviderRepository interface {
	GetProvider(ctx context.Context, providerId string) (*models.Provider, error)
	GetPurchaser(ctx context.Context, ref models.PurchaserRef) (*models.Purchaser, error)
	PurchasersForUser(ctx context.Context, username string) ([]models.Purchaser, error)
	ProvidersBySectors(ctx context.Context, sectors []string) ([]models.Provider, error)
	IsSuspended(ctx context.Context, entityId string, ref models.PurchaserRef) (bool, error)
	RecordInterest(ctx context.Context, bidId, providerId string, kind models.InterestKind) error
	HasInterest(ctx context.Context, bidId, providerId string, kind models.InterestKind) (bool, error)
	InterestedProviders(ctx context.Context, bidId string) ([]string, error)
	ProviderUsers(ctx context.Context, providerId string) ([]string, error)
}

// IdentityRepository - интерфейс определения ролей пользователя.
type IdentityRepository interface {
	UserExists(ctx context.Context, username string) (bool, error)
	RolesFor(ctx context.Context, username string, bid *models.Bid) ([]models.ActorRole, error)
}

// PostgresProviderRepository - реализация ProviderRepository и IdentityRepository для базы данных.
type PostgresProviderRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresProviderRepository создает новый экземпляр PostgresProviderRepository.
func NewPostgresProviderRepository(db *pgxpool.Pool) *PostgresProviderRepository {
	return &PostgresProviderRepository{DB: db}
}

// GetProvider возвращает поставщика по идентификатору.
func (r *PostgresProviderRepository) GetProvider(ctx context.Context, providerId string) (*models.Provider, error) {
	var p models.Provider
	query := `SELECT id, name, purchaser_kind, purchaser_id, sectors FROM provider WHERE id = $1`
	err := r.DB.QueryRow(ctx, query, providerId).Scan(&p.ID, &p.Name, &p.Ref.Kind, &p.Ref.ID, &p.Sectors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPurchaser возвращает покупателя по ссылке.
func (r *PostgresProviderRepository) GetPurchaser(ctx context.Context, ref models.PurchaserRef) (*models.Purchaser, error) {
	var p models.Purchaser
	query := `SELECT id, name, purchaser_kind, purchaser_id, sectors FROM provider WHERE purchaser_kind = $1 AND purchaser_id = $2`
	err := r.DB.QueryRow(ctx, query, ref.Kind, ref.ID).Scan(&p.ProviderID, &p.Name, &p.Ref.Kind, &p.Ref.ID, &p.Sectors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PurchasersForUser возвращает компании и фрилансеров, которыми управляет пользователь.
func (r *PostgresProviderRepository) PurchasersForUser(ctx context.Context, username string) ([]models.Purchaser, error) {
	query := `
		SELECT p.id, p.name, p.purchaser_kind, p.purchaser_id, p.sectors
		FROM provider p
		JOIN provider_user pu ON pu.provider_id = p.id
		WHERE pu.username = $1
		ORDER BY p.purchaser_kind, p.purchaser_id`
	rows, err := r.DB.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchasers []models.Purchaser
	for rows.Next() {
		var p models.Purchaser
		if err := rows.Scan(&p.ProviderID, &p.Name, &p.Ref.Kind, &p.Ref.ID, &p.Sectors); err != nil {
			return nil, err
		}
		purchasers = append(purchasers, p)
	}
	return purchasers, rows.Err()
}

// ProvidersBySectors возвращает поставщиков, у которых есть хотя бы один из секторов.
func (r *PostgresProviderRepository) ProvidersBySectors(ctx context.Context, sectors []string) ([]models.Provider, error) {
	if len(sectors) == 0 {
		return nil, nil
	}
	query := `SELECT id, name, purchaser_kind, purchaser_id, sectors FROM provider WHERE sectors && $1 ORDER BY id`
	rows, err := r.DB.Query(ctx, query, pq.Array(sectors))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []models.Provider
	for rows.Next() {
		var p models.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Ref.Kind, &p.Ref.ID, &p.Sectors); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// IsSuspended проверяет блокировку покупателя у заказчика.
func (r *PostgresProviderRepository) IsSuspended(ctx context.Context, entityId string, ref models.PurchaserRef) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM purchaser_suspension WHERE entity_id = $1 AND purchaser_kind = $2 AND purchaser_id = $3)`
	err := r.DB.QueryRow(ctx, query, entityId, ref.Kind, ref.ID).Scan(&exists)
	return exists, err
}

// RecordInterest отмечает интерес поставщика к тендеру.
func (r *PostgresProviderRepository) RecordInterest(ctx context.Context, bidId, providerId string, kind models.InterestKind) error {
	query := `INSERT INTO bid_interest (bid_id, provider_id, kind, created_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (bid_id, provider_id, kind) DO NOTHING`
	_, err := r.DB.Exec(ctx, query, bidId, providerId, kind)
	return err
}

// HasInterest проверяет наличие интереса заданного вида.
func (r *PostgresProviderRepository) HasInterest(ctx context.Context, bidId, providerId string, kind models.InterestKind) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM bid_interest WHERE bid_id = $1 AND provider_id = $2 AND kind = $3)`
	err := r.DB.QueryRow(ctx, query, bidId, providerId, kind).Scan(&exists)
	return exists, err
}

// InterestedProviders возвращает всех поставщиков с любым интересом к тендеру:
// приглашенных, купивших документы и просматривавших.
func (r *PostgresProviderRepository) InterestedProviders(ctx context.Context, bidId string) ([]string, error) {
	query := `
		SELECT provider_id FROM bid_interest WHERE bid_id = $1
		UNION
		SELECT provider_id FROM bid_invitation WHERE bid_id = $1
		UNION
		SELECT provider_id FROM document_purchase WHERE bid_id = $1
		ORDER BY provider_id`
	rows, err := r.DB.Query(ctx, query, bidId)
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

// ProviderUsers возвращает пользователей, представляющих поставщика.
func (r *PostgresProviderRepository) ProviderUsers(ctx context.Context, providerId string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT username FROM provider_user WHERE provider_id = $1 ORDER BY username`, providerId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserExists проверяет, существует ли пользователь.
func (r *PostgresProviderRepository) UserExists(ctx context.Context, username string) (bool, error) {
	return utils.CheckUserExists(ctx, r.DB, username)
}

// RolesFor возвращает роли пользователя относительно тендера.
func (r *PostgresProviderRepository) RolesFor(ctx context.Context, username string, bid *models.Bid) ([]models.ActorRole, error) {
	var roles []models.ActorRole

	isCreator := bid.CreatorUsername == username
	if !isCreator {
		responsible, err := utils.CheckUserResponsibleForEntity(ctx, r.DB, username, bid.EntityID)
		if err != nil {
			return nil, err
		}
		isCreator = responsible
	}
	if isCreator {
		roles = append(roles, models.Creator)
	}

	query := `SELECT role FROM bid_actor WHERE username = $1 AND (bid_id = $2 OR bid_id IS NULL) ORDER BY role`
	rows, err := r.DB.Query(ctx, query, username, bid.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var role models.ActorRole
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		if !utils.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	isProvider, err := utils.CheckUserIsProvider(ctx, r.DB, username)
	if err != nil {
		return nil, err
	}
	if isProvider && !utils.Contains(roles, models.ProviderRole) {
		roles = append(roles, models.ProviderRole)
	}
	return roles, nil
}
