package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

// TenantConfigRepository persists per-guild ticket settings.
type TenantConfigRepository interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
	List(ctx context.Context) ([]domain.TenantConfig, error)
	Upsert(ctx context.Context, cfg *domain.TenantConfig) error
	Delete(ctx context.Context, tenantID string) error
}

type tenantConfigRepository struct {
	pool *pgxpool.Pool
}

// NewTenantConfigRepository instantiates repository.
func NewTenantConfigRepository(pool *pgxpool.Pool) TenantConfigRepository {
	return &tenantConfigRepository{pool: pool}
}

const tenantConfigColumns = `tenant_id, intake_channel_id, transcript_channel_id, admin_role_id,
       active_category_id, archive_category_id, owner_id, enabled, updated_at`

func (r *tenantConfigRepository) Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantConfigColumns+` FROM ticket_configs WHERE tenant_id=$1`, tenantID)
	cfg, err := scanTenantConfig(row)
	if err != nil {
		return nil, translate(err)
	}
	return cfg, nil
}

func (r *tenantConfigRepository) List(ctx context.Context) ([]domain.TenantConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantConfigColumns+` FROM ticket_configs ORDER BY tenant_id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.TenantConfig
	for rows.Next() {
		cfg, err := scanTenantConfig(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cfg)
	}
	return result, rows.Err()
}

func (r *tenantConfigRepository) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	const query = `
        INSERT INTO ticket_configs (tenant_id, intake_channel_id, transcript_channel_id, admin_role_id,
                                    active_category_id, archive_category_id, owner_id, enabled, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
        ON CONFLICT (tenant_id) DO UPDATE SET
            intake_channel_id=EXCLUDED.intake_channel_id,
            transcript_channel_id=EXCLUDED.transcript_channel_id,
            admin_role_id=EXCLUDED.admin_role_id,
            active_category_id=EXCLUDED.active_category_id,
            archive_category_id=EXCLUDED.archive_category_id,
            owner_id=EXCLUDED.owner_id,
            enabled=EXCLUDED.enabled,
            updated_at=NOW()
        RETURNING updated_at`
	return translate(r.pool.QueryRow(ctx, query,
		cfg.TenantID,
		cfg.IntakeChannelID,
		cfg.TranscriptChannelID,
		cfg.AdminRoleID,
		cfg.ActiveCategoryID,
		cfg.ArchiveCategoryID,
		cfg.OwnerID,
		cfg.Enabled,
	).Scan(&cfg.UpdatedAt))
}

func (r *tenantConfigRepository) Delete(ctx context.Context, tenantID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ticket_configs WHERE tenant_id=$1`, tenantID)
	return translate(err)
}

func scanTenantConfig(row pgx.Row) (*domain.TenantConfig, error) {
	var cfg domain.TenantConfig
	if err := row.Scan(
		&cfg.TenantID,
		&cfg.IntakeChannelID,
		&cfg.TranscriptChannelID,
		&cfg.AdminRoleID,
		&cfg.ActiveCategoryID,
		&cfg.ArchiveCategoryID,
		&cfg.OwnerID,
		&cfg.Enabled,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &cfg, nil
}
