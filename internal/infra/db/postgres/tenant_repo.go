package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
)

var _ repository.TenantRepository = (*TenantRepo)(nil)

type TenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

const tenantColumns = `id, subdomain, status, plan_id, trial_ends_at, subscription_ends_at,
bot_token, instance_name, gateways, flow_model, inactive_message, created_at, updated_at`

func (r *TenantRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	gateways, err := json.Marshal(t.Gateways)
	if err != nil {
		return err
	}
	var flowModel []byte
	if t.FlowModel != nil {
		if flowModel, err = json.Marshal(t.FlowModel); err != nil {
			return err
		}
	}
	const sql = `
INSERT INTO tenants (id, subdomain, status, plan_id, trial_ends_at, subscription_ends_at,
                     bot_token, instance_name, gateways, flow_model, inactive_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
    subdomain = EXCLUDED.subdomain,
    status = EXCLUDED.status,
    plan_id = EXCLUDED.plan_id,
    trial_ends_at = EXCLUDED.trial_ends_at,
    subscription_ends_at = EXCLUDED.subscription_ends_at,
    bot_token = EXCLUDED.bot_token,
    instance_name = EXCLUDED.instance_name,
    gateways = EXCLUDED.gateways,
    flow_model = EXCLUDED.flow_model,
    inactive_message = EXCLUDED.inactive_message,
    updated_at = NOW();`
	_, err = execSQL(ctx, r.pool, tx, sql,
		t.ID, t.Subdomain, t.Status, t.PlanID, t.TrialEndsAt, t.SubscriptionEndsAt,
		t.Credentials.BotToken, t.Credentials.InstanceName, gateways, flowModel, t.InactiveMessage)
	return err
}

func (r *TenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	const sql = `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, sql, id)
	if err != nil {
		return nil, err
	}
	return scanTenant(row)
}

func (r *TenantRepo) FindBySubdomain(ctx context.Context, tx repository.Tx, subdomain string) (*model.Tenant, error) {
	const sql = `SELECT ` + tenantColumns + ` FROM tenants WHERE subdomain = $1;`
	row, err := pickRow(ctx, r.pool, tx, sql, subdomain)
	if err != nil {
		return nil, err
	}
	return scanTenant(row)
}

func (r *TenantRepo) ListExpired(ctx context.Context, tx repository.Tx, ref time.Time, limit int) ([]*model.Tenant, error) {
	const sql = `
SELECT ` + tenantColumns + `
FROM tenants
WHERE (status = 'trialing' AND trial_ends_at < $1)
   OR (status = 'active' AND subscription_ends_at < $1)
ORDER BY updated_at
LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, sql, ref, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TenantRepo) UpdateStatusIfExpired(ctx context.Context, tx repository.Tx, id string, ref time.Time) (bool, error) {
	const sql = `
UPDATE tenants SET status = 'inactive', updated_at = NOW()
WHERE id = $1
  AND ((status = 'trialing' AND trial_ends_at < $2)
    OR (status = 'active' AND subscription_ends_at < $2));`
	cmd, err := execSQL(ctx, r.pool, tx, sql, id, ref)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *TenantRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TenantStatus]int, error) {
	const sql = `SELECT status, COUNT(*) FROM tenants GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.TenantStatus]int)
	for rows.Next() {
		var status model.TenantStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	var t model.Tenant
	var gateways, flowModel []byte
	err := row.Scan(&t.ID, &t.Subdomain, &t.Status, &t.PlanID, &t.TrialEndsAt, &t.SubscriptionEndsAt,
		&t.Credentials.BotToken, &t.Credentials.InstanceName, &gateways, &flowModel,
		&t.InactiveMessage, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(gateways) > 0 {
		if err := json.Unmarshal(gateways, &t.Gateways); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(flowModel) > 0 {
		fm, err := model.ParseFlowModel(flowModel)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		t.FlowModel = fm
	}
	return &t, nil
}
