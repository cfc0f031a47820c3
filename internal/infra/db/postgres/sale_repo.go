package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

type SaleRepo struct {
	pool *pgxpool.Pool
}

func NewSaleRepo(pool *pgxpool.Pool) *SaleRepo {
	return &SaleRepo{pool: pool}
}

const saleColumns = `id, tenant_id, product_id, user_id, transport, chat_id, message_id,
status, gateway, gateway_ref_id, total_value, created_at, updated_at`

func (r *SaleRepo) Save(ctx context.Context, tx repository.Tx, s *model.Sale) error {
	const sql = `
INSERT INTO sales (id, tenant_id, product_id, user_id, transport, chat_id, message_id,
                   status, gateway, gateway_ref_id, total_value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
    chat_id = EXCLUDED.chat_id,
    message_id = EXCLUDED.message_id,
    status = EXCLUDED.status,
    gateway = EXCLUDED.gateway,
    gateway_ref_id = EXCLUDED.gateway_ref_id,
    total_value = EXCLUDED.total_value,
    updated_at = NOW();`
	_, err := execSQL(ctx, r.pool, tx, sql,
		s.ID, s.TenantID, s.ProductID, s.UserID, s.Transport, s.ChatID, s.MessageID,
		s.Status, s.PaymentGateway, s.GatewayRefID, s.TotalValue)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: a pending sale for this buyer+product already exists.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *SaleRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Sale, error) {
	const sql = `SELECT ` + saleColumns + ` FROM sales WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, sql, id)
	if err != nil {
		return nil, err
	}
	return scanSale(row)
}

func (r *SaleRepo) FindByGatewayRef(ctx context.Context, tx repository.Tx, gateway, refID string) (*model.Sale, error) {
	const sql = `SELECT ` + saleColumns + ` FROM sales WHERE gateway = $1 AND gateway_ref_id = $2;`
	row, err := pickRow(ctx, r.pool, tx, sql, gateway, refID)
	if err != nil {
		return nil, err
	}
	return scanSale(row)
}

func (r *SaleRepo) FindPending(ctx context.Context, tx repository.Tx, tenantID, productID, userID string) (*model.Sale, error) {
	const sql = `
SELECT ` + saleColumns + ` FROM sales
WHERE tenant_id = $1 AND product_id = $2 AND user_id = $3 AND status = 'pending';`
	row, err := pickRow(ctx, r.pool, tx, sql, tenantID, productID, userID)
	if err != nil {
		return nil, err
	}
	return scanSale(row)
}

// UpdateStatusIfPending transitions the sale out of pending only when it is
// still pending. RowsAffected decides the winner under concurrent webhook
// replays; a negative total keeps the previously recorded value.
func (r *SaleRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.SaleStatus, totalValue int64) (bool, error) {
	const sql = `
UPDATE sales
SET status = $2,
    total_value = CASE WHEN $3 >= 0 THEN $3 ELSE total_value END,
    updated_at = NOW()
WHERE id = $1 AND status = 'pending';`
	cmd, err := execSQL(ctx, r.pool, tx, sql, id, status, totalValue)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *SaleRepo) SetGatewayRef(ctx context.Context, tx repository.Tx, id, refID string) error {
	const sql = `UPDATE sales SET gateway_ref_id = $2, updated_at = NOW() WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, sql, id, refID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SaleRepo) CountByStatus(ctx context.Context, tx repository.Tx, tenantID string) (map[model.SaleStatus]int, error) {
	const sql = `SELECT status, COUNT(*) FROM sales WHERE tenant_id = $1 GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, sql, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.SaleStatus]int)
	for rows.Next() {
		var status model.SaleStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *SaleRepo) SumApprovedByTenant(ctx context.Context, tx repository.Tx, tenantID string) (int64, error) {
	const sql = `SELECT COALESCE(SUM(total_value), 0) FROM sales WHERE tenant_id = $1 AND status = 'approved';`
	row, err := pickRow(ctx, r.pool, tx, sql, tenantID)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return total, nil
}

func scanSale(row pgx.Row) (*model.Sale, error) {
	var s model.Sale
	err := row.Scan(&s.ID, &s.TenantID, &s.ProductID, &s.UserID, &s.Transport, &s.ChatID, &s.MessageID,
		&s.Status, &s.PaymentGateway, &s.GatewayRefID, &s.TotalValue, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}
