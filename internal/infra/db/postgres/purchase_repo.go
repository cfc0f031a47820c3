package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*PurchaseRepo)(nil)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

const purchaseColumns = `id, user_id, product_id, product_name, type, status, expires_at, last_notified, created_at`

func (r *PurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	const sql = `
INSERT INTO purchases (id, user_id, product_id, product_name, type, status, expires_at, last_notified, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    expires_at = EXCLUDED.expires_at,
    last_notified = EXCLUDED.last_notified;`
	_, err := execSQL(ctx, r.pool, tx, sql,
		p.ID, p.UserID, p.ProductID, p.ProductName, p.Type, p.Status, p.ExpiresAt, p.LastNotified)
	return err
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Purchase, error) {
	const sql = `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = $1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (r *PurchaseRepo) ListExpired(ctx context.Context, tx repository.Tx, ref time.Time, limit int) ([]*model.Purchase, error) {
	const sql = `
SELECT ` + purchaseColumns + ` FROM purchases
WHERE status = 'approved' AND expires_at IS NOT NULL AND expires_at < $1
ORDER BY expires_at
LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, sql, ref, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (r *PurchaseRepo) MarkExpiredIfDue(ctx context.Context, tx repository.Tx, id string, ref time.Time) (bool, error) {
	const sql = `
UPDATE purchases SET status = 'expired'
WHERE id = $1 AND status = 'approved' AND expires_at IS NOT NULL AND expires_at < $2;`
	cmd, err := execSQL(ctx, r.pool, tx, sql, id, ref)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *PurchaseRepo) ListExpiringWithin(ctx context.Context, tx repository.Tx, ref time.Time, window time.Duration, lastNotifiedBefore time.Time, limit int) ([]*model.Purchase, error) {
	const sql = `
SELECT ` + purchaseColumns + ` FROM purchases
WHERE status = 'approved'
  AND expires_at IS NOT NULL
  AND expires_at > $1
  AND expires_at <= $2
  AND (last_notified IS NULL OR last_notified < $3)
ORDER BY expires_at
LIMIT $4;`
	rows, err := queryRows(ctx, r.pool, tx, sql, ref, ref.Add(window), lastNotifiedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (r *PurchaseRepo) SetLastNotified(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const sql = `UPDATE purchases SET last_notified = $2 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, sql, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectPurchases(rows pgx.Rows) ([]*model.Purchase, error) {
	var out []*model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	var p model.Purchase
	err := row.Scan(&p.ID, &p.UserID, &p.ProductID, &p.ProductName, &p.Type, &p.Status,
		&p.ExpiresAt, &p.LastNotified, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}
