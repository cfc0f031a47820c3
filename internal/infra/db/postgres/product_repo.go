package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

const productColumns = `id, tenant_id, name, price, discount_price, offer_expires_at, type, subtype,
description, activation_codes, activation_codes_used, is_group_access, telegram_group_id, duration_days,
created_at, updated_at`

func (r *ProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const sql = `
INSERT INTO products (id, tenant_id, name, price, discount_price, offer_expires_at, type, subtype,
                      description, activation_codes, activation_codes_used, is_group_access,
                      telegram_group_id, duration_days, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    price = EXCLUDED.price,
    discount_price = EXCLUDED.discount_price,
    offer_expires_at = EXCLUDED.offer_expires_at,
    type = EXCLUDED.type,
    subtype = EXCLUDED.subtype,
    description = EXCLUDED.description,
    activation_codes = EXCLUDED.activation_codes,
    activation_codes_used = EXCLUDED.activation_codes_used,
    is_group_access = EXCLUDED.is_group_access,
    telegram_group_id = EXCLUDED.telegram_group_id,
    duration_days = EXCLUDED.duration_days,
    updated_at = NOW();`
	_, err := execSQL(ctx, r.pool, tx, sql,
		p.ID, p.TenantID, p.Name, p.Price, p.DiscountPrice, p.OfferExpiresAt, p.Type, p.Subtype,
		p.Description, p.ActivationCodes, p.ActivationCodesUsed, p.IsTelegramGroupAccess,
		p.TelegramGroupID, p.DurationDays)
	return err
}

func (r *ProductRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.Product, error) {
	const sql = `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = $2;`
	row, err := pickRow(ctx, r.pool, tx, sql, tenantID, id)
	if err != nil {
		return nil, err
	}
	return scanProduct(row)
}

func (r *ProductRepo) ListByTenant(ctx context.Context, tx repository.Tx, tenantID string) ([]*model.Product, error) {
	const sql = `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, sql, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PopActivationCode moves the head of the code pool to the used list in one
// statement, so two concurrent winners can never receive the same code. The
// guard on cardinality makes an empty pool a zero-row update.
func (r *ProductRepo) PopActivationCode(ctx context.Context, tx repository.Tx, tenantID, productID string) (string, error) {
	const sql = `
UPDATE products
SET activation_codes = activation_codes[2:],
    activation_codes_used = array_append(activation_codes_used, activation_codes[1]),
    updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND cardinality(activation_codes) > 0
RETURNING activation_codes_used[cardinality(activation_codes_used)];`
	row, err := pickRow(ctx, r.pool, tx, sql, tenantID, productID)
	if err != nil {
		return "", err
	}
	var code string
	if err := row.Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrOutOfStock
		}
		return "", domain.ErrReadDatabaseRow
	}
	return code, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Price, &p.DiscountPrice, &p.OfferExpiresAt,
		&p.Type, &p.Subtype, &p.Description, &p.ActivationCodes, &p.ActivationCodesUsed,
		&p.IsTelegramGroupAccess, &p.TelegramGroupID, &p.DurationDays, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}
