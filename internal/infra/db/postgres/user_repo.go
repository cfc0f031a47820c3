package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, tenant_id, telegram_id, whatsapp_id, name, has_active_sub, created_at, updated_at`

func (r *UserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const sql = `
INSERT INTO users (id, tenant_id, telegram_id, whatsapp_id, name, has_active_sub, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    has_active_sub = EXCLUDED.has_active_sub,
    updated_at = NOW();`
	_, err := execSQL(ctx, r.pool, tx, sql,
		u.ID, u.TenantID, u.TelegramID, u.WhatsAppID, u.Name, u.HasActiveSub)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
	}
	return err
}

func (r *UserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, sql, id)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return r.withPurchases(ctx, tx, u)
}

func (r *UserRepo) FindByTransportID(ctx context.Context, tx repository.Tx, tenantID string, transport model.Transport, transportID string) (*model.User, error) {
	var row pgx.Row
	var err error
	if transport == model.TransportTelegram {
		tgID, convErr := strconv.ParseInt(transportID, 10, 64)
		if convErr != nil {
			return nil, domain.ErrInvalidArgument
		}
		const sql = `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND telegram_id = $2;`
		row, err = pickRow(ctx, r.pool, tx, sql, tenantID, tgID)
	} else {
		const sql = `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND whatsapp_id = $2;`
		row, err = pickRow(ctx, r.pool, tx, sql, tenantID, transportID)
	}
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return r.withPurchases(ctx, tx, u)
}

func (r *UserRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	// purchases cascade with the row
	const sql = `DELETE FROM users WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, sql, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetHasActiveSub(ctx context.Context, tx repository.Tx, id string, active bool) error {
	const sql = `UPDATE users SET has_active_sub = $2, updated_at = NOW() WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, sql, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) withPurchases(ctx context.Context, tx repository.Tx, u *model.User) (*model.User, error) {
	const sql = `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = $1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, sql, u.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		u.Purchases = append(u.Purchases, *p)
	}
	return u, rows.Err()
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.TenantID, &u.TelegramID, &u.WhatsAppID, &u.Name,
		&u.HasActiveSub, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &u, nil
}
