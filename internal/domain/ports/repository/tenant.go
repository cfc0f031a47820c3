package repository

import (
	"context"
	"time"

	"chatbot-commerce/internal/domain/model"
)

type TenantRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Tenant) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tenant, error)
	FindBySubdomain(ctx context.Context, tx Tx, subdomain string) (*model.Tenant, error)

	// ListExpired returns active/trialing tenants whose relevant expiry has
	// passed ref.
	ListExpired(ctx context.Context, tx Tx, ref time.Time, limit int) ([]*model.Tenant, error)
	// UpdateStatusIfExpired flips a tenant to inactive only while it is still
	// active/trialing with a passed expiry; reports whether a row changed.
	UpdateStatusIfExpired(ctx context.Context, tx Tx, id string, ref time.Time) (bool, error)

	CountByStatus(ctx context.Context, tx Tx) (map[model.TenantStatus]int, error)
}
