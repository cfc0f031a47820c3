package repository

import (
	"context"

	"chatbot-commerce/internal/domain/model"
)

type ProductRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Product) error
	FindByID(ctx context.Context, tx Tx, tenantID, id string) (*model.Product, error)
	ListByTenant(ctx context.Context, tx Tx, tenantID string) ([]*model.Product, error)

	// PopActivationCode atomically moves the first available code to the used
	// list and returns it. domain.ErrOutOfStock when the pool is empty; the
	// move happens at most once per call regardless of concurrent callers.
	PopActivationCode(ctx context.Context, tx Tx, tenantID, productID string) (string, error)
}
