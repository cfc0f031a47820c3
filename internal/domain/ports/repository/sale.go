package repository

import (
	"context"

	"chatbot-commerce/internal/domain/model"
)

type SaleRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Sale) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Sale, error)
	FindByGatewayRef(ctx context.Context, tx Tx, gateway, refID string) (*model.Sale, error)
	// FindPending returns the open pending sale for (tenant, product, buyer)
	// if one exists, so checkout can reuse it instead of creating another.
	FindPending(ctx context.Context, tx Tx, tenantID, productID, userID string) (*model.Sale, error)

	// UpdateStatusIfPending is the single concurrency gate of the pipeline:
	// it moves the sale out of pending only if it is still pending and
	// reports whether this caller won. Callers must skip fulfillment when it
	// returns false. A negative totalValue keeps the stored value.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.SaleStatus, totalValue int64) (bool, error)
	// SetGatewayRef records the gateway payment id created for the sale.
	SetGatewayRef(ctx context.Context, tx Tx, id, refID string) error

	CountByStatus(ctx context.Context, tx Tx, tenantID string) (map[model.SaleStatus]int, error)
	SumApprovedByTenant(ctx context.Context, tx Tx, tenantID string) (int64, error)
}
