// File: internal/usecase/stats_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
)

var _ StatsUseCase = (*statsUC)(nil)

// PlatformStats summarizes the whole installation for the ops surface.
type PlatformStats struct {
	TenantsByStatus map[model.TenantStatus]int `json:"tenants_by_status"`
}

// TenantStats summarizes one merchant's sales funnel.
type TenantStats struct {
	SalesByStatus   map[model.SaleStatus]int `json:"sales_by_status"`
	ApprovedRevenue int64                    `json:"approved_revenue"`
}

type StatsUseCase interface {
	Platform(ctx context.Context) (*PlatformStats, error)
	Tenant(ctx context.Context, tenantID string) (*TenantStats, error)
}

type statsUC struct {
	tenants repository.TenantRepository
	sales   repository.SaleRepository
	log     *zerolog.Logger
}

func NewStatsUseCase(tenants repository.TenantRepository, sales repository.SaleRepository, logger *zerolog.Logger) *statsUC {
	l := logger.With().Str("component", "StatsUC").Logger()
	return &statsUC{tenants: tenants, sales: sales, log: &l}
}

func (u *statsUC) Platform(ctx context.Context) (*PlatformStats, error) {
	byStatus, err := u.tenants.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	return &PlatformStats{TenantsByStatus: byStatus}, nil
}

func (u *statsUC) Tenant(ctx context.Context, tenantID string) (*TenantStats, error) {
	byStatus, err := u.sales.CountByStatus(ctx, repository.NoTX, tenantID)
	if err != nil {
		return nil, err
	}
	revenue, err := u.sales.SumApprovedByTenant(ctx, repository.NoTX, tenantID)
	if err != nil {
		return nil, err
	}
	return &TenantStats{SalesByStatus: byStatus, ApprovedRevenue: revenue}, nil
}
