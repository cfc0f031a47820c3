package repository

import (
	"context"
	"time"

	"chatbot-commerce/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByTransportID(ctx context.Context, tx Tx, tenantID string, transport model.Transport, transportID string) (*model.User, error)
	Delete(ctx context.Context, tx Tx, id string) error
	SetHasActiveSub(ctx context.Context, tx Tx, id string, active bool) error
}

type PurchaseRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Purchase) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Purchase, error)

	// ListExpired returns approved purchases whose expiry passed ref.
	ListExpired(ctx context.Context, tx Tx, ref time.Time, limit int) ([]*model.Purchase, error)
	// MarkExpiredIfDue flips approved -> expired only while the expiry is
	// actually in the past; reports whether a row changed so a second sweep
	// pass is a no-op.
	MarkExpiredIfDue(ctx context.Context, tx Tx, id string, ref time.Time) (bool, error)

	// ListExpiringWithin returns approved purchases expiring inside the
	// window that have not been notified since lastNotifiedBefore.
	ListExpiringWithin(ctx context.Context, tx Tx, ref time.Time, window time.Duration, lastNotifiedBefore time.Time, limit int) ([]*model.Purchase, error)
	SetLastNotified(ctx context.Context, tx Tx, id string, at time.Time) error
}
