package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Commerce errors
	ErrOutOfStock       = errors.New("no activation code left in stock")
	ErrSaleAlreadyFinal = errors.New("sale is already in a terminal state")
	ErrBadSignature     = errors.New("webhook signature mismatch")
	ErrTenantInactive   = errors.New("tenant subscription is not active")
	ErrNotConfigured    = errors.New("feature is not configured for tenant")
	ErrUnsupported      = errors.New("operation not supported by transport")
)
