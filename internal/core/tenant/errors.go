package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when the tenant is absent from the meta-database.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantNotActive is returned when the tenant exists but is suspended or deleted.
	ErrTenantNotActive = errors.New("tenant is not active")

	// ErrMaxPoolLimit is returned when the manager reached its pool limit.
	ErrMaxPoolLimit = errors.New("max tenant pool limit reached")
)
