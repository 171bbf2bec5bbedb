// Package tenant implements Database-per-Tenant plumbing: each tenant owns an
// isolated PostgreSQL database, resolved per request from a meta-database.
package tenant

import (
	"fmt"
	"strings"
	"time"
)

// Status represents tenant lifecycle state.
type Status string

const (
	// StatusActive - tenant accepts requests
	StatusActive Status = "active"

	// StatusSuspended - tenant is temporarily disabled
	StatusSuspended Status = "suspended"

	// StatusDeleted - tenant is marked for deletion
	StatusDeleted Status = "deleted"
)

// Tenant is a tenant record from the meta-database.
type Tenant struct {
	ID          string         `db:"id"`
	Slug        string         `db:"slug"`
	DisplayName string         `db:"display_name"`
	DBName      string         `db:"db_name"`
	DBHost      string         `db:"db_host"`
	DBPort      int            `db:"db_port"`
	Status      Status         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	Settings    map[string]any `db:"settings"`
}

// IsActive reports whether the tenant accepts requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// DSN builds the connection string for this tenant's database.
func (t *Tenant) DSN(user, password string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		user, password, t.DBHost, t.DBPort, t.DBName,
	)
}

// DSNWithSSL builds the connection string with an explicit SSL mode.
func (t *Tenant) DSNWithSSL(user, password, sslMode string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, password, t.DBHost, t.DBPort, t.DBName, sslMode,
	)
}

// CreateTenantInput holds data for provisioning a new tenant.
type CreateTenantInput struct {
	Slug        string
	DisplayName string
	DBHost      string // defaults to localhost
	DBPort      int    // defaults to 5432
}

// Validate normalizes and checks the input.
func (i *CreateTenantInput) Validate() error {
	if i.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	i.Slug = strings.ToLower(i.Slug)
	if len(i.Slug) > 63 {
		return fmt.Errorf("slug must be 63 characters or less")
	}
	if i.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	return nil
}

// GenerateDBName derives the database name from the slug.
func (i *CreateTenantInput) GenerateDBName() string {
	return "st_" + i.Slug
}
