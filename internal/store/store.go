// Package store persists the product catalog and the usage history
// that combination dedup is built on.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

// Store is the persistence interface for the allocation engine.
//
// InsertUsageBatch is the durability boundary: all records of one call
// are committed in a single transaction or none become visible.
type Store interface {
	// Product catalog
	UpsertProducts(ctx context.Context, products []model.Product) (int, error)
	ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)

	// Usage history
	ListUsage(ctx context.Context, filter model.UsageFilter) ([]model.UsageRecord, error)
	HasSuccessfulUpload(ctx context.Context, businessNumber, productCode string) (bool, error)
	InsertUsageBatch(ctx context.Context, records []model.UsageRecord) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
