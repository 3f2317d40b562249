package services

import (
	"context"

	"github.com/desertthunder/crmigrate/internal/models"
)

// Collection is the per-data-type view of a profile's remote state. The
// sync engine only needs these two operations; everything else (pagination,
// endpoint shapes, list containers) stays inside the adapter.
type Collection[T models.Item] interface {
	// ListExisting returns every item of this type currently on the
	// profile. Types without an enumeration endpoint return an empty
	// slice; duplicates are then absorbed at write time.
	ListExisting(ctx context.Context) ([]T, error)

	// Create writes one item to the profile. A conflict response means
	// the item already exists and is not an error for the caller to retry.
	Create(ctx context.Context, item T) error
}
