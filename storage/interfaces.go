package storage

import (
	"context"

	"shopscout/models"
)

// ResultWriter is the interface any result export backend must satisfy.
type ResultWriter interface {
	Write(ctx context.Context, r *models.SearchResult) error
	Close() error
}
