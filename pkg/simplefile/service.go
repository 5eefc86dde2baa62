package simplefile

import (
	"context"
)

// Service defines the file ingestion and lookup API
type Service interface {
	// Create ingests a local path or http(s) URL, validates it and hands it to the driver
	Create(ctx context.Context, req CreateRequest) (Record, error)

	// Get resolves a uid. With suppressErrors, taxonomy errors yield (nil, nil).
	Get(ctx context.Context, uid string, suppressErrors bool) (Record, error)

	// GetMultiple resolves uids in order, dropping suppressed misses
	GetMultiple(ctx context.Context, uids []string, suppressErrors bool) ([]Record, error)

	// Driver returns the active driver, constructing it on first use
	Driver() (Driver, error)

	// Linker returns the URL resolver records are built with
	Linker() Linker

	// MaxUploadSize returns the upload ceiling in bytes
	MaxUploadSize() int64
}
