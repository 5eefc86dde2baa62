// Package urlstrategy decides where clients download file records from.
package urlstrategy

import (
	"context"
)

// Strategy defines the interface for download URL generation strategies
type Strategy interface {
	// DownloadURL creates the public URL of a record's bytes
	DownloadURL(ctx context.Context, target Target) (string, error)
}

// Target describes the record a URL is generated for
type Target struct {
	UID         string
	Path        string // logical path
	StoragePath string // backend-specific location
	FileName    string
	ContentType string

	// Resize hints; only strategies that route through the file API honour them
	Width  int
	Height int
}

// Presigner creates a time-limited direct download URL for a storage path
type Presigner interface {
	PresignDownload(ctx context.Context, storagePath string, filename string) (string, error)
}

// PresignerFunc adapts a function to Presigner
type PresignerFunc func(ctx context.Context, storagePath string, filename string) (string, error)

func (f PresignerFunc) PresignDownload(ctx context.Context, storagePath string, filename string) (string, error) {
	return f(ctx, storagePath, filename)
}
