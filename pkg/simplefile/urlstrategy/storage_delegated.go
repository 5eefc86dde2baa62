package urlstrategy

import (
	"context"
	"fmt"
	"net/url"
)

// StorageDelegatedStrategy delegates URL generation to the storage backend
// that holds the bytes. Presigners are keyed by the scheme of the storage
// path ("s3" for s3://bucket/key); other records use Fallback.
type StorageDelegatedStrategy struct {
	Presigners map[string]Presigner
	Fallback   Strategy
}

// NewStorageDelegatedStrategy creates a new storage-delegated URL strategy
func NewStorageDelegatedStrategy(presigners map[string]Presigner, fallback Strategy) *StorageDelegatedStrategy {
	return &StorageDelegatedStrategy{
		Presigners: presigners,
		Fallback:   fallback,
	}
}

// DownloadURL presigns a direct URL when a presigner handles the storage path
func (s *StorageDelegatedStrategy) DownloadURL(ctx context.Context, target Target) (string, error) {
	if u, err := url.Parse(target.StoragePath); err == nil && u.Scheme != "" {
		if presigner, ok := s.Presigners[u.Scheme]; ok {
			return presigner.PresignDownload(ctx, target.StoragePath, target.FileName)
		}
	}

	if s.Fallback == nil {
		return "", fmt.Errorf("no presigner for storage path %q", target.StoragePath)
	}
	return s.Fallback.DownloadURL(ctx, target)
}
