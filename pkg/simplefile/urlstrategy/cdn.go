package urlstrategy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// CDNStrategy generates URLs that point directly to a CDN fronting the
// storage root, addressed by the record's logical path
type CDNStrategy struct {
	CDNBaseURL string // e.g. "https://cdn.example.com/files"
}

// NewCDNStrategy creates a new CDN URL strategy
func NewCDNStrategy(cdnBaseURL string) *CDNStrategy {
	return &CDNStrategy{CDNBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

// DownloadURL creates a direct CDN URL for the logical path
func (s *CDNStrategy) DownloadURL(ctx context.Context, target Target) (string, error) {
	if s.CDNBaseURL == "" {
		return "", fmt.Errorf("CDN base URL not configured")
	}
	if target.Path == "" {
		return "", fmt.Errorf("record %s has no path", target.UID)
	}
	return s.CDNBaseURL + "/" + escapePath(target.Path), nil
}

func escapePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
