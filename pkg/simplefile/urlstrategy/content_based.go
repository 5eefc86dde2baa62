package urlstrategy

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultDownloadPattern is the download route of the file API
const DefaultDownloadPattern = "/file/download/{uid}"

// ContentBasedStrategy generates URLs based on the record uid.
// This routes downloads through the file API.
type ContentBasedStrategy struct {
	APIBaseURL string // e.g. "https://files.example.com", or empty for host-relative URLs
	Pattern    string // route pattern with a {uid} placeholder
}

// NewContentBasedStrategy creates a content-based strategy for the default download route
func NewContentBasedStrategy(apiBaseURL string) *ContentBasedStrategy {
	return &ContentBasedStrategy{
		APIBaseURL: strings.TrimSuffix(apiBaseURL, "/"),
		Pattern:    DefaultDownloadPattern,
	}
}

// DownloadURL fills the route pattern and appends width and height
func (s *ContentBasedStrategy) DownloadURL(ctx context.Context, target Target) (string, error) {
	if target.UID == "" {
		return "", fmt.Errorf("uid is required for content-based URLs")
	}
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultDownloadPattern
	}

	p, err := FillPattern(pattern, map[string]string{"uid": target.UID})
	if err != nil {
		return "", err
	}
	u := s.APIBaseURL + p

	var params []string
	if target.Width > 0 {
		params = append(params, "width="+strconv.Itoa(target.Width))
	}
	if target.Height > 0 {
		params = append(params, "height="+strconv.Itoa(target.Height))
	}
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + strings.Join(params, "&")
	}
	return u, nil
}

// FillPattern replaces chi-style {param} placeholders with escaped values
func FillPattern(pattern string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := pattern
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("malformed pattern %q", pattern)
		}
		key := rest[start+1 : start+end]
		value, ok := params[key]
		if !ok {
			return "", fmt.Errorf("pattern %q: missing parameter %q", pattern, key)
		}
		b.WriteString(rest[:start])
		b.WriteString(url.PathEscape(value))
		rest = rest[start+end+1:]
	}
	return b.String(), nil
}
