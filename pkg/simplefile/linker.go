package simplefile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tendant/simple-file/pkg/simplefile/urlstrategy"
)

// DefaultDownloadPattern is the path registered for DownloadRoute by NewLinker
const DefaultDownloadPattern = urlstrategy.DefaultDownloadPattern

// PathLinker resolves named route patterns against a base URL. Patterns use
// chi-style {param} placeholders.
type PathLinker struct {
	mu        sync.RWMutex
	baseURL   string
	assetBase string
	routes    map[string]string
	strategy  urlstrategy.Strategy
}

// LinkerOption configures a PathLinker
type LinkerOption func(*PathLinker)

// WithURLStrategy makes the linker delegate download URLs to s instead of
// the download route
func WithURLStrategy(s urlstrategy.Strategy) LinkerOption {
	return func(l *PathLinker) {
		l.strategy = s
	}
}

// NewLinker creates a linker with DownloadRoute registered. baseURL may be
// empty to produce host-relative URLs; assets are served under assetBase,
// which may be an absolute URL such as a CDN origin.
func NewLinker(baseURL, assetBase string, opts ...LinkerOption) *PathLinker {
	l := &PathLinker{
		baseURL:   strings.TrimRight(baseURL, "/"),
		assetBase: strings.TrimRight(assetBase, "/"),
		routes:    make(map[string]string),
	}
	l.Register(DownloadRoute, DefaultDownloadPattern)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register adds or replaces a named route pattern
func (l *PathLinker) Register(name, pattern string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes[name] = pattern
}

// Pattern returns the registered pattern of a route
func (l *PathLinker) Pattern(name string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.routes[name]
	return p, ok
}

// RouteURL fills the named route's placeholders with escaped params
func (l *PathLinker) RouteURL(name string, params map[string]string) (string, error) {
	pattern, ok := l.Pattern(name)
	if !ok {
		return "", fmt.Errorf("route %q is not registered", name)
	}
	p, err := urlstrategy.FillPattern(pattern, params)
	if err != nil {
		return "", fmt.Errorf("route %q: %w", name, err)
	}
	return l.baseURL + p, nil
}

// DownloadURL returns where clients fetch the target's bytes. Without a
// strategy it is the download route with width and height appended.
func (l *PathLinker) DownloadURL(ctx context.Context, target urlstrategy.Target) (string, error) {
	if l.strategy != nil {
		return l.strategy.DownloadURL(ctx, target)
	}

	u, err := l.RouteURL(DownloadRoute, map[string]string{"uid": target.UID})
	if err != nil {
		return "", err
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	if target.Width > 0 {
		u += sep + "width=" + strconv.Itoa(target.Width)
		sep = "&"
	}
	if target.Height > 0 {
		u += sep + "height=" + strconv.Itoa(target.Height)
	}
	return u, nil
}

// AssetURL returns the URL of a static asset
func (l *PathLinker) AssetURL(path string) string {
	path = strings.TrimLeft(path, "/")
	if isAbsoluteURL(l.assetBase) {
		return l.assetBase + "/" + path
	}
	return l.baseURL + l.assetBase + "/" + path
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "//")
}
