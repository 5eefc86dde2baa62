package simplefile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/simple-file/pkg/simplefile/objectkey"
)

const (
	// DefaultUploadMaxSizeMB is the upload ceiling used when none is configured
	DefaultUploadMaxSizeMB = 10.0

	// DefaultFetchTimeout bounds a remote fetch, including reading the body
	DefaultFetchTimeout = 30 * time.Second

	// DefaultUserAgent is sent with remote fetches; some servers reject
	// clients that do not look like a browser.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	bytesPerMB = 1048576
)

// service implements the Service interface
type service struct {
	provider      *Provider
	links         Linker
	eventSink     EventSink
	logger        *slog.Logger
	maxUploadMB   float64
	normalizeName bool
	httpClient    *http.Client
	userAgent     string
	tempDir       string
	keys          objectkey.Generator
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithProvider sets the lazily constructed driver
func WithProvider(p *Provider) Option {
	return func(s *service) {
		s.provider = p
	}
}

// WithDriver uses an already constructed driver
func WithDriver(name string, d Driver) Option {
	return func(s *service) {
		s.provider = StaticProvider(name, d)
	}
}

// WithLinker sets the route and asset URL resolver
func WithLinker(l Linker) Option {
	return func(s *service) {
		s.links = l
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithUploadMaxSizeMB sets the upload ceiling in megabytes
func WithUploadMaxSizeMB(mb float64) Option {
	return func(s *service) {
		s.maxUploadMB = mb
	}
}

// WithNameNormalization controls whether a name without an extension gets
// the extension of its sniffed MIME type appended.
func WithNameNormalization(enabled bool) Option {
	return func(s *service) {
		s.normalizeName = enabled
	}
}

// WithHTTPClient sets the client used for remote sources
func WithHTTPClient(c *http.Client) Option {
	return func(s *service) {
		s.httpClient = c
	}
}

// WithFetchTimeout sets the timeout of the default remote fetch client
func WithFetchTimeout(d time.Duration) Option {
	return func(s *service) {
		s.httpClient = &http.Client{Timeout: d}
	}
}

// WithUserAgent overrides the User-Agent of remote fetches
func WithUserAgent(ua string) Option {
	return func(s *service) {
		s.userAgent = ua
	}
}

// WithTempDir sets where ingestion temp files are created
func WithTempDir(dir string) Option {
	return func(s *service) {
		s.tempDir = dir
	}
}

// WithKeyGenerator sets the logical path layout handed to drivers
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		maxUploadMB:   DefaultUploadMaxSizeMB,
		normalizeName: true,
		userAgent:     DefaultUserAgent,
	}

	for _, option := range options {
		option(s)
	}

	if s.provider == nil {
		return nil, fmt.Errorf("driver is required")
	}
	if s.maxUploadMB <= 0 {
		return nil, fmt.Errorf("upload max size must be positive, got %g", s.maxUploadMB)
	}
	if s.links == nil {
		s.links = NewLinker("", "/assets")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if s.keys == nil {
		s.keys = objectkey.NewDatedGenerator()
	}

	return s, nil
}

func (s *service) Driver() (Driver, error) {
	return s.provider.Driver()
}

func (s *service) Linker() Linker {
	return s.links
}

func (s *service) MaxUploadSize() int64 {
	return int64(s.maxUploadMB * bytesPerMB)
}

// Lookup operations

func (s *service) Get(ctx context.Context, uid string, suppressErrors bool) (Record, error) {
	d, err := s.provider.Driver()
	if err != nil {
		return nil, err
	}

	h, err := d.Get(ctx, uid)
	if err != nil {
		if suppressErrors && IsFileError(err) {
			s.logger.Debug("Suppressed file lookup error", "uid", uid, "error", err)
			return nil, nil
		}
		return nil, err
	}

	record := Wrap(h, s.links)
	if err := s.eventSink.FileFetched(ctx, record); err != nil {
		s.logger.Warn("Event sink failed", "event", "file_fetched", "uid", uid, "error", err)
	}
	return record, nil
}

func (s *service) GetMultiple(ctx context.Context, uids []string, suppressErrors bool) ([]Record, error) {
	records := make([]Record, 0, len(uids))
	if len(uids) == 0 {
		return records, nil
	}

	for _, uid := range uids {
		r, err := s.Get(ctx, uid, suppressErrors)
		if err != nil {
			return nil, err
		}
		if r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

func (s *service) reject(ctx context.Context, source string, err error) error {
	var sizeErr *SizeLimitError
	if errors.As(err, &sizeErr) {
		s.logger.Warn("Rejected oversized file", "source", source, "size", sizeErr.Size, "limit", sizeErr.Limit)
	} else {
		s.logger.Error("Failed to ingest file", "source", source, "error", err)
	}
	if sinkErr := s.eventSink.FileRejected(ctx, source, err); sinkErr != nil {
		s.logger.Warn("Event sink failed", "event", "file_rejected", "source", source, "error", sinkErr)
	}
	return err
}
