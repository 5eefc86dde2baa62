package simplefile

import (
	"context"
	"io"

	"github.com/tendant/simple-file/pkg/simplefile/objectkey"
	"github.com/tendant/simple-file/pkg/simplefile/urlstrategy"
)

// Driver is the storage contract a backend must satisfy.
type Driver interface {
	// Create copies the file at localPath into the backend, assigns a uid and
	// returns a populated handle. localPath may be removed as soon as Create
	// returns.
	Create(ctx context.Context, localPath string, mime string, params CreateParams) (Handle, error)

	// Get resolves a uid. It fails with ErrInvalidFileUIDFormat for malformed
	// uids and ErrFileNotFound when no record exists.
	Get(ctx context.Context, uid string) (Handle, error)
}

// Handle is a live backend record. Setter calls are not durable until Save.
type Handle interface {
	Kind() Kind

	// GetField returns ErrNotImplemented for fields the backend does not store
	GetField(f Field) (any, error)
	SetField(f Field, value any) error

	Save(ctx context.Context) error
	Delete(ctx context.Context) error

	// Open streams the stored bytes
	Open(ctx context.Context) (io.ReadCloser, error)
}

// CreateParams carries the optional arguments of Driver.Create
type CreateParams struct {
	Name         string
	Description  string
	ProposedPath string

	// KeyGenerator lays out the logical path when no usable ProposedPath is
	// given; nil selects the dated layout
	KeyGenerator objectkey.Generator

	// Options are backend-specific and passed through verbatim
	Options map[string]any
}

// Linker resolves named routes, record downloads and asset paths into URLs
type Linker interface {
	RouteURL(name string, params map[string]string) (string, error)
	DownloadURL(ctx context.Context, target urlstrategy.Target) (string, error)
	AssetURL(path string) string
}

// EventSink receives file lifecycle events
type EventSink interface {
	// FileCreated is fired after a driver created a record
	FileCreated(ctx context.Context, record Record) error

	// FileRejected is fired when ingestion fails before the driver is called
	FileRejected(ctx context.Context, source string, err error) error

	// FileFetched is fired after a successful lookup
	FileFetched(ctx context.Context, record Record) error
}
