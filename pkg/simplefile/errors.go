package simplefile

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/dustin/go-humanize"
)

// ErrFile is the base of the file error taxonomy. Every taxonomy error
// satisfies errors.Is(err, ErrFile).
var ErrFile = errors.New("file error")

// Taxonomy errors
var (
	// ErrFileNotFound indicates a well-formed uid has no backing record.
	// It also satisfies errors.Is(err, fs.ErrNotExist).
	ErrFileNotFound error = &kindError{msg: "file not found", notFound: true}

	// ErrInvalidFileUIDFormat indicates a uid does not match the driver's identifier format
	ErrInvalidFileUIDFormat error = &kindError{msg: "invalid file uid format"}
)

// Errors outside the taxonomy
var (
	// ErrNotImplemented is returned by GetField/SetField for fields a backend does not support
	ErrNotImplemented = errors.New("field not implemented")

	// ErrEmptyPath indicates the extension was requested on a record with no path
	ErrEmptyPath = errors.New("file path is empty")

	// ErrInvalidDriver indicates the configured driver cannot be constructed.
	// It is a configuration error and is not meant to be handled per request.
	ErrInvalidDriver = errors.New("invalid driver")

	// ErrInvalidSource indicates an empty or unusable create source
	ErrInvalidSource = errors.New("invalid source")
)

type kindError struct {
	msg      string
	notFound bool
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Is(target error) bool {
	if target == ErrFile {
		return true
	}
	return e.notFound && target == fs.ErrNotExist
}

// IsFileError reports whether err belongs to the file error taxonomy
func IsFileError(err error) bool {
	return errors.Is(err, ErrFile)
}

// UIDError represents a failed operation on a specific uid
type UIDError struct {
	UID string
	Op  string
	Err error
}

func (e *UIDError) Error() string {
	return fmt.Sprintf("file operation %s failed for uid %q: %v", e.Op, e.UID, e.Err)
}

func (e *UIDError) Unwrap() error {
	return e.Err
}

// SizeLimitError is returned by Create when the ingested payload exceeds the
// configured upload ceiling.
type SizeLimitError struct {
	// Size is how many bytes were read before ingestion stopped, a lower
	// bound of the payload size; zero when unknown.
	Size    int64
	Limit   int64
	LimitMB float64
}

func (e *SizeLimitError) Error() string {
	if e.Size <= 0 {
		return fmt.Sprintf("file exceeds %g MB (%s)", e.LimitMB, humanize.IBytes(uint64(e.Limit)))
	}
	return fmt.Sprintf("file size of at least %s exceeds %g MB (%s)",
		humanize.IBytes(uint64(e.Size)), e.LimitMB, humanize.IBytes(uint64(e.Limit)))
}

// FetchError is returned when a remote source answers with a non-success status
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}
