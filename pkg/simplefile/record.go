package simplefile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tendant/simple-file/pkg/simplefile/objectkey"
	"github.com/tendant/simple-file/pkg/simplefile/urlstrategy"
)

// DownloadRoute is the route name used to build record URLs
const DownloadRoute = "file@download"

// Record is a file record returned by the service: either a *File or an
// *Image, distinguished by Kind.
type Record interface {
	Kind() Kind
	Base() *File
	AsJSONable() (map[string]any, error)

	record()
}

var (
	_ Record = (*File)(nil)
	_ Record = (*Image)(nil)
)

// AsImage returns the image variant of r, if it is one
func AsImage(r Record) (*Image, bool) {
	if r == nil || r.Kind() != KindImage {
		return nil, false
	}
	img, ok := r.(*Image)
	return img, ok
}

// Wrap builds the record variant matching the handle's kind
func Wrap(h Handle, links Linker) Record {
	f := &File{handle: h, links: links}
	if h.Kind() == KindImage {
		return &Image{File: f}
	}
	return f
}

// jsonFields are the keys of the client-facing view, in order
var jsonFields = []Field{FieldUID, FieldName, FieldDescription, FieldMime, FieldLength, FieldURL, FieldThumbURL}

// File layers the backend-independent computed fields on top of a driver
// handle.
type File struct {
	handle Handle
	links  Linker
}

func (f *File) record() {}

// Kind reports KindFile
func (f *File) Kind() Kind {
	return KindFile
}

// Base returns the file view of the record; for an *Image it is the
// embedded *File.
func (f *File) Base() *File {
	return f
}

// Handle returns the underlying driver handle
func (f *File) Handle() Handle {
	return f.handle
}

// GetField resolves url and thumb_url itself and delegates every other field
// to the driver handle.
func (f *File) GetField(field Field) (any, error) {
	switch field {
	case FieldURL:
		return f.URL()
	case FieldThumbURL:
		return f.ThumbURL()
	}
	return f.handle.GetField(field)
}

// SetField updates a field on the handle. Setting the uid is a programming
// error and panics.
func (f *File) SetField(field Field, value any) error {
	switch field {
	case FieldUID:
		panic("simplefile: field \"uid\" is read-only")
	case FieldURL, FieldThumbURL:
		return fmt.Errorf("field %q is computed", field)
	}
	return f.handle.SetField(field, value)
}

func (f *File) str(field Field) string {
	v, err := f.handle.GetField(field)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// UID returns the immutable record identifier
func (f *File) UID() string { return f.str(FieldUID) }

func (f *File) Name() string        { return f.str(FieldName) }
func (f *File) Description() string { return f.str(FieldDescription) }
func (f *File) Mime() string        { return f.str(FieldMime) }
func (f *File) Path() string        { return f.str(FieldPath) }

// StoragePath is the backend-specific physical location. It is meant for the
// download handler only and is not part of AsJSONable.
func (f *File) StoragePath() string { return f.str(FieldStoragePath) }

// Length returns the size in bytes
func (f *File) Length() int64 {
	v, err := f.handle.GetField(FieldLength)
	if err != nil {
		return 0
	}
	n, _ := toInt64(FieldLength, v)
	return n
}

func (f *File) SetName(v string) error        { return f.handle.SetField(FieldName, v) }
func (f *File) SetDescription(v string) error { return f.handle.SetField(FieldDescription, v) }
func (f *File) SetMime(v string) error        { return f.handle.SetField(FieldMime, v) }
func (f *File) SetPath(v string) error        { return f.handle.SetField(FieldPath, v) }
func (f *File) SetLength(v int64) error       { return f.handle.SetField(FieldLength, v) }

// Ext returns the extension of Path including its leading dot
func (f *File) Ext() (string, error) {
	p := f.Path()
	if p == "" {
		return "", ErrEmptyPath
	}
	return objectkey.Ext(p), nil
}

// URL returns the public download URL of the record
func (f *File) URL() (string, error) {
	return f.urlWith(0, 0)
}

func (f *File) urlWith(width, height int) (string, error) {
	if f.links == nil {
		return "", ErrNotImplemented
	}
	return f.links.DownloadURL(context.Background(), urlstrategy.Target{
		UID:         f.UID(),
		Path:        f.Path(),
		StoragePath: f.StoragePath(),
		FileName:    f.Name(),
		ContentType: f.Mime(),
		Width:       width,
		Height:      height,
	})
}

// ThumbURL returns the icon URL for the record's extension
func (f *File) ThumbURL() (string, error) {
	if f.links == nil {
		return "", ErrNotImplemented
	}
	ext, err := f.Ext()
	if err != nil {
		return "", err
	}
	return f.links.AssetURL(ThumbAssetPath(ThumbName(ext))), nil
}

// Save persists pending field changes
func (f *File) Save(ctx context.Context) error {
	return f.handle.Save(ctx)
}

// Delete removes the record and its bytes from the backend
func (f *File) Delete(ctx context.Context) error {
	return f.handle.Delete(ctx)
}

// Open streams the stored bytes
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	return f.handle.Open(ctx)
}

// AsJSONable returns the client-facing view. Fields the backend does not
// implement are omitted.
func (f *File) AsJSONable() (map[string]any, error) {
	r := make(map[string]any, len(jsonFields))
	for _, field := range jsonFields {
		v, err := f.GetField(field)
		if errors.Is(err, ErrNotImplemented) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		r[string(field)] = v
	}
	return r, nil
}

