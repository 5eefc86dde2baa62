package simplefile

import (
	"fmt"
	"strings"
	"time"
)

// Field identifies a record field
type Field string

// Persisted fields
const (
	FieldUID         Field = "uid"
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldMime        Field = "mime"
	FieldLength      Field = "length"
	FieldPath        Field = "path"
	FieldStoragePath Field = "storage_path"
	FieldWidth       Field = "width"
	FieldHeight      Field = "height"
	FieldExif        Field = "exif"
)

// Computed fields, resolved by File rather than by backends
const (
	FieldURL      Field = "url"
	FieldThumbURL Field = "thumb_url"
)

// Kind tags the concrete record variant a driver produced
type Kind string

const (
	KindFile  Kind = "file"
	KindImage Kind = "image"
)

// KindForMime returns KindImage for image/* MIME types and KindFile otherwise
func KindForMime(mime string) Kind {
	if strings.HasPrefix(mime, "image/") {
		return KindImage
	}
	return KindFile
}

// Meta is the plain field set shared by the bundled drivers. Drivers embed it
// in their handles and persist it however their backend requires; its
// GetField/SetField switch is the field accessor the core calls into.
type Meta struct {
	UID         string         `json:"uid"`
	Type        Kind           `json:"kind"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Mime        string         `json:"mime"`
	Length      int64          `json:"length"`
	Path        string         `json:"path"`
	StoragePath string         `json:"storage_path"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
	Exif        map[string]any `json:"exif,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Kind returns the record variant
func (m *Meta) Kind() Kind {
	if m.Type == "" {
		return KindFile
	}
	return m.Type
}

// GetField returns the value of a persisted field. Image-only fields and
// computed fields report ErrNotImplemented.
func (m *Meta) GetField(f Field) (any, error) {
	switch f {
	case FieldUID:
		return m.UID, nil
	case FieldName:
		return m.Name, nil
	case FieldDescription:
		return m.Description, nil
	case FieldMime:
		return m.Mime, nil
	case FieldLength:
		return m.Length, nil
	case FieldPath:
		return m.Path, nil
	case FieldStoragePath:
		return m.StoragePath, nil
	}

	if m.Kind() == KindImage {
		switch f {
		case FieldWidth:
			return m.Width, nil
		case FieldHeight:
			return m.Height, nil
		case FieldExif:
			if m.Exif == nil {
				return map[string]any{}, nil
			}
			return m.Exif, nil
		}
	}

	return nil, ErrNotImplemented
}

// SetField updates a persisted field in memory. The uid cannot be changed.
func (m *Meta) SetField(f Field, value any) error {
	switch f {
	case FieldUID:
		return fmt.Errorf("field %q is read-only", f)
	case FieldName:
		return setString(&m.Name, f, value)
	case FieldDescription:
		return setString(&m.Description, f, value)
	case FieldMime:
		return setString(&m.Mime, f, value)
	case FieldPath:
		return setString(&m.Path, f, value)
	case FieldStoragePath:
		return setString(&m.StoragePath, f, value)
	case FieldLength:
		n, err := toInt64(f, value)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("field %q must not be negative", f)
		}
		m.Length = n
		return nil
	}

	if m.Kind() == KindImage {
		switch f {
		case FieldWidth, FieldHeight:
			n, err := toInt64(f, value)
			if err != nil {
				return err
			}
			if n < 0 {
				return fmt.Errorf("field %q must not be negative", f)
			}
			if f == FieldWidth {
				m.Width = int(n)
			} else {
				m.Height = int(n)
			}
			return nil
		case FieldExif:
			exif, ok := value.(map[string]any)
			if !ok && value != nil {
				return fmt.Errorf("field %q: unexpected type %T", f, value)
			}
			m.Exif = exif
			return nil
		}
	}

	return ErrNotImplemented
}

func setString(dst *string, f Field, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("field %q: unexpected type %T", f, value)
	}
	*dst = s
	return nil
}

func toInt64(f Field, value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	}
	return 0, fmt.Errorf("field %q: unexpected type %T", f, value)
}
