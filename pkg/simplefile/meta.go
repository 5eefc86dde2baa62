package simplefile

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/tendant/simple-file/pkg/simplefile/imageinfo"
	"github.com/tendant/simple-file/pkg/simplefile/objectkey"
)

// NewMeta builds the metadata of a file being created from localPath. Image
// MIME types produce KindImage metadata with dimensions and EXIF probed from
// the file. Path and StoragePath are left for the driver.
func NewMeta(uid, localPath, mime string, params CreateParams) (Meta, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	m := Meta{
		UID:         uid,
		Type:        KindForMime(mime),
		Name:        params.Name,
		Description: params.Description,
		Mime:        mime,
		Length:      info.Size(),
		CreatedAt:   time.Now().UTC(),
	}

	if m.Type == KindImage {
		img, err := imageinfo.Probe(localPath)
		if err != nil {
			return Meta{}, fmt.Errorf("failed to probe image %s: %w", localPath, err)
		}
		m.Width, m.Height, m.Exif = img.Width, img.Height, img.Exif
	}

	return m, nil
}

// LogicalPath returns the storage-relative path for a new file. A clean,
// relative proposed path is used as is; otherwise the key generator lays the
// path out from the uid, name, MIME type and creation time.
func (p CreateParams) LogicalPath(uid, mime string, now time.Time) string {
	if proposed := cleanProposed(p.ProposedPath); proposed != "" {
		return proposed
	}

	gen := p.KeyGenerator
	if gen == nil {
		gen = objectkey.NewDatedGenerator()
	}
	return gen.GenerateKey(objectkey.KeyMetadata{
		UID:         uid,
		FileName:    p.Name,
		ContentType: mime,
		CreatedAt:   now,
	})
}

func cleanProposed(p string) string {
	if strings.TrimSpace(p) == "" {
		return ""
	}
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." || strings.HasSuffix(p, "/") {
		return ""
	}
	return p
}

// DecodeOptions decodes backend options into a typed struct. Unknown keys
// are rejected; strings are converted to durations and numbers.
func DecodeOptions(options map[string]any, out any) error {
	if len(options) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("invalid driver options: %w", err)
	}
	return nil
}
