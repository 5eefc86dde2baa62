// Package imageinfo extracts dimensions and EXIF tags from image files.
package imageinfo

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Info describes an image. Zero dimensions mean the format could not be decoded.
type Info struct {
	Width  int
	Height int
	Exif   map[string]any
}

// Probe reads the image at path. Undecodable images and missing EXIF data
// are not errors; only failing to open or read the file is.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	return ProbeReader(f)
}

// ProbeReader is Probe over an open reader
func ProbeReader(r io.ReadSeeker) (Info, error) {
	info := Info{Exif: map[string]any{}}

	if cfg, _, err := image.DecodeConfig(r); err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return info, err
	}
	if x, err := exif.Decode(r); err == nil {
		_ = x.Walk(exifWalker(info.Exif))
	}

	return info, nil
}

type exifWalker map[string]any

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			w[string(name)] = s
			return nil
		}
	}
	w[string(name)] = tag.String()
	return nil
}
