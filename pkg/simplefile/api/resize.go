package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

// DefaultMaxResizePixels bounds the bitmap decoded for a resized download
const DefaultMaxResizePixels = 25_000_000

var (
	errUnsupportedFormat = errors.New("image format cannot be resized")
	errTooManyPixels     = errors.New("image is too large to resize")
)

// resizeImage scales the encoded image in data to fit width and height. A
// zero dimension keeps the aspect ratio; images are never enlarged. The
// header is checked against maxPixels before the bitmap is decoded.
func resizeImage(data []byte, width, height, maxPixels int) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, "", errUnsupportedFormat
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d", errTooManyPixels, cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	if width > b.Dx() {
		width = b.Dx()
	}
	if height > b.Dy() {
		height = b.Dy()
	}
	dst := resize.Resize(uint(width), uint(height), src, resize.Lanczos3)

	var buf bytes.Buffer
	contentType := "image/" + format
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		contentType = "image/jpeg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), contentType, nil
}
