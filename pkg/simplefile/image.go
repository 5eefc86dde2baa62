package simplefile

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// resizableMimes are the image formats the download handler can scale
var resizableMimes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// Resizable reports whether downloads of mime honour width and height
func Resizable(mime string) bool {
	return resizableMimes[BaseMime(mime)]
}

// Image is a record whose backend detected image content
type Image struct {
	*File
}

// Kind reports KindImage
func (i *Image) Kind() Kind {
	return KindImage
}

func (i *Image) intField(field Field) int {
	v, err := i.handle.GetField(field)
	if err != nil {
		return 0
	}
	n, _ := toInt64(field, v)
	return int(n)
}

// Width returns the width in pixels; zero means unknown
func (i *Image) Width() int { return i.intField(FieldWidth) }

// Height returns the height in pixels; zero means unknown
func (i *Image) Height() int { return i.intField(FieldHeight) }

// Exif returns the EXIF tags extracted at creation
func (i *Image) Exif() map[string]any {
	v, err := i.handle.GetField(FieldExif)
	if err != nil {
		return map[string]any{}
	}
	m, _ := v.(map[string]any)
	return m
}

func (i *Image) SetWidth(v int) error            { return i.handle.SetField(FieldWidth, v) }
func (i *Image) SetHeight(v int) error           { return i.handle.SetField(FieldHeight, v) }
func (i *Image) SetExif(v map[string]any) error { return i.handle.SetField(FieldExif, v) }

// AsJSONable returns the file view plus width and height
func (i *Image) AsJSONable() (map[string]any, error) {
	r, err := i.File.AsJSONable()
	if err != nil {
		return nil, err
	}
	r[string(FieldWidth)] = i.Width()
	r[string(FieldHeight)] = i.Height()
	return r, nil
}

// HTMLOptions configures Image.HTML
type HTMLOptions struct {
	Alt    string
	CSS    string
	Width  int
	Height int

	// NoEnlarge caps Width and Height at the image's own dimensions
	NoEnlarge bool
}

// HTML returns an <img> tag for the image. Width and height are only added
// to the URL for formats that can be resized.
func (i *Image) HTML(opts HTMLOptions) (string, error) {
	width, height := opts.Width, opts.Height
	if !Resizable(i.Mime()) {
		width, height = 0, 0
	}
	if opts.NoEnlarge {
		if width > 0 && width > i.Width() {
			width = i.Width()
		}
		if height > 0 && height > i.Height() {
			height = i.Height()
		}
	}

	src, err := i.urlWith(width, height)
	if err != nil {
		return "", err
	}

	css := strings.TrimSpace(opts.CSS + " img-responsive")

	return fmt.Sprintf(`<img src="%s" class="%s" alt="%s">`,
		html.EscapeString(src), html.EscapeString(css), html.EscapeString(opts.Alt)), nil
}

// ResponsiveHTMLOptions configures Image.ResponsiveHTML
type ResponsiveHTMLOptions struct {
	Alt string
	CSS string

	// AspectRatio is rendered empty when zero
	AspectRatio float64
	NoEnlarge   bool
}

// ResponsiveHTML returns a placeholder element carrying the data attributes
// used by the client-side responsive image loader.
func (i *Image) ResponsiveHTML(opts ResponsiveHTMLOptions) (string, error) {
	src, err := i.URL()
	if err != nil {
		return "", err
	}

	css := strings.TrimSpace(opts.CSS + " img-responsive img-fluid simplefile-img")

	ratio := ""
	if opts.AspectRatio != 0 {
		ratio = strconv.FormatFloat(opts.AspectRatio, 'g', -1, 64)
	}

	return fmt.Sprintf(`<span class="%s" data-url="%s" data-alt="%s" data-aspect-ratio="%s" `+
		`data-width="%d" data-height="%d" data-enlarge="%t"></span>`,
		html.EscapeString(css), html.EscapeString(src), html.EscapeString(opts.Alt), ratio,
		i.Width(), i.Height(), !opts.NoEnlarge), nil
}
