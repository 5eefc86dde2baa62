package simplefile

import "strings"

// thumbNames is the whitelist of icon basenames under file/thumbs/
var thumbNames = map[string]struct{}{
	"ai": {}, "avi": {}, "css": {}, "csv": {}, "dbf": {}, "doc": {}, "dwg": {}, "exe": {}, "file": {},
	"fla": {}, "html": {}, "iso": {}, "jpg": {}, "json": {}, "js": {}, "mp3": {}, "mp4": {}, "pdf": {},
	"png": {}, "ppt": {}, "psd": {}, "rtf": {}, "svg": {}, "txt": {}, "xls": {}, "xml": {}, "zip": {},
}

// thumbAliases maps extensions onto the icon that represents them
var thumbAliases = map[string]string{
	"htm":  "html",
	"jpe":  "jpg",
	"jpeg": "jpg",
	"jif":  "jpg",
	"jfif": "jpg",
	"jfi":  "jpg",
	"jp2":  "jpg",
	"j2k":  "jpg",
	"jpf":  "jpg",
	"jpx":  "jpg",
	"jpm":  "jpg",
	"mj2":  "jpg",
	"docx": "doc",
	"odt":  "doc",
	"xlsx": "xls",
	"ods":  "xls",
}

// DefaultThumb is the icon used for unrecognized extensions
const DefaultThumb = "file"

// ThumbName returns the icon basename for a file extension. The extension is
// matched case-insensitively with or without its leading dot.
func ThumbName(ext string) string {
	ext = strings.ToLower(strings.ReplaceAll(ext, ".", ""))
	if alias, ok := thumbAliases[ext]; ok {
		ext = alias
	}
	if _, ok := thumbNames[ext]; ok {
		return ext
	}
	return DefaultThumb
}

// ThumbNames returns every icon basename, including DefaultThumb
func ThumbNames() []string {
	names := make([]string, 0, len(thumbNames))
	for name := range thumbNames {
		names = append(names, name)
	}
	return names
}

// ThumbAssetPath returns the asset path of an icon basename
func ThumbAssetPath(name string) string {
	return "file/thumbs/" + name + ".svg"
}
