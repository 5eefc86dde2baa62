package api

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed assets
var embedded embed.FS

// Assets returns the bundled static files, rooted so that the icon of name
// is at simplefile.ThumbAssetPath(name)
func Assets() fs.FS {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// AssetsHandler serves Assets under prefix, which must match the linker's asset base
func AssetsHandler(prefix string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(http.FS(Assets())))
}
