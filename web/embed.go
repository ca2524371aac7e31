// Package web embeds the chat widget (static/) and serves it over HTTP.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// FS returns the widget assets rooted at static/.
func FS() fs.FS {
	subFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return subFS
}

// Handler serves the embedded assets. "/" resolves to index.html.
func Handler() http.Handler {
	return http.FileServer(http.FS(FS()))
}
