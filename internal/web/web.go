// Package web embeds the browser map UI.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

//go:embed static/*
var staticFS embed.FS

// Handler serves the embedded UI. Unknown paths fall back to index.html so
// client-side routes survive a reload.
func Handler() (http.Handler, error) {
	content, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, eris.Wrap(err, "web: load embedded static files")
	}
	return spaHandler{content: content, fileServer: http.FileServer(http.FS(content))}, nil
}

type spaHandler struct {
	content    fs.FS
	fileServer http.Handler
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}

	if info, err := fs.Stat(h.content, name); err != nil || info.IsDir() {
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/"
		w.Header().Set("Cache-Control", "no-cache")
		h.fileServer.ServeHTTP(w, r2)
		return
	}

	if name == "index.html" {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	h.fileServer.ServeHTTP(w, r)
}
