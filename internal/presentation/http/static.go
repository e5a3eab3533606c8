package http

import (
	"bytes"
	"embed"
	"io/fs"
	stdhttp "net/http"
	"time"

	"github.com/rotisserie/eris"
)

//go:embed static/*
var staticFiles embed.FS

var favicon []byte

func init() {
	data, err := staticFiles.ReadFile("static/favicon.ico")
	if err != nil {
		return
	}
	favicon = data
}

func faviconHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if len(favicon) == 0 {
		w.WriteHeader(stdhttp.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/x-icon")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	stdhttp.ServeContent(w, r, "favicon.ico", time.Time{}, bytes.NewReader(favicon))
}

func newStaticAssetHandler() (stdhttp.Handler, error) {
	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, eris.Wrap(err, "preparing static assets filesystem")
	}

	files := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.FS(assets)))
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	}), nil
}

func (s *Server) registerStaticRoute() {
	handler, err := newStaticAssetHandler()
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Error("registering static assets handler failed")
		}
		return
	}

	s.mux.Handle("GET /static/", handler)
	s.mux.Handle("HEAD /static/", handler)
}
