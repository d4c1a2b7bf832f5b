// Package httphost is the concrete host adapter that plugs a Controller
// into a real net/http server: a chi router dispatches the install and
// activate lifecycle events from operator-triggered endpoints, and
// serves every other request through Controller.Fetch, falling back to
// proxying straight to the fetcher when the worker has nothing cached
// for it.
//
// No package in this module other than cmd/ngswd imports httphost —
// the same boundary the teacher keeps between always-cache's core and
// its cmd/always-cache entrypoint.
package httphost

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ngsw-go/ngsw"
	"github.com/ngsw-go/ngsw/netfetch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Server is the HTTP-facing host for a Controller.
type Server struct {
	controller *ngsw.Controller
	fetcher    netfetch.Fetcher
	log        zerolog.Logger
	router     chi.Router
}

// New builds a Server. fetcher is used to proxy requests the worker
// declines to serve (Fetch returning a nil response) straight to the
// origin, the same passthrough role always-cache's reverse proxy plays
// when nothing in cache satisfies a request.
func New(controller *ngsw.Controller, fetcher netfetch.Fetcher, log zerolog.Logger) *Server {
	s := &Server{controller: controller, fetcher: fetcher, log: log}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(log))
	r.Use(middleware.Recoverer)
	r.Post("/__lifecycle/install", s.handleInstall)
	r.Post("/__lifecycle/activate", s.handleActivate)
	r.NotFound(s.handleFetch)
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Install(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("ngsw: install failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Activate(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("ngsw: activate failed")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	res, err := s.controller.Fetch(r.Context(), r)
	if err != nil {
		s.log.Error().Err(err).Msg("ngsw: fetch failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if res == nil {
		s.passthrough(w, r)
		return
	}
	defer res.Body.Close()
	copyResponse(w, res)
}

// passthrough forwards a request the worker has nothing cached for
// straight to the network fetcher, matching a service worker that
// simply lets an unhandled fetch event fall through to the browser's
// own request.
func (s *Server) passthrough(w http.ResponseWriter, r *http.Request) {
	res, err := s.fetcher.Request(r.Context(), r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	copyResponse(w, res)
}

func copyResponse(w http.ResponseWriter, res *http.Response) {
	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(res.StatusCode)
	_, _ = io.Copy(w, res.Body)
}
