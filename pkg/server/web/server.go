// Package web provides the plumbing for the local webmail UI and JSON API.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/msghub"
	"github.com/artistmail/webmail/pkg/site"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

var (
	// Services made available to handlers through Context.
	rootConfig *config.Root
	controller *webmail.Controller
	msgHub     *msghub.Hub
	counter    *site.Counter
	feed       *site.Feed
	contact    *site.Contact

	// Router sends incoming requests to the correct handler function.
	Router = mux.NewRouter()
)

// Server serves the local UI and API.
type Server struct {
	http     *http.Server
	listener net.Listener
	notify   chan error
}

// Initialize sets up the services used by handlers.  It is also used by tests that route
// requests without starting a Server.
func Initialize(
	conf *config.Root,
	ctrl *webmail.Controller,
	hub *msghub.Hub,
	siteCounter *site.Counter,
	siteFeed *site.Feed,
	siteContact *site.Contact,
) {
	rootConfig = conf
	controller = ctrl
	msgHub = hub
	counter = siteCounter
	feed = siteFeed
	contact = siteContact
}

// NewServer initializes handler services and mounts the static UI on the Router.
func NewServer(
	conf *config.Root,
	ctrl *webmail.Controller,
	hub *msghub.Hub,
	siteCounter *site.Counter,
	siteFeed *site.Feed,
	siteContact *site.Contact,
) *Server {
	Initialize(conf, ctrl, hub, siteCounter, siteFeed, siteContact)

	// Static UI, every unknown path under / renders the single page index.
	uiDir := conf.Web.UIDir
	log.Info().Str("module", "web").Str("path", uiDir).Msg("Web UI content mapped")
	Router.PathPrefix("/static/").Handler(http.StripPrefix("/static/",
		http.FileServer(http.Dir(filepath.Join(uiDir, "static")))))
	Router.Path("/favicon.ico").Handler(fileHandler(filepath.Join(uiDir, "favicon.ico")))
	Router.PathPrefix("/api/").Handler(noMatchHandler(http.StatusNotFound, "No API route matched"))
	Router.PathPrefix("/").Handler(fileHandler(filepath.Join(uiDir, "index.html")))
	Router.NotFoundHandler = noMatchHandler(http.StatusNotFound, "No route matches URI path")
	Router.MethodNotAllowedHandler = noMatchHandler(http.StatusMethodNotAllowed,
		"Method not allowed for URI path")

	return &Server{
		http: &http.Server{
			Addr:         conf.Web.Addr,
			Handler:      requestLoggingWrapper(Router),
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		notify: make(chan error, 1),
	}
}

// Start begins listening for HTTP requests.  readyFunc is called once the listener is open.
// Start returns when ctx is done or the server fails; failures are reported on Notify.
func (s *Server) Start(ctx context.Context, readyFunc func()) {
	slog := log.With().Str("module", "web").Str("phase", "startup").Str("addr", s.http.Addr).
		Logger()

	var err error
	s.listener, err = net.Listen("tcp", s.http.Addr)
	if err != nil {
		slog.Error().Err(err).Msg("HTTP failed to start TCP listener")
		s.notify <- err
		close(s.notify)
		return
	}
	slog.Info().Msg("HTTP listening on TCP")
	readyFunc()

	// Listener go routine.
	go s.serve(ctx)

	// Wait for shutdown.
	<-ctx.Done()
	log.Debug().Str("module", "web").Str("phase", "shutdown").Msg("HTTP server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		log.Error().Str("module", "web").Str("phase", "shutdown").Err(err).
			Msg("HTTP server did not shut down cleanly")
	}
}

// Addr returns the address being listened on, once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.http.Addr
	}
	return s.listener.Addr().String()
}

// Notify allows the running server to report a fatal error.
func (s *Server) Notify() <-chan error {
	return s.notify
}

// serve begins serving HTTP requests.
func (s *Server) serve(ctx context.Context) {
	// Serve blocks until the server is shut down.
	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
		return
	}
	log.Error().Str("module", "web").Err(err).Msg("HTTP server failed")
	s.notify <- err
	close(s.notify)
}
