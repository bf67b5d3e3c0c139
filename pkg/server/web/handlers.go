package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/rs/zerolog/log"
)

// Handler is a function type that handles an HTTP request against the webmail controller.
type Handler func(http.ResponseWriter, *http.Request, *Context) error

// Error is returned by handlers to respond with a specific status and message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// NewError creates an Error; an empty message defaults to the status text.
func NewError(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Status: status, Message: message}
}

// ServeHTTP builds the context and passes onto the real handler.
func (h Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := NewContext(req)

	// Run the handler, grab the error, and report it.
	err := h(w, req, ctx)
	if err == nil {
		return
	}

	status, message := http.StatusInternalServerError, err.Error()
	var herr *Error
	if errors.As(err, &herr) {
		status, message = herr.Status, herr.Message
	}
	logger := log.With().Str("module", "web").Str("path", req.RequestURI).Int("status", status).
		Err(err).Logger()
	if status >= 500 {
		logger.Error().Msg("Error handling request")
	} else {
		logger.Debug().Msg("Request rejected")
	}

	if ctx.IsJSON {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = RenderJSON(w, &model.JSONErrorV1{Error: message})
		return
	}
	http.Error(w, message, status)
}

// fileHandler creates a handler that sends the named file regardless of the requested URL.
func fileHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		f, err := os.Open(name)
		if err != nil {
			log.Error().Str("module", "web").Str("path", req.RequestURI).Str("file", name).Err(err).
				Msg("Error opening file")
			http.Error(w, "Error opening file", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		d, err := f.Stat()
		if err != nil {
			log.Error().Str("module", "web").Str("path", req.RequestURI).Str("file", name).Err(err).
				Msg("Error stating file")
			http.Error(w, "Error opening file", http.StatusInternalServerError)
			return
		}
		// The UI must not be framed by other sites.
		w.Header().Set("X-Frame-Options", "SameOrigin")
		http.ServeContent(w, req, d.Name(), d.ModTime(), f)
	})
}

// noMatchHandler creates a handler to log requests that Gorilla mux is unable to route,
// returning specified statusCode to the client.
func noMatchHandler(statusCode int, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.Warn().Str("module", "web").Str("remote", req.RemoteAddr).Str("proto", req.Proto).
			Str("method", req.Method).Str("path", req.RequestURI).Msg(message)
		w.WriteHeader(statusCode)
	})
}

// requestLoggingWrapper returns middleware that logs client requests.
func requestLoggingWrapper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.Debug().Str("module", "web").Str("remote", req.RemoteAddr).Str("proto", req.Proto).
			Str("method", req.Method).Str("path", req.RequestURI).Msg("Request")
		next.ServeHTTP(w, req)
	})
}
