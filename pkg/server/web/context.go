package web

import (
	"net/http"
	"strings"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/msghub"
	"github.com/artistmail/webmail/pkg/site"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/gorilla/mux"
)

// Context is passed into every request handler function.
type Context struct {
	Vars       map[string]string
	Controller *webmail.Controller
	MsgHub     *msghub.Hub
	Counter    *site.Counter
	Feed       *site.Feed
	Contact    *site.Contact
	RootConfig *config.Root
	IsJSON     bool
}

// headerMatch returns true if the request header specified by name contains the specified
// value.  Case and media type parameters are ignored.
func headerMatch(req *http.Request, name string, value string) bool {
	value = strings.ToLower(value)
	for _, hv := range req.Header.Values(name) {
		for _, part := range strings.Split(hv, ",") {
			mediaType, _, _ := strings.Cut(part, ";")
			if strings.TrimSpace(strings.ToLower(mediaType)) == value {
				return true
			}
		}
	}
	return false
}

// NewContext returns a Context for the given HTTP Request.
func NewContext(req *http.Request) *Context {
	return &Context{
		Vars:       mux.Vars(req),
		Controller: controller,
		MsgHub:     msgHub,
		Counter:    counter,
		Feed:       feed,
		Contact:    contact,
		RootConfig: rootConfig,
		IsJSON:     headerMatch(req, "Accept", "application/json"),
	}
}
