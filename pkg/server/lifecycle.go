package server

import (
	"context"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/extension"
	"github.com/artistmail/webmail/pkg/extension/luahost"
	"github.com/artistmail/webmail/pkg/msghub"
	"github.com/artistmail/webmail/pkg/rest"
	"github.com/artistmail/webmail/pkg/rest/client"
	"github.com/artistmail/webmail/pkg/server/web"
	"github.com/artistmail/webmail/pkg/session"
	"github.com/artistmail/webmail/pkg/site"
	"github.com/artistmail/webmail/pkg/webmail"
	"github.com/rs/zerolog/log"
)

// Services holds the configured and started services.
type Services struct {
	Controller *webmail.Controller
	ExtHost    *extension.Host
	LuaHost    *luahost.Host // nil when no script is loaded.
	MsgHub     *msghub.Hub
	WebServer  *web.Server
}

// Prod wires up the production webmail environment: the controller over the remote functions,
// its extensions, and the local web server.  The stored session, if any, is resumed.  Call
// Start to begin serving.
func Prod(rootCtx context.Context, conf *config.Root) (*Services, error) {
	store, err := session.FromConfig(conf.Session)
	if err != nil {
		return nil, err
	}
	api, err := client.New(conf.API)
	if err != nil {
		return nil, err
	}

	extHost := extension.NewHost()
	luaHost, err := luahost.New(conf.Lua, extHost)
	if err != nil {
		return nil, err
	}

	msgHub := msghub.New(conf.Web.MonitorHistory, extHost)
	go msgHub.Start(rootCtx)

	ctrl := webmail.New(api, store, extHost, conf.Sync)
	if err := ctrl.Resume(rootCtx); err != nil {
		log.Warn().Str("module", "webmail").Str("phase", "startup").Err(err).
			Msg("Stored session not resumed")
	}

	// API routes must precede the UI catch-all mounted by NewServer.
	rest.SetupRoutes(web.Router.PathPrefix("/api/").Subrouter())
	webServer := web.NewServer(conf, ctrl, msgHub, site.NewCounter(api), site.NewFeed(api, conf.Site),
		site.NewContact(api))

	return &Services{
		Controller: ctrl,
		ExtHost:    extHost,
		LuaHost:    luaHost,
		MsgHub:     msgHub,
		WebServer:  webServer,
	}, nil
}

// Start the web server.  readyFunc is called once the listener is open.  Blocks until ctx is
// done.
func (s *Services) Start(ctx context.Context, readyFunc func()) {
	s.WebServer.Start(ctx, readyFunc)
}

// Notify reports a fatal error from a running service.
func (s *Services) Notify() <-chan error {
	return s.WebServer.Notify()
}

// Drain waits for background confirmations and event deliveries, then releases extensions.
func (s *Services) Drain() {
	s.Controller.Sync()
	s.ExtHost.Wait()
	if s.LuaHost != nil {
		s.LuaHost.Close()
	}
}
