package luahost

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/extension"
	"github.com/artistmail/webmail/pkg/extension/event"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const listenerName = "lua"

// Host of Lua extensions.
type Host struct {
	Functions []string // Functions detected in lua script.
	extHost   *extension.Host
	pool      *statePool
	logger    zerolog.Logger
}

// New constructs a new Lua Host, pre-compiling the source.  Returns a nil Host without error
// when no script is configured or the script file does not exist.
func New(conf config.Lua, extHost *extension.Host) (*Host, error) {
	scriptPath := conf.Path
	if scriptPath == "" {
		return nil, nil
	}

	logger := log.With().Str("module", "lua").Logger()
	startLog := logger.With().Str("phase", "startup").Str("path", scriptPath).Logger()

	// Pre-load, parse, and compile script.
	if fi, err := os.Stat(scriptPath); err != nil {
		startLog.Info().Msg("Script file not found")
		return nil, nil
	} else if fi.IsDir() {
		return nil, fmt.Errorf("lua script %v is a directory", scriptPath)
	}

	startLog.Info().Msg("Loading script")
	file, err := os.Open(scriptPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return NewFromReader(logger, extHost, bufio.NewReader(file), scriptPath)
}

// NewFromReader constructs a new Lua Host, loading Lua source from the provided reader.
// The provided path is used in logging and error messages.
func NewFromReader(logger zerolog.Logger, extHost *extension.Host, r io.Reader, path string) (
	*Host, error) {
	// Pre-parse, and compile script.
	chunk, err := parse.Parse(r, path)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, err
	}

	// Build the pool and confirm LState is retrievable.
	pool := newStatePool(logger, proto)
	h := &Host{
		extHost: extHost,
		pool:    pool,
		logger:  logger.With().Str("path", path).Logger(),
	}
	ls, err := pool.getState()
	if err != nil {
		return nil, err
	}
	h.wireFunctions(ls)
	pool.putState(ls)

	return h, nil
}

// CreateChannel creates a channel and places it into the named global variable
// in newly created LStates.
func (h *Host) CreateChannel(name string) chan lua.LValue {
	return h.pool.createChannel(name)
}

// Close unregisters the script's listeners and releases pooled LStates.
func (h *Host) Close() {
	events := h.extHost.Events
	events.AfterMailboxLoaded.RemoveListener(listenerName)
	events.AfterMessageUpdated.RemoveListener(listenerName)
	events.AfterMessageSent.RemoveListener(listenerName)
	events.AfterNotice.RemoveListener(listenerName)
	events.AfterSessionChanged.RemoveListener(listenerName)
	events.BeforeMessageSent.RemoveListener(listenerName)
	h.pool.close()
}

// Detects functions registered by the script on the webmail global, and subscribes the matching
// extension events.
func (h *Host) wireFunctions(ls *lua.LState) {
	wm, err := getWebmail(ls)
	if err != nil {
		h.logger.Error().Str("phase", "startup").Err(err).Msg("Failed to find webmail global")
		return
	}

	events := h.extHost.Events
	detected := func(name string, f *lua.LFunction) bool {
		if f == nil {
			return false
		}
		h.Functions = append(h.Functions, name)
		return true
	}

	if detected("after.mailbox_loaded", wm.After.MailboxLoaded) {
		events.AfterMailboxLoaded.AddListener(listenerName, h.handleAfterMailboxLoaded)
	}
	if detected("after.message_updated", wm.After.MessageUpdated) {
		events.AfterMessageUpdated.AddListener(listenerName, h.handleAfterMessageUpdated)
	}
	if detected("after.message_sent", wm.After.MessageSent) {
		events.AfterMessageSent.AddListener(listenerName, h.handleAfterMessageSent)
	}
	if detected("after.notice", wm.After.Notice) {
		events.AfterNotice.AddListener(listenerName, h.handleAfterNotice)
	}
	if detected("after.session_changed", wm.After.SessionChanged) {
		events.AfterSessionChanged.AddListener(listenerName, h.handleAfterSessionChanged)
	}
	if detected("before.message_sent", wm.Before.MessageSent) {
		events.BeforeMessageSent.AddListener(listenerName, h.handleBeforeMessageSent)
	}

	h.logger.Info().Str("phase", "startup").Strs("functions", h.Functions).
		Msg("Wired script functions")
}

func (h *Host) handleAfterMailboxLoaded(ev event.MailboxListing) {
	h.callAfter("after.mailbox_loaded",
		func(wm *Webmail) *lua.LFunction { return wm.After.MailboxLoaded },
		func(ls *lua.LState) lua.LValue { return wrapMailboxListing(ls, &ev) })
}

func (h *Host) handleAfterMessageUpdated(ev event.MessageFlags) {
	h.callAfter("after.message_updated",
		func(wm *Webmail) *lua.LFunction { return wm.After.MessageUpdated },
		func(ls *lua.LState) lua.LValue { return messageFlagsTable(ls, &ev) })
}

func (h *Host) handleAfterMessageSent(ev event.OutboundMessage) {
	h.callAfter("after.message_sent",
		func(wm *Webmail) *lua.LFunction { return wm.After.MessageSent },
		func(ls *lua.LState) lua.LValue { return wrapOutboundMessage(ls, &ev) })
}

func (h *Host) handleAfterNotice(ev event.Notice) {
	h.callAfter("after.notice",
		func(wm *Webmail) *lua.LFunction { return wm.After.Notice },
		func(ls *lua.LState) lua.LValue { return noticeTable(ls, &ev) })
}

func (h *Host) handleAfterSessionChanged(ev event.SessionChange) {
	h.callAfter("after.session_changed",
		func(wm *Webmail) *lua.LFunction { return wm.After.SessionChanged },
		func(ls *lua.LState) lua.LValue { return sessionTable(ls, &ev) })
}

func (h *Host) handleBeforeMessageSent(ev event.OutboundMessage) *event.OutboundMessage {
	logger, ls, wm, ok := h.prepareFuncCall("before.message_sent")
	if !ok {
		return nil
	}
	defer h.pool.putState(ls)

	err := ls.CallByParam(
		lua.P{Fn: wm.Before.MessageSent, NRet: 1, Protect: true},
		wrapOutboundMessage(ls, &ev))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
		return nil
	}

	lval := ls.Get(1)
	ls.Pop(1)
	if lua.LVIsFalse(lval) {
		return nil
	}

	ud, ok := lval.(*lua.LUserData)
	if !ok {
		logger.Error().Str("type", lval.Type().String()).
			Msg("Incorrect return value type, wanted outbound_message")
		return nil
	}
	result, ok := ud.Value.(*event.OutboundMessage)
	if !ok {
		logger.Error().Msg("Incorrect return value type, wanted outbound_message")
		return nil
	}

	return result
}

// Calls the after-event function selected by fn, passing the single argument built by arg.
func (h *Host) callAfter(
	funcName string,
	fn func(*Webmail) *lua.LFunction,
	arg func(*lua.LState) lua.LValue,
) {
	logger, ls, wm, ok := h.prepareFuncCall(funcName)
	if !ok {
		return
	}
	defer h.pool.putState(ls)

	err := ls.CallByParam(lua.P{Fn: fn(wm), NRet: 0, Protect: true}, arg(ls))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
	}
}

// Common preparation for calling Lua functions.
func (h *Host) prepareFuncCall(funcName string) (
	logger zerolog.Logger, ls *lua.LState, wm *Webmail, ok bool) {
	logger = h.logger.With().Str("event", funcName).Logger()

	ls, err := h.pool.getState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Lua state instance from pool")
		return logger, nil, nil, false
	}

	wm, err = getWebmail(ls)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to obtain Lua webmail object")
		h.pool.putState(ls)
		return logger, nil, nil, false
	}

	return logger, ls, wm, true
}
