package luahost

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

const (
	webmailName       = "webmail"
	webmailAfterName  = "webmail_after"
	webmailBeforeName = "webmail_before"
)

// Webmail is the script visible `webmail` global, holding the functions registered for events.
type Webmail struct {
	After  WebmailAfterFuncs
	Before WebmailBeforeFuncs
}

// WebmailAfterFuncs holds functions called after state changes.
type WebmailAfterFuncs struct {
	MailboxLoaded  *lua.LFunction
	MessageUpdated *lua.LFunction
	MessageSent    *lua.LFunction
	Notice         *lua.LFunction
	SessionChanged *lua.LFunction
}

// WebmailBeforeFuncs holds functions able to alter pending operations.
type WebmailBeforeFuncs struct {
	MessageSent *lua.LFunction
}

func registerWebmailTypes(ls *lua.LState) {
	mt := ls.NewTypeMetatable(webmailName)
	ls.SetField(mt, "__index", ls.NewFunction(webmailIndex))

	mt = ls.NewTypeMetatable(webmailAfterName)
	ls.SetField(mt, "__index", ls.NewFunction(webmailAfterIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(webmailAfterNewIndex))

	mt = ls.NewTypeMetatable(webmailBeforeName)
	ls.SetField(mt, "__index", ls.NewFunction(webmailBeforeIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(webmailBeforeNewIndex))

	ls.SetGlobal(webmailName, wrapUserData(ls, &Webmail{}, webmailName))
}

func wrapUserData(ls *lua.LState, val interface{}, typeName string) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(typeName))

	return ud
}

func getWebmail(ls *lua.LState) (*Webmail, error) {
	lv := ls.GetGlobal(webmailName)
	if lv == nil || lv == lua.LNil {
		return nil, errors.New("webmail object was nil")
	}

	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("webmail object was type %s instead of UserData", lv.Type())
	}

	val, ok := ud.Value.(*Webmail)
	if !ok {
		return nil, fmt.Errorf("webmail object (%v) could not be cast", ud.Value)
	}

	return val, nil
}

func checkWebmail(ls *lua.LState, pos int) *Webmail {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*Webmail); ok {
		return val
	}
	ls.ArgError(pos, webmailName+" expected")
	return nil
}

func checkWebmailAfter(ls *lua.LState, pos int) *WebmailAfterFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*WebmailAfterFuncs); ok {
		return val
	}
	ls.ArgError(pos, webmailAfterName+" expected")
	return nil
}

func checkWebmailBefore(ls *lua.LState, pos int) *WebmailBeforeFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*WebmailBeforeFuncs); ok {
		return val
	}
	ls.ArgError(pos, webmailBeforeName+" expected")
	return nil
}

// webmail getter.
func webmailIndex(ls *lua.LState) int {
	wm := checkWebmail(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "after":
		ls.Push(wrapUserData(ls, &wm.After, webmailAfterName))
	case "before":
		ls.Push(wrapUserData(ls, &wm.Before, webmailBeforeName))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// webmail.after getter.
func webmailAfterIndex(ls *lua.LState) int {
	after := checkWebmailAfter(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "mailbox_loaded":
		ls.Push(funcOrNil(after.MailboxLoaded))
	case "message_updated":
		ls.Push(funcOrNil(after.MessageUpdated))
	case "message_sent":
		ls.Push(funcOrNil(after.MessageSent))
	case "notice":
		ls.Push(funcOrNil(after.Notice))
	case "session_changed":
		ls.Push(funcOrNil(after.SessionChanged))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// webmail.after setter.
func webmailAfterNewIndex(ls *lua.LState) int {
	after := checkWebmailAfter(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "mailbox_loaded":
		after.MailboxLoaded = ls.CheckFunction(3)
	case "message_updated":
		after.MessageUpdated = ls.CheckFunction(3)
	case "message_sent":
		after.MessageSent = ls.CheckFunction(3)
	case "notice":
		after.Notice = ls.CheckFunction(3)
	case "session_changed":
		after.SessionChanged = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid webmail.after index %q", index)
	}

	return 0
}

// webmail.before getter.
func webmailBeforeIndex(ls *lua.LState) int {
	before := checkWebmailBefore(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "message_sent":
		ls.Push(funcOrNil(before.MessageSent))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// webmail.before setter.
func webmailBeforeNewIndex(ls *lua.LState) int {
	before := checkWebmailBefore(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "message_sent":
		before.MessageSent = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid webmail.before index %q", index)
	}

	return 0
}

func funcOrNil(f *lua.LFunction) lua.LValue {
	if f == nil {
		return lua.LNil
	}

	return f
}
