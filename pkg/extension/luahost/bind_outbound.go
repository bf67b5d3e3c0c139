package luahost

import (
	"time"

	"github.com/artistmail/webmail/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const outboundMessageName = "outbound_message"

func registerOutboundMessageType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(outboundMessageName)
	ls.SetGlobal(outboundMessageName, mt)

	// Static attributes.
	ls.SetField(mt, "new", ls.NewFunction(newOutboundMessage))

	// Methods.
	ls.SetField(mt, "__index", ls.NewFunction(outboundMessageIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(outboundMessageNewIndex))
}

func newOutboundMessage(ls *lua.LState) int {
	ls.Push(wrapOutboundMessage(ls, &event.OutboundMessage{}))
	return 1
}

func wrapOutboundMessage(ls *lua.LState, val *event.OutboundMessage) *lua.LUserData {
	return wrapUserData(ls, val, outboundMessageName)
}

func checkOutboundMessage(ls *lua.LState, pos int) *event.OutboundMessage {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.OutboundMessage); ok {
		return v
	}
	ls.ArgError(pos, outboundMessageName+" expected")
	return nil
}

// Gets a field value from OutboundMessage user object.  This emulates a Lua table,
// allowing `msg.subject` instead of a Lua object syntax of `msg:subject()`.
func outboundMessageIndex(ls *lua.LState) int {
	m := checkOutboundMessage(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "from":
		ls.Push(lua.LString(m.From))
	case "to":
		ls.Push(lua.LString(m.To))
	case "subject":
		ls.Push(lua.LString(m.Subject))
	case "body":
		ls.Push(lua.LString(m.Body))
	case "attachments":
		lt := ls.NewTable()
		for _, name := range m.Attachments {
			lt.Append(lua.LString(name))
		}
		ls.Push(lt)
	case "sent":
		if m.Sent.IsZero() {
			ls.Push(lua.LNil)
		} else {
			ls.Push(lua.LNumber(m.Sent.Unix()))
		}
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// Sets a field value on OutboundMessage user object.  Attachments are read-only, scripts may
// rewrite the text of a message but not the files travelling with it.
func outboundMessageNewIndex(ls *lua.LState) int {
	m := checkOutboundMessage(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "from":
		m.From = ls.CheckString(3)
	case "to":
		m.To = ls.CheckString(3)
	case "subject":
		m.Subject = ls.CheckString(3)
	case "body":
		m.Body = ls.CheckString(3)
	case "sent":
		m.Sent = time.Unix(ls.CheckInt64(3), 0)
	default:
		ls.RaiseError("invalid index %q", index)
	}

	return 0
}
