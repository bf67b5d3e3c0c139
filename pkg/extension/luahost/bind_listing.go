package luahost

import (
	"github.com/artistmail/webmail/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const mailboxListingName = "mailbox_listing"

func registerMailboxListingType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(mailboxListingName)
	ls.SetField(mt, "__index", ls.NewFunction(mailboxListingIndex))
}

func wrapMailboxListing(ls *lua.LState, val *event.MailboxListing) *lua.LUserData {
	return wrapUserData(ls, val, mailboxListingName)
}

func checkMailboxListing(ls *lua.LState, pos int) *event.MailboxListing {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.MailboxListing); ok {
		return v
	}
	ls.ArgError(pos, mailboxListingName+" expected")
	return nil
}

// Read-only field access, `listing.unread`.
func mailboxListingIndex(ls *lua.LState) int {
	m := checkMailboxListing(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "user_id":
		ls.Push(lua.LString(m.UserID))
	case "mailbox":
		ls.Push(lua.LString(m.Mailbox))
	case "count":
		ls.Push(lua.LNumber(m.Count))
	case "unread":
		ls.Push(lua.LNumber(m.Unread))
	case "generation":
		ls.Push(lua.LNumber(m.Generation))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// Events without behavior are handed to scripts as plain tables.

func sessionTable(ls *lua.LState, s *event.SessionChange) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("signed_in", lua.LBool(s.SignedIn))
	t.RawSetString("user_id", lua.LString(s.UserID))
	t.RawSetString("email", lua.LString(s.Email))
	t.RawSetString("full_name", lua.LString(s.FullName))
	t.RawSetString("is_admin", lua.LBool(s.IsAdmin))
	return t
}

func messageFlagsTable(ls *lua.LState, f *event.MessageFlags) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("user_id", lua.LString(f.UserID))
	t.RawSetString("mailbox", lua.LString(f.Mailbox))
	t.RawSetString("id", lua.LString(f.ID))
	t.RawSetString("is_read", lua.LBool(f.IsRead))
	t.RawSetString("is_starred", lua.LBool(f.IsStarred))
	return t
}

func noticeTable(ls *lua.LState, n *event.Notice) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("level", lua.LString(n.Level))
	t.RawSetString("op", lua.LString(n.Op))
	t.RawSetString("text", lua.LString(n.Text))
	return t
}
