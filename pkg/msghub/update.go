package msghub

import (
	"github.com/artistmail/webmail/pkg/extension/event"
)

// Kind identifies the state change carried by an Update.
type Kind string

// Update kinds.
const (
	KindMailboxLoaded  Kind = "mailbox-loaded"
	KindMessageUpdated Kind = "message-updated"
	KindMessageSent    Kind = "message-sent"
	KindNotice         Kind = "notice"
	KindSessionChanged Kind = "session-changed"
)

// Update is a single controller state change relayed to listeners.  Only the fields relevant to
// Kind are populated.
type Update struct {
	Kind      Kind
	UserID    string
	Email     string
	SignedIn  bool
	Mailbox   string
	ID        string
	Count     int
	Unread    int
	IsRead    bool
	IsStarred bool
	To        string
	Subject   string
	Level     string
	Op        string
	Text      string
}

// FromMailboxListing converts a listing event.
func FromMailboxListing(ev event.MailboxListing) Update {
	return Update{
		Kind:    KindMailboxLoaded,
		UserID:  ev.UserID,
		Mailbox: ev.Mailbox,
		Count:   ev.Count,
		Unread:  ev.Unread,
	}
}

// FromMessageFlags converts a flag change event.
func FromMessageFlags(ev event.MessageFlags) Update {
	return Update{
		Kind:      KindMessageUpdated,
		UserID:    ev.UserID,
		Mailbox:   ev.Mailbox,
		ID:        ev.ID,
		IsRead:    ev.IsRead,
		IsStarred: ev.IsStarred,
	}
}

// FromOutboundMessage converts a sent message event.
func FromOutboundMessage(ev event.OutboundMessage) Update {
	return Update{
		Kind:    KindMessageSent,
		Email:   ev.From,
		To:      ev.To,
		Subject: ev.Subject,
		Count:   len(ev.Attachments),
	}
}

// FromNotice converts a notice event.
func FromNotice(ev event.Notice) Update {
	return Update{
		Kind:  KindNotice,
		Level: ev.Level,
		Op:    ev.Op,
		Text:  ev.Text,
	}
}

// FromSessionChange converts a session event.
func FromSessionChange(ev event.SessionChange) Update {
	return Update{
		Kind:     KindSessionChanged,
		UserID:   ev.UserID,
		Email:    ev.Email,
		SignedIn: ev.SignedIn,
	}
}
