package event

import (
	"time"
)

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// SessionChange describes the signed-in identity after login, registration, resume or logout.
// SignedIn is false after logout, in which case the identity fields are empty.
type SessionChange struct {
	SignedIn bool
	UserID   string
	Email    string
	FullName string
	IsAdmin  bool
}

// MailboxListing summarizes a mailbox listing that was applied to the message list.
type MailboxListing struct {
	UserID     string
	Mailbox    string
	Count      int
	Unread     int
	Generation uint64
}

// MessageFlags carries the local flag state of a message after an optimistic update.
type MessageFlags struct {
	UserID    string
	Mailbox   string
	ID        string
	IsRead    bool
	IsStarred bool
}

// OutboundMessage contains the user supplied content of a message about to be, or just, sent.
type OutboundMessage struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []string // Attachment filenames.
	Sent        time.Time
}

// Notice is a user facing message produced by an interactive operation.
type Notice struct {
	Level string
	Op    string
	Text  string
}
