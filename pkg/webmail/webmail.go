// Package webmail holds the client side state of a webmail session: the signed-in identity, the
// selected mailbox and its messages, the compose draft, and the admin roster.  All persistence
// and business rules live behind the remote functions reached through MailAPI.
package webmail

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/artistmail/webmail/pkg/rest/client"
	"github.com/artistmail/webmail/pkg/rest/model"
)

var (
	// ErrNoSession is returned by operations that require a signed-in user.
	ErrNoSession = errors.New("not signed in")

	// ErrRecipientRequired is returned by Send when the draft has no recipient.
	ErrRecipientRequired = errors.New("recipient required")

	// ErrLoginFailed wraps the cause of a failed login.
	ErrLoginFailed = errors.New("login failed")

	// ErrRegisterFailed wraps the cause of a failed registration.
	ErrRegisterFailed = errors.New("registration failed")

	// ErrNotAdmin is returned when a non-admin session requests the admin roster.
	ErrNotAdmin = errors.New("admin access required")

	// ErrMessageNotFound is returned when a message ID is not in the current listing.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNoDraft is returned by Send when no draft is open.
	ErrNoDraft = errors.New("no message being composed")
)

// User facing notice texts.
const (
	textRecipientRequired = "Enter a recipient"
	textLoginFailed       = "Login failed. Check your email and password."
	textRegisterFailed    = "Registration failed"
	textSendFailed        = "Failed to send message"
	textSent              = "Message sent!"
	textUnreachable       = "Could not connect to the server"
)

// MailAPI is the set of remote functions used by the Controller.  *client.Client implements it.
type MailAPI interface {
	Login(ctx context.Context, email, password string) (*model.JSONUserV1, error)
	Register(ctx context.Context, username, password, fullName string) (*model.JSONUserV1, error)
	MailDomain(ctx context.Context) (string, error)
	ListMailbox(ctx context.Context, userID model.ID, mailbox string) (*model.JSONMailboxV1, error)
	ToggleStar(ctx context.Context, userID, emailID model.ID) error
	MarkRead(ctx context.Context, userID, emailID model.ID) error
	Upload(ctx context.Context, userID model.ID, files []*model.JSONUploadFileV1) (
		[]*model.JSONAttachmentRefV1, error)
	Send(ctx context.Context, userID model.ID, msg *model.JSONSendRequestV1) (
		*model.JSONSendResponseV1, error)
	AdminStats(ctx context.Context, userID model.ID) (*model.JSONStatsV1, error)
	AdminUsers(ctx context.Context, userID model.ID) ([]*model.JSONAdminUserV1, error)
	ToggleUserActive(ctx context.Context, userID, target model.ID) (bool, error)
	UpdateStorageLimit(ctx context.Context, userID, target model.ID, limitMB int) error
}

var _ MailAPI = &client.Client{}

// Mailbox names known to the remote mail store.
var Mailboxes = []string{"Inbox", "Sent", "Drafts", "Trash"}

// Message is a single message of the current listing.
type Message struct {
	ID              model.ID
	From            string
	To              string
	Subject         string
	Body            string
	IsRead          bool
	IsStarred       bool
	ReceivedAt      time.Time
	AttachmentCount int
}

func messageFromJSON(e *model.JSONEmailV1) *Message {
	return &Message{
		ID:              e.ID,
		From:            e.From,
		To:              e.To,
		Subject:         e.Subject,
		Body:            e.Body,
		IsRead:          e.IsRead,
		IsStarred:       e.IsStarred,
		ReceivedAt:      e.ReceivedAt.Time,
		AttachmentCount: e.AttachmentCount,
	}
}

// JSON converts the message back to its wire form.
func (m *Message) JSON() *model.JSONEmailV1 {
	return &model.JSONEmailV1{
		ID:              m.ID,
		From:            m.From,
		To:              m.To,
		Subject:         m.Subject,
		Body:            m.Body,
		IsRead:          m.IsRead,
		IsStarred:       m.IsStarred,
		ReceivedAt:      model.Timestamp{Time: m.ReceivedAt},
		AttachmentCount: m.AttachmentCount,
	}
}

// NormalizeUsername lowercases a requested username and drops every character other than
// a-z, 0-9, '.', '_' and '-'.
func NormalizeUsername(username string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(username) {
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// describe produces the user facing text for a failed remote call.  Server supplied messages are
// preferred when useServer is set.
func describe(err error, generic string, useServer bool) string {
	if !client.IsHTTPError(err) {
		return textUnreachable
	}
	if useServer {
		if msg, ok := client.ServerMessage(err); ok {
			return msg
		}
	}
	return generic
}
