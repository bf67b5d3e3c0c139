package webmail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/artistmail/webmail/pkg/attachment"
	"github.com/artistmail/webmail/pkg/extension/event"
	"github.com/artistmail/webmail/pkg/metric"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/session"
)

// Pending describes a file attached to a draft.
type Pending struct {
	Handle   string // Preview handle, valid until the file is removed or the draft abandoned.
	Name     string
	MIMEType string
	Size     int64
}

// Draft is a message being composed.  It lives in memory only; it is lost when abandoned, when
// the mailbox changes, or on logout.
//
// To, Subject and Body belong to the caller that opened the draft with Compose; they must not be
// written while Send is running.  The attachment methods are safe for concurrent use.
type Draft struct {
	To      string
	Subject string
	Body    string

	previews *attachment.Previews
	mu       sync.Mutex
	handles  []string // Attached files, in order of attachment.
	closed   bool
}

// Compose opens a new draft, abandoning any draft already open.
func (c *Controller) Compose() *Draft {
	d := &Draft{previews: c.previews}

	c.mu.Lock()
	prev := c.draft
	c.draft = d
	c.mu.Unlock()

	if prev != nil {
		prev.Abandon()
	}
	return d
}

// Draft returns the open draft.
func (c *Controller) Draft() (*Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft, c.draft != nil
}

// Discard abandons the open draft, if any.
func (c *Controller) Discard() {
	c.mu.Lock()
	d := c.draft
	c.draft = nil
	c.mu.Unlock()

	if d != nil {
		d.Abandon()
	}
}

// DiscardDraft abandons d, closing it if it is the open draft.  Other drafts are untouched.
func (c *Controller) DiscardDraft(d *Draft) {
	c.mu.Lock()
	if c.draft == d {
		c.draft = nil
	}
	c.mu.Unlock()

	d.Abandon()
}

// Attach adds a file to the draft and returns its preview handle.  Returns an empty handle if
// the draft has been abandoned.
func (d *Draft) Attach(f *attachment.File) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ""
	}
	h := d.previews.Create(f)
	d.handles = append(d.handles, h)
	return h
}

// AttachFile reads a local file into the draft.  The content type is detected from the name and
// content.
func (d *Draft) AttachFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	name := filepath.Base(path)
	h := d.Attach(&attachment.File{
		Name:     name,
		MIMEType: attachment.DetectType(name, b),
		Data:     b,
	})
	if h == "" {
		return "", ErrNoDraft
	}
	return h, nil
}

// Remove detaches a file and releases its preview handle.  Returns false if the handle is not
// attached to this draft.
func (d *Draft) Remove(handle string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, h := range d.handles {
		if h == handle {
			d.handles = append(d.handles[:i], d.handles[i+1:]...)
			d.previews.Revoke(h)
			return true
		}
	}
	return false
}

// Attachments lists the files attached to the draft.
func (d *Draft) Attachments() []Pending {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Pending, 0, len(d.handles))
	for _, h := range d.handles {
		if f, ok := d.previews.Lookup(h); ok {
			out = append(out, Pending{Handle: h, Name: f.Name, MIMEType: f.MIMEType, Size: f.Size()})
		}
	}
	return out
}

// Abandon releases every preview handle held by the draft.  The draft accepts no further files.
func (d *Draft) Abandon() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range d.handles {
		d.previews.Revoke(h)
	}
	d.handles = nil
	d.closed = true
}

// files returns the attached files in attachment order.
func (d *Draft) files() []*attachment.File {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*attachment.File, 0, len(d.handles))
	for _, h := range d.handles {
		if f, ok := d.previews.Lookup(h); ok {
			out = append(out, f)
		}
	}
	return out
}

// Send delivers draft d, which must be the open draft: attached files are encoded and uploaded
// in a single batch, then the message is submitted with the returned attachment references.  The
// upload is skipped when nothing is attached.  On success the draft is closed and the mailbox
// reloaded.  A draft without a recipient is rejected before any remote call.
//
// A draft replaced by a later Compose, or otherwise abandoned, is not sent; ErrNoDraft is
// returned.  While Send runs the draft is detached from the controller, so a concurrent Compose
// cannot abandon it.  On failure it is reopened unless another draft was opened meanwhile.
func (c *Controller) Send(ctx context.Context, d *Draft) (err error) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if d == nil || c.draft != d {
		c.mu.Unlock()
		return ErrNoDraft
	}
	c.draft = nil
	c.mu.Unlock()

	defer func() {
		if err != nil {
			c.reopen(s, d)
		}
	}()

	files := d.files()
	out := event.OutboundMessage{
		From:    s.Email,
		To:      strings.TrimSpace(d.To),
		Subject: d.Subject,
		Body:    d.Body,
	}
	for _, f := range files {
		out.Attachments = append(out.Attachments, f.Name)
	}
	if out.To == "" {
		c.notify(event.LevelError, "send", textRecipientRequired)
		return ErrRecipientRequired
	}

	// Extensions may rewrite the text of the message, not its files.
	if result := c.extHost.Events.BeforeMessageSent.Emit(&out); result != nil {
		out.To = strings.TrimSpace(result.To)
		out.Subject = result.Subject
		out.Body = result.Body
		if out.To == "" {
			c.notify(event.LevelError, "send", textRecipientRequired)
			return ErrRecipientRequired
		}
	}

	logger := c.logger.With().Str("to", out.To).Int("attachments", len(files)).Logger()

	uploads := make([]*model.JSONUploadFileV1, 0, len(files))
	for _, f := range files {
		a, err := f.Encode()
		if err != nil {
			logger.Warn().Str("file", f.Name).Err(err).Msg("Failed to encode attachment")
			c.notify(event.LevelError, "send", textSendFailed)
			return fmt.Errorf("encode %q: %w", f.Name, err)
		}
		uploads = append(uploads, a.Upload())
	}

	refs := []*model.JSONAttachmentRefV1{}
	if len(uploads) > 0 {
		var err error
		refs, err = c.api.Upload(ctx, s.UserID, uploads)
		if err != nil {
			logger.Warn().Err(err).Msg("Attachment upload failed")
			c.notify(event.LevelError, "send", describe(err, textSendFailed, true))
			return fmt.Errorf("upload attachments: %w", err)
		}
	}

	resp, err := c.api.Send(ctx, s.UserID, &model.JSONSendRequestV1{
		To:          out.To,
		Subject:     out.Subject,
		Body:        out.Body,
		Attachments: refs,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Send failed")
		text := describe(err, textSendFailed, true)
		if resp != nil && resp.Error != "" {
			text = resp.Error
		}
		c.notify(event.LevelError, "send", text)
		return fmt.Errorf("send: %w", err)
	}

	logger.Info().Str("reply", resp.Message).Msg("Message sent")
	metric.MessagesSent.Add(1)
	d.Abandon()

	out.Sent = time.Now()
	c.extHost.Events.AfterMessageSent.Emit(&out)
	c.notify(event.LevelInfo, "send", textSent)

	// The sent message appears on the next listing.  Failure is logged by LoadMailbox.
	_ = c.Reload(ctx)

	return nil
}

// reopen puts a draft whose send failed back in place, so it can be corrected and retried.  The
// draft is abandoned instead when the session changed or another draft was opened meanwhile.
func (c *Controller) reopen(s *session.Session, d *Draft) {
	c.mu.Lock()
	ok := c.session == s && c.draft == nil
	if ok {
		c.draft = d
	}
	c.mu.Unlock()

	if !ok {
		d.Abandon()
	}
}
