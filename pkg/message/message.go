// Package message renders webmail messages as RFC 5322 documents, and exports mailboxes in mbox
// format.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/artistmail/webmail/pkg/attachment"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/jhillyerd/enmime/v2"
)

// NoSubject is used in place of an empty subject, which RFC 5322 builders reject.
const NoSubject = "(no subject)"

// ErrNoSender is returned when a message has no From address.
var ErrNoSender = errors.New("message has no sender")

// Mail holds a message along with its flags.
type Mail struct {
	From        string
	To          string
	Subject     string
	Body        string
	Date        time.Time
	Read        bool
	Starred     bool
	Attachments []*attachment.File
}

// FromEmail converts a listed message.  Attachments are not part of a listing, only their count.
func FromEmail(e *model.JSONEmailV1) *Mail {
	return &Mail{
		From:    e.From,
		To:      e.To,
		Subject: e.Subject,
		Body:    e.Body,
		Date:    e.ReceivedAt.Time,
		Read:    e.IsRead,
		Starred: e.IsStarred,
	}
}

// Build assembles the MIME structure of m.
func Build(m *Mail) (*enmime.Part, error) {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		if strings.TrimSpace(m.From) == "" {
			return nil, ErrNoSender
		}
		from = &mail.Address{Address: strings.TrimSpace(m.From)}
	}

	subject := m.Subject
	if strings.TrimSpace(subject) == "" {
		subject = NoSubject
	}

	b := enmime.Builder().
		From(from.Name, from.Address).
		ToAddrs(recipients(m.To)).
		Subject(subject).
		Text([]byte(m.Body)).
		Header("Status", status(m))
	if !m.Date.IsZero() {
		b = b.Date(m.Date)
	}
	if m.Starred {
		b = b.Header("X-Status", "F")
	}
	for _, f := range m.Attachments {
		b = b.AddAttachment(f.Data, f.MIMEType, f.Name)
	}

	return b.Build()
}

// Render writes m as an RFC 5322 document.
func Render(w io.Writer, m *Mail) error {
	part, err := Build(m)
	if err != nil {
		return err
	}
	return part.Encode(w)
}

// Bytes renders m into memory.
func Bytes(m *Mail) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Render(buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseDraft reads an RFC 5322 document into a Mail, keeping its text body and attachments.
// The result is suitable for filling in a draft.
func ParseDraft(r io.Reader) (*Mail, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	m := &Mail{
		From:    env.GetHeader("From"),
		To:      env.GetHeader("To"),
		Subject: env.GetHeader("Subject"),
		Body:    env.Text,
	}
	if d, err := env.Date(); err == nil {
		m.Date = d
	}
	for _, p := range env.Attachments {
		name := p.FileName
		if name == "" {
			continue
		}
		m.Attachments = append(m.Attachments, &attachment.File{
			Name:     name,
			MIMEType: p.ContentType,
			Data:     p.Content,
		})
	}
	return m, nil
}

// recipients splits a comma separated To field.  Entries that fail to parse are passed through
// as bare addresses.
func recipients(to string) []mail.Address {
	if list, err := mail.ParseAddressList(to); err == nil {
		out := make([]mail.Address, len(list))
		for i, a := range list {
			out[i] = *a
		}
		return out
	}

	var out []mail.Address
	for _, s := range strings.Split(to, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, mail.Address{Address: s})
		}
	}
	return out
}

// status is the mbox Status header: R once read, O once seen by a client.
func status(m *Mail) string {
	if m.Read {
		return "RO"
	}
	return "O"
}
