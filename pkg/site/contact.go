package site

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Limits the contact function enforces on submissions.
const (
	MaxContactName    = 100
	MaxContactMessage = 5000
)

// ErrContactInvalid is returned by Submit when the form is incomplete or malformed.  Nothing is
// sent to the remote in that case.
var ErrContactInvalid = errors.New("invalid contact form")

// ContactAPI delivers contact form submissions.  *client.Client implements it.
type ContactAPI interface {
	Contact(ctx context.Context, msg *model.JSONContactV1) error
}

// ContactForm is a message from a site visitor to the artist.
type ContactForm struct {
	Name    string
	Email   string
	Message string
}

// Validate trims the form in place and reports the first problem found.
func (f *ContactForm) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Message = strings.TrimSpace(f.Message)
	switch {
	case f.Name == "":
		return fmt.Errorf("%w: name required", ErrContactInvalid)
	case utf8.RuneCountInString(f.Name) > MaxContactName:
		return fmt.Errorf("%w: name longer than %d characters", ErrContactInvalid, MaxContactName)
	case f.Email == "":
		return fmt.Errorf("%w: email required", ErrContactInvalid)
	case f.Message == "":
		return fmt.Errorf("%w: message required", ErrContactInvalid)
	case utf8.RuneCountInString(f.Message) > MaxContactMessage:
		return fmt.Errorf("%w: message longer than %d characters", ErrContactInvalid,
			MaxContactMessage)
	}
	if addr, err := mail.ParseAddress(f.Email); err != nil || addr.Address != f.Email {
		return fmt.Errorf("%w: email %q is not an address", ErrContactInvalid, f.Email)
	}
	return nil
}

// Contact submits the site's contact form.  Unlike the counter and feed, failures are returned:
// the visitor is waiting on the outcome.
type Contact struct {
	api    ContactAPI
	logger zerolog.Logger
}

// NewContact creates a Contact.
func NewContact(api ContactAPI) *Contact {
	return &Contact{api: api, logger: log.With().Str("module", "site").Logger()}
}

// Submit validates the form and delivers it.
func (c *Contact) Submit(ctx context.Context, form ContactForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	err := c.api.Contact(ctx, &model.JSONContactV1{
		Name:    form.Name,
		Email:   form.Email,
		Message: form.Message,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("email", form.Email).Msg("Failed to deliver contact form")
		return fmt.Errorf("send contact form: %w", err)
	}
	c.logger.Info().Str("email", form.Email).Msg("Delivered contact form")
	return nil
}
