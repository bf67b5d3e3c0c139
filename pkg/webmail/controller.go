package webmail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/artistmail/webmail/pkg/attachment"
	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/extension"
	"github.com/artistmail/webmail/pkg/extension/event"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Controller owns the state of a single webmail session.  It is safe for concurrent use; remote
// calls are never made while holding the state lock.
type Controller struct {
	api            MailAPI
	store          session.Store
	extHost        *extension.Host
	previews       *attachment.Previews
	defaultMailbox string
	reconcile      bool
	logger         zerolog.Logger

	mu         sync.Mutex
	session    *session.Session
	mailbox    string
	messages   []*Message
	selected   model.ID // Empty when no message is selected.
	generation uint64   // Incremented for every listing request.
	draft      *Draft

	pending sync.WaitGroup // Outstanding flag confirmations.
}

// New creates a signed-out Controller.  Call Resume to restore a persisted session.
func New(api MailAPI, store session.Store, extHost *extension.Host, conf config.Sync) *Controller {
	mailbox := conf.Mailbox
	if mailbox == "" {
		mailbox = Mailboxes[0]
	}
	return &Controller{
		api:            api,
		store:          store,
		extHost:        extHost,
		previews:       attachment.NewPreviews(),
		defaultMailbox: mailbox,
		reconcile:      conf.Reconcile,
		logger:         log.With().Str("module", "webmail").Logger(),
		mailbox:        mailbox,
	}
}

// Previews returns the registry of attachment preview handles.
func (c *Controller) Previews() *attachment.Previews {
	return c.previews
}

// Resume restores the persisted session, if any, and loads the default mailbox.  A missing
// session is not an error.
func (c *Controller) Resume(ctx context.Context) error {
	s, err := c.store.Get(ctx)
	if errors.Is(err, session.ErrNotExist) {
		c.logger.Debug().Msg("No stored session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}

	c.logger.Info().Str("session", s.String()).Msg("Resumed session")
	c.activate(ctx, s)
	return nil
}

// Login authenticates against the auth function and makes the returned identity the active,
// persisted session.  On failure the session is left unchanged.
func (c *Controller) Login(ctx context.Context, email, password string) (*session.Session, error) {
	user, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.logger.Warn().Str("email", email).Err(err).Msg("Login failed")
		c.notify(event.LevelError, "login", describe(err, textLoginFailed, false))
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	return c.establish(ctx, user)
}

// Register creates an account under the normalized form of username, and signs in as it.  On
// failure the server's message is surfaced when present.
func (c *Controller) Register(ctx context.Context, username, password, fullName string) (
	*session.Session, error) {
	normalized := NormalizeUsername(username)
	user, err := c.api.Register(ctx, normalized, password, fullName)
	if err != nil {
		c.logger.Warn().Str("username", normalized).Err(err).Msg("Registration failed")
		c.notify(event.LevelError, "register", describe(err, textRegisterFailed, true))
		return nil, fmt.Errorf("%w: %w", ErrRegisterFailed, err)
	}

	return c.establish(ctx, user)
}

// establish persists a freshly authenticated identity and activates it.
func (c *Controller) establish(ctx context.Context, user *model.JSONUserV1) (*session.Session, error) {
	s := session.FromUser(user)
	if err := c.store.Set(ctx, s); err != nil {
		// The session remains usable in memory, it just won't survive a restart.
		c.logger.Error().Str("session", s.String()).Err(err).Msg("Failed to persist session")
	}

	c.logger.Info().Str("session", s.String()).Msg("Signed in")
	c.activate(ctx, s)
	cp := *s
	return &cp, nil
}

// activate replaces the in-memory state with a new session and loads its default mailbox.
func (c *Controller) activate(ctx context.Context, s *session.Session) {
	c.mu.Lock()
	c.session = s
	c.mailbox = c.defaultMailbox
	c.messages = nil
	c.selected = ""
	c.generation++
	draft := c.draft
	c.draft = nil
	c.mu.Unlock()

	if draft != nil {
		draft.Abandon()
	}

	c.extHost.Events.AfterSessionChanged.Emit(&event.SessionChange{
		SignedIn: true,
		UserID:   s.UserID.String(),
		Email:    s.Email,
		FullName: s.FullName,
		IsAdmin:  s.IsAdmin,
	})

	// Listing failures are logged by LoadMailbox and leave the list empty.
	_ = c.LoadMailbox(ctx, c.defaultMailbox)
}

// Logout clears the persisted identity and all in-memory mailbox state.  No remote call is
// made.  The in-memory state is cleared even when the store fails.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	prev := c.session
	c.session = nil
	c.mailbox = c.defaultMailbox
	c.messages = nil
	c.selected = ""
	c.generation++ // Discard in-flight listings.
	draft := c.draft
	c.draft = nil
	c.mu.Unlock()

	if draft != nil {
		draft.Abandon()
	}

	err := c.store.Clear(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear stored session")
	}

	if prev != nil {
		c.logger.Info().Str("session", prev.String()).Msg("Signed out")
	}
	c.extHost.Events.AfterSessionChanged.Emit(&event.SessionChange{SignedIn: false})

	return err
}

// Session returns a copy of the active session.
func (c *Controller) Session() (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, false
	}
	s := *c.session
	return &s, true
}

// MailDomain returns the domain new accounts are created under, or model.DefaultMailDomain
// when the auth function cannot tell.
func (c *Controller) MailDomain(ctx context.Context) string {
	domain, err := c.api.MailDomain(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to fetch mail domain")
		return model.DefaultMailDomain
	}
	if domain == "" {
		return model.DefaultMailDomain
	}
	return domain
}

// LoadMailbox fetches the named mailbox and replaces the entire message list with the result.
// A response is applied only if no later listing was requested meanwhile.  On failure the
// previous list is kept.
func (c *Controller) LoadMailbox(ctx context.Context, mailbox string) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	c.generation++
	gen := c.generation
	userID := c.session.UserID
	c.mailbox = mailbox
	c.mu.Unlock()

	logger := c.logger.With().Str("mailbox", mailbox).Uint64("generation", gen).Logger()
	listing, err := c.api.ListMailbox(ctx, userID, mailbox)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load mailbox")
		return fmt.Errorf("load mailbox %q: %w", mailbox, err)
	}

	messages := make([]*Message, 0, len(listing.Emails))
	unread := 0
	for _, e := range listing.Emails {
		if e == nil {
			continue
		}
		m := messageFromJSON(e)
		if !m.IsRead {
			unread++
		}
		messages = append(messages, m)
	}

	c.mu.Lock()
	if latest := c.generation; gen != latest {
		c.mu.Unlock()
		logger.Debug().Uint64("latest", latest).Msg("Discarding stale listing")
		return nil
	}
	c.messages = messages
	if c.selected != "" && c.lockedFind(c.selected) == nil {
		c.selected = ""
	}
	c.mu.Unlock()

	logger.Debug().Int("count", len(messages)).Msg("Loaded mailbox")
	c.extHost.Events.AfterMailboxLoaded.Emit(&event.MailboxListing{
		UserID:     userID.String(),
		Mailbox:    mailbox,
		Count:      len(messages),
		Unread:     unread,
		Generation: gen,
	})

	return nil
}

// Reload re-fetches the current mailbox.
func (c *Controller) Reload(ctx context.Context) error {
	return c.LoadMailbox(ctx, c.Mailbox())
}

// FetchMailbox lists the named mailbox without touching the controller state.  Used for export.
func (c *Controller) FetchMailbox(ctx context.Context, mailbox string) ([]Message, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	userID := c.session.UserID
	c.mu.Unlock()

	listing, err := c.api.ListMailbox(ctx, userID, mailbox)
	if err != nil {
		return nil, fmt.Errorf("fetch mailbox %q: %w", mailbox, err)
	}
	out := make([]Message, 0, len(listing.Emails))
	for _, e := range listing.Emails {
		if e != nil {
			out = append(out, *messageFromJSON(e))
		}
	}
	return out, nil
}

// SelectMailbox switches to the named mailbox: the selected message is cleared, any open draft
// is abandoned, and the mailbox is loaded.
func (c *Controller) SelectMailbox(ctx context.Context, mailbox string) error {
	c.mu.Lock()
	c.selected = ""
	draft := c.draft
	c.draft = nil
	c.mu.Unlock()

	if draft != nil {
		draft.Abandon()
	}

	return c.LoadMailbox(ctx, mailbox)
}

// Mailbox returns the name of the selected mailbox.
func (c *Controller) Mailbox() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mailbox
}

// Messages returns a copy of the current message list.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// Listing returns the selected mailbox name together with a copy of its messages, read under
// one lock so the name always labels the messages it is returned with.
func (c *Controller) Listing() (string, []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return c.mailbox, out
}

// Selected returns a copy of the selected message.
func (c *Controller) Selected() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == "" {
		return Message{}, false
	}
	m := c.lockedFind(c.selected)
	if m == nil {
		return Message{}, false
	}
	return *m, true
}

// SelectMessage makes the message the viewed one.  An unread message is marked read locally at
// once, and the change is confirmed with the mail function in the background.
func (c *Controller) SelectMessage(ctx context.Context, id model.ID) (Message, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return Message{}, ErrNoSession
	}
	m := c.lockedFind(id)
	if m == nil {
		c.mu.Unlock()
		return Message{}, ErrMessageNotFound
	}
	c.selected = id
	markRead := !m.IsRead
	m.IsRead = true
	userID, mailbox, view := c.session.UserID, c.mailbox, *m
	c.mu.Unlock()

	if markRead {
		c.flagsChanged(userID, mailbox, &view)
		c.confirm(ctx, model.ActionMarkRead, id, func(ctx context.Context) error {
			return c.api.MarkRead(ctx, userID, id)
		})
	}

	return view, nil
}

// ToggleStar flips the starred flag of a message locally at once, then confirms the change with
// the mail function in the background.  Returns the new local state.
func (c *Controller) ToggleStar(ctx context.Context, id model.ID) (bool, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return false, ErrNoSession
	}
	m := c.lockedFind(id)
	if m == nil {
		c.mu.Unlock()
		return false, ErrMessageNotFound
	}
	m.IsStarred = !m.IsStarred
	userID, mailbox, view := c.session.UserID, c.mailbox, *m
	c.mu.Unlock()

	c.flagsChanged(userID, mailbox, &view)
	c.confirm(ctx, model.ActionToggleStar, id, func(ctx context.Context) error {
		return c.api.ToggleStar(ctx, userID, id)
	})

	return view.IsStarred, nil
}

// Sync blocks until all background flag confirmations have completed.
func (c *Controller) Sync() {
	c.pending.Wait()
}

// confirm runs a flag confirmation in the background.  Failures are logged; with reconciliation
// enabled the current mailbox is re-fetched so that local flags converge on the server's.
func (c *Controller) confirm(ctx context.Context, action string, id model.ID,
	call func(context.Context) error) {
	// The confirmation outlives the request that triggered it.
	ctx = context.WithoutCancel(ctx)

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		logger := c.logger.With().Str("action", action).Str("id", id.String()).Logger()
		if err := call(ctx); err != nil {
			logger.Warn().Err(err).Msg("Flag update failed")
			if c.reconcile {
				logger.Info().Msg("Reconciling mailbox after failed flag update")
				_ = c.Reload(ctx)
			}
			return
		}
		logger.Debug().Msg("Flag update confirmed")
	}()
}

func (c *Controller) flagsChanged(userID model.ID, mailbox string, m *Message) {
	c.extHost.Events.AfterMessageUpdated.Emit(&event.MessageFlags{
		UserID:    userID.String(),
		Mailbox:   mailbox,
		ID:        m.ID.String(),
		IsRead:    m.IsRead,
		IsStarred: m.IsStarred,
	})
}

// notify publishes a user facing notice.
func (c *Controller) notify(level, op, text string) {
	c.extHost.Events.AfterNotice.Emit(&event.Notice{Level: level, Op: op, Text: text})
}

// lockedFind returns the listed message with the given ID.  Lock must be held.
func (c *Controller) lockedFind(id model.ID) *Message {
	for _, m := range c.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}
