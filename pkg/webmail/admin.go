package webmail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/rs/zerolog"
)

// AdminUser is one registered account as shown in the roster.
type AdminUser struct {
	ID             model.ID
	Email          string
	FullName       string
	CreatedAt      time.Time
	IsActive       bool
	StorageUsedMB  float64
	StorageLimitMB float64
	SentCount      int64
	ReceivedCount  int64
}

// Activity counts messages created on one day.
type Activity struct {
	Date  string
	Count int64
}

// Stats are aggregate figures across all accounts.
type Stats struct {
	TotalUsers     int64
	ActiveUsers    int64
	TotalEmails    int64
	TotalStorageMB float64
	Activity       []Activity
}

func adminUserFromJSON(u *model.JSONAdminUserV1) AdminUser {
	return AdminUser{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		CreatedAt:      u.CreatedAt.Time,
		IsActive:       u.IsActive,
		StorageUsedMB:  u.StorageUsedMB,
		StorageLimitMB: u.StorageLimitMB,
		SentCount:      u.SentCount,
		ReceivedCount:  u.ReceivedCount,
	}
}

func statsFromJSON(s *model.JSONStatsV1) Stats {
	out := Stats{
		TotalUsers:     s.TotalUsers,
		ActiveUsers:    s.ActiveUsers,
		TotalEmails:    s.TotalEmails,
		TotalStorageMB: s.TotalStorageMB,
	}
	for _, a := range s.EmailActivity {
		out.Activity = append(out.Activity, Activity(a))
	}
	return out
}

// JSON converts the user back to its wire form.
func (u AdminUser) JSON() *model.JSONAdminUserV1 {
	return &model.JSONAdminUserV1{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		CreatedAt:      model.Timestamp{Time: u.CreatedAt},
		IsActive:       u.IsActive,
		StorageUsedMB:  u.StorageUsedMB,
		StorageLimitMB: u.StorageLimitMB,
		SentCount:      u.SentCount,
		ReceivedCount:  u.ReceivedCount,
	}
}

// JSON converts the stats back to their wire form.
func (s Stats) JSON() *model.JSONStatsV1 {
	out := &model.JSONStatsV1{
		TotalUsers:     s.TotalUsers,
		ActiveUsers:    s.ActiveUsers,
		TotalEmails:    s.TotalEmails,
		TotalStorageMB: s.TotalStorageMB,
		EmailActivity:  []model.JSONActivityV1{},
	}
	for _, a := range s.Activity {
		out.EmailActivity = append(out.EmailActivity, model.JSONActivityV1(a))
	}
	return out
}

// Roster is the admin view of all accounts.  Every mutation is followed by a re-fetch of both the
// roster and the statistics; nothing is updated optimistically.
type Roster struct {
	api     MailAPI
	adminID model.ID
	logger  zerolog.Logger

	mu    sync.Mutex
	users []AdminUser
	stats Stats
}

// Admin returns the roster for the active session.  Sessions without the admin flag are turned
// away locally; the admin function enforces access on its own.
func (c *Controller) Admin() (*Roster, error) {
	s, ok := c.Session()
	if !ok {
		return nil, ErrNoSession
	}
	if !s.IsAdmin {
		return nil, ErrNotAdmin
	}
	return &Roster{
		api:     c.api,
		adminID: s.UserID,
		logger:  c.logger.With().Str("admin", s.UserID.String()).Logger(),
	}, nil
}

// Refresh fetches the roster and the statistics.  Both are replaced only if both fetches
// succeed.
func (r *Roster) Refresh(ctx context.Context) error {
	users, err := r.api.AdminUsers(ctx, r.adminID)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to fetch roster")
		return fmt.Errorf("fetch users: %w", err)
	}
	stats, err := r.api.AdminStats(ctx, r.adminID)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to fetch stats")
		return fmt.Errorf("fetch stats: %w", err)
	}

	roster := make([]AdminUser, 0, len(users))
	for _, u := range users {
		if u != nil {
			roster = append(roster, adminUserFromJSON(u))
		}
	}

	r.mu.Lock()
	r.users = roster
	r.stats = statsFromJSON(stats)
	r.mu.Unlock()

	return nil
}

// ListUsers refreshes and returns the roster and statistics.
func (r *Roster) ListUsers(ctx context.Context) ([]AdminUser, Stats, error) {
	if err := r.Refresh(ctx); err != nil {
		return nil, Stats{}, err
	}
	return r.Users(), r.Stats(), nil
}

// Users returns the last fetched roster.
func (r *Roster) Users() []AdminUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AdminUser(nil), r.users...)
}

// Stats returns the last fetched statistics.
func (r *Roster) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Activity = append([]Activity(nil), r.stats.Activity...)
	return s
}

// ToggleUserActive flips an account between active and blocked, then refreshes.  Returns the new
// state reported by the admin function.
func (r *Roster) ToggleUserActive(ctx context.Context, id model.ID) (bool, error) {
	active, err := r.api.ToggleUserActive(ctx, r.adminID, id)
	if err != nil {
		r.logger.Warn().Str("user", id.String()).Err(err).Msg("Failed to toggle user")
		return false, fmt.Errorf("toggle user %v: %w", id, err)
	}
	r.logger.Info().Str("user", id.String()).Bool("active", active).Msg("Toggled user")

	return active, r.Refresh(ctx)
}

// UpdateStorageLimit sets an account's quota in megabytes, then refreshes.  A non-positive
// limit selects model.DefaultStorageLimit.
func (r *Roster) UpdateStorageLimit(ctx context.Context, id model.ID, limitMB int) error {
	if err := r.api.UpdateStorageLimit(ctx, r.adminID, id, limitMB); err != nil {
		r.logger.Warn().Str("user", id.String()).Err(err).Msg("Failed to update storage limit")
		return fmt.Errorf("update storage of %v: %w", id, err)
	}
	r.logger.Info().Str("user", id.String()).Int("limit_mb", limitMB).Msg("Updated storage limit")

	return r.Refresh(ctx)
}
