// Package site serves the public pages around the mail client: the visitor counter and the
// channel's video listing.  Failures are logged and never reach the caller.
package site

import (
	"context"
	"sync"
	"time"

	"github.com/artistmail/webmail/pkg/config"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultFeedTTL is how long a fetched video listing is reused.
const DefaultFeedTTL = 10 * time.Minute

// API is the subset of the remote client used by the site.  *client.Client implements it.
type API interface {
	RecordVisit(ctx context.Context) (*model.JSONVisitorsV1, error)
	Visitors(ctx context.Context) (*model.JSONVisitorsV1, error)
	Videos(ctx context.Context, handle string, maxResults int) (*model.JSONVideosV1, error)
}

// Visitors holds visitor counts.  Zero when the counter is unavailable.
type Visitors struct {
	Total   int64
	Last24h int64
}

// Counter records and reports page visits.
type Counter struct {
	api    API
	logger zerolog.Logger
}

// NewCounter creates a Counter.
func NewCounter(api API) *Counter {
	return &Counter{api: api, logger: log.With().Str("module", "site").Logger()}
}

// Visit records a visit and returns the updated counts.
func (c *Counter) Visit(ctx context.Context) Visitors {
	v, err := c.api.RecordVisit(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record visit")
		return Visitors{}
	}
	return Visitors{Total: v.Total, Last24h: v.Last24h}
}

// Counts returns the counts without recording a visit.
func (c *Counter) Counts(ctx context.Context) Visitors {
	v, err := c.api.Visitors(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to fetch visitor counts")
		return Visitors{}
	}
	return Visitors{Total: v.Total, Last24h: v.Last24h}
}

// Video is one upload of the channel.
type Video struct {
	ID          string
	Title       string
	Description string
	Thumbnail   string
	PublishedAt time.Time
}

// URL links to the video.
func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// Feed lists the channel's recent uploads.  A successful listing is reused for the TTL.
type Feed struct {
	api    API
	handle string
	max    int
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	videos  []Video
	fetched time.Time
}

// NewFeed creates a Feed for the configured channel.
func NewFeed(api API, conf config.Site) *Feed {
	return &Feed{
		api:    api,
		handle: conf.ChannelHandle,
		max:    conf.MaxVideos,
		ttl:    DefaultFeedTTL,
		now:    time.Now,
		logger: log.With().Str("module", "site").Str("channel", conf.ChannelHandle).Logger(),
	}
}

// Videos returns the channel's uploads, newest first as listed by the remote.  Empty on failure.
func (f *Feed) Videos(ctx context.Context) []Video {
	f.mu.Lock()
	if f.videos != nil && f.now().Sub(f.fetched) < f.ttl {
		out := append([]Video(nil), f.videos...)
		f.mu.Unlock()
		return out
	}
	f.mu.Unlock()

	listing, err := f.api.Videos(ctx, f.handle, f.max)
	if err != nil {
		f.logger.Warn().Err(err).Msg("Failed to list videos")
		return []Video{}
	}

	videos := make([]Video, 0, len(listing.Videos))
	for _, v := range listing.Videos {
		if v == nil {
			continue
		}
		videos = append(videos, Video{
			ID:          v.VideoID,
			Title:       v.Title,
			Description: v.Description,
			Thumbnail:   v.Thumbnail,
			PublishedAt: v.PublishedAt.Time,
		})
	}
	f.logger.Debug().Int("count", len(videos)).Msg("Listed videos")

	f.mu.Lock()
	f.videos = videos
	f.fetched = f.now()
	f.mu.Unlock()

	return append([]Video(nil), videos...)
}

// Expire forces the next call to Videos to fetch.
func (f *Feed) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = nil
}
