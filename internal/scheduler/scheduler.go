// Package scheduler watches saved tag groups and pushes newly appearing
// posts to a chat.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"booru_feed/internal/feed"
	"booru_feed/internal/model"
	"booru_feed/internal/provider"
	"booru_feed/internal/query"
	"booru_feed/internal/sanitize"
	"booru_feed/internal/storage"
)

// MaxPostsPerTick caps how many posts of one group are sent per check.
const MaxPostsPerTick = 5

// Sender delivers one post to a chat.
type Sender interface {
	SendPost(ctx context.Context, chatID int64, header string, p model.Post)
}

// Library is the part of the user library the watcher reads.
type Library interface {
	Settings() model.Settings
	Filters() model.Filters
	Groups() []model.TagGroup
}

// Scheduler periodically checks saved groups and sends new posts.
type Scheduler struct {
	store  storage.Storage
	lister feed.Lister
	lib    Library
	sender Sender
	chatID int64
	log    *slog.Logger
	tick   time.Duration
	pause  time.Duration
}

// New creates a Scheduler that sends to chatID every 30 minutes.
func New(store storage.Storage, lister feed.Lister, lib Library, sender Sender, chatID int64, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		lister: lister,
		lib:    lib,
		sender: sender,
		chatID: chatID,
		log:    log,
		tick:   30 * time.Minute,
		pause:  50 * time.Millisecond,
	}
}

// SetTickInterval overrides the default 30-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	settings := s.lib.Settings()
	filters := s.lib.Filters()

	for _, g := range s.lib.Groups() {
		if ctx.Err() != nil {
			return
		}
		if g.Empty() {
			continue
		}
		s.processGroup(ctx, g, settings, filters)
	}
}

func (s *Scheduler) processGroup(ctx context.Context, g model.TagGroup, settings model.Settings, filters model.Filters) {
	p := g.Provider
	if !p.Valid() {
		p = settings.Provider
	}
	q := query.ComposeSet(g.TagSet, filters)
	s.log.Debug("checking group", "group_id", g.ID, "name", g.Name, "query", q)

	res, err := s.lister.ListPosts(ctx, provider.ListRequest{
		Provider: p,
		Query:    q,
		Limit:    max(settings.PerPage, 1),
	})
	if err != nil {
		if provider.IsFetchFailure(err) {
			s.log.Warn("list posts failed, retrying next tick", "group_id", g.ID, "error", err)
			return
		}
		s.log.Error("list posts", "group_id", g.ID, "error", err)
		return
	}
	posts, err := sanitize.Posts(res)
	if err != nil {
		s.log.Error("sanitize posts", "group_id", g.ID, "error", err)
		return
	}

	count, err := s.store.CountSeen(ctx, g.ID)
	if err != nil {
		s.log.Error("count seen", "group_id", g.ID, "error", err)
		return
	}
	// The first pass only establishes what already exists.
	backfill := count == 0

	sent := 0
	for _, post := range posts {
		if ctx.Err() != nil {
			return
		}
		seen, err := s.store.IsSeen(ctx, g.ID, post.ID)
		if err != nil {
			s.log.Error("check seen", "group_id", g.ID, "post_id", post.ID, "error", err)
			continue
		}
		if seen {
			continue
		}
		if !backfill {
			if sent >= MaxPostsPerTick {
				break
			}
			s.sender.SendPost(ctx, s.chatID, g.Name, post)
			sent++
		}

		if err := s.store.MarkSeen(ctx, g.ID, post.ID); err != nil {
			s.log.Error("mark seen", "group_id", g.ID, "post_id", post.ID, "error", err)
		}

		if !backfill {
			// Rate limit: ~20 messages/sec max for Telegram
			time.Sleep(s.pause)
		}
	}

	if backfill {
		s.log.Info("recorded existing posts", "group_id", g.ID, "name", g.Name, "count", len(posts))
	} else if sent > 0 {
		s.log.Info("sent posts", "group_id", g.ID, "name", g.Name, "count", sent)
	}
}
