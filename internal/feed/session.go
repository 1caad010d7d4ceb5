// Package feed implements paginated post feeds: tag search, the merged
// home feed of saved groups and the favorites list. A Session owns all
// pagination state of one viewer.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"booru_feed/internal/model"
	"booru_feed/internal/provider"
	"booru_feed/internal/sanitize"
)

// Mode selects which feed a Session paginates.
type Mode int

// Feed modes.
const (
	ModeSearch Mode = iota
	ModeHome
	ModeFavorites
)

func (m Mode) String() string {
	switch m {
	case ModeSearch:
		return "search"
	case ModeHome:
		return "home"
	case ModeFavorites:
		return "favorites"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var (
	// ErrBusy is returned by LoadNext while another load of the same feed is in flight.
	ErrBusy = errors.New("feed is already loading")
	// ErrStale is returned when the feed was reset while the load was in flight.
	// The fetched posts are discarded.
	ErrStale = errors.New("feed was reset during load")
)

// Page is the outcome of one LoadNext call.
type Page struct {
	// Added holds the posts not emitted before in this feed, in display order.
	Added []model.Post
	// ReachedEnd is set once the feed has nothing more to load.
	ReachedEnd bool
	// Notice is a user-facing message accompanying the end of the feed.
	Notice string
	// Err is the failure that ended the feed, if any.
	Err error
}

// Lister fetches one page of raw posts.
type Lister interface {
	ListPosts(ctx context.Context, req provider.ListRequest) (provider.RawResult, error)
}

// Library is the read side of the persisted user library.
type Library interface {
	Settings() model.Settings
	Filters() model.Filters
	Groups() []model.TagGroup
	Favorites() model.Favorites
}

type groupCursor struct {
	page      int
	exhausted bool
}

// Session holds the pagination state of one feed view. It is safe for
// concurrent use; the lock is never held across network calls.
type Session struct {
	lister  Lister
	lib     Library
	log     *slog.Logger
	shuffle func([]model.Post)
	fanout  int

	mu         sync.Mutex
	mode       Mode
	epoch      uint64
	loading    bool
	reachedEnd bool
	seen       map[string]model.Post
	search     model.TagSet
	searchPage int
	home       map[string]*groupCursor
}

// NewSession creates a Session in search mode with an empty query.
func NewSession(lister Lister, lib Library, log *slog.Logger) *Session {
	return &Session{
		lister:  lister,
		lib:     lib,
		log:     log,
		shuffle: shufflePosts,
		fanout:  4,
		seen:    make(map[string]model.Post),
		home:    make(map[string]*groupCursor),
	}
}

// SetShuffle overrides the per-group bucket shuffle of the home feed.
func (s *Session) SetShuffle(fn func([]model.Post)) {
	s.shuffle = fn
}

// SetHomeConcurrency overrides how many groups the home feed fetches at once.
func (s *Session) SetHomeConcurrency(n int) {
	s.fanout = max(n, 1)
}

// Mode returns the active feed mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SearchTags returns a copy of the current search tags.
func (s *Session) SearchTags() model.TagSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search.Clone()
}

// SwitchMode selects a feed. Switching to the active mode keeps the feed as is;
// any other switch clears it.
func (s *Session) SwitchMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == m {
		return
	}
	s.mode = m
	s.resetLocked()
}

// Search submits a new search: the tags replace the current search state and
// the feed is cleared in search mode.
func (s *Session) Search(tags model.TagSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = tags.Clone()
	s.mode = ModeSearch
	s.resetLocked()
}

// ClearSearch empties the search tags and clears the feed if it is in search mode.
func (s *Session) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = model.TagSet{}
	if s.mode == ModeSearch {
		s.resetLocked()
	}
}

// Reset clears the feed: seen posts, cursors and the end flag. Loads in
// flight at the time of the reset end with ErrStale.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.epoch++
	s.loading = false
	s.reachedEnd = false
	s.seen = make(map[string]model.Post)
	s.searchPage = 0
	s.home = make(map[string]*groupCursor)
}

// Post returns a post emitted by the current feed.
func (s *Session) Post(id string) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.seen[id]
	return p, ok
}

// LoadNext loads the next page of the active feed. Fetch failures end the
// feed and are reported through Page.Notice and Page.Err; the returned error
// is ErrBusy, ErrStale or a context error.
func (s *Session) LoadNext(ctx context.Context) (Page, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return Page{}, ErrBusy
	}
	if s.reachedEnd {
		s.mu.Unlock()
		return Page{ReachedEnd: true}, nil
	}
	s.loading = true
	epoch, mode := s.epoch, s.mode
	s.mu.Unlock()

	var (
		page Page
		err  error
	)
	switch mode {
	case ModeSearch:
		page, err = s.loadSearch(ctx, epoch)
	case ModeHome:
		page, err = s.loadHome(ctx, epoch)
	case ModeFavorites:
		page, err = s.loadFavorites(epoch)
	default:
		err = fmt.Errorf("unknown feed mode %v", mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return Page{}, ErrStale
	}
	s.loading = false
	if err != nil {
		return Page{}, err
	}
	if page.ReachedEnd {
		s.reachedEnd = true
	}
	return page, nil
}

// fetch lists and sanitizes one page.
func (s *Session) fetch(ctx context.Context, p model.Provider, query string, limit, page int) ([]model.Post, error) {
	res, err := s.lister.ListPosts(ctx, provider.ListRequest{
		Provider: p,
		Query:    query,
		Limit:    limit,
		Page:     page,
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return sanitize.Posts(res)
}

// admit records the posts not seen in this epoch and returns them in order.
// It reports false when the epoch is no longer current.
func (s *Session) admit(epoch uint64, posts []model.Post) ([]model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil, false
	}
	var fresh []model.Post
	for _, p := range posts {
		if _, ok := s.seen[p.ID]; ok {
			continue
		}
		s.seen[p.ID] = p
		fresh = append(fresh, p)
	}
	return fresh, true
}

// fail turns a load failure into the terminal page of the feed. Caller
// cancellation is returned as an error instead so the feed stays resumable.
func (s *Session) fail(ctx context.Context, mode Mode, err error) (Page, error) {
	if ctx.Err() != nil {
		return Page{}, ctx.Err()
	}
	s.log.Warn("load feed", "mode", mode.String(), "error", err)
	return Page{ReachedEnd: true, Notice: Notice(mode, err), Err: err}, nil
}

func (s *Session) settings() model.Settings {
	st := s.lib.Settings()
	if !st.Provider.Valid() {
		st.Provider = model.ProviderRule34
	}
	if st.PerPage <= 0 {
		st.PerPage = model.DefaultPerPage
	}
	return st
}

func shufflePosts(posts []model.Post) {
	rand.Shuffle(len(posts), func(i, j int) { posts[i], posts[j] = posts[j], posts[i] })
}
