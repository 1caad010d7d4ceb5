package feed

import (
	"context"

	"booru_feed/internal/query"
)

type searchState int

const (
	searchLoading searchState = iota
	searchRetryPending
	searchRetryLoading
	searchIdle
	searchEnd
)

// loadSearch fetches the page at the search cursor. A page that adds nothing
// new is followed by exactly one fetch of the next page; only an empty
// second page ends the search. The end carries NoticeNoResults when the
// search never produced a post.
func (s *Session) loadSearch(ctx context.Context, epoch uint64) (Page, error) {
	st := s.settings()
	filters := s.lib.Filters()

	s.mu.Lock()
	q := query.ComposeSet(s.search, filters)
	first := s.searchPage
	s.mu.Unlock()

	var (
		page  Page
		next  int
		state = searchLoading
	)
	for {
		switch state {
		case searchLoading:
			posts, err := s.fetch(ctx, st.Provider, q, st.PerPage, first)
			if err != nil {
				return s.fail(ctx, ModeSearch, err)
			}
			fresh, ok := s.admit(epoch, posts)
			if !ok {
				return Page{}, ErrStale
			}
			if len(fresh) > 0 {
				page.Added = fresh
				next = first + 1
				state = searchIdle
				continue
			}
			state = searchRetryPending

		case searchRetryPending:
			s.log.Debug("search page added nothing, retrying next page", "page", first)
			state = searchRetryLoading

		case searchRetryLoading:
			posts, err := s.fetch(ctx, st.Provider, q, st.PerPage, first+1)
			if err != nil {
				return s.fail(ctx, ModeSearch, err)
			}
			if len(posts) == 0 {
				state = searchEnd
				continue
			}
			fresh, ok := s.admit(epoch, posts)
			if !ok {
				return Page{}, ErrStale
			}
			page.Added = fresh
			next = first + 2
			state = searchIdle

		case searchIdle:
			if !s.advanceSearch(epoch, next) {
				return Page{}, ErrStale
			}
			return page, nil

		case searchEnd:
			if !s.advanceSearch(epoch, first+1) {
				return Page{}, ErrStale
			}
			end := Page{ReachedEnd: true}
			s.mu.Lock()
			if len(s.seen) == 0 {
				end.Notice = NoticeNoResults
			}
			s.mu.Unlock()
			return end, nil
		}
	}
}

func (s *Session) advanceSearch(epoch uint64, page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.searchPage = page
	return true
}

// SearchPage returns the search cursor: the page the next search load starts at.
func (s *Session) SearchPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchPage
}

// ComposedSearch returns the query string the next search load sends.
func (s *Session) ComposedSearch() string {
	s.mu.Lock()
	tags := s.search.Clone()
	s.mu.Unlock()
	return query.ComposeSet(tags, s.lib.Filters())
}
