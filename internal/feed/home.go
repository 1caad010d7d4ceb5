package feed

import (
	"context"

	"golang.org/x/sync/errgroup"

	"booru_feed/internal/model"
	"booru_feed/internal/query"
)

// PerGroupLimit is the page size used for each group of the home feed.
func PerGroupLimit(perPage, groups int) int {
	if groups < 1 {
		groups = 1
	}
	return max(2, (perPage+groups-1)/groups)
}

type groupFetch struct {
	group model.TagGroup
	page  int
	posts []model.Post
	err   error
}

// loadHome fetches the next page of every group that is not exhausted and
// interleaves the results. A failing group is skipped for this round.
func (s *Session) loadHome(ctx context.Context, epoch uint64) (Page, error) {
	st := s.settings()
	filters := s.lib.Filters()
	groups := s.lib.Groups()
	if len(groups) == 0 {
		return Page{ReachedEnd: true, Notice: NoticeNoGroups}, nil
	}
	limit := PerGroupLimit(st.PerPage, len(groups))

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return Page{}, ErrStale
	}
	s.pruneCursors(groups)
	var work []*groupFetch
	for _, g := range groups {
		c := s.cursor(g.ID)
		if c.exhausted {
			continue
		}
		work = append(work, &groupFetch{group: g, page: c.page})
	}
	s.mu.Unlock()

	var eg errgroup.Group
	eg.SetLimit(s.fanout)
	for _, w := range work {
		eg.Go(func() error {
			p := w.group.Provider
			if !p.Valid() {
				p = st.Provider
			}
			w.posts, w.err = s.fetch(ctx, p, query.ComposeSet(w.group.TagSet, filters), limit, w.page)
			return nil
		})
	}
	_ = eg.Wait()

	if ctx.Err() != nil {
		return Page{}, ctx.Err()
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return Page{}, ErrStale
	}
	var (
		buckets [][]model.Post
		failed  error
	)
	for _, w := range work {
		c := s.cursor(w.group.ID)
		switch {
		case w.err != nil:
			if failed == nil {
				failed = w.err
			}
			s.log.Warn("load group", "group_id", w.group.ID, "name", w.group.Name, "error", w.err)
		case len(w.posts) == 0:
			c.exhausted = true
			s.log.Debug("group exhausted", "group_id", w.group.ID, "page", w.page)
		default:
			c.page = w.page + 1
			buckets = append(buckets, w.posts)
		}
	}
	s.mu.Unlock()

	if len(buckets) == 0 {
		if failed != nil {
			return Page{ReachedEnd: true, Notice: Notice(ModeHome, failed), Err: failed}, nil
		}
		return Page{ReachedEnd: true, Notice: NoticeHomeEnd}, nil
	}
	for _, b := range buckets {
		s.shuffle(b)
	}

	fresh, ok := s.admit(epoch, Interleave(buckets, st.PerPage))
	if !ok {
		return Page{}, ErrStale
	}
	return Page{Added: fresh}, nil
}

// Interleave merges buckets round-robin, one item per bucket per round in
// bucket order, until limit items are taken or every bucket is drained.
func Interleave(buckets [][]model.Post, limit int) []model.Post {
	var out []model.Post
	for idx := 0; len(out) < limit; idx++ {
		pushed := false
		for _, b := range buckets {
			if idx >= len(b) {
				continue
			}
			out = append(out, b[idx])
			pushed = true
			if len(out) >= limit {
				break
			}
		}
		if !pushed {
			break
		}
	}
	return out
}

// HomeCursor reports the page cursor and exhausted flag of a group.
func (s *Session) HomeCursor(groupID string) (page int, exhausted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.home[groupID]
	if !ok {
		return 0, false
	}
	return c.page, c.exhausted
}

func (s *Session) cursor(id string) *groupCursor {
	c, ok := s.home[id]
	if !ok {
		c = &groupCursor{}
		s.home[id] = c
	}
	return c
}

func (s *Session) pruneCursors(groups []model.TagGroup) {
	keep := make(map[string]bool, len(groups))
	for _, g := range groups {
		keep[g.ID] = true
	}
	for id := range s.home {
		if !keep[id] {
			delete(s.home, id)
		}
	}
}
