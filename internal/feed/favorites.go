package feed

import "booru_feed/internal/model"

// loadFavorites emits every stored favorite in stored order. The list is
// local, so a single page always completes the feed.
func (s *Session) loadFavorites(epoch uint64) (Page, error) {
	fav := s.lib.Favorites()
	if len(fav.IDs) == 0 {
		return Page{ReachedEnd: true, Notice: NoticeNoFavorites}, nil
	}

	posts := make([]model.Post, 0, len(fav.IDs))
	for _, id := range fav.IDs {
		if p, ok := fav.Map[id]; ok {
			posts = append(posts, p)
		}
	}
	fresh, ok := s.admit(epoch, posts)
	if !ok {
		return Page{}, ErrStale
	}
	return Page{Added: fresh, ReachedEnd: true}, nil
}
