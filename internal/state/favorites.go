package state

import (
	"context"
	"maps"
	"slices"

	"booru_feed/internal/model"
)

// Favorites returns a copy of the favorites, most recent first.
func (l *Library) Favorites() model.Favorites {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return model.Favorites{
		IDs: slices.Clone(l.favorites.IDs),
		Map: maps.Clone(l.favorites.Map),
	}
}

// IsFavorite reports whether the post is a favorite.
func (l *Library) IsFavorite(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.favorites.Map[id]
	return ok
}

// ToggleFavorite adds the post to the front of the favorites or removes it.
// It reports whether the post is a favorite afterwards.
func (l *Library) ToggleFavorite(ctx context.Context, p model.Post) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.favorites.Map[p.ID]; ok {
		delete(l.favorites.Map, p.ID)
		l.favorites.IDs = slices.DeleteFunc(l.favorites.IDs, func(id string) bool { return id == p.ID })
		return false, l.save(ctx, KeyFavorites, l.favorites)
	}
	l.addFavoriteLocked(p)
	return true, l.save(ctx, KeyFavorites, l.favorites)
}

// AddFavorites adds posts that are not favorites yet, keeping their order at
// the front of the list. It returns how many were added.
func (l *Library) AddFavorites(ctx context.Context, posts []model.Post) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	added := 0
	for i := len(posts) - 1; i >= 0; i-- {
		p := posts[i]
		if p.ID == "" {
			continue
		}
		if _, ok := l.favorites.Map[p.ID]; ok {
			continue
		}
		l.addFavoriteLocked(p)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, l.save(ctx, KeyFavorites, l.favorites)
}

func (l *Library) addFavoriteLocked(p model.Post) {
	if l.favorites.Map == nil {
		l.favorites.Map = make(map[string]model.Post)
	}
	l.favorites.Map[p.ID] = p
	l.favorites.IDs = append([]string{p.ID}, l.favorites.IDs...)
}

// repairFavorites makes IDs and the keys of Map the same set: ids without a
// post and duplicate ids are dropped, posts missing from IDs are appended.
func repairFavorites(f model.Favorites) model.Favorites {
	out := model.Favorites{
		IDs: make([]string, 0, len(f.IDs)),
		Map: make(map[string]model.Post, len(f.Map)),
	}
	for _, id := range f.IDs {
		p, ok := f.Map[id]
		if !ok {
			continue
		}
		if _, dup := out.Map[id]; dup {
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		out.Map[id] = p
		out.IDs = append(out.IDs, id)
	}
	for _, id := range slices.Sorted(maps.Keys(f.Map)) {
		if _, ok := out.Map[id]; ok {
			continue
		}
		p := f.Map[id]
		if p.ID == "" {
			p.ID = id
		}
		out.Map[id] = p
		out.IDs = append(out.IDs, id)
	}
	return out
}
