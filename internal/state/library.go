// Package state holds the persisted user library: settings, content
// filters, saved tag groups and favorites. Every mutation is written
// through to storage immediately.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"booru_feed/internal/model"
	"booru_feed/internal/storage"
)

// Storage keys of the persisted blobs.
const (
	KeySettings  = "settings"
	KeyFilters   = "filters"
	KeyGroups    = "groups"
	KeyFavorites = "favorites"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrEmptyName       = errors.New("name must not be empty")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownFilter   = errors.New("unknown filter")
)

// Library is the in-memory view of the persisted blobs. It is safe for concurrent use.
type Library struct {
	kv  storage.KV
	log *slog.Logger

	mu        sync.RWMutex
	settings  model.Settings
	filters   model.Filters
	groups    []model.TagGroup
	favorites model.Favorites
}

// Load reads every blob from kv. Missing or unreadable blobs fall back to
// their defaults; only storage failures are returned.
func Load(ctx context.Context, kv storage.KV, log *slog.Logger) (*Library, error) {
	l := &Library{kv: kv, log: log}

	settings, err := loadBlob(ctx, l, KeySettings, model.DefaultSettings)
	if err != nil {
		return nil, err
	}
	filters, err := loadBlob(ctx, l, KeyFilters, model.DefaultFilters)
	if err != nil {
		return nil, err
	}
	groups, err := loadBlob(ctx, l, KeyGroups, func() []model.TagGroup { return nil })
	if err != nil {
		return nil, err
	}
	favorites, err := loadBlob(ctx, l, KeyFavorites, func() model.Favorites { return model.Favorites{} })
	if err != nil {
		return nil, err
	}

	l.settings = normalizeSettings(settings)
	l.filters = normalizeFilters(filters)
	l.groups = normalizeGroups(groups)
	l.favorites = repairFavorites(favorites)
	return l, nil
}

// loadBlob decodes key over a fresh default value. A missing key or a blob
// that does not decode yields the default.
func loadBlob[T any](ctx context.Context, l *Library, key string, def func() T) (T, error) {
	data, err := l.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return def(), nil
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %s: %w", key, err)
	}

	v := def()
	if err := json.Unmarshal(data, &v); err != nil {
		l.log.Warn("corrupt blob, using defaults", "key", key, "error", err)
		return def(), nil
	}
	return v, nil
}

func (l *Library) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := l.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Settings returns the current settings.
func (l *Library) Settings() model.Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings
}

// SetProvider selects the provider used for searches and groups without their own.
func (l *Library) SetProvider(ctx context.Context, p model.Provider) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return l.updateSettings(ctx, func(s *model.Settings) { s.Provider = p })
}

// SetProxy sets the CORS proxy. An empty proxy disables proxying.
func (l *Library) SetProxy(ctx context.Context, proxy string) error {
	return l.updateSettings(ctx, func(s *model.Settings) { s.CORSProxy = strings.TrimSpace(proxy) })
}

// SetProxyImages controls whether media URLs are proxied too.
func (l *Library) SetProxyImages(ctx context.Context, on bool) error {
	return l.updateSettings(ctx, func(s *model.Settings) { s.ProxyImages = on })
}

// SetCredentials stores the API credential pair. Empty values clear it.
func (l *Library) SetCredentials(ctx context.Context, userID, apiKey string) error {
	return l.updateSettings(ctx, func(s *model.Settings) {
		s.APIUserID = strings.TrimSpace(userID)
		s.APIKey = strings.TrimSpace(apiKey)
	})
}

// SetPerPage sets the page size and returns the stored, clamped value.
func (l *Library) SetPerPage(ctx context.Context, n int) (int, error) {
	var stored int
	err := l.updateSettings(ctx, func(s *model.Settings) {
		s.PerPage = n
		*s = normalizeSettings(*s)
		stored = s.PerPage
	})
	return stored, err
}

func (l *Library) updateSettings(ctx context.Context, fn func(*model.Settings)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.settings
	fn(&s)
	l.settings = normalizeSettings(s)
	return l.save(ctx, KeySettings, l.settings)
}

func normalizeSettings(s model.Settings) model.Settings {
	if !s.Provider.Valid() {
		s.Provider = model.ProviderRule34
	}
	switch {
	case s.PerPage <= 0:
		s.PerPage = 1
	case s.PerPage > model.MaxPerPage:
		s.PerPage = model.MaxPerPage
	}
	return s
}
