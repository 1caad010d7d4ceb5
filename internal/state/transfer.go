package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"booru_feed/internal/model"
)

// ExportVersion is the version tag written into exported documents.
const ExportVersion = 1

// Export is the document produced by Export and read by Import.
type Export struct {
	Settings  model.Settings   `json:"settings"`
	Groups    []model.TagGroup `json:"groups"`
	Favorites model.Favorites  `json:"favorites"`
	Filters   model.Filters    `json:"filters"`
	Version   int              `json:"v"`
}

// Export renders the whole library as indented JSON.
func (l *Library) Export() ([]byte, error) {
	doc := Export{
		Settings:  l.Settings(),
		Groups:    l.Groups(),
		Favorites: l.Favorites(),
		Filters:   l.Filters(),
		Version:   ExportVersion,
	}
	if doc.Groups == nil {
		doc.Groups = []model.TagGroup{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return data, nil
}

// Import replaces the sections present in an exported document. Settings
// and filters are merged onto their defaults; groups and favorites replace
// the current ones wholesale. Every section is decoded before any is
// applied, so a malformed document leaves the library untouched.
func (l *Library) Import(ctx context.Context, data []byte) error {
	var doc struct {
		Settings  json.RawMessage `json:"settings"`
		Groups    json.RawMessage `json:"groups"`
		Favorites json.RawMessage `json:"favorites"`
		Filters   json.RawMessage `json:"filters"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode import: %w", err)
	}

	var (
		settings  *model.Settings
		groups    *[]model.TagGroup
		favorites *model.Favorites
		filters   *model.Filters
	)
	if present(doc.Settings) {
		s := model.DefaultSettings()
		if err := json.Unmarshal(doc.Settings, &s); err != nil {
			return fmt.Errorf("decode settings: %w", err)
		}
		s = normalizeSettings(s)
		settings = &s
	}
	if present(doc.Groups) && doc.Groups[0] == '[' {
		var g []model.TagGroup
		if err := json.Unmarshal(doc.Groups, &g); err != nil {
			return fmt.Errorf("decode groups: %w", err)
		}
		g = normalizeGroups(g)
		groups = &g
	}
	if present(doc.Favorites) {
		var fav model.Favorites
		if err := json.Unmarshal(doc.Favorites, &fav); err != nil {
			return fmt.Errorf("decode favorites: %w", err)
		}
		fav = repairFavorites(fav)
		favorites = &fav
	}
	if present(doc.Filters) {
		f := model.DefaultFilters()
		if err := json.Unmarshal(doc.Filters, &f); err != nil {
			return fmt.Errorf("decode filters: %w", err)
		}
		f = normalizeFilters(f)
		filters = &f
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if settings != nil {
		l.settings = *settings
		errs = append(errs, l.save(ctx, KeySettings, l.settings))
	}
	if groups != nil {
		l.groups = *groups
		errs = append(errs, l.save(ctx, KeyGroups, l.groups))
	}
	if favorites != nil {
		l.favorites = *favorites
		errs = append(errs, l.save(ctx, KeyFavorites, l.favorites))
	}
	if filters != nil {
		l.filters = *filters
		errs = append(errs, l.save(ctx, KeyFilters, l.filters))
	}
	return errors.Join(errs...)
}

// Reset deletes every blob and returns the library to its defaults.
func (l *Library) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, key := range []string{KeySettings, KeyGroups, KeyFavorites, KeyFilters} {
		if err := l.kv.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", key, err))
		}
	}
	l.settings = model.DefaultSettings()
	l.filters = model.DefaultFilters()
	l.groups = nil
	l.favorites = repairFavorites(model.Favorites{})
	return errors.Join(errs...)
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
