package state

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"booru_feed/internal/model"
)

// Filter names accepted by SetFilter.
const (
	FilterAI    = "ai"
	FilterScat  = "scat"
	FilterShota = "shota"
)

// Filters returns a copy of the content filters.
func (l *Library) Filters() model.Filters {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f := l.filters
	f.CustomExclude = slices.Clone(f.CustomExclude)
	return f
}

// SetFilter switches one of the boolean filters.
func (l *Library) SetFilter(ctx context.Context, name string, on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FilterAI:
		l.filters.ExcludeAI = on
	case FilterScat:
		l.filters.ExcludeScat = on
	case FilterShota:
		l.filters.ExcludeShota = on
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	return l.save(ctx, KeyFilters, l.filters)
}

// AddCustomExclude adds a tag to the custom exclusion list. It reports
// false when the tag is empty or already listed.
func (l *Library) AddCustomExclude(ctx context.Context, tag string) (bool, error) {
	tag = strings.TrimLeft(model.NormalizeTag(tag), "-")
	if tag == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.filters.CustomExclude, tag) {
		return false, nil
	}
	l.filters.CustomExclude = append(l.filters.CustomExclude, tag)
	return true, l.save(ctx, KeyFilters, l.filters)
}

// RemoveCustomExclude removes a tag from the custom exclusion list.
func (l *Library) RemoveCustomExclude(ctx context.Context, tag string) (bool, error) {
	tag = strings.TrimLeft(model.NormalizeTag(tag), "-")
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.Index(l.filters.CustomExclude, tag)
	if i < 0 {
		return false, nil
	}
	l.filters.CustomExclude = slices.Delete(l.filters.CustomExclude, i, i+1)
	return true, l.save(ctx, KeyFilters, l.filters)
}

func normalizeFilters(f model.Filters) model.Filters {
	out := make([]string, 0, len(f.CustomExclude))
	for _, t := range f.CustomExclude {
		t = model.NormalizeTag(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	f.CustomExclude = out
	return f
}
