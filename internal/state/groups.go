package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"booru_feed/internal/model"
)

// Groups returns a copy of the saved tag groups in display order.
func (l *Library) Groups() []model.TagGroup {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.TagGroup, len(l.groups))
	for i, g := range l.groups {
		out[i] = cloneGroup(g)
	}
	return out
}

// Group returns the group with the given id.
func (l *Library) Group(id string) (model.TagGroup, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, g := range l.groups {
		if g.ID == id {
			return cloneGroup(g), true
		}
	}
	return model.TagGroup{}, false
}

// AddGroup creates an empty group. An invalid provider leaves the group on
// the default provider.
func (l *Library) AddGroup(ctx context.Context, name string, p model.Provider) (model.TagGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.TagGroup{}, ErrEmptyName
	}
	if !p.Valid() {
		p = ""
	}
	g := model.TagGroup{ID: uuid.NewString(), Name: name, Provider: p}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.groups = append(l.groups, g)
	return cloneGroup(g), l.save(ctx, KeyGroups, l.groups)
}

// RenameGroup changes a group's display name.
func (l *Library) RenameGroup(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return l.updateGroup(ctx, id, func(g *model.TagGroup) bool {
		g.Name = name
		return true
	})
}

// SetGroupProvider pins a group to a provider.
func (l *Library) SetGroupProvider(ctx context.Context, id string, p model.Provider) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return l.updateGroup(ctx, id, func(g *model.TagGroup) bool {
		g.Provider = p
		return true
	})
}

// AddGroupTag adds a tag to a group; a leading "-" adds it as an exclusion.
// It reports false when the tag normalizes to nothing.
func (l *Library) AddGroupTag(ctx context.Context, id, raw string) (bool, error) {
	var added bool
	err := l.updateGroup(ctx, id, func(g *model.TagGroup) bool {
		added = g.Add(raw)
		return added
	})
	return added, err
}

// RemoveGroupTag removes a tag from a group's include or exclude list.
func (l *Library) RemoveGroupTag(ctx context.Context, id, tag string, excluded bool) (bool, error) {
	var removed bool
	err := l.updateGroup(ctx, id, func(g *model.TagGroup) bool {
		removed = g.Remove(tag, excluded)
		return removed
	})
	return removed, err
}

// ToggleGroupTag moves a tag between a group's include and exclude lists.
// excluded tells which list the tag is in now.
func (l *Library) ToggleGroupTag(ctx context.Context, id, tag string, excluded bool) (bool, error) {
	var moved bool
	err := l.updateGroup(ctx, id, func(g *model.TagGroup) bool {
		moved = g.Toggle(tag, excluded)
		return moved
	})
	return moved, err
}

// SetGroupCollapsed stores the collapsed flag of a group.
func (l *Library) SetGroupCollapsed(ctx context.Context, id string, collapsed bool) error {
	return l.updateGroup(ctx, id, func(g *model.TagGroup) bool {
		g.Collapsed = collapsed
		return true
	})
}

// DeleteGroup removes a group.
func (l *Library) DeleteGroup(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, g := range l.groups {
		if g.ID == id {
			l.groups = append(l.groups[:i:i], l.groups[i+1:]...)
			return l.save(ctx, KeyGroups, l.groups)
		}
	}
	return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
}

// updateGroup applies fn to the group and saves when fn reports a change.
func (l *Library) updateGroup(ctx context.Context, id string, fn func(*model.TagGroup) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.groups {
		if l.groups[i].ID != id {
			continue
		}
		if !fn(&l.groups[i]) {
			return nil
		}
		return l.save(ctx, KeyGroups, l.groups)
	}
	return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
}

func cloneGroup(g model.TagGroup) model.TagGroup {
	g.TagSet = g.TagSet.Clone()
	return g
}

// normalizeGroups gives every group an id, drops duplicate ids and
// normalizes the tag lists of loaded or imported groups.
func normalizeGroups(groups []model.TagGroup) []model.TagGroup {
	out := make([]model.TagGroup, 0, len(groups))
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		if !g.Provider.Valid() {
			g.Provider = ""
		}
		var tags model.TagSet
		for _, t := range g.Include {
			tags.Add(strings.TrimLeft(t, "-"))
		}
		for _, t := range g.Exclude {
			tags.Add("-" + strings.TrimLeft(t, "-"))
		}
		g.TagSet = tags
		out = append(out, g)
	}
	return out
}
