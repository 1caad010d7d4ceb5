package state

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"booru_feed/internal/model"
	"booru_feed/internal/storage"
)

type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	putErr  error
	getErr  error
	puts    map[string]int
	deletes []string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte), puts: make(map[string]int)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = append([]byte(nil), value...)
	m.puts[key]++
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deletes = append(m.deletes, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustLoad(t *testing.T, kv storage.KV) *Library {
	t.Helper()
	l, err := Load(context.Background(), kv, testLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return l
}

var ignoreGroupIDs = cmpopts.IgnoreFields(model.TagGroup{}, "ID")

func TestLoadDefaults(t *testing.T) {
	l := mustLoad(t, newMemKV())

	if diff := cmp.Diff(model.DefaultSettings(), l.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.DefaultFilters(), l.Filters()); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
	if len(l.Groups()) != 0 {
		t.Errorf("expected no groups, got %v", l.Groups())
	}
	if len(l.Favorites().IDs) != 0 {
		t.Errorf("expected no favorites, got %v", l.Favorites())
	}
	if !l.Filters().ExcludeShota {
		t.Error("shota filter must default to on")
	}
}

func TestLoadCorruptBlobsFallBack(t *testing.T) {
	kv := newMemKV()
	kv.data[KeySettings] = []byte(`{"provider":`)
	kv.data[KeyGroups] = []byte(`{"not":"a list"}`)
	kv.data[KeyFilters] = []byte(`{"excludeAI":true}`)

	l := mustLoad(t, kv)

	if diff := cmp.Diff(model.DefaultSettings(), l.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if len(l.Groups()) != 0 {
		t.Errorf("expected no groups, got %v", l.Groups())
	}
	// Partial blobs merge onto the defaults.
	want := model.Filters{ExcludeShota: true, ExcludeAI: true, CustomExclude: []string{}}
	if diff := cmp.Diff(want, l.Filters()); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadStorageFailure(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("disk gone")
	if _, err := Load(context.Background(), kv, testLogger()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestMutationsPersistImmediately(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	l := mustLoad(t, store)
	if err := l.SetProvider(ctx, model.ProviderRealbooru); err != nil {
		t.Fatalf("set provider: %v", err)
	}
	if err := l.SetProxy(ctx, " https://corsproxy.io/? "); err != nil {
		t.Fatalf("set proxy: %v", err)
	}
	if err := l.SetCredentials(ctx, "42", "secret"); err != nil {
		t.Fatalf("set credentials: %v", err)
	}
	if n, err := l.SetPerPage(ctx, 500); err != nil || n != model.MaxPerPage {
		t.Fatalf("set per page = %d, %v; want %d", n, err, model.MaxPerPage)
	}
	if err := l.SetFilter(ctx, FilterAI, true); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if _, err := l.AddCustomExclude(ctx, "Furry Art"); err != nil {
		t.Fatalf("add custom exclude: %v", err)
	}
	g, err := l.AddGroup(ctx, "Samus", "")
	if err != nil {
		t.Fatalf("add group: %v", err)
	}
	if _, err := l.AddGroupTag(ctx, g.ID, "Samus Aran"); err != nil {
		t.Fatalf("add group tag: %v", err)
	}
	if _, err := l.AddGroupTag(ctx, g.ID, "-solo"); err != nil {
		t.Fatalf("add group tag: %v", err)
	}
	if _, err := l.ToggleFavorite(ctx, model.Post{ID: "7", FileURL: "http://x/7.jpg"}); err != nil {
		t.Fatalf("toggle favorite: %v", err)
	}

	reloaded := mustLoad(t, store)

	wantSettings := model.Settings{
		Provider:  model.ProviderRealbooru,
		CORSProxy: "https://corsproxy.io/?",
		APIUserID: "42",
		APIKey:    "secret",
		PerPage:   model.MaxPerPage,
	}
	if diff := cmp.Diff(wantSettings, reloaded.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	wantFilters := model.Filters{ExcludeShota: true, ExcludeAI: true, CustomExclude: []string{"furry_art"}}
	if diff := cmp.Diff(wantFilters, reloaded.Filters()); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
	wantGroups := []model.TagGroup{{
		ID:     g.ID,
		Name:   "Samus",
		TagSet: model.TagSet{Include: []string{"samus_aran"}, Exclude: []string{"solo"}},
	}}
	if diff := cmp.Diff(wantGroups, reloaded.Groups()); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
	if !reloaded.IsFavorite("7") {
		t.Error("favorite not persisted")
	}
}

func TestSetPerPageClamps(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: 0, want: 1},
		{in: -5, want: 1},
		{in: 42, want: 42},
		{in: 101, want: 100},
	}
	l := mustLoad(t, newMemKV())
	for _, tt := range tests {
		got, err := l.SetPerPage(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("set per page: %v", err)
		}
		if got != tt.want || l.Settings().PerPage != tt.want {
			t.Errorf("SetPerPage(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSettingsValidation(t *testing.T) {
	ctx := context.Background()
	l := mustLoad(t, newMemKV())

	if err := l.SetProvider(ctx, "danbooru"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
	if err := l.SetFilter(ctx, "gore", true); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("expected ErrUnknownFilter, got %v", err)
	}
}

func TestCustomExclude(t *testing.T) {
	ctx := context.Background()
	l := mustLoad(t, newMemKV())

	steps := []struct {
		add  bool
		tag  string
		want bool
	}{
		{add: true, tag: "Gore", want: true},
		{add: true, tag: "gore", want: false},
		{add: true, tag: "-blood", want: true},
		{add: true, tag: "  ", want: false},
		{add: false, tag: "GORE", want: true},
		{add: false, tag: "gore", want: false},
	}
	for _, s := range steps {
		var got bool
		var err error
		if s.add {
			got, err = l.AddCustomExclude(ctx, s.tag)
		} else {
			got, err = l.RemoveCustomExclude(ctx, s.tag)
		}
		if err != nil {
			t.Fatalf("%q: %v", s.tag, err)
		}
		if got != s.want {
			t.Errorf("add=%v %q = %v, want %v", s.add, s.tag, got, s.want)
		}
	}

	if diff := cmp.Diff([]string{"blood"}, l.Filters().CustomExclude); diff != "" {
		t.Errorf("custom exclude mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupOperations(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	l := mustLoad(t, kv)

	if _, err := l.AddGroup(ctx, "  ", ""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}

	a, _ := l.AddGroup(ctx, "A", model.ProviderRule34)
	b, _ := l.AddGroup(ctx, "B", "bogus")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct generated ids, got %q and %q", a.ID, b.ID)
	}
	if b.Provider != "" {
		t.Errorf("invalid provider must fall back to default, got %q", b.Provider)
	}

	if err := l.RenameGroup(ctx, a.ID, "Alpha"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := l.SetGroupProvider(ctx, b.ID, model.ProviderRealbooru); err != nil {
		t.Fatalf("set provider: %v", err)
	}
	if _, err := l.AddGroupTag(ctx, a.ID, "beach"); err != nil {
		t.Fatalf("add tag: %v", err)
	}
	if moved, err := l.ToggleGroupTag(ctx, a.ID, "beach", false); err != nil || !moved {
		t.Fatalf("toggle = %v, %v", moved, err)
	}
	if err := l.SetGroupCollapsed(ctx, a.ID, true); err != nil {
		t.Fatalf("collapse: %v", err)
	}
	if removed, err := l.RemoveGroupTag(ctx, a.ID, "missing", false); err != nil || removed {
		t.Errorf("remove missing tag = %v, %v", removed, err)
	}

	want := []model.TagGroup{
		{Name: "Alpha", Provider: model.ProviderRule34, TagSet: model.TagSet{Exclude: []string{"beach"}}, Collapsed: true},
		{Name: "B", Provider: model.ProviderRealbooru},
	}
	if diff := cmp.Diff(want, l.Groups(), ignoreGroupIDs, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}

	if err := l.DeleteGroup(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := l.Group(a.ID); ok {
		t.Error("deleted group still present")
	}
	if err := l.DeleteGroup(ctx, a.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("expected ErrGroupNotFound, got %v", err)
	}
	if err := l.RenameGroup(ctx, "nope", "x"); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("expected ErrGroupNotFound, got %v", err)
	}

	// Groups() hands out copies.
	gs := l.Groups()
	gs[0].Name = "mutated"
	if g, _ := l.Group(b.ID); g.Name != "B" {
		t.Error("Groups must return a copy")
	}
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	l := mustLoad(t, kv)

	for _, id := range []string{"1", "2", "3"} {
		added, err := l.ToggleFavorite(ctx, model.Post{ID: id, FileURL: "http://x/" + id + ".jpg"})
		if err != nil || !added {
			t.Fatalf("toggle %s = %v, %v", id, added, err)
		}
	}
	if diff := cmp.Diff([]string{"3", "2", "1"}, l.Favorites().IDs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	added, err := l.ToggleFavorite(ctx, model.Post{ID: "2"})
	if err != nil || added {
		t.Fatalf("untoggle = %v, %v", added, err)
	}
	fav := l.Favorites()
	if diff := cmp.Diff([]string{"3", "1"}, fav.IDs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if _, ok := fav.Map["2"]; ok {
		t.Error("removed favorite still in map")
	}
	if diff := cmp.Diff(4, kv.puts[KeyFavorites]); diff != "" {
		t.Errorf("every change must be saved (-want +got):\n%s", diff)
	}

	n, err := l.AddFavorites(ctx, []model.Post{{ID: "8"}, {ID: "3"}, {ID: "9"}, {}})
	if err != nil {
		t.Fatalf("add favorites: %v", err)
	}
	if diff := cmp.Diff(2, n); diff != "" {
		t.Errorf("added count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"8", "9", "3", "1"}, l.Favorites().IDs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRepairFavorites(t *testing.T) {
	tests := []struct {
		name    string
		in      model.Favorites
		wantIDs []string
	}{
		{
			name:    "consistent",
			in:      model.Favorites{IDs: []string{"2", "1"}, Map: map[string]model.Post{"1": {ID: "1"}, "2": {ID: "2"}}},
			wantIDs: []string{"2", "1"},
		},
		{
			name:    "id without post is dropped",
			in:      model.Favorites{IDs: []string{"2", "1"}, Map: map[string]model.Post{"1": {ID: "1"}}},
			wantIDs: []string{"1"},
		},
		{
			name:    "post without id is appended",
			in:      model.Favorites{IDs: []string{"1"}, Map: map[string]model.Post{"1": {ID: "1"}, "5": {}, "4": {ID: "4"}}},
			wantIDs: []string{"1", "4", "5"},
		},
		{
			name:    "duplicate ids",
			in:      model.Favorites{IDs: []string{"1", "1"}, Map: map[string]model.Post{"1": {ID: "1"}}},
			wantIDs: []string{"1"},
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repairFavorites(tt.in)
			if diff := cmp.Diff(tt.wantIDs, got.IDs, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			if len(got.Map) != len(got.IDs) {
				t.Fatalf("map has %d entries, ids %d", len(got.Map), len(got.IDs))
			}
			for _, id := range got.IDs {
				if got.Map[id].ID != id {
					t.Errorf("map[%s].ID = %q", id, got.Map[id].ID)
				}
			}
		})
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := mustLoad(t, newMemKV())
	_ = src.SetProvider(ctx, model.ProviderRealbooru)
	_ = src.SetFilter(ctx, FilterScat, true)
	g, _ := src.AddGroup(ctx, "Beach", "")
	_, _ = src.AddGroupTag(ctx, g.ID, "beach")
	_, _ = src.ToggleFavorite(ctx, model.Post{ID: "1", FileURL: "http://x/1.jpg", Tags: "a b"})

	data, err := src.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not json: %v", err)
	}
	if diff := cmp.Diff("1", string(doc["v"])); diff != "" {
		t.Errorf("version mismatch (-want +got):\n%s", diff)
	}

	dst := mustLoad(t, newMemKV())
	if err := dst.Import(ctx, data); err != nil {
		t.Fatalf("import: %v", err)
	}

	if diff := cmp.Diff(src.Settings(), dst.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(src.Filters(), dst.Filters()); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(src.Groups(), dst.Groups()); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(src.Favorites(), dst.Favorites()); diff != "" {
		t.Errorf("favorites mismatch (-want +got):\n%s", diff)
	}
}

func TestImportMergesOntoDefaults(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	l := mustLoad(t, kv)
	_ = l.SetFilter(ctx, FilterAI, true)
	g, _ := l.AddGroup(ctx, "Keep", "")

	err := l.Import(ctx, []byte(`{
		"settings": {"perPage": 50, "corsProxy": "https://p.example/?url="},
		"groups": {"not": "an array"},
		"favorites": {"ids": ["1", "ghost"], "map": {"1": {"id": "1", "file_url": "http://x/1.jpg"}}}
	}`))
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	want := model.DefaultSettings()
	want.PerPage = 50
	want.CORSProxy = "https://p.example/?url="
	if diff := cmp.Diff(want, l.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if !l.Filters().ExcludeAI {
		t.Error("filters absent from the import must be kept")
	}
	if _, ok := l.Group(g.ID); !ok {
		t.Error("groups that are not an array must be ignored")
	}
	if diff := cmp.Diff([]string{"1"}, l.Favorites().IDs); diff != "" {
		t.Errorf("favorites mismatch (-want +got):\n%s", diff)
	}
	if _, ok := kv.data[KeyFavorites]; !ok {
		t.Error("imported favorites not saved")
	}

	if err := l.Import(ctx, []byte(`not json`)); err == nil {
		t.Error("expected error for malformed import")
	}
}

func TestImportIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	l := mustLoad(t, kv)
	g, _ := l.AddGroup(ctx, "Keep", "")
	putsBefore := kv.puts[KeySettings]

	err := l.Import(ctx, []byte(`{
		"settings": {"perPage": 77, "provider": "realbooru"},
		"groups": [{"name": "x", "include": 5}]
	}`))
	if err == nil {
		t.Fatal("expected error for a malformed groups section")
	}

	if diff := cmp.Diff(model.DefaultSettings(), l.Settings()); diff != "" {
		t.Errorf("settings changed by a failed import (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(putsBefore, kv.puts[KeySettings]); diff != "" {
		t.Errorf("settings saved by a failed import (-want +got):\n%s", diff)
	}
	if _, ok := kv.data[KeySettings]; ok {
		t.Error("settings blob written by a failed import")
	}
	if _, ok := l.Group(g.ID); !ok {
		t.Error("groups changed by a failed import")
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	l := mustLoad(t, kv)
	_ = l.SetProvider(ctx, model.ProviderRealbooru)
	_, _ = l.AddGroup(ctx, "G", "")
	_, _ = l.ToggleFavorite(ctx, model.Post{ID: "1"})

	if err := l.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if diff := cmp.Diff(model.DefaultSettings(), l.Settings()); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if len(l.Groups()) != 0 || len(l.Favorites().IDs) != 0 {
		t.Error("expected empty library after reset")
	}
	if len(kv.data) != 0 {
		t.Errorf("expected every blob deleted, left %v", kv.data)
	}
	if diff := cmp.Diff([]string{KeySettings, KeyGroups, KeyFavorites, KeyFilters}, kv.deletes, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("deleted keys mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveFailureIsReported(t *testing.T) {
	kv := newMemKV()
	l := mustLoad(t, kv)
	kv.putErr = errors.New("read-only")

	if err := l.SetProxy(context.Background(), "x"); err == nil {
		t.Error("expected save error")
	}
}
