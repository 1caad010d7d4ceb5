package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"booru_feed/internal/model"
	"booru_feed/internal/provider"
)

func group(id string, include ...string) model.TagGroup {
	return model.TagGroup{ID: id, Name: id, TagSet: model.TagSet{Include: include}}
}

func homeSession(l Lister, perPage int, groups ...model.TagGroup) *Session {
	lib := searchLibrary(perPage)
	lib.groups = groups
	s := newTestSession(l, lib)
	s.SwitchMode(ModeHome)
	return s
}

func TestHomeInterleavesGroups(t *testing.T) {
	l := newMockLister()
	l.set("a", 0, "a1", "a2")
	l.set("b", 0, "b1", "b2")
	s := homeSession(l, 4, group("A", "a"), group("B", "b"))

	page := mustLoad(t, s)

	if diff := cmp.Diff([]string{"a1", "b1", "a2", "b2"}, ids(page.Added)); diff != "" {
		t.Errorf("merged page mismatch (-want +got):\n%s", diff)
	}
	for _, c := range l.getCalls() {
		if diff := cmp.Diff(2, c.Limit); diff != "" {
			t.Errorf("per-group limit mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestHomePerGroupIndependence(t *testing.T) {
	l := newMockLister()
	l.set("a", 0, "a1", "a2")
	l.set("b", 0, "b1", "b2")
	l.set("a", 1)
	l.set("b", 1, "b3", "b4")
	s := homeSession(l, 4, group("A", "a"), group("B", "b"))

	mustLoad(t, s)
	round2 := mustLoad(t, s)

	if diff := cmp.Diff([]string{"b3", "b4"}, ids(round2.Added)); diff != "" {
		t.Errorf("round 2 mismatch (-want +got):\n%s", diff)
	}
	if round2.ReachedEnd {
		t.Error("round 2: unexpected end")
	}
	if page, exhausted := s.HomeCursor("A"); page != 1 || !exhausted {
		t.Errorf("group A cursor = (%d, %v), want (1, true)", page, exhausted)
	}
	if page, exhausted := s.HomeCursor("B"); page != 2 || exhausted {
		t.Errorf("group B cursor = (%d, %v), want (2, false)", page, exhausted)
	}

	round3 := mustLoad(t, s)
	if !round3.ReachedEnd || round3.Notice != NoticeHomeEnd {
		t.Errorf("round 3: got %+v, want end", round3)
	}
	if diff := cmp.Diff([]int{0, 1}, l.pagesFor("a")); diff != "" {
		t.Errorf("exhausted group must not be queried again (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, l.pagesFor("b")); diff != "" {
		t.Errorf("group B pages mismatch (-want +got):\n%s", diff)
	}
}

// peakLister tracks how many requests run at the same time.
type peakLister struct {
	*mockLister
	mu             sync.Mutex
	inflight, peak int
}

func (p *peakLister) ListPosts(ctx context.Context, req provider.ListRequest) (provider.RawResult, error) {
	p.mu.Lock()
	p.inflight++
	p.peak = max(p.peak, p.inflight)
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inflight--
		p.mu.Unlock()
	}()

	time.Sleep(5 * time.Millisecond)
	return p.mockLister.ListPosts(ctx, req)
}

func TestHomeConcurrencyLimit(t *testing.T) {
	l := &peakLister{mockLister: newMockLister()}
	l.set("a", 0, "a1")
	l.set("b", 0, "b1")
	l.set("c", 0, "c1")
	s := homeSession(l, 6, group("A", "a"), group("B", "b"), group("C", "c"))
	s.SetHomeConcurrency(1)

	page := mustLoad(t, s)

	if diff := cmp.Diff([]string{"a1", "b1", "c1"}, ids(page.Added)); diff != "" {
		t.Errorf("merged page mismatch (-want +got):\n%s", diff)
	}
	var queries []string
	for _, c := range l.getCalls() {
		queries = append(queries, c.Query)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, queries); diff != "" {
		t.Errorf("one at a time keeps group order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, l.peak); diff != "" {
		t.Errorf("peak concurrent requests mismatch (-want +got):\n%s", diff)
	}
}

func TestHomeSwallowsGroupFailure(t *testing.T) {
	l := newMockLister()
	l.errs[pageKey{"a", 0}] = &provider.FetchError{Status: 502}
	l.set("b", 0, "b1", "b2")
	s := homeSession(l, 4, group("A", "a"), group("B", "b"))

	page := mustLoad(t, s)

	if diff := cmp.Diff([]string{"b1", "b2"}, ids(page.Added)); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	if page.ReachedEnd || page.Err != nil {
		t.Errorf("group failure must not end the feed: %+v", page)
	}
	if p, exhausted := s.HomeCursor("A"); p != 0 || exhausted {
		t.Errorf("failed group cursor = (%d, %v), want (0, false)", p, exhausted)
	}

	// The failed group is tried again at the same page.
	delete(l.errs, pageKey{"a", 0})
	l.set("a", 0, "a1")
	l.set("b", 1, "b3")
	page = mustLoad(t, s)
	if diff := cmp.Diff([]string{"a1", "b3"}, ids(page.Added)); diff != "" {
		t.Errorf("second page mismatch (-want +got):\n%s", diff)
	}
}

func TestHomeAllGroupsFailing(t *testing.T) {
	l := newMockLister()
	l.errs[pageKey{"a", 0}] = &provider.FetchError{Timeout: true}
	s := homeSession(l, 4, group("A", "a"))

	page := mustLoad(t, s)

	if !page.ReachedEnd || !errors.Is(page.Err, provider.ErrTimeout) {
		t.Fatalf("expected terminal page with timeout, got %+v", page)
	}
	if diff := cmp.Diff(noticeHomeFailed, page.Notice); diff != "" {
		t.Errorf("notice mismatch (-want +got):\n%s", diff)
	}
}

func TestHomeWithoutGroups(t *testing.T) {
	l := newMockLister()
	s := homeSession(l, 4)

	page := mustLoad(t, s)

	if !page.ReachedEnd || page.Notice != NoticeNoGroups {
		t.Errorf("got %+v, want end with %q", page, NoticeNoGroups)
	}
	if len(l.getCalls()) != 0 {
		t.Error("no provider call expected")
	}
}

func TestHomeUsesGroupProvider(t *testing.T) {
	l := newMockLister()
	g := group("A", "a")
	g.Provider = model.ProviderRealbooru
	s := homeSession(l, 4, g, group("B", "b"))

	mustLoad(t, s)

	got := make(map[string]model.Provider)
	for _, c := range l.getCalls() {
		got[c.Query] = c.Provider
	}
	want := map[string]model.Provider{"a": model.ProviderRealbooru, "b": model.ProviderRule34}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("providers mismatch (-want +got):\n%s", diff)
	}
}

func TestHomeDuplicatesDoNotEnd(t *testing.T) {
	l := newMockLister()
	l.set("a", 0, "1", "2")
	l.set("a", 1, "1", "2")
	s := homeSession(l, 2, group("A", "a"))

	mustLoad(t, s)
	page := mustLoad(t, s)

	if page.ReachedEnd || len(page.Added) != 0 {
		t.Errorf("got %+v, want an open page with nothing new", page)
	}
}

func TestHomeShufflesEachBucket(t *testing.T) {
	l := newMockLister()
	l.set("a", 0, "a1", "a2", "a3")
	s := homeSession(l, 3, group("A", "a"))

	var shuffled int
	s.SetShuffle(func(p []model.Post) {
		shuffled++
		for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
			p[i], p[j] = p[j], p[i]
		}
	})

	page := mustLoad(t, s)

	if diff := cmp.Diff([]string{"a3", "a2", "a1"}, ids(page.Added)); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, shuffled); diff != "" {
		t.Errorf("shuffle count mismatch (-want +got):\n%s", diff)
	}
}

func TestHomePrunesDeletedGroups(t *testing.T) {
	l := newMockLister()
	l.set("a", 0, "a1")
	l.set("b", 0, "b1")
	lib := searchLibrary(4)
	lib.groups = []model.TagGroup{group("A", "a"), group("B", "b")}
	s := newTestSession(l, lib)
	s.SwitchMode(ModeHome)
	mustLoad(t, s)

	lib.groups = lib.groups[1:]
	mustLoad(t, s)

	if p, exhausted := s.HomeCursor("A"); p != 0 || exhausted {
		t.Errorf("deleted group cursor = (%d, %v), want it pruned", p, exhausted)
	}
}

func TestPerGroupLimit(t *testing.T) {
	tests := []struct {
		perPage, groups, want int
	}{
		{perPage: 30, groups: 1, want: 30},
		{perPage: 30, groups: 4, want: 8},
		{perPage: 30, groups: 30, want: 2},
		{perPage: 3, groups: 2, want: 2},
		{perPage: 10, groups: 0, want: 10},
	}
	for _, tt := range tests {
		if got := PerGroupLimit(tt.perPage, tt.groups); got != tt.want {
			t.Errorf("PerGroupLimit(%d, %d) = %d, want %d", tt.perPage, tt.groups, got, tt.want)
		}
	}
}

func TestInterleave(t *testing.T) {
	posts := func(postIDs ...string) []model.Post {
		var out []model.Post
		for _, id := range postIDs {
			out = append(out, model.Post{ID: id})
		}
		return out
	}

	tests := []struct {
		name    string
		buckets [][]model.Post
		limit   int
		want    []string
	}{
		{
			name:    "uneven buckets",
			buckets: [][]model.Post{posts("a1"), posts("b1", "b2", "b3"), posts("c1", "c2")},
			limit:   10,
			want:    []string{"a1", "b1", "c1", "b2", "c2", "b3"},
		},
		{
			name:    "limit stops mid round",
			buckets: [][]model.Post{posts("a1", "a2"), posts("b1", "b2")},
			limit:   3,
			want:    []string{"a1", "b1", "a2"},
		},
		{
			name:  "no buckets",
			limit: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(Interleave(tt.buckets, tt.limit))); diff != "" {
				t.Errorf("Interleave mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type fakeProber map[string]error

func (p fakeProber) Probe(_ context.Context, url string) error {
	if err, ok := p[url]; ok {
		return err
	}
	return errors.New("not found")
}

func TestResolveMedia(t *testing.T) {
	prober := fakeProber{
		"http://x/1.png": nil,
		"http://x/1.jpg": nil,
	}

	got, err := ResolveMedia(context.Background(), prober, []string{"http://x/1.gif", "", "http://x/1.png", "http://x/1.jpg"})
	if err != nil {
		t.Fatalf("ResolveMedia: %v", err)
	}
	if diff := cmp.Diff("http://x/1.png", got); diff != "" {
		t.Errorf("resolved url mismatch (-want +got):\n%s", diff)
	}

	_, err = ResolveMedia(context.Background(), prober, []string{"http://x/2.gif", "http://x/2.png"})
	if !errors.Is(err, ErrNoMedia) {
		t.Errorf("expected ErrNoMedia, got %v", err)
	}

	_, err = ResolveMedia(context.Background(), prober, nil)
	if !errors.Is(err, ErrNoMedia) {
		t.Errorf("expected ErrNoMedia for no candidates, got %v", err)
	}
}
