// Package model defines the domain types used across the application.
package model

import "strings"

// Provider identifies one of the supported content backends.
type Provider string

// Supported providers.
const (
	ProviderRule34    Provider = "rule34"
	ProviderRealbooru Provider = "realbooru"
)

// Valid reports whether p names a supported provider.
func (p Provider) Valid() bool {
	return p == ProviderRule34 || p == ProviderRealbooru
}

// ParseProvider maps user input to a Provider.
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// ExtVideo marks a post whose real container format is only known from its candidate list.
const ExtVideo = "video"

// Post is the canonical, provider-agnostic post record.
type Post struct {
	ID              string   `json:"id"`
	FileURL         string   `json:"file_url"`
	SampleURL       string   `json:"sample_url"`
	PreviewURL      string   `json:"preview_url"`
	FileExt         string   `json:"file_ext"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	Rating          string   `json:"rating"`
	Tags            string   `json:"tags"`
	Owner           string   `json:"owner"`
	CreatedAt       string   `json:"created_at"`
	Source          string   `json:"source"`
	VideoCandidates []string `json:"video_candidates,omitempty"`
	FileCandidates  []string `json:"file_candidates,omitempty"`
}

// IsVideo reports whether the post should be rendered as a video.
func (p Post) IsVideo() bool {
	switch p.FileExt {
	case "mp4", "webm", ExtVideo:
		return true
	}
	return false
}

// TagList splits the whitespace-separated tag string.
func (p Post) TagList() []string {
	return strings.Fields(p.Tags)
}

// MediaCandidates returns the ordered list of URLs to try when displaying the post.
func (p Post) MediaCandidates() []string {
	if len(p.VideoCandidates) > 0 {
		return p.VideoCandidates
	}
	if len(p.FileCandidates) > 0 {
		return p.FileCandidates
	}
	return []string{p.FileURL}
}

// TagGroup is a saved tag-based feed.
type TagGroup struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
	TagSet
	Collapsed bool `json:"collapsed"`
}

// Favorites is the persisted favorites set. IDs is ordered most-recent-first
// and always holds exactly the keys of Map.
type Favorites struct {
	IDs []string        `json:"ids"`
	Map map[string]Post `json:"map"`
}

// Filters are the global content filters applied to every query.
type Filters struct {
	ExcludeShota  bool     `json:"excludeShota"`
	ExcludeAI     bool     `json:"excludeAI"`
	ExcludeScat   bool     `json:"excludeScat"`
	CustomExclude []string `json:"customExclude"`
}

// Settings holds the user-editable provider settings.
type Settings struct {
	Provider    Provider `json:"provider"`
	CORSProxy   string   `json:"corsProxy"`
	ProxyImages bool     `json:"proxyImages"`
	APIUserID   string   `json:"apiUserId"`
	APIKey      string   `json:"apiKey"`
	PerPage     int      `json:"perPage"`
}

// Page size bounds.
const (
	DefaultPerPage = 30
	MaxPerPage     = 100
)

// DefaultSettings returns the settings used before anything is persisted.
func DefaultSettings() Settings {
	return Settings{Provider: ProviderRule34, PerPage: DefaultPerPage}
}

// DefaultFilters returns the filters used before anything is persisted.
func DefaultFilters() Filters {
	return Filters{ExcludeShota: true, CustomExclude: []string{}}
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// TagType is the provider's tag category code.
type TagType int

// Known tag categories.
const (
	TagGeneral   TagType = 0
	TagArtist    TagType = 1
	TagCopyright TagType = 3
	TagCharacter TagType = 4
	TagMeta      TagType = 5
)

// String returns the display heading for the category.
func (t TagType) String() string {
	switch t {
	case TagArtist:
		return "Artists"
	case TagCopyright:
		return "Copyrights"
	case TagCharacter:
		return "Characters"
	case TagMeta:
		return "Meta"
	default:
		return "General"
	}
}

// TagInfo is tag metadata returned by a provider.
type TagInfo struct {
	ID        int
	Name      string
	Type      TagType
	Count     int
	Ambiguous bool
}
