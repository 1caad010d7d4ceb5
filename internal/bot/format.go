package bot

import (
	"fmt"
	"strings"

	"booru_feed/internal/model"
	"booru_feed/internal/query"
)

// captionLimit keeps captions under Telegram's 1024 character cap.
const captionLimit = 900

// FormatCaption formats the caption sent with a post. header names the saved
// feed the post came from and may be empty.
func FormatCaption(header string, p model.Post) string {
	var b strings.Builder
	if header != "" {
		fmt.Fprintf(&b, "[%s]\n", header)
	}
	fmt.Fprintf(&b, "#%s  rating: %s", p.ID, p.Rating)
	if p.Width > 0 && p.Height > 0 {
		fmt.Fprintf(&b, "  %dx%d", p.Width, p.Height)
	}
	if tags := p.TagList(); len(tags) > 0 {
		b.WriteString("\n\n")
		b.WriteString(truncate(strings.Join(tags, " "), captionLimit-b.Len()))
	}
	if p.Source != "" {
		b.WriteString("\n\nSource: ")
		b.WriteString(p.Source)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// FormatGroupList formats the saved tag groups with their 1-based numbers.
func FormatGroupList(groups []model.TagGroup, def model.Provider) string {
	if len(groups) == 0 {
		return "You have no saved feeds yet. Use /newfeed <name> to create one."
	}
	var b strings.Builder
	b.WriteString("Your feeds:\n")
	for i, g := range groups {
		p := g.Provider
		if p == "" {
			p = def
		}
		fmt.Fprintf(&b, "\n%d. %s  [%s]\n", i+1, g.Name, p)
		if g.Empty() {
			b.WriteString("   no tags\n")
			continue
		}
		fmt.Fprintf(&b, "   %s\n", strings.Join(g.Strings(), " "))
	}
	return b.String()
}

// FormatFilters formats the content filters and the tags they exclude.
func FormatFilters(f model.Filters) string {
	var b strings.Builder
	b.WriteString("Content filters:\n")
	fmt.Fprintf(&b, "  ai: %s\n", onOff(f.ExcludeAI))
	fmt.Fprintf(&b, "  scat: %s\n", onOff(f.ExcludeScat))
	fmt.Fprintf(&b, "  shota: %s\n", onOff(f.ExcludeShota))
	if len(f.CustomExclude) == 0 {
		b.WriteString("\nNo custom exclusions.")
	} else {
		fmt.Fprintf(&b, "\nCustom exclusions: %s", strings.Join(f.CustomExclude, " "))
	}
	if ex := query.Exclusions(f); len(ex) > 0 {
		fmt.Fprintf(&b, "\n\nEvery query excludes: %s", strings.Join(ex, " "))
	}
	return b.String()
}

// FormatSettings formats the provider settings. The API key is masked.
func FormatSettings(s model.Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provider: %s\n", s.Provider)
	fmt.Fprintf(&b, "Posts per page: %d\n", s.PerPage)
	proxy := s.CORSProxy
	if proxy == "" {
		proxy = "none"
	}
	fmt.Fprintf(&b, "CORS proxy: %s\n", proxy)
	fmt.Fprintf(&b, "Proxy media: %s\n", onOff(s.ProxyImages))
	if s.APIUserID == "" && s.APIKey == "" {
		b.WriteString("API credentials: not set")
	} else {
		fmt.Fprintf(&b, "API credentials: user %s, key %s", s.APIUserID, mask(s.APIKey))
	}
	return b.String()
}

func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// FormatQuery formats the current search tags and the query they compile to.
func FormatQuery(tags model.TagSet, composed string, page int) string {
	var b strings.Builder
	if tags.Empty() {
		b.WriteString("Search tags: none (showing everything)\n")
	} else {
		fmt.Fprintf(&b, "Search tags: %s\n", strings.Join(tags.Strings(), " "))
	}
	fmt.Fprintf(&b, "Query: %s\n", composed)
	fmt.Fprintf(&b, "Next page: %d", page)
	return b.String()
}

// FormatTagPanel formats the tags of a post grouped by category.
func FormatTagPanel(postID string, infos []model.TagInfo) string {
	if len(infos) == 0 {
		return fmt.Sprintf("Post #%s has no tags.", postID)
	}
	order := []model.TagType{model.TagArtist, model.TagCharacter, model.TagCopyright, model.TagGeneral, model.TagMeta}
	byType := make(map[model.TagType][]string)
	for _, ti := range infos {
		t := ti.Type
		switch t {
		case model.TagArtist, model.TagCharacter, model.TagCopyright, model.TagMeta:
		default:
			t = model.TagGeneral
		}
		label := ti.Name
		if ti.Count > 0 {
			label = fmt.Sprintf("%s (%d)", ti.Name, ti.Count)
		}
		byType[t] = append(byType[t], label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tags of #%s:\n", postID)
	for _, t := range order {
		names := byType[t]
		if len(names) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", t)
		for _, n := range names {
			fmt.Fprintf(&b, "  %s\n", n)
		}
	}
	return b.String()
}

// FormatSuggestions formats autocomplete results.
func FormatSuggestions(prefix string, sugg []model.Suggestion) string {
	if len(sugg) == 0 {
		return fmt.Sprintf("No suggestions for %q.", prefix)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Suggestions for %q:\n", prefix)
	for _, s := range sugg {
		if s.Label != "" && s.Label != s.Value {
			fmt.Fprintf(&b, "  %s  %s\n", s.Value, s.Label)
			continue
		}
		fmt.Fprintf(&b, "  %s\n", s.Value)
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
