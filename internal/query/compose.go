// Package query compiles include/exclude tag lists and global filters into a provider query string.
package query

import (
	"strings"

	"booru_feed/internal/model"
)

// AnyPost matches every post with a positive id. It anchors exclusion-only
// queries, which some providers answer with zero results.
const AnyPost = "id:>0"

// Tags contributed by the boolean filters.
var (
	aiTags    = []string{"ai_generated", "stable_diffusion", "novelai", "midjourney"}
	scatTags  = []string{"scat", "coprophagia", "feces"}
	shotaTags = []string{"loli", "shota"}
)

// Exclusions returns the tags the enabled filters add to every query,
// followed by the custom exclusion list.
func Exclusions(f model.Filters) []string {
	var out []string
	if f.ExcludeAI {
		out = append(out, aiTags...)
	}
	if f.ExcludeScat {
		out = append(out, scatTags...)
	}
	if f.ExcludeShota {
		out = append(out, shotaTags...)
	}
	for _, t := range f.CustomExclude {
		if t = model.NormalizeTag(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Compose renders include and exclude tags plus the filter exclusions as one
// space-separated query. Excluded tags are prefixed with "-".
func Compose(include, exclude []string, f model.Filters) string {
	inc := dedupe(include)
	if len(inc) == 0 {
		inc = []string{AnyPost}
	}
	ex := dedupe(append(append([]string(nil), exclude...), Exclusions(f)...))

	parts := make([]string, 0, len(inc)+len(ex))
	parts = append(parts, inc...)
	for _, t := range ex {
		parts = append(parts, "-"+t)
	}
	return strings.Join(parts, " ")
}

// ComposeSet is Compose for a TagSet.
func ComposeSet(s model.TagSet, f model.Filters) string {
	return Compose(s.Include, s.Exclude, f)
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
