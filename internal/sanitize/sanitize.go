// Package sanitize turns raw provider results into canonical posts.
package sanitize

import (
	"math"
	"net/url"
	"path"
	"strconv"
	"strings"

	"booru_feed/internal/model"
	"booru_feed/internal/provider"
)

const defaultRating = "q"

// Posts normalizes a raw result. An error payload becomes a
// *provider.ProviderError; an empty list is a valid empty page.
// Entries without an id or a file URL are dropped.
func Posts(res provider.RawResult) ([]model.Post, error) {
	if res.Kind == provider.KindError {
		msg := strings.TrimSpace(res.Message)
		if msg == "" {
			msg = "API error"
		}
		return nil, &provider.ProviderError{Message: msg}
	}

	posts := make([]model.Post, 0, len(res.Posts))
	for _, raw := range res.Posts {
		if p, ok := Post(raw); ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// JSON decodes a raw provider JSON document and sanitizes it.
func JSON(data []byte) ([]model.Post, error) {
	res, err := provider.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return Posts(res)
}

// Post maps one raw entry onto the canonical shape. It reports false when
// the entry lacks an id or a file URL.
func Post(raw provider.RawPost) (model.Post, bool) {
	id := str(raw.ID)
	fileURL := str(raw.FileURL)
	if id == "" || fileURL == "" {
		return model.Post{}, false
	}

	p := model.Post{
		ID:         id,
		FileURL:    fileURL,
		SampleURL:  firstNonEmpty(str(raw.SampleURL), fileURL),
		PreviewURL: firstNonEmpty(str(raw.PreviewURL), str(raw.SampleURL), fileURL),
		FileExt:    strings.ToLower(firstNonEmpty(str(raw.FileExt), extOf(fileURL))),
		Width:      number(raw.Width),
		Height:     number(raw.Height),
		Rating:     firstNonEmpty(str(raw.Rating), defaultRating),
		Tags:       str(raw.Tags),
		Owner:      str(raw.Owner),
		CreatedAt:  firstNonEmpty(str(raw.CreatedAt), str(raw.Change)),
		Source:     str(raw.Source),
	}
	if vc := nonEmpty(raw.VideoCandidates); len(vc) > 0 {
		p.VideoCandidates = vc
		p.FileExt = model.ExtVideo
	}
	if fc := nonEmpty(raw.FileCandidates); len(fc) > 0 {
		p.FileCandidates = fc
	}
	return p, true
}

func str(t provider.Text) string {
	return strings.TrimSpace(string(t))
}

func number(t provider.Text) int {
	f, err := strconv.ParseFloat(str(t), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// extOf returns the lowercase extension of the URL path, without the dot.
func extOf(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
