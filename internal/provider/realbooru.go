package provider

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"booru_feed/internal/model"
)

const acceptHTML = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"

// Extension candidates for media derived from a thumbnail, most specific first:
// animated, then lossless, then lossy.
var (
	imageExts = []string{"gif", "png", "jpg", "jpeg"}
	videoExts = []string{"mp4", "webm"}
)

// Tags that mark a listing entry as video content.
var videoTags = map[string]bool{"video": true, "webm": true, "mp4": true}

var thumbRe = regexp.MustCompile(`(?i)/thumbnails/+([^/]+)/([^/]+)/thumbnail_([0-9a-f]{32})\.[a-z0-9]+`)

func (c *Client) realbooruPosts(ctx context.Context, req ListRequest) (RawResult, error) {
	s := c.settings.Settings()

	v := url.Values{}
	v.Set("page", "post")
	v.Set("s", "list")
	if req.Query != "" {
		v.Set("tags", req.Query)
	}
	v.Set("pid", strconv.Itoa(max(req.Page, 0)*RealbooruPageSize))
	target := c.realbooruBase + "/index.php?" + v.Encode()

	body, err := c.fetch(ctx, ProxyURL(s.CORSProxy, target), acceptHTML)
	if err != nil {
		return RawResult{}, err
	}

	posts, err := ParseListing(bytes.NewReader(body), c.realbooruBase)
	if err != nil {
		return RawResult{}, err
	}
	if s.ProxyImages && s.CORSProxy != "" {
		for i := range posts {
			proxyMedia(&posts[i], s.CORSProxy)
		}
	}
	return RawResult{Kind: KindListing, Posts: posts}, nil
}

// ParseListing extracts posts from a RealBooru listing page. Each post is an
// anchor wrapping a thumbnail image whose title holds the tag list.
// base resolves relative thumbnail URLs.
func ParseListing(r io.Reader, base string) ([]RawPost, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	baseURL, _ := url.Parse(base)

	var posts []RawPost
	seen := make(map[string]bool)
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		img := a.Find("img").First()
		if img.Length() == 0 {
			return
		}
		id := listingID(a)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		thumb := resolve(baseURL, img.AttrOr("src", ""))
		title := img.AttrOr("title", "")
		if title == "" {
			title = img.AttrOr("alt", "")
		}
		tags, rating := parseTitle(title)

		p := RawPost{
			ID:         Text(id),
			PreviewURL: Text(thumb),
			Tags:       Text(strings.Join(tags, " ")),
			Rating:     Text(rating),
		}
		images, videos := MediaCandidates(thumb, isVideo(tags))
		switch {
		case len(videos) > 0:
			p.FileURL = Text(videos[0])
			p.VideoCandidates = videos
		case len(images) > 0:
			p.FileURL = Text(images[0])
			p.FileCandidates = images
		}
		posts = append(posts, p)
	})
	return posts, nil
}

// MediaCandidates derives full-resolution media URLs from a thumbnail URL.
// The real extension is unknown, so every plausible one is returned in
// preference order; the caller tries them until one loads. Video candidates
// are only produced when video is set. Both are nil when the thumbnail path
// carries no content hash.
func MediaCandidates(thumb string, video bool) (images, videos []string) {
	u, err := url.Parse(thumb)
	if err != nil {
		return nil, nil
	}
	m := thumbRe.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, nil
	}
	prefix := u.Scheme + "://" + u.Host + "/images/" + m[1] + "/" + m[2] + "/" + strings.ToLower(m[3]) + "."
	for _, ext := range imageExts {
		images = append(images, prefix+ext)
	}
	if video {
		for _, ext := range videoExts {
			videos = append(videos, prefix+ext)
		}
	}
	return images, videos
}

func listingID(a *goquery.Selection) string {
	if id, ok := a.Attr("id"); ok && strings.HasPrefix(id, "p") {
		if _, err := strconv.Atoi(id[1:]); err == nil {
			return id[1:]
		}
	}
	href, ok := a.Attr("href")
	if !ok {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	id := u.Query().Get("id")
	if _, err := strconv.Atoi(id); err != nil {
		return ""
	}
	return id
}

// parseTitle splits a thumbnail title into normalized tags and a rating code.
// Titles are comma-separated; a title without commas is split on whitespace.
func parseTitle(title string) (tags []string, rating string) {
	var tokens []string
	if strings.Contains(title, ",") {
		tokens = strings.Split(title, ",")
	} else {
		tokens = strings.Fields(title)
	}
	for _, tok := range tokens {
		tok = strings.TrimSpace(strings.ToLower(tok))
		switch {
		case tok == "":
		case strings.HasPrefix(tok, "rating:"):
			if r := strings.TrimPrefix(tok, "rating:"); r != "" {
				rating = r[:1]
			}
		case strings.HasPrefix(tok, "score:"):
		default:
			if t := model.NormalizeTag(tok); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags, rating
}

func isVideo(tags []string) bool {
	for _, t := range tags {
		if videoTags[t] {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func proxyMedia(p *RawPost, proxy string) {
	one := func(s string) string {
		if s == "" {
			return s
		}
		return ProxyURL(proxy, s)
	}
	list := func(in []string) []string {
		if len(in) == 0 {
			return in
		}
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = one(s)
		}
		return out
	}
	p.FileURL = Text(one(string(p.FileURL)))
	p.PreviewURL = Text(one(string(p.PreviewURL)))
	p.VideoCandidates = list(p.VideoCandidates)
	p.FileCandidates = list(p.FileCandidates)
}
