package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"

	"booru_feed/internal/model"
)

const (
	acceptJSON = "application/json"
	acceptXML  = "application/xml,text/xml;q=0.9,*/*;q=0.8"

	rule34MaxLimit = 1000
)

func (c *Client) rule34Posts(ctx context.Context, req ListRequest) (RawResult, error) {
	limit := min(max(req.Limit, 1), rule34MaxLimit)
	v := url.Values{}
	v.Set("page", "dapi")
	v.Set("s", "post")
	v.Set("q", "index")
	v.Set("json", "1")
	v.Set("limit", strconv.Itoa(limit))
	v.Set("pid", strconv.Itoa(max(req.Page, 0)))
	if req.Query != "" {
		v.Set("tags", req.Query)
	}
	c.addCredentials(v)

	body, err := c.fetch(ctx, c.rule34Base+"/index.php?"+v.Encode(), acceptJSON)
	if err != nil {
		return RawResult{}, err
	}
	return DecodeJSON(body)
}

func (c *Client) rule34Autocomplete(ctx context.Context, prefix string) ([]model.Suggestion, error) {
	v := url.Values{}
	v.Set("q", prefix)
	body, err := c.fetch(ctx, c.rule34Base+"/autocomplete.php?"+v.Encode(), acceptJSON)
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '{' {
		res, err := DecodeJSON(body)
		if err != nil {
			return nil, err
		}
		if res.Kind == KindError {
			return nil, &ProviderError{Message: res.Message}
		}
		return nil, nil
	}

	var out []model.Suggestion
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ParseError{Err: err}
	}
	return out, nil
}

func (c *Client) rule34TagMeta(ctx context.Context, name string) ([]model.TagInfo, error) {
	v := url.Values{}
	v.Set("page", "dapi")
	v.Set("s", "tag")
	v.Set("q", "index")
	v.Set("name", name)
	c.addCredentials(v)

	body, err := c.fetch(ctx, c.rule34Base+"/index.php?"+v.Encode(), acceptXML)
	if err != nil {
		return nil, err
	}
	return ParseTagXML(body)
}

func (c *Client) addCredentials(v url.Values) {
	s := c.settings.Settings()
	if s.APIUserID != "" {
		v.Set("user_id", s.APIUserID)
	}
	if s.APIKey != "" {
		v.Set("api_key", s.APIKey)
	}
}

type xmlTagList struct {
	Tags []xmlTag `xml:"tag"`
}

type xmlTag struct {
	ID        string `xml:"id,attr"`
	Name      string `xml:"name,attr"`
	Type      string `xml:"type,attr"`
	Count     string `xml:"count,attr"`
	Ambiguous string `xml:"ambiguous,attr"`
}

// ParseTagXML reads the <tag .../> elements of a tag index response.
// Numeric attributes that fail to parse read as zero.
func ParseTagXML(data []byte) ([]model.TagInfo, error) {
	var list xmlTagList
	if err := xml.Unmarshal(data, &list); err != nil {
		return nil, &ParseError{Err: err}
	}
	out := make([]model.TagInfo, 0, len(list.Tags))
	for _, t := range list.Tags {
		out = append(out, model.TagInfo{
			ID:        atoi(t.ID),
			Name:      t.Name,
			Type:      model.TagType(atoi(t.Type)),
			Count:     atoi(t.Count),
			Ambiguous: strings.EqualFold(t.Ambiguous, "true"),
		})
	}
	return out, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
