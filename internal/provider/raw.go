package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the shape a provider answered with.
type Kind int

// Result kinds.
const (
	KindJSON Kind = iota
	KindListing
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindListing:
		return "listing"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RawResult is a provider response resolved right after transport.
// Posts is set for KindJSON and KindListing, Message for KindError.
type RawResult struct {
	Kind    Kind
	Posts   []RawPost
	Message string
}

// Text is a JSON scalar read as a string. Numbers and booleans keep their
// literal text; null, objects and arrays read as empty.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		*t = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case 'n', '{', '[':
		*t = ""
	default:
		*t = Text(b)
	}
	return nil
}

// RawPost is one post as the provider described it, before sanitizing.
type RawPost struct {
	ID              Text     `json:"id"`
	FileURL         Text     `json:"file_url"`
	SampleURL       Text     `json:"sample_url"`
	PreviewURL      Text     `json:"preview_url"`
	FileExt         Text     `json:"file_ext"`
	Width           Text     `json:"width"`
	Height          Text     `json:"height"`
	Rating          Text     `json:"rating"`
	Tags            Text     `json:"tags"`
	Owner           Text     `json:"owner"`
	CreatedAt       Text     `json:"created_at"`
	Change          Text     `json:"change"`
	Source          Text     `json:"source"`
	VideoCandidates []string `json:"video_candidates,omitempty"`
	FileCandidates  []string `json:"file_candidates,omitempty"`
}

// DecodeJSON resolves a JSON post payload. It accepts a post array, an
// object wrapping posts under "post", a single post object, an empty body
// (no results) and a {"success":false} failure object.
func DecodeJSON(data []byte) (RawResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return RawResult{Kind: KindJSON}, nil
	}

	switch data[0] {
	case '[':
		var posts []RawPost
		if err := json.Unmarshal(data, &posts); err != nil {
			return RawResult{}, &ParseError{Err: err}
		}
		return RawResult{Kind: KindJSON, Posts: posts}, nil
	case '{':
		var env struct {
			Success Text            `json:"success"`
			Message Text            `json:"message"`
			Post    json.RawMessage `json:"post"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return RawResult{}, &ParseError{Err: err}
		}
		if env.Success == "false" {
			msg := string(env.Message)
			if msg == "" {
				msg = "API error"
			}
			return RawResult{Kind: KindError, Message: msg}, nil
		}
		if p := bytes.TrimSpace(env.Post); len(p) > 0 {
			return DecodeJSON(p)
		}
		var post RawPost
		if err := json.Unmarshal(data, &post); err != nil {
			return RawResult{}, &ParseError{Err: err}
		}
		return RawResult{Kind: KindJSON, Posts: []RawPost{post}}, nil
	default:
		return RawResult{}, &ParseError{Err: fmt.Errorf("unexpected payload starting with %q", data[0])}
	}
}
