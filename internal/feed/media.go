package feed

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoMedia is returned when none of a post's media candidates loads.
var ErrNoMedia = errors.New("no media candidate loaded")

// Prober checks that a media URL can be loaded.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// ResolveMedia tries candidates in order and returns the first one the
// prober accepts.
func ResolveMedia(ctx context.Context, prober Prober, candidates []string) (string, error) {
	var last error
	for _, u := range candidates {
		if u == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := prober.Probe(ctx, u)
		if err == nil {
			return u, nil
		}
		last = err
	}
	if last == nil {
		return "", ErrNoMedia
	}
	return "", fmt.Errorf("%w: %w", ErrNoMedia, last)
}
