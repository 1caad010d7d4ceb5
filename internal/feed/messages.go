package feed

import (
	"errors"
	"strings"

	"booru_feed/internal/provider"
)

// User-facing notices.
const (
	NoticeNoResults   = "No results for these tags."
	NoticeNoGroups    = "No tag groups yet."
	NoticeHomeEnd     = "You're all caught up."
	NoticeNoFavorites = "No favorites yet."

	noticeSearchFailed = "Could not load posts. Set a CORS proxy and/or API credentials in settings."
	noticeHomeFailed   = "Could not load your tag groups. Set a CORS proxy and/or API credentials in settings."
)

// Notice returns the message shown when a load in mode fails with err.
// Provider messages about missing authentication are passed through verbatim.
func Notice(mode Mode, err error) string {
	var pe *provider.ProviderError
	if errors.As(err, &pe) && strings.Contains(strings.ToLower(pe.Message), "missing authentication") {
		return pe.Message
	}
	if mode == ModeHome {
		return noticeHomeFailed
	}
	return noticeSearchFailed
}
