package bot

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"booru_feed/internal/feed"
	"booru_feed/internal/model"
)

const (
	cmdMore = "more"
	cmdTags = "tags"

	// maxTagLookups bounds the metadata requests of one tag panel.
	maxTagLookups = 25
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Booru Feed!

Browse image boards by tag and keep your own feeds.

Quick start:
1. /search <tags> - search posts, prefix a tag with - to exclude it
2. /newfeed <name> - save a feed, then /feedtag <n> <tags>
3. /home - a mixed feed of all your saved feeds

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Browsing:
/search <tags> - start a new search (no tags shows everything)
/more - load the next page
/home - mixed feed of your saved feeds
/favorites - show your favorites
/query - show the current search query
/tags <post_id> - tags of a loaded post by category
/autocomplete <prefix> - suggest tags

Saved feeds:
/feeds - list saved feeds
/newfeed <name> - create a feed
/rmfeed <n> - delete feed n
/renamefeed <n> <name> - rename feed n
/feedtag <n> <tags> - add tags to feed n (-tag excludes)
/untag <n> <tag> - remove a tag from feed n (-tag for an exclusion)
/feedprovider <n> <rule34|realbooru> - pin feed n to a provider

Filters:
/filters - show content filters
/filter <ai|scat|shota> <on|off> - switch a filter
/exclude <tag> - always exclude a tag
/unexclude <tag> - stop excluding a tag

Settings:
/settings - show settings
/provider <rule34|realbooru> - default provider
/proxy [url] - set or clear the CORS proxy
/proxymedia <on|off> - send media through the proxy too
/creds [<user_id> <api_key>] - set or clear API credentials
/perpage <n> - posts per page (1-100)
/export - download your library as JSON
/import - load an exported library (send the file with /import as its caption)
/reset - delete all settings, filters, feeds and favorites`)
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) {
	s := b.session(chatID)
	if args == "" {
		s.ClearSearch()
		s.SwitchMode(feed.ModeSearch)
	} else {
		s.Search(ParseTags(args))
	}
	b.loadAndSend(ctx, chatID)
}

func (b *Bot) handleMore(ctx context.Context, chatID int64) {
	b.loadAndSend(ctx, chatID)
}

func (b *Bot) handleHome(ctx context.Context, chatID int64) {
	b.restart(chatID, feed.ModeHome)
	b.loadAndSend(ctx, chatID)
}

func (b *Bot) handleFavorites(ctx context.Context, chatID int64) {
	b.restart(chatID, feed.ModeFavorites)
	b.loadAndSend(ctx, chatID)
}

// restart selects mode and starts it from the beginning.
func (b *Bot) restart(chatID int64, mode feed.Mode) {
	s := b.session(chatID)
	if s.Mode() == mode {
		s.Reset()
		return
	}
	s.SwitchMode(mode)
}

func (b *Bot) handleQuery(chatID int64) {
	s := b.session(chatID)
	b.reply(chatID, FormatQuery(s.SearchTags(), s.ComposedSearch(), s.SearchPage()))
}

func (b *Bot) handleTags(ctx context.Context, chatID int64, args string) {
	id := strings.TrimSpace(args)
	if id == "" {
		b.reply(chatID, "Usage: /tags <post_id>")
		return
	}
	p, ok := b.findPost(chatID, id)
	if !ok {
		b.reply(chatID, fmt.Sprintf("Post #%s is not loaded.", id))
		return
	}
	b.reply(chatID, FormatTagPanel(p.ID, b.tagInfo(ctx, p.TagList())))
}

// findPost looks a post up in the chat's feed, then in the favorites.
func (b *Bot) findPost(chatID int64, id string) (model.Post, bool) {
	if p, ok := b.session(chatID).Post(id); ok {
		return p, true
	}
	p, ok := b.lib.Favorites().Map[id]
	return p, ok
}

// tagInfo resolves the category of each tag. Tags the provider knows
// nothing about are reported as general tags.
func (b *Bot) tagInfo(ctx context.Context, tags []string) []model.TagInfo {
	if len(tags) > maxTagLookups {
		tags = tags[:maxTagLookups]
	}
	p := b.lib.Settings().Provider
	out := make([]model.TagInfo, len(tags))

	var eg errgroup.Group
	eg.SetLimit(4)
	for i, tag := range tags {
		eg.Go(func() error {
			out[i] = model.TagInfo{Name: tag, Type: model.TagGeneral}
			infos, err := b.provider.TagMetadata(ctx, tag, p)
			if err != nil {
				b.log.Debug("tag metadata", "tag", tag, "error", err)
				return nil
			}
			for _, ti := range infos {
				if ti.Name == tag {
					out[i] = ti
					break
				}
			}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func (b *Bot) handleAutocomplete(ctx context.Context, chatID int64, args string) {
	prefix := strings.TrimSpace(args)
	if prefix == "" {
		b.reply(chatID, "Usage: /autocomplete <prefix>")
		return
	}
	sugg, err := b.provider.Autocomplete(ctx, prefix, b.lib.Settings().Provider)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Autocomplete failed: %v", err))
		return
	}
	b.reply(chatID, FormatSuggestions(prefix, sugg))
}
