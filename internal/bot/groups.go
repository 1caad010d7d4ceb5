package bot

import (
	"context"
	"fmt"
	"strings"

	"booru_feed/internal/model"
)

// groupAt resolves a 1-based feed number.
func (b *Bot) groupAt(chatID int64, n int) (model.TagGroup, bool) {
	groups := b.lib.Groups()
	if n < 1 || n > len(groups) {
		b.reply(chatID, fmt.Sprintf("Feed %d not found. Use /feeds to list your feeds.", n))
		return model.TagGroup{}, false
	}
	return groups[n-1], true
}

func (b *Bot) handleFeeds(chatID int64) {
	b.reply(chatID, FormatGroupList(b.lib.Groups(), b.lib.Settings().Provider))
}

func (b *Bot) handleNewFeed(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /newfeed <name>")
		return
	}
	g, err := b.lib.AddGroup(ctx, args, "")
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save feed: %v", err))
		return
	}
	n := len(b.lib.Groups())
	b.reply(chatID, fmt.Sprintf("Feed %d \"%s\" created.\nAdd tags with /feedtag %d <tags>.", n, g.Name, n))
}

func (b *Bot) handleRmFeed(ctx context.Context, chatID int64, args string) {
	n, err := ParseIndexArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmfeed <n>")
		return
	}
	g, ok := b.groupAt(chatID, n)
	if !ok {
		return
	}
	if err := b.lib.DeleteGroup(ctx, g.ID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error deleting feed: %v", err))
		return
	}
	if err := b.store.ForgetGroup(ctx, g.ID); err != nil {
		b.log.Error("forget group", "group_id", g.ID, "error", err)
	}
	b.reply(chatID, fmt.Sprintf("Feed %d \"%s\" deleted.", n, g.Name))
}

func (b *Bot) handleRenameFeed(ctx context.Context, chatID int64, args string) {
	n, name, err := ParseIndexAndRest(args, "/renamefeed <n> <name>")
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	g, ok := b.groupAt(chatID, n)
	if !ok {
		return
	}
	if err := b.lib.RenameGroup(ctx, g.ID, name); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Feed %d renamed to \"%s\".", n, name))
}

func (b *Bot) handleFeedTag(ctx context.Context, chatID int64, args string) {
	n, rest, err := ParseIndexAndRest(args, "/feedtag <n> <tags>")
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	g, ok := b.groupAt(chatID, n)
	if !ok {
		return
	}
	for _, tag := range strings.Fields(rest) {
		if _, err := b.lib.AddGroupTag(ctx, g.ID, tag); err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
	}
	g, _ = b.lib.Group(g.ID)
	b.reply(chatID, fmt.Sprintf("Feed %d \"%s\": %s", n, g.Name, strings.Join(g.Strings(), " ")))
}

func (b *Bot) handleUntag(ctx context.Context, chatID int64, args string) {
	n, tag, err := ParseIndexAndRest(args, "/untag <n> <tag>")
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	g, ok := b.groupAt(chatID, n)
	if !ok {
		return
	}
	excluded := strings.HasPrefix(tag, "-")
	removed, err := b.lib.RemoveGroupTag(ctx, g.ID, tag, excluded)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("Feed %d has no tag %s.", n, tag))
		return
	}
	b.reply(chatID, fmt.Sprintf("Removed %s from feed %d.", tag, n))
}

func (b *Bot) handleFeedProvider(ctx context.Context, chatID int64, args string) {
	n, name, err := ParseIndexAndRest(args, "/feedprovider <n> <rule34|realbooru>")
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	g, ok := b.groupAt(chatID, n)
	if !ok {
		return
	}
	p, valid := model.ParseProvider(name)
	if !valid {
		b.reply(chatID, fmt.Sprintf("Unknown provider %q. Use rule34 or realbooru.", name))
		return
	}
	if err := b.lib.SetGroupProvider(ctx, g.ID, p); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Feed %d now uses %s.", n, p))
}
