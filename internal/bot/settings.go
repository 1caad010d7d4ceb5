package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"booru_feed/internal/model"
)

func (b *Bot) handleFilters(chatID int64) {
	b.reply(chatID, FormatFilters(b.lib.Filters()))
}

func (b *Bot) handleFilter(ctx context.Context, chatID int64, args string) {
	name, on, err := ParseFilterArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := b.lib.SetFilter(ctx, name, on); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Filter %s is %s.", name, onOff(on)))
}

func (b *Bot) handleExclude(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /exclude <tag>")
		return
	}
	added, err := b.lib.AddCustomExclude(ctx, args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !added {
		b.reply(chatID, fmt.Sprintf("%s is already excluded.", args))
		return
	}
	b.reply(chatID, fmt.Sprintf("Every query now excludes %s.", model.NormalizeTag(args)))
}

func (b *Bot) handleUnexclude(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /unexclude <tag>")
		return
	}
	removed, err := b.lib.RemoveCustomExclude(ctx, args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("%s is not excluded.", args))
		return
	}
	b.reply(chatID, fmt.Sprintf("%s is no longer excluded.", model.NormalizeTag(args)))
}

func (b *Bot) handleSettings(chatID int64) {
	b.reply(chatID, FormatSettings(b.lib.Settings()))
}

func (b *Bot) handleProvider(ctx context.Context, chatID int64, args string) {
	p, ok := model.ParseProvider(args)
	if !ok {
		b.reply(chatID, "Usage: /provider <rule34|realbooru>")
		return
	}
	if err := b.lib.SetProvider(ctx, p); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Provider set to %s.", p))
}

func (b *Bot) handleProxy(ctx context.Context, chatID int64, args string) {
	if err := b.lib.SetProxy(ctx, args); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if args == "" {
		b.reply(chatID, "CORS proxy cleared.")
		return
	}
	b.reply(chatID, fmt.Sprintf("CORS proxy set to %s.", args))
}

func (b *Bot) handleProxyMedia(ctx context.Context, chatID int64, args string) {
	on, err := ParseOnOff(args)
	if err != nil {
		b.reply(chatID, "Usage: /proxymedia <on|off>")
		return
	}
	if err := b.lib.SetProxyImages(ctx, on); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Media proxying is %s.", onOff(on)))
}

func (b *Bot) handleCreds(ctx context.Context, chatID int64, args string) {
	userID, key, err := ParseCredsArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := b.lib.SetCredentials(ctx, userID, key); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if userID == "" {
		b.reply(chatID, "API credentials cleared.")
		return
	}
	b.reply(chatID, "API credentials saved.")
}

func (b *Bot) handlePerPage(ctx context.Context, chatID int64, args string) {
	n, err := ParsePerPage(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	stored, err := b.lib.SetPerPage(ctx, n)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Posts per page set to %d.", stored))
}

func (b *Bot) handleExport(chatID int64) {
	data, err := b.lib.Export()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Export failed: %v", err))
		return
	}
	name := "booru-feed-" + time.Now().UTC().Format("20060102") + ".json"
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = "Your library. Load it with: datatool import <file>"
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send export", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not send the export file.")
	}
}
