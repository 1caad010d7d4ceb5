package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	action, arg, ok := ParseCallback(cb.Data)
	if !ok {
		b.ack(cb.ID, "")
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cbFav:
		b.toggleFavorite(ctx, cb, arg)
	case cbTags:
		b.ack(cb.ID, "")
		b.handleTags(ctx, chatID, arg)
	case cbMore:
		b.ack(cb.ID, "")
		b.handleMore(ctx, chatID)
	case cbReset:
		b.confirmReset(ctx, cb, arg)
	default:
		b.ack(cb.ID, "")
	}
}

func (b *Bot) toggleFavorite(ctx context.Context, cb *tgbotapi.CallbackQuery, postID string) {
	chatID := cb.Message.Chat.ID
	p, ok := b.findPost(chatID, postID)
	if !ok {
		b.ack(cb.ID, "Post is no longer loaded.")
		return
	}

	added, err := b.lib.ToggleFavorite(ctx, p)
	if err != nil {
		b.log.Error("toggle favorite", "post_id", postID, "error", err)
		b.ack(cb.ID, "Could not save favorites.")
		return
	}
	if added {
		b.ack(cb.ID, "Added to favorites.")
	} else {
		b.ack(cb.ID, "Removed from favorites.")
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, postKeyboard(postID, added))
	if _, err := b.api.Request(edit); err != nil {
		b.log.Error("update post buttons", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}
