package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"booru_feed/internal/feed"
	"booru_feed/internal/model"
)

// Inline button actions.
const (
	cbFav   = "fav"
	cbTags  = "tags"
	cbMore  = "more"
	cbReset = "reset"
)

const noticeEnd = "End of feed."

// SendPost renders one post to a chat. It implements scheduler.Sender.
func (b *Bot) SendPost(ctx context.Context, chatID int64, header string, p model.Post) {
	caption := FormatCaption(header, p)
	markup := postKeyboard(p.ID, b.lib.IsFavorite(p.ID))

	media, err := b.mediaURL(ctx, p)
	if err != nil {
		b.log.Warn("resolve media", "post_id", p.ID, "error", err)
		b.sendLink(chatID, caption, p.FileURL, markup)
		return
	}

	if _, err := b.api.Send(mediaMessage(chatID, media, p.IsVideo(), caption, markup)); err != nil {
		b.log.Warn("send media", "chat_id", chatID, "post_id", p.ID, "error", err)
		b.sendLink(chatID, caption, media, markup)
	}
}

// mediaURL picks the URL to hand to Telegram. Posts with several candidates
// are probed in order; a single candidate is used as is.
func (b *Bot) mediaURL(ctx context.Context, p model.Post) (string, error) {
	candidates := p.MediaCandidates()
	if len(candidates) == 1 && candidates[0] != "" {
		return candidates[0], nil
	}
	return feed.ResolveMedia(ctx, b.provider, candidates)
}

func (b *Bot) sendLink(chatID int64, caption, link string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, caption+"\n\n"+link)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send post link", "chat_id", chatID, "error", err)
	}
}

func mediaMessage(chatID int64, media string, video bool, caption string, markup tgbotapi.InlineKeyboardMarkup) tgbotapi.Chattable {
	file := tgbotapi.FileURL(media)
	switch {
	case video:
		m := tgbotapi.NewVideo(chatID, file)
		m.Caption = caption
		m.ReplyMarkup = markup
		return m
	case mediaExt(media) == ".gif":
		m := tgbotapi.NewAnimation(chatID, file)
		m.Caption = caption
		m.ReplyMarkup = markup
		return m
	default:
		m := tgbotapi.NewPhoto(chatID, file)
		m.Caption = caption
		m.ReplyMarkup = markup
		return m
	}
}

// mediaExt returns the extension of the media URL, looking through proxy
// wrappers that carry the target in the query string.
func mediaExt(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
		return ext
	}
	if target, err := url.QueryUnescape(u.RawQuery); err == nil {
		return strings.ToLower(path.Ext(strings.TrimPrefix(target, "url=")))
	}
	return ""
}

func postKeyboard(postID string, favorite bool) tgbotapi.InlineKeyboardMarkup {
	label := "Favorite"
	if favorite {
		label = "Unfavorite"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbFav+":"+postID),
			tgbotapi.NewInlineKeyboardButtonData("Tags", cbTags+":"+postID),
		),
	)
}

func moreKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Load more", cbMore+":0"),
		),
	)
}

// loadAndSend loads the next page of the chat's feed and renders it.
func (b *Bot) loadAndSend(ctx context.Context, chatID int64) {
	s := b.session(chatID)
	page, err := s.LoadNext(ctx)
	switch {
	case errors.Is(err, feed.ErrBusy):
		b.reply(chatID, "Still loading, please wait.")
		return
	case errors.Is(err, feed.ErrStale):
		b.log.Debug("discarded stale page", "chat_id", chatID)
		return
	case err != nil:
		b.log.Warn("load page", "chat_id", chatID, "error", err)
		return
	}
	b.sendPage(ctx, chatID, s.Mode(), page)
}

func (b *Bot) sendPage(ctx context.Context, chatID int64, mode feed.Mode, page feed.Page) {
	for _, p := range page.Added {
		b.SendPost(ctx, chatID, "", p)
	}

	switch {
	case page.Notice != "":
		b.reply(chatID, page.Notice)
	case page.ReachedEnd:
		b.reply(chatID, noticeEnd)
	default:
		text := fmt.Sprintf("Loaded %d new post(s) from %s.", len(page.Added), mode)
		if len(page.Added) == 0 {
			text = "Nothing new on this page."
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = moreKeyboard()
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send more button", "chat_id", chatID, "error", err)
		}
	}
}
