package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxImportSize bounds the library document accepted by /import.
const maxImportSize = 5 << 20

var errImportTooLarge = errors.New("file is too large")

// isImportUpload reports whether msg is a document sent with /import as its caption.
func isImportUpload(msg *tgbotapi.Message) bool {
	return msg.Document != nil && strings.HasPrefix(strings.TrimSpace(msg.Caption), "/import")
}

// importDocument returns the document attached to msg or to the message it replies to.
func importDocument(msg *tgbotapi.Message) *tgbotapi.Document {
	if msg.Document != nil {
		return msg.Document
	}
	if msg.ReplyToMessage != nil {
		return msg.ReplyToMessage.Document
	}
	return nil
}

func (b *Bot) handleImport(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	if doc == nil {
		b.reply(chatID, "Send an exported library file with /import as its caption, or reply /import to one.")
		return
	}
	if doc.FileSize > maxImportSize {
		b.reply(chatID, fmt.Sprintf("Import failed: %v", errImportTooLarge))
		return
	}

	data, err := b.download(ctx, doc.FileID)
	if err != nil {
		b.log.Error("download import", "chat_id", chatID, "file_id", doc.FileID, "error", err)
		b.reply(chatID, fmt.Sprintf("Import failed: %v", err))
		return
	}
	if err := b.lib.Import(ctx, data); err != nil {
		b.reply(chatID, fmt.Sprintf("Import failed: %v", err))
		return
	}
	b.resetSessions()
	b.reply(chatID, "Import complete.")
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	link, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := b.files.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxImportSize {
		return nil, errImportTooLarge
	}
	return data, nil
}

func (b *Bot) handleReset(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Reset all data? Settings, filters, feeds and favorites will be deleted. This cannot be undone.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Reset everything", cbReset+":confirm"),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbReset+":cancel"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send reset prompt", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) confirmReset(ctx context.Context, cb *tgbotapi.CallbackQuery, answer string) {
	chatID := cb.Message.Chat.ID
	b.clearButtons(chatID, cb.Message.MessageID)

	if answer != "confirm" {
		b.ack(cb.ID, "Reset cancelled.")
		return
	}

	groups := b.lib.Groups()
	if err := b.lib.Reset(ctx); err != nil {
		b.log.Error("reset library", "error", err)
		b.ack(cb.ID, "")
		b.reply(chatID, fmt.Sprintf("Reset failed: %v", err))
		return
	}
	for _, g := range groups {
		if err := b.store.ForgetGroup(ctx, g.ID); err != nil {
			b.log.Error("forget group", "group_id", g.ID, "error", err)
		}
	}
	b.resetSessions()
	b.ack(cb.ID, "Data reset.")
	b.reply(chatID, "Data reset.")
}

func (b *Bot) clearButtons(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(edit); err != nil {
		b.log.Error("clear buttons", "chat_id", chatID, "error", err)
	}
}

// resetSessions restarts every chat's feed after the library was replaced.
func (b *Bot) resetSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sessions {
		s.Reset()
	}
}
