// Package bot is the Telegram front end: it turns commands and inline
// buttons into feed operations and renders posts as media messages.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"booru_feed/internal/config"
	"booru_feed/internal/feed"
	"booru_feed/internal/model"
	"booru_feed/internal/state"
	"booru_feed/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// HTTPClient downloads files users send to the bot.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider is the content backend the bot browses.
type Provider interface {
	feed.Lister
	feed.Prober
	Autocomplete(ctx context.Context, prefix string, p model.Provider) ([]model.Suggestion, error)
	TagMetadata(ctx context.Context, name string, p model.Provider) ([]model.TagInfo, error)
}

// Bot is the Telegram bot that handles user commands and renders feeds.
type Bot struct {
	api      telegramAPI
	provider Provider
	lib      *state.Library
	store    storage.Storage
	cfg      *config.Config
	log      *slog.Logger
	files    HTTPClient

	mu       sync.Mutex
	sessions map[int64]*feed.Session
}

// New creates a Bot with the given Telegram token, content provider, library and storage.
func New(token string, p Provider, lib *state.Library, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		provider: p,
		lib:      lib,
		store:    store,
		cfg:      cfg,
		log:      log,
		files:    &http.Client{Timeout: 30 * time.Second},
		sessions: make(map[int64]*feed.Session),
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				go b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil {
				continue
			}
			if !update.Message.IsCommand() && !isImportUpload(update.Message) {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			go b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// session returns the feed session of a chat, creating it on first use.
func (b *Bot) session(chatID int64) *feed.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessions == nil {
		b.sessions = make(map[int64]*feed.Session)
	}
	s, ok := b.sessions[chatID]
	if !ok {
		s = feed.NewSession(b.provider, b.lib, b.log.With("chat_id", chatID))
		if b.cfg.HomeConcurrency > 0 {
			s.SetHomeConcurrency(b.cfg.HomeConcurrency)
		}
		b.sessions[chatID] = s
	}
	return s
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	if cmd == "" && isImportUpload(msg) {
		cmd = "import"
	}
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "search":
		b.handleSearch(ctx, chatID, args)
	case cmdMore:
		b.handleMore(ctx, chatID)
	case "home":
		b.handleHome(ctx, chatID)
	case "favorites":
		b.handleFavorites(ctx, chatID)
	case "query":
		b.handleQuery(chatID)
	case cmdTags:
		b.handleTags(ctx, chatID, args)
	case "autocomplete":
		b.handleAutocomplete(ctx, chatID, args)
	case "feeds":
		b.handleFeeds(chatID)
	case "newfeed":
		b.handleNewFeed(ctx, chatID, args)
	case "rmfeed":
		b.handleRmFeed(ctx, chatID, args)
	case "renamefeed":
		b.handleRenameFeed(ctx, chatID, args)
	case "feedtag":
		b.handleFeedTag(ctx, chatID, args)
	case "untag":
		b.handleUntag(ctx, chatID, args)
	case "feedprovider":
		b.handleFeedProvider(ctx, chatID, args)
	case "filters":
		b.handleFilters(chatID)
	case "filter":
		b.handleFilter(ctx, chatID, args)
	case "exclude":
		b.handleExclude(ctx, chatID, args)
	case "unexclude":
		b.handleUnexclude(ctx, chatID, args)
	case "settings":
		b.handleSettings(chatID)
	case "provider":
		b.handleProvider(ctx, chatID, args)
	case "proxy":
		b.handleProxy(ctx, chatID, args)
	case "proxymedia":
		b.handleProxyMedia(ctx, chatID, args)
	case "creds":
		b.handleCreds(ctx, chatID, args)
	case "perpage":
		b.handlePerPage(ctx, chatID, args)
	case "export":
		b.handleExport(chatID)
	case "import":
		b.handleImport(ctx, chatID, importDocument(msg))
	case "reset":
		b.handleReset(chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
