// Package telegram binds the conversation controller to the Telegram Bot API,
// by long polling or by webhook.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/companion/internal/bot"
	"github.com/ashureev/companion/internal/dispatch"
)

// Update delivery modes.
const (
	ModePoll    = "poll"
	ModeWebhook = "webhook"
)

// UserPrefix namespaces Telegram users in the session store.
const UserPrefix = "tg:"

// MaxVoiceBytes is the largest voice file downloaded; the Bot API refuses
// bigger downloads anyway.
const MaxVoiceBytes = 20 << 20

var ErrVoiceTooLarge = errors.New("voice message too large")

// Controller is the subset of *bot.Controller the transport drives.
type Controller interface {
	HandleText(ctx context.Context, userID, text string) bot.Reply
	HandleCallback(ctx context.Context, userID, data string) bot.Reply
	HandleVoice(ctx context.Context, userID string, audio []byte) bot.Reply
	HandleLocation(ctx context.Context, userID string, lat, lon float64) bot.Reply
}

// Dispatcher runs jobs in per-user order.
type Dispatcher interface {
	Submit(userID string, job dispatch.Job) error
}

// API is the subset of *tgbotapi.BotAPI used to talk back to Telegram.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Config configures the Telegram binding.
type Config struct {
	Token      string
	Mode       string
	WebhookURL string
	Debug      bool
}

// Bot receives updates and turns them into controller events.
type Bot struct {
	api        API
	botAPI     *tgbotapi.BotAPI
	cfg        Config
	controller Controller
	dispatcher Dispatcher
	client     *http.Client
	logger     *slog.Logger
}

var _ API = (*tgbotapi.BotAPI)(nil)

// New connects to the Bot API and verifies the token.
func New(cfg Config, c Controller, d Dispatcher, logger *slog.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	botAPI.Debug = cfg.Debug

	b := NewWithAPI(botAPI, cfg, c, d, logger)
	b.botAPI = botAPI
	b.logger.Info("Telegram bot authorized", "username", botAPI.Self.UserName, "mode", cfg.Mode)
	return b, nil
}

// NewWithAPI builds a Bot around an existing API client. Run needs a
// *tgbotapi.BotAPI; Dispatch and WebhookHandler work with any API.
func NewWithAPI(api API, cfg Config, c Controller, d Dispatcher, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModePoll
	}
	return &Bot{
		api:        api,
		cfg:        cfg,
		controller: c,
		dispatcher: d,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// Run receives updates until ctx ends. In webhook mode it registers the
// webhook and waits; updates then arrive through WebhookHandler.
func (b *Bot) Run(ctx context.Context) error {
	if b.botAPI == nil {
		return errors.New("telegram: Run needs a connected bot")
	}

	if b.cfg.Mode == ModeWebhook {
		wh, err := tgbotapi.NewWebhook(b.cfg.WebhookURL)
		if err != nil {
			return fmt.Errorf("build webhook: %w", err)
		}
		if _, err := b.botAPI.Request(wh); err != nil {
			return fmt.Errorf("register webhook: %w", err)
		}
		b.logger.Info("Telegram webhook registered", "url", b.cfg.WebhookURL)
		<-ctx.Done()
		return nil
	}

	// Polling and webhooks are exclusive on the Bot API side.
	if _, err := b.botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to clear webhook before polling", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.botAPI.GetUpdatesChan(u)
	b.logger.Info("Telegram long polling started")

	for {
		select {
		case <-ctx.Done():
			b.botAPI.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.Dispatch(update)
		}
	}
}

// WebhookHandler accepts updates posted by Telegram.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&update); err != nil {
			b.logger.Warn("Malformed webhook update", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.Dispatch(update)
		w.WriteHeader(http.StatusOK)
	})
}

// Dispatch queues update on its user's worker. Updates without a sender or
// with unsupported content are ignored.
func (b *Bot) Dispatch(update tgbotapi.Update) {
	userID, job := b.job(update)
	if job == nil {
		return
	}
	if err := b.dispatcher.Submit(userID, job); err != nil {
		b.logger.Warn("Update not dispatched", "user_id", userID, "update_id", update.UpdateID, "error", err)
	}
}

func (b *Bot) job(update tgbotapi.Update) (string, dispatch.Job) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil {
			return "", nil
		}
		userID := userIDOf(cq.From)
		chatID := cq.Message.Chat.ID
		return userID, func(ctx context.Context) {
			if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
				b.logger.Debug("Failed to answer callback", "user_id", userID, "error", err)
			}
			b.send(chatID, userID, b.controller.HandleCallback(ctx, userID, cq.Data))
		}
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return "", nil
	}
	userID := userIDOf(msg.From)
	chatID := msg.Chat.ID

	switch {
	case msg.Location != nil:
		lat, lon := msg.Location.Latitude, msg.Location.Longitude
		return userID, func(ctx context.Context) {
			b.send(chatID, userID, b.controller.HandleLocation(ctx, userID, lat, lon))
		}

	case msg.Voice != nil:
		fileID := msg.Voice.FileID
		return userID, func(ctx context.Context) {
			b.typing(chatID)
			audio, err := b.download(ctx, fileID)
			if err != nil {
				b.logger.Warn("Voice download failed", "user_id", userID, "error", err)
				audio = nil
			}
			b.send(chatID, userID, b.controller.HandleVoice(ctx, userID, audio))
		}

	case msg.Text != "":
		text := msg.Text
		return userID, func(ctx context.Context) {
			b.typing(chatID)
			b.send(chatID, userID, b.controller.HandleText(ctx, userID, text))
		}
	}
	return "", nil
}

func (b *Bot) send(chatID int64, userID string, reply bot.Reply) {
	if _, err := b.api.Send(render(chatID, reply)); err != nil {
		b.logger.Warn("Failed to send reply", "user_id", userID, "error", err)
	}
}

func (b *Bot) typing(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("Failed to send chat action", "error", err)
	}
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxVoiceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > MaxVoiceBytes {
		return nil, ErrVoiceTooLarge
	}
	return data, nil
}

func userIDOf(u *tgbotapi.User) string {
	return UserPrefix + strconv.FormatInt(u.ID, 10)
}
