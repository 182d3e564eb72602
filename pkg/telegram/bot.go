package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"igrelay/pkg/config"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/logger"
	"igrelay/pkg/ratelimit"
)

// Telegram allows about 20 messages per minute into one channel
const channelMessagesPerMinute = 20

// botAPI is the subset of *tgbotapi.BotAPI the sender uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot uploads photos and videos to one fixed channel
type Bot struct {
	api      botAPI
	chatID   int64
	channel  string
	limiter  ratelimit.Limiter
	logger   logger.Logger
	username string
}

// New authenticates the bot token against the Bot API and targets the
// configured channel
func New(cfg *config.TelegramConfig, log logger.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram bot token is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate telegram bot: %w", err)
	}

	bot, err := newBot(api, cfg.ChannelID, ratelimit.NewSlidingWindow(channelMessagesPerMinute, time.Minute), log)
	if err != nil {
		return nil, err
	}
	bot.username = api.Self.UserName

	bot.logger.InfoWithFields("Telegram bot ready", map[string]interface{}{
		"bot":     bot.username,
		"channel": cfg.ChannelID,
	})
	return bot, nil
}

func newBot(api botAPI, channel string, limiter ratelimit.Limiter, log logger.Logger) (*Bot, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	chatID, username, err := ParseChannel(channel)
	if err != nil {
		return nil, err
	}

	return &Bot{
		api:     api,
		chatID:  chatID,
		channel: username,
		limiter: limiter,
		logger:  log.WithField("component", "telegram"),
	}, nil
}

// ParseChannel accepts a numeric chat id or an @channel username
func ParseChannel(channel string) (int64, string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return 0, "", errors.New("telegram channel id is required")
	}

	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return id, "", nil
	}

	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	if len(channel) < 2 || strings.ContainsAny(channel, " /") {
		return 0, "", fmt.Errorf("invalid telegram channel %q", channel)
	}
	return 0, channel, nil
}

// SendPhoto uploads the photo at path with caption
func (b *Bot) SendPhoto(ctx context.Context, path, caption string) error {
	msg := tgbotapi.NewPhoto(b.chatID, tgbotapi.FilePath(path))
	msg.ChannelUsername = b.channel
	msg.Caption = caption

	return b.send(ctx, msg, "photo", path)
}

// SendVideo uploads the video at path with caption
func (b *Bot) SendVideo(ctx context.Context, path, caption string) error {
	msg := tgbotapi.NewVideo(b.chatID, tgbotapi.FilePath(path))
	msg.ChannelUsername = b.channel
	msg.Caption = caption
	msg.SupportsStreaming = true

	return b.send(ctx, msg, "video", path)
}

func (b *Bot) send(ctx context.Context, msg tgbotapi.Chattable, kind, path string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	sent, err := b.api.Send(msg)
	if err != nil {
		return classifySendError(err)
	}

	b.logger.DebugWithFields("Media sent", map[string]interface{}{
		"kind":       kind,
		"path":       path,
		"message_id": sent.MessageID,
		"duration":   time.Since(start),
	})
	return nil
}

// classifySendError types a Bot API failure; every failure leaves the story
// to be retried on the next cycle
func classifySendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0 {
			return &errs.Error{
				Type:    errs.ErrorTypeRateLimit,
				Message: fmt.Sprintf("telegram rate limit, retry after %ds", apiErr.RetryAfter),
				Code:    apiErr.Code,
				Err:     err,
			}
		}
		return &errs.Error{
			Type:    errs.ErrorTypeTransmission,
			Message: apiErr.Message,
			Code:    apiErr.Code,
			Err:     err,
		}
	}
	return errs.Wrap(errs.ErrorTypeTransmission, err, "telegram request failed")
}
