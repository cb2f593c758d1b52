package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/domain"
)

const defaultPollTimeout = 30 // seconds, long-poll

// Telegram polls the Bot API for channel posts and publishes them to
// the post bus. It also serves as the media Resolver and Fetcher for
// the forwarder, since both need the same bot credentials.
type Telegram struct {
	token       string
	pollTimeout int
	bot         *tgbotapi.BotAPI
	client      *http.Client
	logger      *slog.Logger
}

// TelegramConfig configures the Telegram source.
type TelegramConfig struct {
	Token              string
	PollTimeoutSeconds int
	Logger             *slog.Logger
}

// NewTelegram creates a new Telegram source.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.PollTimeoutSeconds <= 0 {
		cfg.PollTimeoutSeconds = defaultPollTimeout
	}
	return &Telegram{
		token:       cfg.Token,
		pollTimeout: cfg.PollTimeoutSeconds,
		client:      &http.Client{Timeout: 2 * time.Minute},
		logger:      cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls channel-post updates until ctx
// is cancelled.
func (t *Telegram) Start(ctx context.Context, bus domain.PostBus) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"channel_post"}
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram source stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.ChannelPost == nil {
				continue
			}
			post, ok := decodePost(update.ChannelPost)
			if !ok {
				continue
			}
			t.logger.Info("channel post received",
				"chat_id", post.ChatID,
				"message_id", post.MessageID,
				"album_id", post.AlbumID,
				"has_media", post.Media != nil,
			)
			bus.Publish(post)
		}
	}
}

// Resolve turns a Telegram file ID into a direct download URL. This is
// a live Bot API lookup every time; results are never cached because
// the URLs expire.
func (t *Telegram) Resolve(ctx context.Context, fileID string) (string, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", &domain.ResolutionError{FileID: fileID, Err: err}
	}
	return url, nil
}

// Fetch downloads media bytes from a resolved URL.
func (t *Telegram) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.FetchError{Err: err}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Err: err}
	}
	return data, nil
}

// decodePost maps a Bot API channel post onto a domain.Post. Posts with
// neither text nor supported media (service messages, stickers, polls)
// are dropped here.
func decodePost(msg *tgbotapi.Message) (domain.Post, bool) {
	var post domain.Post
	post.MessageID = msg.MessageID
	post.AlbumID = msg.MediaGroupID
	if msg.Chat != nil {
		post.ChatID = msg.Chat.ID
		post.ChatUsername = msg.Chat.UserName
	}

	switch {
	case len(msg.Photo) > 0:
		// Sizes are ordered smallest first; take the original.
		ph := msg.Photo[len(msg.Photo)-1]
		post.Text = msg.Caption
		post.Media = &domain.MediaRef{
			FileID:   ph.FileID,
			Filename: fmt.Sprintf("photo_%d.jpg", msg.MessageID),
			Kind:     domain.MediaPhoto,
		}
	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = fmt.Sprintf("video_%d.mp4", msg.MessageID)
		}
		post.Text = msg.Caption
		post.Media = &domain.MediaRef{
			FileID:   msg.Video.FileID,
			Filename: name,
			Kind:     domain.MediaVideo,
		}
	case msg.Document != nil:
		name := msg.Document.FileName
		if name == "" {
			name = fmt.Sprintf("file_%d", msg.MessageID)
		}
		post.Text = msg.Caption
		post.Media = &domain.MediaRef{
			FileID:   msg.Document.FileID,
			Filename: name,
			Kind:     domain.MediaDocument,
		}
	default:
		post.Text = msg.Text
		if post.Text == "" {
			return domain.Post{}, false
		}
	}
	return post, true
}
