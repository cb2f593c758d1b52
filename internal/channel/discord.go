package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/domain"
)

const (
	defaultMaxContentLen = 1900 // leaves headroom under Discord's 2000-char limit
	errorBodySnippetLen  = 200
)

// DiscordWebhook delivers aggregated units to a Discord channel through
// an incoming webhook. One multipart request carries the text and every
// file of a unit; a unit is never split across requests, and a failed
// unit is not retried here.
type DiscordWebhook struct {
	webhookURL string
	maxLen     int
	resolver   domain.Resolver
	fetcher    domain.Fetcher
	client     *http.Client
	logger     *slog.Logger
}

// DiscordWebhookConfig configures the forwarder.
type DiscordWebhookConfig struct {
	WebhookURL       string
	MaxContentLength int
	Resolver         domain.Resolver
	Fetcher          domain.Fetcher
	Logger           *slog.Logger
}

// NewDiscordWebhook validates the webhook URL and builds the forwarder.
func NewDiscordWebhook(cfg DiscordWebhookConfig) (*DiscordWebhook, error) {
	if err := validateWebhookURL(cfg.WebhookURL); err != nil {
		return nil, err
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = defaultMaxContentLen
	}
	return &DiscordWebhook{
		webhookURL: cfg.WebhookURL,
		maxLen:     cfg.MaxContentLength,
		resolver:   cfg.Resolver,
		fetcher:    cfg.Fetcher,
		client:     &http.Client{Timeout: 2 * time.Minute},
		logger:     cfg.Logger,
	}, nil
}

// validateWebhookURL checks the shape
// https://discord.com/api/webhooks/<id>/<token> without being strict
// about the host (ptb/canary deployments differ).
func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid webhook URL: scheme %q", u.Scheme)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-1] == "" || parts[len(parts)-2] == "" {
		return fmt.Errorf("invalid webhook URL: expected .../webhooks/<id>/<token>")
	}
	return nil
}

// Forward resolves and fetches every file of the unit, then executes
// the webhook exactly once.
func (d *DiscordWebhook) Forward(ctx context.Context, unit domain.OutboundUnit) error {
	params := &discordgo.WebhookParams{
		Content: truncate(unit.Content, d.maxLen),
	}

	for _, ref := range unit.Files {
		fileURL, err := d.resolver.Resolve(ctx, ref.FileID)
		if err != nil {
			return err
		}
		data, err := d.fetcher.Fetch(ctx, fileURL)
		if err != nil {
			return err
		}
		params.Files = append(params.Files, &discordgo.File{
			Name:        ref.Filename,
			ContentType: contentTypeFor(ref),
			Reader:      bytes.NewReader(data),
		})
	}

	var (
		body        []byte
		contentType string
		err         error
	)
	if len(params.Files) > 0 {
		contentType, body, err = discordgo.MultipartBodyWithJSON(params, params.Files)
	} else {
		contentType = "application/json"
		body, err = json.Marshal(params)
	}
	if err != nil {
		return &domain.DeliveryError{Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL+"?wait=true", bytes.NewReader(body))
	if err != nil {
		return &domain.DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return &domain.DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodySnippetLen))
		return &domain.DeliveryError{Status: resp.StatusCode, Body: string(snippet)}
	}

	d.logger.Debug("webhook executed",
		"unit_id", unit.UnitID,
		"files", len(params.Files),
		"status", resp.StatusCode,
	)
	return nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func contentTypeFor(ref domain.MediaRef) string {
	switch ref.Kind {
	case domain.MediaPhoto:
		return "image/jpeg"
	case domain.MediaVideo:
		return "video/mp4"
	default:
		if ct := mime.TypeByExtension(filepath.Ext(ref.Filename)); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
