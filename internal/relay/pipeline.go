package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/domain"
	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/metrics"
)

// Pipeline is the single entry point for inbound posts: allow-list
// filter, album aggregation, text rewrite, and hand-off to the
// forwarder. Handle never returns an error; delivery failures are
// caught at the per-unit boundary and logged.
type Pipeline struct {
	filter   *ChannelFilter
	rewriter *Rewriter
	fwd      domain.Forwarder
	history  domain.DeliveryLog
	logger   *slog.Logger
	agg      *Aggregator
}

// PipelineConfig wires the pipeline's collaborators. History is
// optional; everything else is required.
type PipelineConfig struct {
	Filter    *ChannelFilter
	Rewriter  *Rewriter
	Forwarder domain.Forwarder
	History   domain.DeliveryLog
	Window    time.Duration
	MaxFiles  int
	Logger    *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		filter:   cfg.Filter,
		rewriter: cfg.Rewriter,
		fwd:      cfg.Forwarder,
		history:  cfg.History,
		logger:   cfg.Logger,
	}
	p.agg = NewAggregator(cfg.Window, cfg.MaxFiles, p.deliver, cfg.Logger)
	return p
}

// Handle runs one inbound post through the pipeline. Album posts are
// buffered until their quiet window elapses; everything else is
// forwarded immediately.
func (p *Pipeline) Handle(post domain.Post) {
	metrics.PostsReceived.Inc()

	if !p.filter.Allow(post.ChatID, post.ChatUsername) {
		metrics.PostsRejected.Inc()
		p.logger.Debug("post rejected by channel filter",
			"chat_id", post.ChatID, "message_id", post.MessageID)
		return
	}

	if post.AlbumID != "" {
		p.agg.Add(post)
		return
	}

	if post.Text == "" && post.Media == nil {
		return // nothing to relay
	}

	var files []domain.MediaRef
	if post.Media != nil {
		files = []domain.MediaRef{*post.Media}
	}
	p.deliver(domain.OutboundUnit{
		ChatID:  post.ChatID,
		Content: post.Text,
		Files:   files,
	})
}

// Albums returns the number of album buffers currently waiting.
func (p *Pipeline) Albums() int { return p.agg.Open() }

// deliver rewrites the unit's text and forwards it on its own
// goroutine, so one slow upload never stalls buffering or other album
// keys. Once started, a delivery runs to completion or failure.
func (p *Pipeline) deliver(unit domain.OutboundUnit) {
	unit.UnitID = uuid.NewString()
	unit.Content = p.rewriter.Rewrite(unit.Content)

	go func() {
		start := time.Now()
		err := p.fwd.Forward(context.Background(), unit)
		metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.UnitsForwarded.WithLabelValues("error").Inc()
			metrics.ForwardErrors.WithLabelValues(stageOf(err)).Inc()
			p.logger.Error("unit delivery failed",
				"unit_id", unit.UnitID,
				"chat_id", unit.ChatID,
				"album_id", unit.AlbumID,
				"files", len(unit.Files),
				"err", err,
			)
			p.record(unit, "failed", err.Error())
			return
		}

		metrics.UnitsForwarded.WithLabelValues("ok").Inc()
		p.logger.Info("unit delivered",
			"unit_id", unit.UnitID,
			"chat_id", unit.ChatID,
			"album_id", unit.AlbumID,
			"files", len(unit.Files),
			"content_len", len(unit.Content),
			"took", time.Since(start),
		)
		p.record(unit, "ok", "")
	}()
}

func (p *Pipeline) record(unit domain.OutboundUnit, outcome, errText string) {
	if p.history == nil {
		return
	}
	rec := domain.DeliveryRecord{
		UnitID:     unit.UnitID,
		ChatID:     unit.ChatID,
		AlbumID:    unit.AlbumID,
		Files:      len(unit.Files),
		ContentLen: len(unit.Content),
		Outcome:    outcome,
		Error:      errText,
	}
	if err := p.history.Record(context.Background(), rec); err != nil {
		p.logger.Warn("relay log write failed", "unit_id", unit.UnitID, "err", err)
	}
}

// stageOf maps a delivery failure onto the pipeline stage it came from.
func stageOf(err error) string {
	var resErr *domain.ResolutionError
	var fetchErr *domain.FetchError
	var delErr *domain.DeliveryError
	switch {
	case errors.As(err, &resErr):
		return "resolve"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &delErr):
		return "deliver"
	default:
		return "other"
	}
}
