package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/domain"
	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/metrics"
)

const (
	defaultQuietWindow = 1500 * time.Millisecond
	defaultMaxFiles    = 10
)

// FlushFunc receives the aggregated unit once an album's quiet window
// elapses with no further arrivals.
type FlushFunc func(unit domain.OutboundUnit)

type albumKey struct {
	chatID  int64
	albumID string
}

// albumBuffer is owned exclusively by the Aggregator; gen counts
// arrivals so a stale timer that lost the race against a newer arrival
// can recognize itself and back off.
type albumBuffer struct {
	caption string
	items   []domain.MediaRef
	timer   *time.Timer
	gen     int
}

// Aggregator buffers media belonging to the same album and flushes one
// quiet window after the last arrival. Each new arrival for a key
// cancels and re-arms the key's timer, so at most one flush is ever
// scheduled per album.
type Aggregator struct {
	window   time.Duration
	maxFiles int
	flush    FlushFunc
	logger   *slog.Logger

	mu      sync.Mutex
	buffers map[albumKey]*albumBuffer
}

// NewAggregator creates an Aggregator flushing through fn. A zero
// window or file cap selects the defaults (1.5s, 10 files).
func NewAggregator(window time.Duration, maxFiles int, fn FlushFunc, logger *slog.Logger) *Aggregator {
	if window <= 0 {
		window = defaultQuietWindow
	}
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}
	return &Aggregator{
		window:   window,
		maxFiles: maxFiles,
		flush:    fn,
		logger:   logger,
		buffers:  make(map[albumKey]*albumBuffer),
	}
}

// Add buffers one album item. The first item for a key creates the
// buffer and arms the quiet-window timer; later items append in arrival
// order, fill an empty caption, and re-arm the timer.
func (a *Aggregator) Add(post domain.Post) {
	key := albumKey{chatID: post.ChatID, albumID: post.AlbumID}

	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[key]
	if !ok {
		buf = &albumBuffer{}
		a.buffers[key] = buf
		metrics.AlbumsOpen.Inc()
		a.logger.Debug("album buffer opened",
			"chat_id", post.ChatID, "album_id", post.AlbumID)
	} else {
		buf.timer.Stop()
	}

	if post.Media != nil {
		buf.items = append(buf.items, *post.Media)
	}
	if buf.caption == "" {
		buf.caption = post.Text // first non-empty caption wins
	}

	buf.gen++
	gen := buf.gen
	buf.timer = time.AfterFunc(a.window, func() { a.fire(key, gen) })
}

// Open returns how many album buffers are currently live.
func (a *Aggregator) Open() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

// fire finalizes one album. The buffer leaves the live table before the
// flush runs, so a late arrival for the same key starts a fresh buffer
// instead of appending to one mid-flush. A stale gen means a newer
// arrival re-armed the timer after this callback was already running.
func (a *Aggregator) fire(key albumKey, gen int) {
	a.mu.Lock()
	buf, ok := a.buffers[key]
	if !ok || buf.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.buffers, key)
	a.mu.Unlock()
	metrics.AlbumsOpen.Dec()

	items := buf.items
	if len(items) > a.maxFiles {
		a.logger.Warn("album exceeds file cap, truncating",
			"chat_id", key.chatID,
			"album_id", key.albumID,
			"items", len(items),
			"cap", a.maxFiles,
		)
		items = items[:a.maxFiles]
	}

	a.flush(domain.OutboundUnit{
		ChatID:  key.chatID,
		AlbumID: key.albumID,
		Content: buf.caption,
		Files:   items,
	})
}
