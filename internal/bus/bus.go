package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/domain"
)

const publishTimeout = 10 * time.Second

// PostBus is a Go-channel based queue carrying inbound channel posts
// from the source poller to the single pipeline consumer. Draining it
// from one goroutine is what serializes pipeline steps.
type PostBus struct {
	inbound chan domain.Post
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// New creates a new PostBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *PostBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &PostBus{
		inbound: make(chan domain.Post, bufferSize),
		logger:  logger,
	}
}

// Publish blocks up to 10 seconds if the bus is full instead of dropping.
func (b *PostBus) Publish(post domain.Post) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- post:
	default:
		// Bus full — wait with timeout instead of dropping
		b.logger.Warn("inbound bus full, waiting...",
			"chat_id", post.ChatID, "message_id", post.MessageID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- post:
			b.logger.Info("post delivered after wait", "chat_id", post.ChatID)
		case <-timer.C:
			b.logger.Error("post dropped: bus full for 10s",
				"chat_id", post.ChatID,
				"message_id", post.MessageID,
			)
		}
	}
}

func (b *PostBus) Subscribe() <-chan domain.Post {
	return b.inbound
}

func (b *PostBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
