package domain

import "time"

// MediaKind classifies a media attachment on the source platform.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// MediaRef is an opaque locator for one media item on the source
// platform. It is resolved into a fetchable URL at delivery time;
// resolution results are never cached.
type MediaRef struct {
	FileID   string
	Filename string
	Kind     MediaKind
}

// Post is a single inbound channel-post event, already decoded from the
// source transport. It is never mutated after decode.
type Post struct {
	ChatID       int64
	ChatUsername string
	MessageID    int
	AlbumID      string // media group ID; empty = standalone post
	Text         string // message text or media caption
	Media        *MediaRef
}

// OutboundUnit is the sole artifact handed to a Forwarder: the final
// text plus the ordered media references for one delivery.
type OutboundUnit struct {
	UnitID  string
	ChatID  int64
	AlbumID string
	Content string
	Files   []MediaRef
}

// DeliveryRecord is one row of the relay log: the outcome of a single
// delivery attempt. Write-only observability, never read by the
// pipeline itself.
type DeliveryRecord struct {
	UnitID     string
	ChatID     int64
	AlbumID    string
	Files      int
	ContentLen int
	Outcome    string // "ok" | "failed"
	Error      string
	CreatedAt  time.Time
}
