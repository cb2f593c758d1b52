package domain

import "context"

// PostBus carries inbound posts from a source to the pipeline consumer.
type PostBus interface {
	Publish(post Post)
	Subscribe() <-chan Post
	Close()
}

// Source is an inbound platform adapter. Start blocks until ctx is
// cancelled, publishing decoded posts onto the bus.
type Source interface {
	Name() string
	Start(ctx context.Context, bus PostBus) error
}

// Resolver turns a source file ID into a fetchable URL. Returns a
// ResolutionError if the source has no retrievable path.
type Resolver interface {
	Resolve(ctx context.Context, fileID string) (string, error)
}

// Fetcher downloads media bytes from a resolved URL. Returns a
// FetchError on non-success status.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Forwarder delivers one aggregated unit to the destination in a single
// outbound request.
type Forwarder interface {
	Forward(ctx context.Context, unit OutboundUnit) error
}

// DeliveryLog records per-unit delivery outcomes.
type DeliveryLog interface {
	Record(ctx context.Context, rec DeliveryRecord) error
}
