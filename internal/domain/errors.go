package domain

import "fmt"

// ResolutionError means the source platform has no retrievable path for
// a file ID. Fatal to that one unit's delivery.
type ResolutionError struct {
	FileID string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve media %s: %v", e.FileID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchError means downloading media bytes failed. The resolved URL is
// deliberately not part of the message: Telegram file URLs embed the
// bot token.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch media: %v", e.Err)
	}
	return fmt.Sprintf("fetch media: unexpected status %d", e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DeliveryError means the outbound webhook request did not succeed.
// Fire-once semantics: the unit is not retried.
type DeliveryError struct {
	Status int
	Body   string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook delivery: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("webhook delivery: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("webhook delivery: status %d", e.Status)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
