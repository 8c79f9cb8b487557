// Package presence composes the public status text from a snapshot and
// pushes it to the presence endpoint at a bounded rate.
package presence

import (
	"context"
	"errors"
)

// Asset references sent with every update.
const (
	LargeImageKey  = "default"
	LargeImageText = "MultiRichPresence"
)

// Activity is the payload handed to the endpoint. Empty Details or State
// mean "omit the field".
type Activity struct {
	Details        string
	State          string
	StartedAt      int64 // epoch seconds
	LargeImageKey  string
	LargeImageText string
}

// ErrRejected marks a SetActivity failure where the endpoint refused the
// payload but the session is still usable. Clients wrap or match it.
var ErrRejected = errors.New("activity rejected")

// Client is the presence endpoint contract. Implementations need not be
// safe for concurrent use; the Publisher serialises calls.
type Client interface {
	Connect(ctx context.Context) error
	SetActivity(ctx context.Context, activity Activity) error
	ClearActivity(ctx context.Context) error
	Close() error
}
