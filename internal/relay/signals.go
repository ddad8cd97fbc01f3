package relay

import (
	"context"
	"errors"
	"fmt"
)

// Publisher sends a payload to a named topic and returns the broker's
// message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SignalMessage is the payload published for each collected signal.
type SignalMessage struct {
	Source   string `json:"source"`
	Sequence int    `json:"sequence"`
	Payload  string `json:"payload"`
}

// PublishSignals returns an AfterComplete hook that publishes every signal
// to topic, tagged with source. Every signal is attempted; failures are
// joined.
func PublishSignals(pub Publisher, topic, source string) func(context.Context, []string) error {
	return func(ctx context.Context, signals []string) error {
		var errs []error
		for i, payload := range signals {
			msg := SignalMessage{Source: source, Sequence: i + 1, Payload: payload}
			if _, err := pub.Publish(ctx, topic, msg); err != nil {
				errs = append(errs, fmt.Errorf("publish signal %d: %w", i+1, err))
			}
		}
		return errors.Join(errs...)
	}
}
