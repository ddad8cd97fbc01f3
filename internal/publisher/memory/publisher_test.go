package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webconsole/internal/relay"
)

var _ relay.Publisher = (*Publisher)(nil)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "signals", relay.SignalMessage{Payload: "go"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, []any{relay.SignalMessage{Payload: "go"}}, pub.Topic("signals"))

	msgs[0].Topic = "modified"
	require.Equal(t, "signals", pub.Messages()[0].Topic)
}

func TestPublisherHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Publish(ctx, "signals", "x")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, New().Messages())
}

func TestPublishSignalsHook(t *testing.T) {
	t.Parallel()

	pub := New()
	hook := relay.PublishSignals(pub, "signals", "remote-a")
	require.NoError(t, hook(context.Background(), []string{"first", "second"}))

	require.Equal(t, []any{
		relay.SignalMessage{Source: "remote-a", Sequence: 1, Payload: "first"},
		relay.SignalMessage{Source: "remote-a", Sequence: 2, Payload: "second"},
	}, pub.Topic("signals"))
}
