package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/metrics"
	"github.com/JakeFAU/webconsole/internal/stream"
)

// Receiver consumes a remote relay stream and re-emits it into a local sink.
// Receive blocks until the remote stream ends, so hosts run it on its own
// goroutine.
type Receiver struct {
	// URL is the remote relay endpoint.
	URL string
	// Client performs the request; http.DefaultClient when nil.
	Client *http.Client
	// BeforeConnect may decorate the request, e.g. with credentials.
	BeforeConnect func(req *http.Request) error
	// AfterComplete runs once the stream has ended, with the collected
	// signals in stream order.
	AfterComplete func(ctx context.Context, signals []string) error
	// Decoder turns lines back into events for sinks that cannot forward
	// raw lines; stream.JSONCodec when nil.
	Decoder stream.Decoder
	// Logger receives diagnostics; discarded when nil.
	Logger *zap.Logger
}

// Receive opens URL and relays it into sink. A remote that simply stops
// sending, including a truncated connection, is a normal end of stream; only
// a failed connection or a read fault is an error.
func (r *Receiver) Receive(ctx context.Context, sink console.Sink) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	if r.BeforeConnect != nil {
		if err := r.BeforeConnect(req); err != nil {
			return nil, fmt.Errorf("before connect: %w", err)
		}
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect relay %s: %w", r.URL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("connect relay %s: unexpected status %d", r.URL, resp.StatusCode)
	}
	r.logger().Debug("relay connected", zap.String("url", r.URL))
	return r.ReceiveReader(ctx, resp.Body, sink)
}

// ReceiveReader relays any line stream into sink.
func (r *Receiver) ReceiveReader(ctx context.Context, src io.Reader, sink console.Sink) ([]string, error) {
	var signals []string
	err := scanLines(src, func(line string) {
		if payload, ok := signalPayload(line); ok {
			signals = append(signals, payload)
			metrics.ObserveRelayLine("in", "signal")
			return
		}
		r.forward(sink, line)
	}, func(size int) {
		metrics.ObserveRelayLine("in", "oversize")
		r.logger().Warn("relay line over size limit skipped",
			zap.Int("size", size),
			zap.Int("limit", MaxLineSize),
		)
	})
	if err != nil && !endOfStream(ctx, err) {
		return signals, err
	}
	sink.Flush()
	r.logger().Debug("relay stream ended", zap.Int("signals", len(signals)))
	if r.AfterComplete != nil {
		if err := r.AfterComplete(ctx, signals); err != nil {
			return signals, fmt.Errorf("after complete: %w", err)
		}
	}
	return signals, nil
}

// endOfStream reports whether a read error only reflects the connection
// going away on our side.
func endOfStream(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, io.ErrUnexpectedEOF)
}

// decodedLine decodes a relayed line at most once, however many
// destinations need the event form.
type decodedLine struct {
	line string
	dec  stream.Decoder
	done bool
	evt  console.Event
	err  error
}

func (d *decodedLine) event() (console.Event, error) {
	if !d.done {
		d.evt, d.err = d.dec.Decode([]byte(d.line))
		d.done = true
	}
	return d.evt, d.err
}

func (r *Receiver) forward(sink console.Sink, line string) {
	dec := r.Decoder
	if dec == nil {
		dec = stream.JSONCodec{}
	}
	d := &decodedLine{line: line, dec: dec}
	dispatch(sink, d)
	switch {
	case !d.done:
		metrics.ObserveRelayLine("in", "raw")
	case d.err != nil:
		metrics.ObserveRelayLine("in", "text")
	default:
		metrics.ObserveRelayLine("in", "event")
	}
}

// dispatch walks fan-out sinks so that every destination gets the line:
// raw where the destination can carry it, decoded everywhere else.
func dispatch(sink console.Sink, d *decodedLine) {
	if f, ok := sink.(console.Fanout); ok {
		for _, dest := range f.Destinations() {
			dispatch(dest, d)
		}
		return
	}
	if rf, ok := sink.(console.RawForwarder); ok {
		rf.ForwardRaw(d.line)
		return
	}
	evt, err := d.event()
	if err != nil {
		console.Info(sink, "%s", d.line)
		return
	}
	switch evt.Kind {
	case console.KindProgress:
		_ = sink.SetProgress(evt.Percent)
	case console.KindTransientStatus:
		sink.SetTransientStatus("%s", evt.Template)
	case console.KindBatchComplete, console.KindPadding:
	default:
		sink.Emit(evt)
	}
}

func (r *Receiver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
