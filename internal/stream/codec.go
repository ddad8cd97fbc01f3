package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JakeFAU/webconsole/internal/console"
)

// Encoder renders events for the live wire. Every encoded event, marker and
// padding block is a complete line ending in '\n'.
type Encoder interface {
	Encode(evt console.Event) ([]byte, error)
	BatchComplete() []byte
	WrapPadding(filler []byte) []byte
	ContentType() string
}

// Decoder turns an encoded line back into an event.
type Decoder interface {
	Decode(line []byte) (console.Event, error)
}

// JSONCodec encodes one JSON object per line (NDJSON). Viewers skip the
// batch_complete and padding kinds.
type JSONCodec struct{}

type wireEvent struct {
	Kind      console.Kind           `json:"kind"`
	Severity  console.Severity       `json:"severity,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Percent   *int                   `json:"percent,omitempty"`
	Exception *console.ExceptionInfo `json:"exception,omitempty"`
	TS        *time.Time             `json:"ts,omitempty"`
}

var (
	batchCompleteLine = []byte(`{"kind":"batch_complete"}` + "\n")
)

// Encode implements Encoder.
func (JSONCodec) Encode(evt console.Event) ([]byte, error) {
	w := wireEvent{
		Kind:      evt.Kind,
		Severity:  evt.Severity,
		Text:      evt.Text(),
		Exception: evt.Exception,
	}
	if evt.Kind == console.KindProgress {
		p := evt.Percent
		w.Percent = &p
	}
	if !evt.TS.IsZero() {
		ts := evt.TS
		w.TS = &ts
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return append(data, '\n'), nil
}

// BatchComplete implements Encoder.
func (JSONCodec) BatchComplete() []byte {
	return batchCompleteLine
}

// WrapPadding implements Encoder.
func (JSONCodec) WrapPadding(filler []byte) []byte {
	data, err := json.Marshal(wireEvent{Kind: console.KindPadding, Text: string(filler)})
	if err != nil {
		return nil
	}
	return append(data, '\n')
}

// ContentType implements Encoder.
func (JSONCodec) ContentType() string {
	return "application/x-ndjson"
}

// Decode implements Decoder.
func (JSONCodec) Decode(line []byte) (console.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return console.Event{}, fmt.Errorf("decode event: %w", err)
	}
	evt := console.Event{
		Kind:      w.Kind,
		Severity:  w.Severity,
		Template:  w.Text,
		Exception: w.Exception,
	}
	if w.Percent != nil {
		evt.Percent = *w.Percent
	}
	if w.TS != nil {
		evt.TS = *w.TS
	}
	if err := evt.Validate(); err != nil {
		return console.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return evt, nil
}
