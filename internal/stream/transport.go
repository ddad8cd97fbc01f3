package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrDisconnected marks a write that failed because the remote end went away.
// Callers treat it as fire-and-forget.
var ErrDisconnected = errors.New("transport disconnected")

// Transport is the outgoing byte stream owned by a Scheduler or relay Writer.
type Transport interface {
	Write(p []byte) (int, error)
	Flush() error
}

// HTTPTransport streams to an http.ResponseWriter, flushing after each write
// and bounding each write with a deadline when one is configured.
type HTTPTransport struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	ctx          context.Context
	writeTimeout time.Duration
}

// NewHTTPTransport wraps the response for r. A writeTimeout of zero leaves
// writes unbounded.
func NewHTTPTransport(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		w:            w,
		rc:           http.NewResponseController(w),
		ctx:          r.Context(),
		writeTimeout: writeTimeout,
	}
}

// Write sends p, reporting ErrDisconnected once the client is gone.
func (t *HTTPTransport) Write(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	if t.writeTimeout > 0 {
		// Not every ResponseWriter supports deadlines; an unsupported one
		// simply writes without a bound.
		_ = t.rc.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	n, err := t.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return n, nil
}

// Flush pushes buffered bytes to the client.
func (t *HTTPTransport) Flush() error {
	if err := t.rc.Flush(); err != nil {
		if errors.Is(err, http.ErrNotSupported) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return nil
}

// WriterTransport adapts a plain io.Writer. Flush delegates to the writer's
// own Flush method when it has one.
type WriterTransport struct {
	w io.Writer
}

// NewWriterTransport wraps w.
func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{w: w}
}

// Write forwards to the writer.
func (t *WriterTransport) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write transport: %w", err)
	}
	return n, nil
}

// Flush flushes the writer if possible.
func (t *WriterTransport) Flush() error {
	switch f := t.w.(type) {
	case interface{ Flush() error }:
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush transport: %w", err)
		}
	case http.Flusher:
		f.Flush()
	}
	return nil
}
