package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/console/sinks"
	"github.com/JakeFAU/webconsole/internal/host"
	"github.com/JakeFAU/webconsole/internal/metrics"
	"github.com/JakeFAU/webconsole/internal/relay"
	"github.com/JakeFAU/webconsole/internal/stream"
)

const closeTimeout = 5 * time.Second

func (s *Server) streamConfig(logger *zap.Logger) stream.Config {
	return stream.Config{
		BufferSize:       s.cfg.Stream.BufferSize,
		MaxBatchEvents:   s.cfg.Stream.MaxBatchEvents,
		FlushWindow:      s.cfg.Stream.FlushWindow,
		MinMessageLength: s.cfg.Stream.MinMessageLength,
		DisablePadding:   s.cfg.PaddingDisabled(),
		Logger:           logger,
	}
}

// openLive starts a Scheduler on the response and returns its sink together
// with a release func that drains and stops it.
func (s *Server) openLive(w http.ResponseWriter, r *http.Request, operationID string, logger *zap.Logger) (*stream.LiveSink, func()) {
	cfg := s.streamConfig(logger)
	enc := stream.JSONCodec{}
	cfg.Encoder = enc

	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	if operationID != "" {
		w.Header().Set("X-Operation-ID", operationID)
	}
	w.WriteHeader(http.StatusOK)

	sched := stream.NewScheduler(cfg, stream.NewHTTPTransport(w, r, s.cfg.Stream.WriteTimeout))
	metrics.IncActiveStreams()
	return stream.NewLiveSink(sched), func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := sched.Close(ctx); err != nil {
			logger.Warn("stream scheduler close", zap.Error(err))
		}
		metrics.DecActiveStreams()
	}
}

// compose tees primary with a per-operation log sink and the shared
// observers.
func (s *Server) compose(primary console.Sink, logger *zap.Logger) console.Sink {
	dests := append([]console.Sink{primary, sinks.NewLogSink(logger)}, s.observers...)
	tee, err := console.NewTeeSink(dests...)
	if err != nil {
		logger.Warn("observer sinks rejected; streaming without them", zap.Error(err))
		return primary
	}
	return tee
}

func (s *Server) operationLogger(r *http.Request, op, id string) *zap.Logger {
	return s.logger.With(
		zap.String("request_id", RequestID(r.Context())),
		zap.String("operation", op),
		zap.String("operation_id", id),
	)
}

func (s *Server) streamOperation(w http.ResponseWriter, r *http.Request) {
	op, ok := s.lookupOperation(w, r)
	if !ok {
		return
	}
	id := s.newOperationID()
	logger := s.operationLogger(r, op.Name, id)

	live, release := s.openLive(w, r, id, logger)
	defer release()

	ctx, cancel := s.operationContext(r)
	defer cancel()
	err := host.Render(ctx, s.compose(live, logger), op.Run)
	metrics.ObserveOperation(op.Name, operationResult(err))
	if err != nil {
		logger.Warn("operation failed", zap.Error(err))
	}
}

func (s *Server) relayOperation(w http.ResponseWriter, r *http.Request) {
	op, ok := s.lookupOperation(w, r)
	if !ok {
		return
	}
	id := s.newOperationID()
	logger := s.operationLogger(r, op.Name, id)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if id != "" {
		w.Header().Set("X-Operation-ID", id)
	}
	w.WriteHeader(http.StatusOK)
	writer := relay.NewWriter(stream.NewHTTPTransport(w, r, s.cfg.Stream.WriteTimeout), stream.JSONCodec{}, logger)

	ctx, cancel := s.operationContext(r)
	defer cancel()
	err := host.Render(ctx, s.compose(writer, logger), op.Run)
	result := operationResult(err)
	metrics.ObserveOperation(op.Name, result)

	signal := "complete"
	if err != nil {
		signal = "failed"
		logger.Warn("relayed operation failed", zap.Error(err))
	}
	if err := writer.WriteSignal(signal); err != nil {
		logger.Warn("write final signal", zap.Error(err))
	}
}

func (s *Server) streamRemote(w http.ResponseWriter, r *http.Request) {
	name, target, ok := s.lookupRemote(w, r)
	if !ok {
		return
	}
	id := s.newOperationID()
	logger := s.operationLogger(r, "remote:"+name, id)

	live, release := s.openLive(w, r, id, logger)
	defer release()

	ctx, cancel := s.operationContext(r)
	defer cancel()
	if s.cfg.Relay.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Relay.Timeout)
		defer cancel()
	}

	recv := &relay.Receiver{
		URL:    target,
		Client: s.client,
		Logger: logger,
	}
	if key := s.cfg.Relay.APIKey; key != "" {
		recv.BeforeConnect = func(req *http.Request) error {
			req.Header.Set("X-API-Key", key)
			return nil
		}
	}
	if s.publisher != nil {
		recv.AfterComplete = relay.PublishSignals(s.publisher, s.cfg.Relay.SignalTopic, name)
	}

	err := host.Render(ctx, live, func(ctx context.Context, sink console.Sink) error {
		signals, err := recv.Receive(ctx, sink)
		if err != nil {
			return err
		}
		console.Debug(sink, "Relay from %s ended with %d signal(s)", name, len(signals))
		return nil
	})
	metrics.ObserveOperation("remote:"+name, operationResult(err))
	if err != nil {
		logger.Warn("remote relay failed", zap.Error(err))
	}
}
