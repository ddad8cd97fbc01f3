package sinks

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/webconsole/internal/console"
)

// LogSink mirrors console output into structured logs. It is useful for
// auditing operations nobody is watching live.
type LogSink struct {
	logger   *zap.Logger
	progress atomic.Int64
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Emit logs the event using structured fields.
func (s *LogSink) Emit(evt console.Event) {
	fields := []zap.Field{
		zap.String("kind", string(evt.Kind)),
		zap.Time("event_ts", evt.TS),
	}
	switch evt.Kind {
	case console.KindException:
		fields = append(fields, zap.Any("exception", evt.Exception))
		s.logger.Error(evt.Text(), fields...)
	case console.KindProgress:
		_ = s.SetProgress(evt.Percent)
	case console.KindTransientStatus:
		s.logger.Debug(evt.Text(), fields...)
	default:
		if ce := s.logger.Check(levelFor(evt.Severity), evt.Text()); ce != nil {
			ce.Write(fields...)
		}
	}
}

// SetProgress logs percent changes at debug level.
func (s *LogSink) SetProgress(percent int) error {
	if err := console.CheckPercent(percent); err != nil {
		return err
	}
	if s.progress.Swap(int64(percent)) != int64(percent) {
		s.logger.Debug("progress", zap.Int("percent", percent))
	}
	return nil
}

// SetTransientStatus logs the status at debug level.
func (s *LogSink) SetTransientStatus(template string, args ...any) {
	s.Emit(console.NewTransient(template, args...))
}

// Flush syncs the logger.
func (s *LogSink) Flush() {
	_ = s.logger.Sync()
}

// Progress returns the last logged percent.
func (s *LogSink) Progress() int {
	return int(s.progress.Load())
}

func levelFor(sev console.Severity) zapcore.Level {
	switch sev {
	case console.SeverityError:
		return zapcore.ErrorLevel
	case console.SeverityWarning:
		return zapcore.WarnLevel
	case console.SeverityDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
