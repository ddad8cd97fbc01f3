package sinks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/webconsole/internal/console"
)

func TestLogSinkMapsSeverities(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	console.Info(sink, "hello %s", "there")
	console.Warn(sink, "warned")
	console.ReportException(sink, errors.New("broken"))
	require.NoError(t, sink.SetProgress(10))
	require.NoError(t, sink.SetProgress(10))

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	require.Equal(t, "hello there", entries[0].Message)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(t, "progress", entries[3].Message)
	require.Equal(t, 10, sink.Progress())
}
