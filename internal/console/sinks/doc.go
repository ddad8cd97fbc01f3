// Package sinks implements console sinks backed by ambient infrastructure:
// structured zap logging and Prometheus metrics. Each satisfies console.Sink
// and is usually combined with a live stream through console.TeeSink.
package sinks
