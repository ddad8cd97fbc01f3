// Package progress maps nested subtask completion onto one global 0-100
// percent. Every Task reports on its own local 0-100 scale; the value is
// rescaled into the slice its parent allocated and forwarded upward until a
// Root hands it to a console.Sink. Tasks optionally run a heartbeat that
// keeps a transient "running" line alive while they work.
package progress
