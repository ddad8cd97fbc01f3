// Package relay carries one process's live console stream to another. The
// producer writes each event as exactly one line; lines starting with
// SIGNAL:: are out-of-band signals. The consumer reads line by line,
// forwards ordinary lines into a local console.Sink untouched and collects
// signals for post-processing once the stream ends.
package relay
