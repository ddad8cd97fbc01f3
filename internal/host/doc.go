// Package host runs monitored operations against a console.Sink. Render is
// the entry point a transport handler calls; Registry names the operations a
// server exposes.
package host
