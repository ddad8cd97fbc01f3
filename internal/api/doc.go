// Package api hosts the HTTP server, middleware, and handlers that expose
// monitored operations. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/operations to list registered operations.
//   - GET /v1/operations/{name}/stream for a live NDJSON console.
//   - GET /v1/operations/{name}/relay for the line-oriented relay protocol.
//   - GET /v1/remotes/{name}/stream to re-emit a configured remote relay.
package api
