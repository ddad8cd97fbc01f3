// Package stream pushes console events to a live viewer through a buffering
// transport. A Scheduler batches events enqueued by any number of goroutines
// and drains them from a single goroutine on a coalescing timer, so bytes hit
// the wire in enqueue order. Each drained batch ends with a completion marker
// and, when short, random padding that keeps compressing proxies from holding
// the write back.
package stream
