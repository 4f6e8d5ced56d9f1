// Package worker provides the background worker that keeps request
// snapshots fresh.
//
// A worker consumes refresh tasks from a task queue and hands each one to a
// Refresher, normally the request lifecycle. Tasks are enqueued after a
// successful stage submission when the service runs with asynchronous
// refresh, or on demand through the HTTP API.
//
// # Retries
//
// Config.MaxAttempts bounds how often a task runs. A failed task with
// attempts left is re-enqueued with NotBefore set to an exponential backoff
// derived from Config.Backoff.
//
// # Usage
//
// Run loops over ProcessOne until its context ends:
//
//	w := worker.NewWithConfig(lc, queue, worker.Config{MaxAttempts: 3, Backoff: time.Second})
//	go func() { _ = w.Run(ctx) }()
//
// Multiple workers can safely share one queue.
package worker
