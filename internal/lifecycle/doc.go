// Package lifecycle drives a workflow request through the backend: it loads
// the request detail and current-stage pointer, derives the progress view,
// and submits stage decisions.
//
// Both queries are independent. Whatever arrives is stored as the request's
// last-known snapshot, and a failed query falls back to that snapshot so the
// view keeps rendering while the backend is unavailable.
//
// Submissions are single-flight per request within one process. A failed
// submission leaves every stored value untouched; a successful one
// invalidates the snapshot and refreshes it, inline or through a task queue.
package lifecycle
