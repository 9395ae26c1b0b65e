// Package events provides an in-memory event broker for scheduler lifecycle
// notifications. It is topic-agnostic: every published Event is broadcast
// to every current subscriber over a buffered channel, and a subscriber
// that falls behind simply misses events rather than blocking the
// publisher.
//
// RunningJobExecution publishes ExecutionStarted, TaskCompleted, TaskFailed,
// and ExecutionFinished; NodeQuarantinePolicy publishes NodeQuarantined.
// Nothing in this core subscribes — the REST layer is the consumer, out of
// scope here — but the broker is wired so that surface has something to
// attach to.
package events
