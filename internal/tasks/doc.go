// package tasks implements the migration core: diffing snapshots against
// live target state and driving missing items through the remote client
// under a bounded-concurrency, retrying, backoff-aware write policy.
//
// Operations emit progress events via channels for non-blocking status
// reporting to CLI/UI layers.
package tasks
