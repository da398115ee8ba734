// Package llm wraps the external chat-completion service used for file
// annotation and project synthesis.
//
// Complete sends a two-message (system + user) request and returns the reply
// body as raw JSON after stripping an optional code fence. Failed attempts
// (transport errors, non-200 statuses, empty or non-JSON replies) are retried
// up to MaxAttempts times with linear backoff. Exhaustion surfaces as
// ErrServiceFailed wrapping the last underlying failure, and callers must not
// retry further themselves.
//
// The client is model-agnostic: the model identifier and both prompt texts are
// parameters. Typed Decode helpers validate the per-intent reply shapes at the
// deserialization boundary.
package llm
