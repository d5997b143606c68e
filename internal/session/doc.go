// Package session implements the per-session coordinator: a single-writer
// actor that owns one session's annotation state and connection set, fans
// out sync messages, and schedules the background summarization pipeline.
// The registry guarantees one coordinator per session id for the process
// lifetime.
package session
