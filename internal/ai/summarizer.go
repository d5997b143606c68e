// Package ai implements the on-demand document summarization pipeline:
// fetch document bytes, extract text, truncate, and ask the model for a
// summary. Messaging of outcomes back to clients is the session
// coordinator's job; this package only produces the summary or a typed
// failure.
package ai

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/visatk/pdf-core/internal/domain"
	"github.com/visatk/pdf-core/internal/metrics"
)

// maxInputChars bounds how much extracted text is handed to the model.
// Deliberately lossy: keeps cost and latency bounded and stays inside
// model context limits.
const maxInputChars = 12000

const systemPrompt = "You are a helpful assistant. Summarize the provided document concisely."

// ErrNoDocument signals that the session has no stored document. The
// coordinator reports it to the requester only, without a broadcast.
var ErrNoDocument = errors.New("no document uploaded")

// Summarizer runs the one-shot summarization pipeline for a session.
type Summarizer struct {
	store     domain.BlobStore
	extractor domain.Extractor
	completer domain.Completer
}

func NewSummarizer(store domain.BlobStore, extractor domain.Extractor, completer domain.Completer) *Summarizer {
	return &Summarizer{store: store, extractor: extractor, completer: completer}
}

// Summarize fetches the document stored under key, extracts its text, and
// returns a model-written summary. Returns ErrNoDocument when nothing is
// stored under key.
func (s *Summarizer) Summarize(ctx context.Context, key string) (string, error) {
	timer := prometheus.NewTimer(metrics.AIPipelineDuration)
	defer timer.ObserveDuration()

	data, _, found, err := s.store.Get(ctx, key)
	if err != nil {
		metrics.AIPipelineRunsTotal.WithLabelValues("storage_error").Inc()
		return "", fmt.Errorf("failed to fetch document: %w", err)
	}
	if !found {
		metrics.AIPipelineRunsTotal.WithLabelValues("no_document").Inc()
		return "", ErrNoDocument
	}

	text, err := s.extractor.Extract(ctx, data)
	if err != nil {
		metrics.AIPipelineRunsTotal.WithLabelValues("extract_error").Inc()
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	text = Truncate(text, maxInputChars)

	summary, err := s.completer.Complete(ctx, systemPrompt, text)
	if err != nil {
		metrics.AIPipelineRunsTotal.WithLabelValues("completion_error").Inc()
		return "", fmt.Errorf("completion failed: %w", err)
	}

	metrics.AIPipelineRunsTotal.WithLabelValues("ok").Inc()
	return summary, nil
}

// Truncate bounds text to at most max bytes, cutting on a rune boundary.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
