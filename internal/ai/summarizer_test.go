package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visatk/pdf-core/internal/storage/memoryblob"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(_ context.Context, _ []byte) (string, error) {
	return f.text, f.err
}

type recordingCompleter struct {
	gotSystem string
	gotUser   string
	summary   string
	err       error
}

func (r *recordingCompleter) Complete(_ context.Context, systemPrompt, userText string) (string, error) {
	r.gotSystem = systemPrompt
	r.gotUser = userText
	return r.summary, r.err
}

func storeWithDocument(t *testing.T, key string) *memoryblob.Store {
	t.Helper()
	store := memoryblob.NewStore()
	require.NoError(t, store.Put(context.Background(), key, []byte("%PDF-1.4"), "application/pdf"))
	return store
}

func TestSummarize_Success(t *testing.T) {
	store := storeWithDocument(t, "session-1")
	completer := &recordingCompleter{summary: "a concise summary"}
	s := NewSummarizer(store, fakeExtractor{text: "extracted document text"}, completer)

	summary, err := s.Summarize(context.Background(), "session-1")

	require.NoError(t, err)
	assert.Equal(t, "a concise summary", summary)
	assert.Equal(t, "extracted document text", completer.gotUser)
	assert.Contains(t, completer.gotSystem, "Summarize")
}

func TestSummarize_TruncatesLongInput(t *testing.T) {
	store := storeWithDocument(t, "session-1")
	completer := &recordingCompleter{summary: "ok"}
	longText := strings.Repeat("x", maxInputChars+500)
	s := NewSummarizer(store, fakeExtractor{text: longText}, completer)

	_, err := s.Summarize(context.Background(), "session-1")

	require.NoError(t, err)
	assert.Len(t, completer.gotUser, maxInputChars)
}

func TestSummarize_NoDocument(t *testing.T) {
	s := NewSummarizer(memoryblob.NewStore(), fakeExtractor{}, &recordingCompleter{})

	_, err := s.Summarize(context.Background(), "absent")

	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestSummarize_ExtractError(t *testing.T) {
	store := storeWithDocument(t, "session-1")
	s := NewSummarizer(store, fakeExtractor{err: errors.New("not a pdf")}, &recordingCompleter{})

	_, err := s.Summarize(context.Background(), "session-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract text")
	assert.NotErrorIs(t, err, ErrNoDocument)
}

func TestSummarize_CompletionError(t *testing.T) {
	store := storeWithDocument(t, "session-1")
	completer := &recordingCompleter{err: errors.New("rate limited")}
	s := NewSummarizer(store, fakeExtractor{text: "text"}, completer)

	_, err := s.Summarize(context.Background(), "session-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "", Truncate("abc", 0))

	// Never cuts in the middle of a multi-byte rune.
	s := "aé" // 'é' is two bytes, starting at index 1
	assert.Equal(t, "a", Truncate(s, 2))
	assert.Equal(t, s, Truncate(s, 3))
}
