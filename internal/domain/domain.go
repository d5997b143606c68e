package domain

import "context"

// BlobStore persists document bytes under a deterministic per-session key.
// The live annotation state is never stored here; only uploaded or
// client-rendered document bytes are durable.
type BlobStore interface {
	// Put overwrites the bytes stored under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the stored bytes and content type. found is false when
	// nothing has been stored under key; that is not an error.
	Get(ctx context.Context, key string) (data []byte, contentType string, found bool, err error)
}

// Extractor turns document bytes into plain text for the AI pipeline.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Completer is the language-model completion collaborator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}
