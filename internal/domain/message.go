package domain

import "encoding/json"

// Wire message types for the session WebSocket protocol. Sync messages carry
// full state and replace server state wholesale (last-write-wins, no merge).
const (
	MsgSyncAnnotations  = "sync-annotations"
	MsgSyncDeletedPages = "sync-deleted-pages"
	MsgCursorMove       = "cursor-move"
	MsgAISummarize      = "ai-summarize"
	MsgAIStatus         = "ai-status"
	MsgAIResult         = "ai-result"
)

// AIStatusThinking acknowledges a summarize request while the pipeline runs.
const AIStatusThinking = "thinking"

// Envelope is the minimal frame shape used to dispatch on message type
// before the payload is decoded.
type Envelope struct {
	Type string `json:"type"`
}

// SyncAnnotationsMessage carries the complete annotation set.
type SyncAnnotationsMessage struct {
	Type        string       `json:"type"`
	Annotations []Annotation `json:"annotations"`
}

// SyncDeletedPagesMessage carries the complete deleted-page set
// (zero-based page indices).
type SyncDeletedPagesMessage struct {
	Type         string `json:"type"`
	DeletedPages []int  `json:"deletedPages"`
}

// AIStatusMessage reports summarization progress to a single client.
type AIStatusMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// AIResultMessage carries a finished summary or a summarization error text.
type AIResultMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ParseEnvelope decodes just the type tag of a raw frame.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(raw, &env)
	return env, err
}
