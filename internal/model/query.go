package model

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is one caller-owned turn of history. It only feeds prompt
// assembly and is never persisted.
type ConversationTurn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// RetrievalResult is a transient ranked view over one indexed chunk.
type RetrievalResult struct {
	ID         string                 `json:"id"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata"`
	Score      float32                `json:"score"`
	DocumentID string                 `json:"document_id"`
	ChunkIndex int                    `json:"chunk_index"`
}

// Source attributes part of a generated answer to an indexed chunk. Content
// holds a bounded preview, not the full chunk.
type Source struct {
	ID         string                 `json:"id"`
	Content    string                 `json:"content"`
	Score      float32                `json:"score"`
	Metadata   map[string]interface{} `json:"metadata"`
	DocumentID string                 `json:"document_id"`
}

// AnswerBundle is the result of one processed query.
type AnswerBundle struct {
	Response       string   `json:"response"`
	Sources        []Source `json:"sources"`
	Context        string   `json:"context"`
	ConversationID string   `json:"conversation_id"`
	Timestamp      string   `json:"timestamp"`
}
