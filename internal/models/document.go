package models

import "strconv"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversational reports whether the role may appear in stored or caller
// supplied history.
func (r Role) Conversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// Chunk is a retrieved passage of a source document.
type Chunk struct {
	Content string
	Source  string
	Page    *int
}

// Key identifies a chunk by its provenance; two chunks with the same source
// and page are the same passage for citation purposes.
func (c Chunk) Key() string {
	if c.Page == nil {
		return c.Source + "#"
	}
	return c.Source + "#" + strconv.Itoa(*c.Page)
}

type Citation struct {
	Index  int     `json:"index"`
	Source *string `json:"source"`
	Page   *int    `json:"page"`
}

type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatMessage is one entry of a chat-completion request.
type ChatMessage struct {
	Role    Role
	Content string
}

const DefaultTopK = 6

type ChatRequest struct {
	Query   string         `json:"query"`
	TopK    int            `json:"top_k"`
	History []HistoryEntry `json:"history,omitempty"`
}

type ChatResponse struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Standalone string     `json:"standalone,omitempty"`
}

// IntPtr is a helper for optional page numbers.
func IntPtr(v int) *int {
	return &v
}
