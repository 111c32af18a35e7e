package rag

import (
	"context"
	"strings"

	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
)

const condenserWindow = 8

const condenseInstruction = "Given the chat history and the latest user question, rewrite the latest question " +
	"as a standalone question that can be understood without the chat history. " +
	"Use the prior turns only for context. Return only the rewritten question, with no explanation."

// Condenser rewrites follow-up questions into standalone queries.
type Condenser struct {
	model types.ChatModel
}

func NewCondenser(model types.ChatModel) *Condenser {
	return &Condenser{model: model}
}

// Condense returns query unchanged when there is no usable history or when
// the model answers with nothing.
func (c *Condenser) Condense(ctx context.Context, history []models.HistoryEntry, query string) (string, error) {
	turns := recentTurns(history, condenserWindow)
	if len(turns) == 0 {
		return query, nil
	}

	var b strings.Builder
	b.WriteString("Chat history:\n")
	b.WriteString(renderTurns(turns))
	b.WriteString("\n\nLatest question: ")
	b.WriteString(query)
	b.WriteString("\n\nStandalone question:")

	out, err := c.model.Complete(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: condenseInstruction},
		{Role: models.RoleUser, Content: b.String()},
	})
	if err != nil {
		return "", err
	}

	standalone := strings.TrimSpace(out)
	if standalone == "" {
		return query, nil
	}
	return standalone, nil
}

// recentTurns keeps the last n entries, then drops anything that is not a
// non-empty user or assistant turn.
func recentTurns(history []models.HistoryEntry, n int) []models.HistoryEntry {
	if len(history) > n {
		history = history[len(history)-n:]
	}

	turns := make([]models.HistoryEntry, 0, len(history))
	for _, h := range history {
		if !h.Role.Conversational() || strings.TrimSpace(h.Content) == "" {
			continue
		}
		turns = append(turns, h)
	}
	return turns
}

func renderTurns(turns []models.HistoryEntry) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, string(t.Role)+": "+strings.TrimSpace(t.Content))
	}
	return strings.Join(lines, "\n")
}
