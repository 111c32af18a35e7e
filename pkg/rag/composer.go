package rag

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/logger"
)

const composerWindow = 6

const answerInstruction = "You are an HR and benefits assistant. Answer the question using only the numbered context passages provided. " +
	"If the answer is not in the context, say that you don't know. " +
	"Support each claim with bracketed citation markers such as [1] or [2] that match the passage numbers."

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

type Answer struct {
	Text      string
	Citations []models.Citation
}

type Composer struct {
	model types.ChatModel
	log   *logger.Logger
}

func NewComposer(model types.ChatModel) *Composer {
	return &Composer{
		model: model,
		log:   logger.New("composer"),
	}
}

// Compose numbers chunks in the order given, asks the model once and returns
// its text verbatim with one citation per chunk.
func (c *Composer) Compose(ctx context.Context, query string, chunks []models.Chunk, history []models.HistoryEntry) (Answer, error) {
	citations := make([]models.Citation, len(chunks))
	blocks := make([]string, len(chunks))
	for i, chunk := range chunks {
		citations[i] = citationFor(i+1, chunk)
		blocks[i] = contextBlock(i+1, chunk)
	}

	var b strings.Builder
	if turns := recentTurns(history, composerWindow); len(turns) > 0 {
		b.WriteString("Conversation so far:\n")
		b.WriteString(renderTurns(turns))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nAnswer the question from the context above and cite the passages you used with [n] markers.")

	text, err := c.model.Complete(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: answerInstruction},
		{Role: models.RoleUser, Content: b.String()},
	})
	if err != nil {
		return Answer{}, err
	}

	if unknown := unknownMarkers(text, len(chunks)); len(unknown) > 0 {
		c.log.Warn("answer cites passages that were not provided", "markers", unknown, "passages", len(chunks))
	}

	return Answer{Text: text, Citations: citations}, nil
}

func citationFor(index int, chunk models.Chunk) models.Citation {
	citation := models.Citation{Index: index, Page: chunk.Page}
	if chunk.Source != "" {
		source := chunk.Source
		citation.Source = &source
	}
	return citation
}

func contextBlock(index int, chunk models.Chunk) string {
	source := chunk.Source
	if source == "" {
		source = "unknown"
	}
	page := "n/a"
	if chunk.Page != nil {
		page = strconv.Itoa(*chunk.Page)
	}
	return fmt.Sprintf("[%d] source: %s | page: %s\n%s", index, source, page, strings.TrimSpace(chunk.Content))
}

func unknownMarkers(text string, n int) []int {
	var unknown []int
	for _, m := range citationMarker.FindAllStringSubmatch(text, -1) {
		i, err := strconv.Atoi(m[1])
		if err != nil || i < 1 || i > n {
			unknown = append(unknown, i)
		}
	}
	return unknown
}
