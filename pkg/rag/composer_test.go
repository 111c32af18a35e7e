package rag_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/pkg/rag"
)

func TestComposeNumbersChunksInOrder(t *testing.T) {
	model := &MockModel{Replies: []string{"Dental is 80% [2]; PTO accrues monthly [1]."}}
	composer := rag.NewComposer(model)

	chunks := []models.Chunk{
		chunk("Handbook", 4, "PTO accrues monthly."),
		chunk("Benefits Guide", 7, "Dental is covered at 80%."),
		{Content: "Unattributed text."},
	}

	answer, err := composer.Compose(context.Background(), "pto and dental", chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, "Dental is 80% [2]; PTO accrues monthly [1].", answer.Text)

	require.Len(t, answer.Citations, 3)
	for i, c := range answer.Citations {
		assert.Equal(t, i+1, c.Index)
	}
	require.NotNil(t, answer.Citations[1].Source)
	assert.Equal(t, "Benefits Guide", *answer.Citations[1].Source)
	assert.Equal(t, 7, *answer.Citations[1].Page)
	assert.Nil(t, answer.Citations[2].Source)
	assert.Nil(t, answer.Citations[2].Page)

	prompt := model.UserPrompt(0)
	assert.Contains(t, prompt, "[1] source: Handbook | page: 4\nPTO accrues monthly.\n\n[2] source: Benefits Guide | page: 7\nDental is covered at 80%.")
	assert.Contains(t, prompt, "Question: pto and dental")
	assert.NotContains(t, prompt, "Conversation so far")
	assert.Equal(t, models.RoleSystem, model.Calls[0][0].Role)
}

func TestComposeUsesLastSixEntries(t *testing.T) {
	model := &MockModel{}
	composer := rag.NewComposer(model)

	_, err := composer.Compose(context.Background(), "q", []models.Chunk{chunk("A", 1, "a")}, history(10))
	require.NoError(t, err)

	prompt := model.UserPrompt(0)
	for i := 1; i <= 4; i++ {
		assert.NotContains(t, prompt, turnText(i))
	}
	for i := 5; i <= 10; i++ {
		assert.Contains(t, prompt, turnText(i))
	}
	assert.True(t, strings.Index(prompt, turnText(5)) < strings.Index(prompt, turnText(10)))
}

func TestComposeKeepsAnswerWithUnknownMarkers(t *testing.T) {
	model := &MockModel{Replies: []string{"See [1] and [9]."}}
	composer := rag.NewComposer(model)

	answer, err := composer.Compose(context.Background(), "q", []models.Chunk{chunk("A", 1, "a")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "See [1] and [9].", answer.Text)
	assert.Len(t, answer.Citations, 1)
}
