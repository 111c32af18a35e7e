package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/pkg/rag"
)

func TestCondenseFallsBackOnBlankOutput(t *testing.T) {
	for _, reply := range []string{"", "   \n\t"} {
		model := &MockModel{Replies: []string{reply}}
		condenser := rag.NewCondenser(model)

		standalone, err := condenser.Condense(context.Background(), history(2), "and for dental?")
		require.NoError(t, err)
		assert.Equal(t, "and for dental?", standalone)
		assert.Len(t, model.Calls, 1)
	}
}

func TestCondenseTrimsModelOutput(t *testing.T) {
	model := &MockModel{Replies: []string{"  Is dental covered by the PPO plan?\n"}}
	condenser := rag.NewCondenser(model)

	standalone, err := condenser.Condense(context.Background(), history(2), "and dental?")
	require.NoError(t, err)
	assert.Equal(t, "Is dental covered by the PPO plan?", standalone)

	require.Len(t, model.Calls, 1)
	assert.Equal(t, models.RoleSystem, model.Calls[0][0].Role)
	assert.Contains(t, model.UserPrompt(0), "and dental?")
}

func TestCondenseKeepsLastEightEntries(t *testing.T) {
	model := &MockModel{Replies: []string{"standalone"}}
	condenser := rag.NewCondenser(model)

	_, err := condenser.Condense(context.Background(), history(10), "next?")
	require.NoError(t, err)

	prompt := model.UserPrompt(0)
	assert.NotContains(t, prompt, turnText(1))
	assert.NotContains(t, prompt, turnText(2))
	for i := 3; i <= 10; i++ {
		assert.Contains(t, prompt, turnText(i))
	}
}

func TestCondenseFiltersHistory(t *testing.T) {
	model := &MockModel{Replies: []string{"standalone"}}
	condenser := rag.NewCondenser(model)

	_, err := condenser.Condense(context.Background(), []models.HistoryEntry{
		{Role: models.RoleSystem, Content: "secret instructions"},
		{Role: models.RoleUser, Content: "   "},
		{Role: models.RoleUser, Content: "What is the PTO policy?"},
		{Role: models.RoleAssistant, Content: "You accrue 1.5 days a month [1]."},
	}, "and sick leave?")
	require.NoError(t, err)

	prompt := model.UserPrompt(0)
	assert.NotContains(t, prompt, "secret instructions")
	assert.Contains(t, prompt, "user: What is the PTO policy?")
	assert.Contains(t, prompt, "assistant: You accrue 1.5 days a month [1].")
}

func TestCondenseWithoutHistorySkipsModel(t *testing.T) {
	model := &MockModel{}
	condenser := rag.NewCondenser(model)

	standalone, err := condenser.Condense(context.Background(), []models.HistoryEntry{
		{Role: models.RoleUser, Content: ""},
	}, "What is the PTO policy?")
	require.NoError(t, err)
	assert.Equal(t, "What is the PTO policy?", standalone)
	assert.Empty(t, model.Calls)
}

func TestCondensePropagatesModelError(t *testing.T) {
	boom := errors.New("model unavailable")
	model := &MockModel{OnComplete: func(ctx context.Context, messages []models.ChatMessage) (string, error) {
		return "", boom
	}}
	condenser := rag.NewCondenser(model)

	_, err := condenser.Condense(context.Background(), history(2), "and dental?")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, model.Calls, 1)
}
