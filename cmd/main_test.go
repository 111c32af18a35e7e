package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/pkg/rag"
)

func TestFormatCitation(t *testing.T) {
	source := "Benefits Guide"

	tests := []struct {
		name     string
		citation models.Citation
		want     string
	}{
		{name: "source and page", citation: models.Citation{Index: 2, Source: &source, Page: models.IntPtr(7)}, want: "[2] Benefits Guide (p. 7)"},
		{name: "no page", citation: models.Citation{Index: 1, Source: &source}, want: "[1] Benefits Guide"},
		{name: "no source", citation: models.Citation{Index: 3, Page: models.IntPtr(1)}, want: "[3] unknown (p. 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCitation(tt.citation))
		})
	}
}

func TestEveryStateHasALabel(t *testing.T) {
	for _, state := range []rag.State{
		rag.StateReceived, rag.StateCondensing, rag.StateRetrieving,
		rag.StateNoContext, rag.StateComposing, rag.StateDone,
	} {
		assert.NotEmpty(t, stateLabels[state], state)
	}
}
