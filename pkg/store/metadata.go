package store

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/xhad/handbook/internal/models"
)

// chunkFromMetadata builds a chunk from the loader metadata written at
// ingestion time: {"source": "<title>", "page": <n>}.
func chunkFromMetadata(content string, metadata map[string]any) models.Chunk {
	chunk := models.Chunk{Content: content}
	if metadata == nil {
		return chunk
	}
	if source, ok := metadata["source"].(string); ok {
		chunk.Source = source
	}
	chunk.Page = parsePage(metadata["page"])
	return chunk
}

func parsePage(v any) *int {
	switch page := v.(type) {
	case int:
		return models.IntPtr(page)
	case int32:
		return models.IntPtr(int(page))
	case int64:
		return models.IntPtr(int(page))
	case float64:
		if page != math.Trunc(page) {
			return nil
		}
		return models.IntPtr(int(page))
	case json.Number:
		if n, err := page.Int64(); err == nil {
			return models.IntPtr(int(n))
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(page)); err == nil {
			return models.IntPtr(n)
		}
	}
	return nil
}
