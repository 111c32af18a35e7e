package store

import (
	"math"

	"github.com/xhad/handbook/internal/models"
)

// candidate is a search hit that still carries its stored embedding so the
// diversity pass can compare hits with each other.
type candidate struct {
	chunk  models.Chunk
	vector []float32
}

// maximalMarginalRelevance returns the indices of up to k candidates. The
// first pick is the one closest to the query; every later pick maximises
// lambda*sim(query) - (1-lambda)*max(sim to already picked).
func maximalMarginalRelevance(query []float32, vectors [][]float32, lambda float64, k int) []int {
	if k <= 0 || len(vectors) == 0 {
		return nil
	}
	if k > len(vectors) {
		k = len(vectors)
	}

	querySim := make([]float64, len(vectors))
	best := 0
	for i, v := range vectors {
		querySim[i] = cosineSimilarity(query, v)
		if querySim[i] > querySim[best] {
			best = i
		}
	}

	selected := []int{best}
	picked := make([]bool, len(vectors))
	picked[best] = true

	for len(selected) < k {
		next := -1
		nextScore := math.Inf(-1)
		for i, v := range vectors {
			if picked[i] {
				continue
			}
			redundancy := math.Inf(-1)
			for _, j := range selected {
				if s := cosineSimilarity(v, vectors[j]); s > redundancy {
					redundancy = s
				}
			}
			score := lambda*querySim[i] - (1-lambda)*redundancy
			if score > nextScore {
				next, nextScore = i, score
			}
		}
		if next < 0 {
			break
		}
		selected = append(selected, next)
		picked[next] = true
	}

	return selected
}

func rerank(query []float32, candidates []candidate, lambda float64, k int) []models.Chunk {
	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vectors[i] = c.vector
	}

	order := maximalMarginalRelevance(query, vectors, lambda, k)
	chunks := make([]models.Chunk, 0, len(order))
	for _, i := range order {
		chunks = append(chunks, candidates[i].chunk)
	}
	return chunks
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
