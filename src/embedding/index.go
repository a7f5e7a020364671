package embedding

import (
	"sort"
	"sync"

	"github.com/callsight/callsight/src/models"
)

// similarityIndex is an in-process, append-only vector index. Entries keep
// their insertion-order position for the lifetime of the process; vectors
// are stored normalized, so inner product equals cosine similarity.
type similarityIndex struct {
	mu       sync.RWMutex
	vectors  [][]float32
	texts    []string
	metadata []map[string]any
}

func newSimilarityIndex() *similarityIndex {
	return &similarityIndex{}
}

// Add appends order-aligned vectors, texts and metadata. metadata may be
// nil when the caller has none.
func (idx *similarityIndex) Add(vectors [][]float32, texts []string, metadata []map[string]any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := range vectors {
		idx.vectors = append(idx.vectors, vectors[i])
		idx.texts = append(idx.texts, texts[i])
		if metadata != nil && i < len(metadata) {
			idx.metadata = append(idx.metadata, metadata[i])
		} else {
			idx.metadata = append(idx.metadata, nil)
		}
	}
}

// Search scores the query against every indexed vector and returns the
// top k hits at or above threshold, best first.
func (idx *similarityIndex) Search(query []float32, k int, threshold float64) []models.IndexHit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]models.IndexHit, 0, k)
	for i, vec := range idx.vectors {
		score := dotProduct(query, vec)
		if score >= threshold {
			hits = append(hits, models.IndexHit{
				Text:     idx.texts[i],
				Score:    score,
				Metadata: idx.metadata[i],
				Index:    i,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (idx *similarityIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
