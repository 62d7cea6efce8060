package catalogue

import (
	"math"
	"sort"
)

// indexEntry is one row of the flat embedding table.
type indexEntry struct {
	key       Key
	embedding []float32
}

// index is the catalogue's flat in-memory similarity index. Deletion is
// implemented by rebuilding the slice rather than marking tombstones —
// every deleteTool rebuilds it (addTool updates an entry in place or
// appends one), a linear rebuild is simpler than a free-list, and no query
// path is latency sensitive enough to need more.
type index struct {
	entries []indexEntry
}

func newIndex() *index {
	return &index{}
}

func (ix *index) upsert(key Key, embedding []float32) {
	for i, e := range ix.entries {
		if e.key == key {
			ix.entries[i].embedding = embedding
			return
		}
	}
	ix.entries = append(ix.entries, indexEntry{key: key, embedding: embedding})
}

func (ix *index) delete(key Key) {
	out := ix.entries[:0:0]
	for _, e := range ix.entries {
		if e.key != key {
			out = append(out, e)
		}
	}
	ix.entries = out
}

// scored pairs a key with its similarity to a query vector.
type scored struct {
	key   Key
	score float32
}

// search returns the topK keys by cosine similarity to query, descending.
func (ix *index) search(query []float32, topK int) []scored {
	results := make([]scored, 0, len(ix.entries))
	for _, e := range ix.entries {
		results = append(results, scored{key: e.key, score: cosineSimilarity(query, e.embedding)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}

func cosineSimilarity(a, b []float32) float32 {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
