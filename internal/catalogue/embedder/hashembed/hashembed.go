// Package hashembed is a deterministic, dependency-free embedder.Provider:
// a bag-of-words hashing embedding. It is the catalogue's default so the
// module indexes and searches tools offline, without any embedding backend
// configured — not a substitute for a real embedder in production, but
// sufficient to exercise query-tools end to end.
package hashembed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder"
)

const defaultDimension = 256

// Provider hashes each token of the input text into one of Dimension
// buckets and L2-normalizes the resulting vector, so cosine similarity
// between two descriptions tracks shared-vocabulary overlap.
type Provider struct {
	dimension int
}

var _ embedder.Provider = (*Provider)(nil)

// New returns a Provider with the default dimension.
func New() *Provider {
	return &Provider{dimension: defaultDimension}
}

func (p *Provider) Name() string { return "hash" }

func (p *Provider) Dimension() int { return p.dimension }

func (p *Provider) MaxBatchSize() int { return 1024 }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		idx := int(h.Sum32()) % p.dimension
		if idx < 0 {
			idx += p.dimension
		}
		vec[idx]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
