// Package embedder defines the embedding-provider contract the Tool
// Catalogue's similarity index uses to turn a tool description into a
// vector. The catalogue itself never calls a vendor API directly — it only
// depends on this interface.
package embedder

import "context"

// Provider turns text into embedding vectors.
type Provider interface {
	// Name identifies the provider for logging and diagnostics.
	Name() string

	// Dimension is the length of every vector this provider returns.
	Dimension() int

	// MaxBatchSize bounds how many texts EmbedBatch accepts at once.
	MaxBatchSize() int

	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds many texts in one round trip where the
	// underlying vendor supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
