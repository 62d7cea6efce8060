package catalogue

import "context"

// Store is the catalogue's pluggable persistence contract for ToolOrigins.
// Get and Delete are batch-shaped and order-preserving so a caller can zip
// a list of keys against the returned slice; a missing key yields a nil
// entry rather than an error.
type Store interface {
	// Upsert writes or replaces one ToolOrigin.
	Upsert(ctx context.Context, origin ToolOrigin) error

	// BatchUpsert writes or replaces many ToolOrigins in one call.
	BatchUpsert(ctx context.Context, origins []ToolOrigin) error

	// Get looks up each key, returning one *ToolOrigin per key in the same
	// order (nil where the key is absent).
	Get(ctx context.Context, keys []Key) ([]*ToolOrigin, error)

	// Delete removes the entries named by keys. Absent keys are ignored.
	Delete(ctx context.Context, keys []Key) error

	// Scan returns up to limit origins, in an unspecified but stable
	// order, for administrative listing (list-tools with no query).
	// limit <= 0 means no bound.
	Scan(ctx context.Context, limit int) ([]ToolOrigin, error)

	// Close releases any resources the store holds open.
	Close() error
}
