package catalogue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder"
)

// Catalogue is the Tool Catalogue: the compound-keyed origin map plus the
// similarity index used to answer queryTools. All mutating operations take
// an exclusive lock; queryTools and listTools take a shared one, so many
// concurrent searches never block each other but always see a consistent
// snapshot relative to the last completed write.
type Catalogue struct {
	mu       sync.RWMutex
	store    Store
	index    *index
	embedder embedder.Provider
	logger   *slog.Logger

	servers map[string]ServerDescriptor
}

// New constructs a Catalogue over the given store and embedding provider.
func New(store Store, emb embedder.Provider, logger *slog.Logger) *Catalogue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalogue{
		store:    store,
		index:    newIndex(),
		embedder: emb,
		logger:   logger.With("component", "catalogue"),
		servers:  make(map[string]ServerDescriptor),
	}
}

// AddServer registers a server descriptor without adding any tools for it.
// The Registry Service's add-server operation calls it when one of the
// server's tools fails to register, so the server stays recorded.
func (c *Catalogue) AddServer(server ServerDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers[server.ID] = server
}

// AddTool registers one tool under server. If a different server already
// owns a tool with the same name, this returns an error rather than
// silently overwriting the existing origin — a duplicate tool name from a
// distinct origin is a registration conflict, not an update.
func (c *Catalogue) AddTool(ctx context.Context, server ServerDescriptor, tool ToolDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addToolLocked(ctx, server, tool)
}

func (c *Catalogue) addToolLocked(ctx context.Context, server ServerDescriptor, tool ToolDescriptor) error {
	key := Key{ServerID: server.ID, ToolName: tool.Name}

	// A tool name is unique across the whole catalogue, not just within
	// one server's namespace: reject registering it from a second,
	// different origin rather than silently shadowing the first (I2).
	all, err := c.store.Scan(ctx, 0)
	if err == nil {
		for _, o := range all {
			if o.Tool.Name == tool.Name && o.Server.ID != server.ID {
				return fmt.Errorf("catalogue: tool %q already registered from server %q, cannot also register from %q",
					tool.Name, o.Server.ID, server.ID)
			}
		}
	}

	origin := ToolOrigin{Server: server, Tool: tool}
	if err := c.store.Upsert(ctx, origin); err != nil {
		return fmt.Errorf("catalogue: upsert %s: %w", key, err)
	}

	vec, err := c.embedder.Embed(ctx, embeddingText(tool))
	if err != nil {
		return fmt.Errorf("catalogue: embed %s: %w", key, err)
	}
	c.index.upsert(key, vec)

	c.servers[server.ID] = server
	return nil
}

// AddTools registers every tool a server exposes in one call.
func (c *Catalogue) AddTools(ctx context.Context, server ServerDescriptor, tools []ToolDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tools {
		if err := c.addToolLocked(ctx, server, t); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTool removes a tool's origin and drops it from the similarity
// index.
func (c *Catalogue) DeleteTool(ctx context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx, []Key{key}); err != nil {
		return fmt.Errorf("catalogue: delete %s: %w", key, err)
	}
	c.index.delete(key)
	return nil
}

// QueryResult is one hit from QueryTools.
type QueryResult struct {
	Origin ToolOrigin
	Score  float32
}

// QueryTools embeds query and returns the topK most similar tools by
// cosine similarity against the indexed tool descriptions.
func (c *Catalogue) QueryTools(ctx context.Context, query string, topK int) ([]QueryResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalogue: embed query: %w", err)
	}

	hits := c.index.search(vec, topK)
	if len(hits) == 0 {
		return nil, nil
	}

	keys := make([]Key, len(hits))
	for i, h := range hits {
		keys[i] = h.key
	}
	origins, err := c.store.Get(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("catalogue: fetch origins: %w", err)
	}

	out := make([]QueryResult, 0, len(hits))
	for i, o := range origins {
		if o == nil {
			continue
		}
		out = append(out, QueryResult{Origin: *o, Score: hits[i].score})
	}
	return out, nil
}

// ListTools returns every registered tool origin, up to limit (0 = no
// bound).
func (c *Catalogue) ListTools(ctx context.Context, limit int) ([]ToolOrigin, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Scan(ctx, limit)
}

// Get returns the origin for one compound key, or nil if it is not
// registered.
func (c *Catalogue) Get(ctx context.Context, key Key) (*ToolOrigin, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out, err := c.store.Get(ctx, []Key{key})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// embeddingText renders a ToolDescriptor into the text embedded for
// similarity search: name and description concatenated, since a tool's
// input schema rarely adds distinguishing vocabulary for retrieval.
func embeddingText(t ToolDescriptor) string {
	if t.Description == "" {
		return t.Name
	}
	return t.Name + ": " + t.Description
}
