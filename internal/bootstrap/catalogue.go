// Package bootstrap wires a Config into the concrete Store and embedder.Provider
// a Catalogue needs, shared by every entrypoint that constructs one (the
// embedded Registry Service and the "serve" subcommand alike) so the
// embedder/store selection logic lives in exactly one place.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder/hashembed"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder/ollamaembed"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder/openaiembed"
	"github.com/fenwick-labs/toolgate/internal/catalogue/store/memstore"
	"github.com/fenwick-labs/toolgate/internal/catalogue/store/sqlitestore"
	"github.com/fenwick-labs/toolgate/internal/config"
)

// NewCatalogue constructs a Catalogue from cfg: the sqlite store if
// CatalogueDBPath is set, otherwise the in-memory default; and whichever
// embedder.Provider cfg.EmbedderProvider names.
func NewCatalogue(cfg *config.Config, logger *slog.Logger) (*catalogue.Catalogue, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	return catalogue.New(store, emb, logger), nil
}

func newStore(cfg *config.Config) (catalogue.Store, error) {
	if cfg.CatalogueDBPath == "" {
		return memstore.New(), nil
	}
	return sqlitestore.New(sqlitestore.Config{Path: cfg.CatalogueDBPath})
}

func newEmbedder(cfg *config.Config) (embedder.Provider, error) {
	switch cfg.EmbedderProvider {
	case "", "hash":
		return hashembed.New(), nil
	case "openai":
		return openaiembed.New(openaiembed.Config{APIKey: cfg.OpenAIAPIKey})
	case "ollama":
		return ollamaembed.New(ollamaembed.Config{BaseURL: cfg.OllamaBaseURL}), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown embedder provider %q", cfg.EmbedderProvider)
	}
}
