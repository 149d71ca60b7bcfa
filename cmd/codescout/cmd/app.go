package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codescout/codescout/internal/config"
	"github.com/codescout/codescout/internal/embed"
	"github.com/codescout/codescout/internal/search"
	"github.com/codescout/codescout/internal/store"
)

// app bundles the wired search stack for a CLI invocation. The dense
// index is kept separately because its snapshot must be saved after
// indexing.
type app struct {
	cfg    *config.Config
	engine *search.Engine
	dense  *store.HNSWDenseIndex
}

func densePath(indexDir string) string {
	return filepath.Join(indexDir, "dense.hnsw")
}

// newApp loads configuration from the working directory and wires the
// embedder, the three stores and the search engine. Close releases
// everything the engine owns.
func newApp(ctx context.Context) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}

	indexDir := cfg.Paths.IndexDir
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	lexical, err := store.NewBleveLexicalIndex(store.LexicalConfig{
		Path: filepath.Join(indexDir, "lexical"),
	})
	if err != nil {
		embedder.Close()
		return nil, err
	}

	denseCfg := store.DefaultDenseConfig(embedder.Dimensions())
	dense, err := store.NewHNSWDenseIndex(denseCfg, embedder)
	if err != nil {
		lexical.Close()
		embedder.Close()
		return nil, err
	}
	if _, statErr := os.Stat(densePath(indexDir)); statErr == nil {
		if err := dense.Load(densePath(indexDir)); err != nil {
			dense.Close()
			lexical.Close()
			return nil, err
		}
	}

	candidates, err := store.NewSQLiteCandidateStore(filepath.Join(indexDir, "candidates.db"))
	if err != nil {
		dense.Close()
		lexical.Close()
		return nil, err
	}

	engineCfg := search.DefaultEngineConfig()
	engineCfg.RRFConstant = cfg.Search.RRFConstant
	engineCfg.DefaultWeights = search.Weights{
		Lexical: cfg.Search.LexicalWeight,
		Dense:   cfg.Search.DenseWeight,
	}
	if cfg.Search.MaxResults > 0 {
		engineCfg.MaxLimit = cfg.Search.MaxResults
	}
	if cfg.Search.Timeout > 0 {
		engineCfg.SearchTimeout = cfg.Search.Timeout
	}
	if cfg.Expansion.MaxVariants > 0 {
		engineCfg.MaxExpansionVariants = cfg.Expansion.MaxVariants
	}
	if cfg.Reranker.Context != "" {
		engineCfg.RerankContext = search.ContextFormat(cfg.Reranker.Context)
	}

	opts := []search.EngineOption{
		search.WithClassifier(search.NewClassifier()),
		search.WithCandidateStore(candidates),
	}
	if cfg.Expansion.Enabled {
		opts = append(opts, search.WithExpander(search.NewLLMExpander(search.ExpanderConfig{
			Model:      cfg.Expansion.Model,
			Timeout:    cfg.Expansion.Timeout,
			CacheSize:  cfg.Expansion.CacheSize,
			OllamaHost: cfg.Embedding.OllamaHost,
		})))
	}
	if cfg.Reranker.Enabled {
		reranker, rerr := search.NewCrossEncoderReranker(ctx, search.CrossEncoderConfig{
			Endpoint: cfg.Reranker.Endpoint,
			Model:    cfg.Reranker.Model,
			Timeout:  cfg.Reranker.Timeout,
		})
		if rerr != nil {
			// Reranking is an enhancement, not a requirement.
			slog.Warn("reranker unavailable, continuing without it",
				slog.String("endpoint", cfg.Reranker.Endpoint),
				slog.String("error", rerr.Error()))
		} else {
			opts = append(opts, search.WithReranker(reranker))
		}
	}

	engine, err := search.NewEngine(lexical, dense, engineCfg, opts...)
	if err != nil {
		candidates.Close()
		dense.Close()
		lexical.Close()
		return nil, err
	}

	return &app{cfg: cfg, engine: engine, dense: dense}, nil
}

// buildEmbedder constructs the configured embedding provider wrapped
// in the bounded embedding cache.
func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var inner embed.Embedder
	switch cfg.Embedding.Provider {
	case "static":
		inner = embed.NewStaticEmbedder()
	case "ollama":
		inner = embed.NewOllamaEmbedder(embed.OllamaConfig{
			Host:       cfg.Embedding.OllamaHost,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, errors.New("unknown embedding provider: " + cfg.Embedding.Provider)
	}
	return embed.NewCachedEmbedder(inner, cfg.Embedding.CacheSize), nil
}

// saveDense persists the dense index snapshot next to the other
// index artifacts.
func (a *app) saveDense() error {
	return a.dense.Save(densePath(a.cfg.Paths.IndexDir))
}

func (a *app) Close() error {
	return a.engine.Close()
}
