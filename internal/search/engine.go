package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	cerrors "github.com/codescout/codescout/internal/errors"
	"github.com/codescout/codescout/internal/store"
)

// Engine implements hybrid search: classify, expand, retrieve from the
// lexical and dense indexes in parallel, fuse with RRF, optionally
// rerank with a cross-encoder.
type Engine struct {
	lexical    store.LexicalIndex
	dense      store.DenseIndex
	candidates store.CandidateStore
	config     EngineConfig
	fusion     *RRFFusion
	classifier *Classifier
	expander   Expander
	reranker   Reranker
	mu         sync.RWMutex
}

var _ Searcher = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithClassifier sets the query classifier. When a Search call enables
// classification, the classifier picks the SearchConfig per query.
func WithClassifier(c *Classifier) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithExpander sets an optional query expander. When a config enables
// expansion, paraphrases are retrieved alongside the original query.
func WithExpander(exp Expander) EngineOption {
	return func(e *Engine) {
		e.expander = exp
	}
}

// WithReranker sets an optional cross-encoder reranker, applied after
// fusion and enrichment.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithCandidateStore sets the store used to enrich fused IDs with full
// candidate records and rerank context.
func WithCandidateStore(cs store.CandidateStore) EngineOption {
	return func(e *Engine) {
		e.candidates = cs
	}
}

// NewEngine creates a hybrid search engine. Both indexes are required;
// degradation to a single source happens per query, not at wiring time.
func NewEngine(
	lexical store.LexicalIndex,
	dense store.DenseIndex,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if lexical == nil {
		return nil, errors.Join(ErrNilDependency, errors.New("lexical index is required"))
	}
	if dense == nil {
		return nil, errors.Join(ErrNilDependency, errors.New("dense index is required"))
	}

	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultEngineConfig().DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = DefaultEngineConfig().MaxLimit
	}
	if config.RetrievalMultiplier <= 0 {
		config.RetrievalMultiplier = DefaultEngineConfig().RetrievalMultiplier
	}
	if config.RerankMultiplier <= 0 {
		config.RerankMultiplier = DefaultEngineConfig().RerankMultiplier
	}
	if config.MaxExpansionVariants <= 0 {
		config.MaxExpansionVariants = DefaultEngineConfig().MaxExpansionVariants
	}
	if config.MaxConcurrentVariants <= 0 {
		config.MaxConcurrentVariants = DefaultEngineConfig().MaxConcurrentVariants
	}
	if config.SearchTimeout <= 0 {
		config.SearchTimeout = DefaultEngineConfig().SearchTimeout
	}
	if config.RerankContext == "" {
		config.RerankContext = ContextRich
	}
	if config.DefaultWeights == (Weights{}) {
		config.DefaultWeights = EqualWeights()
	}

	e := &Engine{
		lexical: lexical,
		dense:   dense,
		config:  config,
		fusion:  NewRRFFusionWithK(config.RRFConstant),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs one hybrid search. The returned list is ordered by
// rerank score when reranking ran, otherwise by fusion score, and is
// truncated to the resolved limit.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]*Result, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, cerrors.New(cerrors.ErrCodeEmptyQuery, "query must not be empty", nil)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	cfg := e.resolveConfig(query, opts)
	rerankOn := e.rerankEnabled(cfg, opts)

	multiplier := e.config.RetrievalMultiplier
	if rerankOn {
		multiplier = e.config.RerankMultiplier
	}
	depth := limit * multiplier

	variants := e.queryVariants(ctx, query, cfg)

	merged, err := e.retrieveVariants(ctx, variants, cfg, depth, opts.Filters)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, cerrors.New(cerrors.ErrCodeSearchTimeout,
				"search timed out", err)
		}
		return nil, err
	}

	results := e.enrich(ctx, merged)

	if rerankOn && len(results) > 0 {
		results = e.rerank(ctx, query, results)
	}

	if len(results) > limit {
		results = results[:limit]
	}

	slog.Debug("search_complete",
		slog.String("query", truncateForLog(query, 50)),
		slog.Int("variants", len(variants)),
		slog.Int("results", len(results)),
		slog.Bool("reranked", rerankOn),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// resolveConfig picks the SearchConfig for this call: an explicit
// override wins, then the classifier, then the default.
func (e *Engine) resolveConfig(query string, opts SearchOptions) SearchConfig {
	if opts.Config != nil {
		return *opts.Config
	}
	if opts.UseClassifier && e.classifier != nil {
		class := e.classifier.Classify(query)
		cfg := e.classifier.ConfigFor(class)
		slog.Debug("query_classified",
			slog.String("query", truncateForLog(query, 50)),
			slog.String("class", string(class)))
		return cfg
	}
	cfg := DefaultSearchConfig()
	cfg.LexicalWeight = e.config.DefaultWeights.Lexical
	cfg.DenseWeight = e.config.DefaultWeights.Dense
	return cfg
}

// rerankEnabled resolves the three-way rerank decision: per-call
// override, then config, and in all cases a configured reranker.
func (e *Engine) rerankEnabled(cfg SearchConfig, opts SearchOptions) bool {
	if e.reranker == nil {
		return false
	}
	if opts.Rerank != nil {
		return *opts.Rerank
	}
	return cfg.UseReranking
}

// queryVariants returns the retrieval variants, original query first.
// Expansion is best effort: any failure means searching with the
// original only.
func (e *Engine) queryVariants(ctx context.Context, query string, cfg SearchConfig) []string {
	variants := []string{query}

	if !cfg.UseExpansion || e.expander == nil {
		return variants
	}

	expansions, err := e.expander.Expand(ctx, query, e.config.MaxExpansionVariants)
	if err != nil {
		expErr := cerrors.New(cerrors.ErrCodeExpansionFailed, "query expansion failed", err)
		slog.Warn("query expansion failed, using original query",
			slog.String("error", expErr.Error()))
		return variants
	}

	for _, v := range expansions {
		if v != "" && v != query {
			variants = append(variants, v)
		}
	}
	return variants
}

// retrieveVariants fans retrieval out over the query variants, fuses
// each variant's source lists, then merges across variants keeping the
// best fusion score per candidate. Variants are alternative phrasings
// of one intent, not independent votes, so scores are not summed.
func (e *Engine) retrieveVariants(
	ctx context.Context,
	variants []string,
	cfg SearchConfig,
	depth int,
	filters map[string]string,
) ([]*FusedResult, error) {
	perVariant := make([][]*FusedResult, len(variants))
	errs := make([]error, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrentVariants)

	for i, variant := range variants {
		g.Go(func() error {
			fused, err := e.retrieveOne(gctx, variant, cfg, depth, filters)
			perVariant[i] = fused
			errs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The original query (variant 0) is authoritative; expansion
	// variants failing is tolerable noise.
	if errs[0] != nil {
		allFailed := true
		for _, err := range errs {
			if err == nil {
				allFailed = false
				break
			}
		}
		if allFailed {
			return nil, errs[0]
		}
	}

	// Merge in variant order so first-encounter order stays stable.
	best := make(map[string]*FusedResult)
	order := make([]string, 0, depth)
	for _, fused := range perVariant {
		for _, r := range fused {
			existing, ok := best[r.ID]
			if !ok {
				best[r.ID] = r
				order = append(order, r.ID)
				continue
			}
			if r.FusionScore > existing.FusionScore {
				best[r.ID] = r
			}
		}
	}

	merged := make([]*FusedResult, 0, len(order))
	for i, id := range order {
		r := best[id]
		r.seq = i
		merged = append(merged, r)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].FusionScore != merged[j].FusionScore {
			return merged[i].FusionScore > merged[j].FusionScore
		}
		return merged[i].seq < merged[j].seq
	})

	return merged, nil
}

// retrieveOne queries both sources for a single variant in parallel
// and fuses the lists. A failing source degrades to an empty list; the
// call errors only when every enabled source failed.
func (e *Engine) retrieveOne(
	ctx context.Context,
	query string,
	cfg SearchConfig,
	depth int,
	filters map[string]string,
) ([]*FusedResult, error) {
	var lexResults []store.LexicalResult
	var denseResults []store.DenseResult
	var lexErr, denseErr error

	g, gctx := errgroup.WithContext(ctx)

	if cfg.UseLexical {
		g.Go(func() error {
			lexResults, lexErr = e.lexical.Search(gctx, query, depth)
			return nil
		})
	}
	if cfg.UseDense {
		g.Go(func() error {
			denseResults, denseErr = e.dense.Search(gctx, query, depth, filters)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enabled := 0
	failed := 0
	if cfg.UseLexical {
		enabled++
		if lexErr != nil {
			failed++
			slog.Warn("lexical search unavailable, degrading to dense only",
				slog.String("error", lexErr.Error()))
			lexResults = nil
		}
	}
	if cfg.UseDense {
		enabled++
		if denseErr != nil {
			failed++
			slog.Warn("dense search unavailable, degrading to lexical only",
				slog.String("error", denseErr.Error()))
			denseResults = nil
		}
	}
	if enabled > 0 && failed == enabled {
		return nil, cerrors.New(cerrors.ErrCodeSearchFailed,
			"all retrieval sources unavailable", errors.Join(lexErr, denseErr))
	}

	return e.fusion.Fuse(lexResults, denseResults, cfg.Weights()), nil
}

// enrich resolves fused IDs into full candidate records. Without a
// candidate store, or for IDs the store no longer knows, the result
// carries the ID alone so the ranked set is never silently shrunk.
func (e *Engine) enrich(ctx context.Context, fused []*FusedResult) []*Result {
	results := make([]*Result, len(fused))
	for i, f := range fused {
		results[i] = &Result{
			Candidate:    store.Candidate{ID: f.ID},
			FusionScore:  f.FusionScore,
			LexicalScore: f.LexicalScore,
			LexicalRank:  f.LexicalRank,
			DenseScore:   f.DenseScore,
			DenseRank:    f.DenseRank,
			InBothLists:  f.InBothLists,
			MatchedTerms: f.MatchedTerms,
		}
	}

	if e.candidates == nil || len(fused) == 0 {
		return results
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ID
	}

	records, err := e.candidates.GetCandidates(ctx, ids)
	if err != nil {
		slog.Warn("candidate enrichment failed, returning bare IDs",
			slog.String("error", err.Error()))
		return results
	}

	byID := make(map[string]store.Candidate, len(records))
	for _, c := range records {
		byID[c.ID] = c
	}
	for _, r := range results {
		if c, ok := byID[r.Candidate.ID]; ok {
			r.Candidate = c
		}
	}

	return results
}

// rerank reorders enriched results by cross-encoder score. Any failure
// falls back to the fusion order.
func (e *Engine) rerank(ctx context.Context, query string, results []*Result) []*Result {
	documents := make([]string, len(results))
	for i, r := range results {
		documents[i] = BuildRerankContext(r.Candidate, e.config.RerankContext)
	}

	scored, err := e.reranker.Rerank(ctx, query, documents, 0)
	if err != nil {
		rerankErr := cerrors.New(cerrors.ErrCodeRerankFailed, "rerank failed", err)
		slog.Warn("rerank failed, keeping fusion order",
			slog.String("error", rerankErr.Error()))
		return results
	}
	if len(scored) != len(results) {
		slog.Warn("rerank returned unexpected count, keeping fusion order",
			slog.Int("want", len(results)),
			slog.Int("got", len(scored)))
		return results
	}

	reranked := make([]*Result, 0, len(results))
	for _, s := range scored {
		if s.Index < 0 || s.Index >= len(results) {
			slog.Warn("rerank returned invalid index, keeping fusion order",
				slog.Int("index", s.Index))
			return results
		}
		r := results[s.Index]
		score := s.Score
		r.RerankScore = &score
		reranked = append(reranked, r)
	}

	return reranked
}

// Index adds candidates to the lexical index, the dense index, and the
// candidate store when one is configured.
func (e *Engine) Index(ctx context.Context, candidates []store.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.lexical.Index(ctx, candidates); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexUnavailable, err)
	}
	if err := e.dense.Index(ctx, candidates); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIndexUnavailable, err)
	}
	if e.candidates != nil {
		if err := e.candidates.SaveCandidates(ctx, candidates); err != nil {
			return cerrors.Wrap(cerrors.ErrCodeStoreUnavailable, err)
		}
	}

	return nil
}

// Delete removes candidates from both indexes. Index deletions are
// best effort; orphans are filtered by the store-backed enrichment.
func (e *Engine) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.lexical.Delete(ctx, ids); err != nil {
		slog.Warn("lexical delete failed, orphans will remain",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
	}
	if err := e.dense.Delete(ctx, ids); err != nil {
		slog.Warn("dense delete failed, orphans will remain",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
	}

	return nil
}

// EngineStats reports index sizes.
type EngineStats struct {
	LexicalCount   uint64
	DenseCount     int
	CandidateCount int
}

// Stats returns engine statistics. Unavailable stores report zero.
func (e *Engine) Stats(ctx context.Context) EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var stats EngineStats
	if count, err := e.lexical.Count(); err == nil {
		stats.LexicalCount = count
	}
	stats.DenseCount = e.dense.Count()
	if e.candidates != nil {
		if count, err := e.candidates.Count(ctx); err == nil {
			stats.CandidateCount = count
		}
	}
	return stats
}

// Close releases all owned resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if err := e.lexical.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.dense.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.candidates != nil {
		if err := e.candidates.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.reranker != nil {
		if err := e.reranker.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.expander != nil {
		if err := e.expander.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
