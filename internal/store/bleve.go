package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"

	cerrors "github.com/codescout/codescout/internal/errors"
)

const (
	// CodeTokenizerName is the registry name of the code tokenizer.
	CodeTokenizerName = "code_tokenizer"

	// CodeStopFilterName is the registry name of the code stop word filter.
	CodeStopFilterName = "code_stop"

	// CodeAnalyzerName is the registry name of the full code analyzer.
	CodeAnalyzerName = "code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(CodeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(CodeStopFilterName, codeStopFilterConstructor)
}

// BleveLexicalIndex implements LexicalIndex on Bleve v2 with a
// code-aware analyzer.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	built  bool
	closed bool
}

// bleveDocument is the indexed document shape.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveLexicalIndex opens or creates a lexical index. An empty path
// creates an in-memory index.
func NewBleveLexicalIndex(cfg LexicalConfig) (*BleveLexicalIndex, error) {
	var index bleve.Index
	var err error

	if cfg.Path == "" {
		index, err = bleve.NewMemOnly(createIndexMapping())
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeIndexUnavailable,
				"failed to create in-memory lexical index", err)
		}
		return &BleveLexicalIndex{index: index}, nil
	}

	if _, statErr := os.Stat(cfg.Path); os.IsNotExist(statErr) {
		index, err = bleve.New(cfg.Path, createIndexMapping())
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeIndexUnavailable,
				fmt.Sprintf("failed to create lexical index at %s", cfg.Path), err)
		}
		return &BleveLexicalIndex{index: index, path: cfg.Path}, nil
	}

	index, err = bleve.Open(cfg.Path)
	if err != nil {
		// Stale or corrupt index directory. Rebuild from scratch rather
		// than refusing to start.
		slog.Warn("lexical index open failed, rebuilding",
			slog.String("path", cfg.Path),
			slog.String("error", err.Error()))

		if rmErr := os.RemoveAll(cfg.Path); rmErr != nil {
			return nil, cerrors.New(cerrors.ErrCodeIndexCorrupt,
				fmt.Sprintf("failed to remove corrupt lexical index at %s", cfg.Path), rmErr)
		}
		index, err = bleve.New(cfg.Path, createIndexMapping())
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeIndexUnavailable,
				fmt.Sprintf("failed to recreate lexical index at %s", cfg.Path), err)
		}
	}

	li := &BleveLexicalIndex{index: index, path: cfg.Path}
	if count, cErr := index.DocCount(); cErr == nil && count > 0 {
		li.built = true
	}
	return li, nil
}

// createIndexMapping builds the Bleve mapping with the code analyzer as
// the default.
func createIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(CodeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": CodeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			CodeStopFilterName,
		},
	})
	if err != nil {
		// Registration only fails on a malformed spec, which is a
		// programming error.
		panic(fmt.Sprintf("invalid code analyzer mapping: %v", err))
	}

	indexMapping.DefaultAnalyzer = CodeAnalyzerName
	return indexMapping
}

// Index adds candidates to the index in a single batch.
func (b *BleveLexicalIndex) Index(ctx context.Context, candidates []Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return cerrors.New(cerrors.ErrCodeIndexUnavailable, "lexical index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, c := range candidates {
		if err := batch.Index(c.ID, bleveDocument{Content: c.Text}); err != nil {
			return cerrors.New(cerrors.ErrCodeIndexUnavailable,
				fmt.Sprintf("failed to batch candidate %s", c.ID), err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return cerrors.New(cerrors.ErrCodeIndexUnavailable, "failed to index batch", err)
	}

	b.built = true
	return nil
}

// Search runs a match query against candidate text.
func (b *BleveLexicalIndex) Search(ctx context.Context, query string, topK int) ([]LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, cerrors.New(cerrors.ErrCodeIndexUnavailable, "lexical index is closed", nil)
	}
	if !b.built {
		return nil, cerrors.New(cerrors.ErrCodeIndexNotBuilt,
			"lexical index has not been built", nil)
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	request := bleve.NewSearchRequest(matchQuery)
	request.Size = topK
	request.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeSearchFailed, "lexical search failed", err)
	}

	results := make([]LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, LexicalResult{
			ID:           hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	return results, nil
}

// Delete removes candidates from the index.
func (b *BleveLexicalIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return cerrors.New(cerrors.ErrCodeIndexUnavailable, "lexical index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return cerrors.New(cerrors.ErrCodeIndexUnavailable, "failed to delete candidates", err)
	}

	return nil
}

// Count returns the number of indexed documents.
func (b *BleveLexicalIndex) Count() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, cerrors.New(cerrors.ErrCodeIndexUnavailable, "lexical index is closed", nil)
	}

	return b.index.DocCount()
}

// Close releases the underlying index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.index.Close()
}

// Path returns the on-disk location, empty for in-memory indexes.
func (b *BleveLexicalIndex) Path() string {
	return b.path
}

// extractMatchedTerms collects the distinct query terms that matched in
// the content field.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveCodeTokenizer{}, nil
}

// bleveCodeTokenizer adapts TokenizeCode to the Bleve analysis chain.
type bleveCodeTokenizer struct{}

func (t *bleveCodeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		// Locate the token in the original text so highlighting offsets
		// stay meaningful after case folding and identifier splitting.
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

func codeStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveCodeStopFilter{
		stopWords: BuildStopWordMap(DefaultCodeStopWords),
	}, nil
}

type bleveCodeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *bleveCodeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
