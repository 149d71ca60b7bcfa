package search

import (
	"sort"

	"github.com/codescout/codescout/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.); earlier iterations of this system ran with 30.
const DefaultRRFConstant = 60

// FusedResult is a single candidate after RRF fusion, carrying the raw
// per-source evidence alongside the combined score.
type FusedResult struct {
	ID           string
	FusionScore  float64  // summed weighted RRF contributions
	LexicalScore float64  // original lexical score (preserved)
	LexicalRank  int      // position in lexical list (1-indexed, 0 if absent)
	DenseScore   float64  // original dense similarity score (preserved)
	DenseRank    int      // position in dense list (1-indexed, 0 if absent)
	InBothLists  bool     // candidate appeared in both source lists
	MatchedTerms []string // lexical matched terms (for highlighting)

	// seq records first-encounter order across the input lists, so ties
	// resolve deterministically by stable input order.
	seq int
}

// RRFFusion merges lexical and dense rank lists using weighted
// Reciprocal Rank Fusion.
//
// A candidate at 0-based rank r in a source list contributes
// weight / (r + k) from that source. Its total score is the sum of the
// contributions from every list it appears in; absence from a list
// contributes zero, not a penalty.
type RRFFusion struct {
	K int // smoothing constant (default: 60)
}

// NewRRFFusion creates a fusion instance with the default k.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a fusion instance with a custom k.
// Non-positive k falls back to the default.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges the two rank lists into one list ordered by descending
// fusion score. Ties keep stable first-encountered input order, with
// the lexical list processed first.
//
// Candidates are deduplicated by ID; a candidate present in both lists
// gets both rank fields set. If both inputs are empty the output is
// empty; a single non-empty input is reordered by its own ranks with
// scores still computed, so single-source and dual-source results stay
// comparable across calls.
func (f *RRFFusion) Fuse(
	lexical []store.LexicalResult,
	dense []store.DenseResult,
	weights Weights,
) []*FusedResult {
	if len(lexical) == 0 && len(dense) == 0 {
		return []*FusedResult{}
	}

	capacity := len(lexical) + len(dense)
	scores := make(map[string]*FusedResult, capacity)
	seq := 0

	for rank, r := range lexical {
		result, ok := scores[r.ID]
		if !ok {
			result = &FusedResult{ID: r.ID, seq: seq}
			scores[r.ID] = result
			seq++
		}
		result.LexicalScore = r.Score
		result.LexicalRank = rank + 1
		result.MatchedTerms = r.MatchedTerms
		result.FusionScore += weights.Lexical / float64(rank+f.K)
	}

	for rank, r := range dense {
		result, ok := scores[r.ID]
		if !ok {
			result = &FusedResult{ID: r.ID, seq: seq}
			scores[r.ID] = result
			seq++
		}
		result.DenseScore = float64(r.Score)
		result.DenseRank = rank + 1
		result.FusionScore += weights.Dense / float64(rank+f.K)

		if result.LexicalRank > 0 {
			result.InBothLists = true
		}
	}

	return f.toSortedSlice(scores)
}

// toSortedSlice orders by descending fusion score, ties by
// first-encounter sequence.
func (f *RRFFusion) toSortedSlice(m map[string]*FusedResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FusionScore != results[j].FusionScore {
			return results[i].FusionScore > results[j].FusionScore
		}
		return results[i].seq < results[j].seq
	})

	return results
}
