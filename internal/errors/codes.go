// Package errors provides structured error handling for codescout.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and storage errors
//   - 3XX: External service errors (embedder, expander, reranker)
//   - 4XX: Query validation errors
//   - 5XX: Internal retrieval errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIndex indicates lexical/dense index and storage errors.
	CategoryIndex Category = "INDEX"
	// CategoryService indicates external service errors (LLM, reranker).
	CategoryService Category = "SERVICE"
	// CategoryValidation indicates query validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Index and storage errors (200-299)
	ErrCodeIndexNotBuilt     = "ERR_201_INDEX_NOT_BUILT"
	ErrCodeIndexUnavailable  = "ERR_202_INDEX_UNAVAILABLE"
	ErrCodeIndexCorrupt      = "ERR_203_INDEX_CORRUPT"
	ErrCodeStoreUnavailable  = "ERR_204_STORE_UNAVAILABLE"
	ErrCodeCandidateNotFound = "ERR_205_CANDIDATE_NOT_FOUND"

	// External service errors (300-399)
	ErrCodeServiceTimeout  = "ERR_301_SERVICE_TIMEOUT"
	ErrCodeExpansionFailed = "ERR_302_EXPANSION_FAILED"
	ErrCodeRerankFailed    = "ERR_303_RERANK_FAILED"
	ErrCodeEmbeddingFailed = "ERR_304_EMBEDDING_FAILED"

	// Query validation errors (400-499)
	ErrCodeEmptyQuery   = "ERR_401_EMPTY_QUERY"
	ErrCodeInvalidQuery = "ERR_402_INVALID_QUERY"

	// Internal retrieval errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeSearchTimeout = "ERR_502_SEARCH_TIMEOUT"
	ErrCodeSearchFailed  = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion (e.g., "201" from "ERR_201_INDEX_NOT_BUILT")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIndex
	case '3':
		return CategoryService
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexCorrupt:
		return SeverityFatal
	case ErrCodeExpansionFailed, ErrCodeRerankFailed, ErrCodeIndexUnavailable:
		// Optional-stage failures are absorbed and logged, never fatal.
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeServiceTimeout, ErrCodeExpansionFailed, ErrCodeRerankFailed, ErrCodeEmbeddingFailed:
		return true
	}
	return false
}
