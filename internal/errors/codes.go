// Package errors provides structured error handling for codescope.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Parse errors
//   - 3XX: Chunking errors
//   - 4XX: Embedding errors
//   - 5XX: Storage errors
//   - 6XX: Query errors
//   - 9XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryParse indicates source parsing errors.
	CategoryParse Category = "PARSE"
	// CategoryChunk indicates chunk extraction errors.
	CategoryChunk Category = "CHUNK"
	// CategoryEmbedding indicates embedding provider errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryStorage indicates index persistence errors.
	CategoryStorage Category = "STORAGE"
	// CategoryQuery indicates search query errors.
	CategoryQuery Category = "QUERY"
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

	// Parse errors (200-299)
	ErrCodeUnsupportedLanguage = "ERR_201_UNSUPPORTED_LANGUAGE"
	ErrCodeSyntaxError         = "ERR_202_SYNTAX_ERROR"
	ErrCodeParseTimeout        = "ERR_203_PARSE_TIMEOUT"

	// Chunk errors (300-399)
	ErrCodeMalformedTree = "ERR_301_MALFORMED_TREE"

	// Embedding errors (400-499)
	ErrCodeProviderUnavailable = "ERR_401_PROVIDER_UNAVAILABLE"
	ErrCodeRateLimited         = "ERR_402_RATE_LIMITED"
	ErrCodeEmbedTimeout        = "ERR_403_EMBED_TIMEOUT"
	ErrCodeDimensionMismatch   = "ERR_404_DIMENSION_MISMATCH"

	// Storage errors (500-599)
	ErrCodeIOFailure    = "ERR_501_IO_FAILURE"
	ErrCodeCorruptIndex = "ERR_502_CORRUPT_INDEX"

	// Query errors (600-699)
	ErrCodeInvalidFilter = "ERR_601_INVALID_FILTER"

	// Internal errors (900-999)
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryParse
	case '3':
		return CategoryChunk
	case '4':
		return CategoryEmbedding
	case '5':
		return CategoryStorage
	case '6':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderUnavailable, ErrCodeRateLimited, ErrCodeEmbedTimeout:
		return true
	default:
		return false
	}
}
