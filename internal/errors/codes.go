// Package errors provides structured error handling for rubricrank.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (corpus files, snapshots)
//   - 3XX: Scoring service errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
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

	// IO errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorpusInvalid   = "ERR_202_CORPUS_INVALID"
	ErrCodeSnapshotCorrupt = "ERR_203_SNAPSHOT_CORRUPT"

	// Scoring service errors (300-399)
	ErrCodeScorerTimeout     = "ERR_301_SCORER_TIMEOUT"
	ErrCodeScorerUnavailable = "ERR_302_SCORER_UNAVAILABLE"
	ErrCodeScorerRejected    = "ERR_303_SCORER_REJECTED"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidWeight  = "ERR_402_INVALID_WEIGHT"
	ErrCodeInvalidMode    = "ERR_403_INVALID_MODE"
	ErrCodeQueryEmpty     = "ERR_404_QUERY_EMPTY"
	ErrCodeNoCorpus       = "ERR_405_NO_CORPUS"
	ErrCodeNotReady       = "ERR_406_NOT_READY"
	ErrCodeRubricNotFound = "ERR_407_RUBRIC_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeSearchFailed   = "ERR_502_SEARCH_FAILED"
	ErrCodeIndexingFailed = "ERR_503_INDEXING_FAILED"
	ErrCodeScoringFailed  = "ERR_504_SCORING_FAILED"
)

// categoryFromCode extracts category from the numeric range of the code.
func categoryFromCode(code string) Category {
	// "ERR_" prefix plus at least one digit
	if len(code) < 5 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	if code == ErrCodeSnapshotCorrupt {
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether a code represents a transient failure.
// A rejected request (4xx from the scorer) is not expected to change on retry.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeScorerTimeout, ErrCodeScorerUnavailable:
		return true
	default:
		return false
	}
}
