package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Search Module Error Codes
const (
	ErrCodeInvalidPattern           ErrorCode = "SRCH_001"
	ErrCodeSubstructureSearchFailed ErrorCode = "SRCH_002"
	ErrCodeSimilaritySearchFailed   ErrorCode = "SRCH_003"
	ErrCodeInvalidEntityKey         ErrorCode = "SRCH_004"
	ErrCodeInvalidSearchMode        ErrorCode = "SRCH_005"
	ErrCodeFingerprintUnavailable   ErrorCode = "SRCH_006"
)

// Vocabulary Module Error Codes
const (
	ErrCodeMarkersMissing  ErrorCode = "VOC_001"
	ErrCodeBootstrapFailed ErrorCode = "VOC_002"
)

// Literature Error Codes
const (
	ErrCodeSummaryFetchFailed ErrorCode = "LIT_001"
	ErrCodeSummaryParseFailed ErrorCode = "LIT_002"
)

// Short aliases used across layers.
const (
	CodeOK            = ErrorCode("OK")
	CodeUnknown       = ErrorCode("UNKNOWN")
	CodeInternal      = ErrCodeInternal
	CodeInvalidParam  = ErrCodeBadRequest
	CodeNotFound      = ErrCodeNotFound
	CodeDatabaseError = ErrCodeDatabaseError
	CodeCacheError    = ErrCodeCacheError
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",

	ErrCodeInvalidPattern:           "invalid structural pattern",
	ErrCodeSubstructureSearchFailed: "substructure search failed",
	ErrCodeSimilaritySearchFailed:   "similarity search failed",
	ErrCodeInvalidEntityKey:         "invalid entity key",
	ErrCodeInvalidSearchMode:        "invalid search mode",
	ErrCodeFingerprintUnavailable:   "fingerprint unavailable",

	ErrCodeMarkersMissing:  "vocabulary marker accessions missing",
	ErrCodeBootstrapFailed: "vocabulary bootstrap failed",

	ErrCodeSummaryFetchFailed: "literature summary request failed",
	ErrCodeSummaryParseFailed: "literature summary response malformed",
}

// Message returns the default message for the code, or the code itself.
func (c ErrorCode) Message() string {
	if m, ok := ErrorCodeMessage[c]; ok {
		return m
	}
	return string(c)
}

// ModuleForCode returns the module prefix of an error code ("SRCH", "VOC", ...).
func ModuleForCode(c ErrorCode) string {
	s := string(c)
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			return s[:i]
		}
	}
	return s
}
