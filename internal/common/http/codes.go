package http

const (
	CodeInvalidJSON          = "INVALID_JSON"
	CodeMissingAuthorization = "MISSING_AUTHORIZATION"
	CodeRateLimited          = "RATE_LIMITED"
	CodeRequestTooLarge      = "REQUEST_TOO_LARGE"
	CodeInternal             = "INTERNAL_ERROR"
)
