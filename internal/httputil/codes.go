package httputil

// Machine-readable error codes returned alongside HTTP status codes.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeMissingAuth        = "MISSING_AUTH"
	CodeInvalidAuthHeader  = "INVALID_AUTH_HEADER"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeUserGone           = "USER_GONE"
	CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	CodeForbiddenRole      = "FORBIDDEN_ROLE"
	CodePendingApproval    = "PENDING_APPROVAL"
	CodeNotApproved        = "NOT_APPROVED"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
)
