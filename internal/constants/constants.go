package constants

const (
	// IDRandomBytes is the entropy of generated entity ids (hex encoded after the prefix).
	IDRandomBytes = 12

	IDPrefixUser         = "usr"
	IDPrefixRefreshToken = "rft"
	IDPrefixProduct      = "prd"
)

// Problem type slugs, appended to the configured problem base URI.
const (
	ProblemValidation         = "validation-error"
	ProblemAuthentication     = "authentication-failed"
	ProblemAuthorization      = "forbidden"
	ProblemNotFound           = "not-found"
	ProblemConflict           = "conflict"
	ProblemPreconditionFailed = "precondition-failed"
	ProblemRateLimited        = "rate-limited"
	ProblemPayloadTooLarge    = "payload-too-large"
	ProblemMethodNotAllowed   = "method-not-allowed"
	ProblemInternal           = "internal-error"
)
