package state

import "errors"

// Rejection reasons. Apply wraps these with context; match them with errors.Is.
var (
	ErrUnknownIntent      = errors.New("unknown intent")
	ErrNotFound           = errors.New("not found")
	ErrInvalidProduct     = errors.New("invalid product")
	ErrInvalidUser        = errors.New("invalid user")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too weak")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrLastAdmin          = errors.New("operation would leave no active administrator")
	ErrNotAuthenticated   = errors.New("no active session")
	ErrInvalidReview      = errors.New("invalid review")
	ErrInvalidMessage     = errors.New("invalid message")
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrUnknownIntent, "unknown_intent"},
	{ErrNotFound, "not_found"},
	{ErrInvalidProduct, "invalid_product"},
	{ErrInvalidUser, "invalid_user"},
	{ErrDuplicateEmail, "duplicate_email"},
	{ErrWeakPassword, "weak_password"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrAccountInactive, "account_inactive"},
	{ErrLastAdmin, "last_admin"},
	{ErrNotAuthenticated, "not_authenticated"},
	{ErrInvalidReview, "invalid_review"},
	{ErrInvalidMessage, "invalid_message"},
}

// Reason returns a stable machine-readable code for a rejection error.
// Errors that are not rejections map to "internal".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return "internal"
}
