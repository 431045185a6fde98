package core

import (
	"errors"
	"fmt"
	"strings"
)

// Credential errors
var (
	ErrDecode           = errors.New("malformed credential")   // treated as anonymous
	ErrSessionExpired   = errors.New("session expired")        // treated as anonymous
	ErrNotAuthenticated = errors.New("not authenticated")      // 401
	ErrIdentityRequired = errors.New("username is required")   // 400
	ErrSecretRequired   = errors.New("password is required")   // 400
	ErrLoginFailed      = errors.New("failed to log in")       // 401
	ErrStorageNotFound  = errors.New("storage key not found")  // treated as empty
	ErrInvalidStateKey  = errors.New("invalid storage key")    // 500
	ErrChannelInactive  = errors.New("notifications inactive") // 409
)

// Validation errors (client input)
var (
	ErrInvalidQuantity       = errors.New("quantity must be a positive integer")               // 400
	ErrInvalidProduct        = errors.New("product id is required")                            // 400
	ErrEmptyCart             = errors.New("cart is empty")                                     // 400
	ErrShippingInfoRequired  = errors.New("full name, address and phone number are required") // 400
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")                            // 400
	ErrInvalidOrderStatus    = errors.New("invalid order status")                              // 400
	ErrNewsletterIncomplete  = errors.New("newsletter subject and body are required")          // 400
	ErrImageTooLarge         = errors.New("image exceeds the upload size limit")               // 413
	ErrInvalidPeriod         = errors.New("invalid dashboard period")                          // 400
	ErrPasswordMismatch      = errors.New("new password confirmation does not match")          // 400
	ErrPasswordTooShort      = errors.New("new password is too short")                         // 400
	ErrNameRequired          = errors.New("name is required")                                  // 400
	ErrUserPasswordRequired  = errors.New("password is required for new users")                // 400
	ErrNotificationNotFound  = errors.New("notification not found")                            // 404
	ErrInvalidNotificationID = errors.New("invalid notification id")                           // 400
)

// Config errors (composition root)
var (
	ErrAPIRequired         = errors.New("api client is required")      // 500
	ErrStorageRequired     = errors.New("storage backend is required") // 500
	ErrHTTPAdapterRequired = errors.New("adapter is required")         // 500
	ErrHubURLRequired      = errors.New("hub url is required")         // 500
)

// APIError is a non-2xx response from the REST collaborator.
// Messages holds whatever the body carried: the descriptions of a
// validation array, a single message, or a bare string.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// Message joins the decoded messages with newlines, or returns "" if the
// body had no recognised shape.
func (e *APIError) Message() string {
	return strings.Join(e.Messages, "\n")
}

// noticeText is the user-facing wording of validation errors that are
// shown verbatim in a notice.
var noticeText = map[error]string{
	ErrNewsletterIncomplete: "Subject and body are required.",
	ErrImageTooLarge:        "Image is too large. Maximum size is 5MB.",
	ErrPasswordMismatch:     "New password and confirmation password do not match.",
	ErrPasswordTooShort:     "New password must be at least 6 characters long.",
	ErrUserPasswordRequired: "Password is required for new users.",
	ErrEmptyCart:            "Your cart is empty. Let's go shopping!",
	ErrShippingInfoRequired: "Please fill in all shipping information.",
}

// UserMessage renders err for a transient notice. REST errors show the
// server's text when it sent one, known validation errors show their
// notice text, everything else falls back.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.Message(); msg != "" {
			return msg
		}
		return fallback
	}
	for known, text := range noticeText {
		if errors.Is(err, known) {
			return text
		}
	}
	return fallback
}
