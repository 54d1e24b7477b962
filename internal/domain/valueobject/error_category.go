package valueobject

import "fmt"

// ErrorCategory classifies a processing failure by how it should be
// handled: retried automatically, surfaced to the user for action, or
// escalated.
type ErrorCategory string

// Error category constants.
const (
	// ErrorCategoryTransient marks failures expected to clear on their own,
	// such as timeouts or rate limits. Eligible for automatic retry.
	ErrorCategoryTransient ErrorCategory = "transient"
	// ErrorCategoryRecoverable marks failures the uploader can fix, such as
	// a password-protected file. Never retried automatically.
	ErrorCategoryRecoverable ErrorCategory = "recoverable"
	// ErrorCategoryPermanent marks failures no retry will fix.
	ErrorCategoryPermanent ErrorCategory = "permanent"
)

// validErrorCategories contains all valid error categories.
var validErrorCategories = map[ErrorCategory]bool{
	ErrorCategoryTransient:   true,
	ErrorCategoryRecoverable: true,
	ErrorCategoryPermanent:   true,
}

// NewErrorCategory creates a new ErrorCategory with validation.
func NewErrorCategory(category string) (ErrorCategory, error) {
	c := ErrorCategory(category)
	if !validErrorCategories[c] {
		return "", fmt.Errorf("invalid error category: %s", category)
	}
	return c, nil
}

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// AutoRetryable returns true if failures in this category may be retried
// without user involvement.
func (c ErrorCategory) AutoRetryable() bool {
	return c == ErrorCategoryTransient
}

// UserActionable returns true if the uploader can resolve the failure by
// fixing and re-submitting the document.
func (c ErrorCategory) UserActionable() bool {
	return c == ErrorCategoryRecoverable
}

// AllErrorCategories returns all valid error categories.
func AllErrorCategories() []ErrorCategory {
	statuses := make([]ErrorCategory, 0, len(validErrorCategories))
	for category := range validErrorCategories {
		statuses = append(statuses, category)
	}
	return statuses
}
