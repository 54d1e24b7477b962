package dto

// ErrorResponse is the standard API error envelope. Raw upstream error text
// never appears here; user-facing messages come from the classifier.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
