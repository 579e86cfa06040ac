package dto

// ErrorResponse is the error envelope returned by every failing request. ID
// is a stable machine-readable error identifier, Message a human-readable
// explanation of the violated rule.
type ErrorResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
