// Package api defines the shared JSON response shapes of the HTTP surface.
package api

// ErrorResponse carries a machine-readable error code and a human message.
type ErrorResponse struct {
	Error string `json:"error"`
	Tip   string `json:"tip,omitempty"`
}

// MessageResponse is a simple acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse carries the issued app bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}
