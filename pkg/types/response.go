// Package types holds the wire envelopes shared by every VendHub API
// response.
package types

// SuccessEnvelope wraps successful response payloads under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a request failure. Details is only
// populated for codes whose metadata allows exposing them.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError under "error".
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
