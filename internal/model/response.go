// Package model defines the JSON bodies exchanged with clients.
package model

import "time"

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error API response.
func NewErrorResponse[T any](errMsg string) APIResponse[T] {
	return APIResponse[T]{
		Success: false,
		Error:   errMsg,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AccountResponse describes the authenticated account.
type AccountResponse struct {
	ID          string    `json:"id"`
	Login       string    `json:"login"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	AuthMethod  string    `json:"auth_method"`
	Provisioned bool      `json:"provisioned,omitempty"`
	// CommonName and DistinguishedName are set for certificate logins.
	CommonName        string `json:"common_name,omitempty"`
	DistinguishedName string `json:"distinguished_name,omitempty"`
}

// LoginLinkResponse is the certificate login link shown on a login page.
type LoginLinkResponse struct {
	URI   string `json:"uri"`
	Label string `json:"label"`
	// PasswordLogin reports whether the password form remains available.
	PasswordLogin bool `json:"password_login"`
}
