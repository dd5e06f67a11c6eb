package domain

import "errors"

var (
	ErrDuplicateID     = errors.New("connection id already registered")
	ErrRegistryClosed  = errors.New("registry closed")
	ErrMissingToken    = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenRevoked    = errors.New("token revoked")
	ErrConnectionGone  = errors.New("connection closed")
	ErrSendBufferFull  = errors.New("send buffer full")
	ErrInvalidEvent    = errors.New("invalid upstream event")
	ErrUnknownChannel  = errors.New("unknown channel")
	ErrMissingAudience = errors.New("direct event needs a user id or a role")
)

// ErrorCode is the machine-readable code carried by error envelopes.
type ErrorCode string

const (
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeInvalidMessage    ErrorCode = "INVALID_MESSAGE"
	CodeMissingChannel    ErrorCode = "MISSING_CHANNEL"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeCannotUnsubscribe ErrorCode = "CANNOT_UNSUBSCRIBE"
	CodeUnknownType       ErrorCode = "UNKNOWN_TYPE"
)

// ErrorPayload is the data of an error envelope.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Channel string    `json:"channel,omitempty"`
	Type    string    `json:"type,omitempty"`
}
