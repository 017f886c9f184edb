package token

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedToken   = errors.New("malformed handshake token")
	ErrProtocolVersion  = errors.New("unsupported handshake payload version")
	ErrPayloadShape     = errors.New("invalid handshake payload")
	ErrKindMismatch     = errors.New("unexpected handshake kind")
	ErrExpiredHandshake = errors.New("handshake link expired")
)

// HandshakeError describes why a handshake token was rejected. Err is one of
// the sentinels above; Field names the offending payload field when there is one.
type HandshakeError struct {
	Field   string
	Err     error
	Details string
}

func (e *HandshakeError) Error() string {
	switch {
	case e.Field != "" && e.Details != "":
		return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Details)
	case e.Field != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Field)
	case e.Details != "":
		return fmt.Sprintf("%v (%s)", e.Err, e.Details)
	}
	return e.Err.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

func malformed(details string, cause error) *HandshakeError {
	if cause != nil {
		details = fmt.Sprintf("%s: %v", details, cause)
	}
	return &HandshakeError{Err: ErrMalformedToken, Details: details}
}

func shape(field, details string) *HandshakeError {
	return &HandshakeError{Field: field, Err: ErrPayloadShape, Details: details}
}
