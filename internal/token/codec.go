package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Encode serializes a payload into a URL-fragment-safe token: UTF-8 JSON in
// the base64url alphabet without padding.
func Encode(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode handshake payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode is the inverse of Encode. It tolerates percent-escaping, trailing
// padding and the standard base64 alphabet, since tokens are often pasted
// through chat clients that mangle them.
func Decode(raw string) (Payload, error) {
	s := strings.TrimSpace(raw)
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	if s == "" {
		return Payload{}, malformed("empty token", nil)
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Payload{}, malformed("not base64url", err)
	}
	if !json.Valid(data) {
		return Payload{}, malformed("not JSON", nil)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return Payload{}, shape("payload", "not a JSON object")
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Payload{}, shape(typeErr.Field, fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value))
		}
		return Payload{}, malformed("not a handshake payload", err)
	}
	return p, nil
}

// DecodeAndValidate decodes raw and checks version, direction, required
// fields and expiry, in that order. The returned error is always a
// *HandshakeError.
func DecodeAndValidate(raw string, kind Kind, now time.Time) (Payload, error) {
	p, err := Decode(raw)
	if err != nil {
		return Payload{}, err
	}

	if p.V != Version {
		return Payload{}, &HandshakeError{
			Field:   "v",
			Err:     ErrProtocolVersion,
			Details: fmt.Sprintf("got %d, want %d", p.V, Version),
		}
	}
	if p.Kind != kind {
		received := string(p.Kind)
		if received == "" {
			received = "unknown"
		}
		return Payload{}, &HandshakeError{
			Field:   "kind",
			Err:     ErrKindMismatch,
			Details: fmt.Sprintf("expected %s payload, received %s", kind, received),
		}
	}

	required := []struct {
		field string
		value string
	}{
		{"roomCode", p.RoomCode},
		{"roomSecret", p.RoomSecret},
		{"inviteId", p.InviteID},
		{"sdp", p.SDP},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Payload{}, shape(r.field, "missing")
		}
	}
	if p.Exp <= 0 {
		return Payload{}, shape("exp", "missing")
	}

	if now.UnixMilli() > p.Exp {
		return Payload{}, &HandshakeError{
			Field:   "exp",
			Err:     ErrExpiredHandshake,
			Details: "expired at " + time.UnixMilli(p.Exp).UTC().Format(time.RFC3339),
		}
	}

	return p, nil
}
