package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

func validOffer() Payload {
	return Payload{
		V:          Version,
		Kind:       KindOffer,
		RoomCode:   "AB12CD",
		RoomSecret: "SECRETSECRETSECRET",
		InviteID:   "INV12345",
		HostID:     "HOSTPEER",
		HostName:   "Aino",
		Exp:        testNow.Add(10 * time.Minute).UnixMilli(),
		SDPType:    "offer",
		SDP:        "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\n",
	}
}

func mustEncode(t *testing.T, p Payload) string {
	t.Helper()
	tok, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return tok
}

// TestEncodeDecodeRoundTrip verifies that Decode is the exact inverse of Encode.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	answer := validOffer()
	answer.Kind = KindAnswer
	answer.HostID, answer.HostName = "", ""
	answer.GuestID, answer.GuestName = "GUESTPR", "Väinö ❤"
	answer.SDPType = "answer"

	testCases := []struct {
		name string
		p    Payload
	}{
		{"offer", validOffer()},
		{"answer with non-ASCII name", answer},
		{"zero payload", Payload{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tok := mustEncode(t, tc.p)
			if strings.ContainsAny(tok, "+/=") {
				t.Errorf("token %q is not base64url without padding", tok)
			}

			got, err := Decode(tok)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tc.p {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tc.p)
			}
		})
	}
}

func TestDecodeToleratesPastedForms(t *testing.T) {
	p := validOffer()
	tok := mustEncode(t, p)

	std := base64.StdEncoding.EncodeToString([]byte(mustJSON(t, tok)))
	testCases := []struct {
		name string
		raw  string
	}{
		{"surrounding whitespace", "  " + tok + "\n"},
		{"standard alphabet with padding", std},
		{"percent escaped", strings.ReplaceAll(tok, "_", "%5F")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.raw)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != p {
				t.Errorf("got %+v, want %+v", got, p)
			}
		})
	}
}

// mustJSON returns the JSON text inside a token.
func mustJSON(t *testing.T, tok string) string {
	t.Helper()
	data, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestDecodeMalformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not base64", "!!!not-a-token!!!"},
		{"base64 of non-JSON", base64.RawURLEncoding.EncodeToString([]byte("hello there"))},
		{"truncated JSON", base64.RawURLEncoding.EncodeToString([]byte(`{"v":1,"kind":`))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.raw)
			if !errors.Is(err, ErrMalformedToken) {
				t.Fatalf("err = %v, want ErrMalformedToken", err)
			}
			var hsErr *HandshakeError
			if !errors.As(err, &hsErr) {
				t.Fatalf("err %T is not *HandshakeError", err)
			}
		})
	}
}

func TestDecodeShapeErrors(t *testing.T) {
	testCases := []struct {
		name  string
		json  string
		field string
	}{
		{"array", `[1,2,3]`, "payload"},
		{"string", `"offer"`, "payload"},
		{"null", `null`, "payload"},
		{"room code is a number", `{"v":1,"kind":"offer","roomCode":42}`, "roomCode"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(base64.RawURLEncoding.EncodeToString([]byte(tc.json)))
			var hsErr *HandshakeError
			if !errors.As(err, &hsErr) || !errors.Is(err, ErrPayloadShape) {
				t.Fatalf("err = %v, want ErrPayloadShape", err)
			}
			if hsErr.Field != tc.field {
				t.Errorf("Field = %q, want %q", hsErr.Field, tc.field)
			}
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Payload)
		kind   Kind
		want   error
		field  string
	}{
		{"valid offer", func(*Payload) {}, KindOffer, nil, ""},
		{"wrong version", func(p *Payload) { p.V = 2 }, KindOffer, ErrProtocolVersion, "v"},
		{"answer expected", func(*Payload) {}, KindAnswer, ErrKindMismatch, "kind"},
		{"missing kind", func(p *Payload) { p.Kind = "" }, KindOffer, ErrKindMismatch, "kind"},
		{"missing room code", func(p *Payload) { p.RoomCode = "" }, KindOffer, ErrPayloadShape, "roomCode"},
		{"missing secret", func(p *Payload) { p.RoomSecret = "  " }, KindOffer, ErrPayloadShape, "roomSecret"},
		{"missing invite", func(p *Payload) { p.InviteID = "" }, KindOffer, ErrPayloadShape, "inviteId"},
		{"missing sdp", func(p *Payload) { p.SDP = "" }, KindOffer, ErrPayloadShape, "sdp"},
		{"missing exp", func(p *Payload) { p.Exp = 0 }, KindOffer, ErrPayloadShape, "exp"},
		{"expired", func(p *Payload) { p.Exp = testNow.Add(-time.Millisecond).UnixMilli() }, KindOffer, ErrExpiredHandshake, "exp"},
		{"expires exactly now", func(p *Payload) { p.Exp = testNow.UnixMilli() }, KindOffer, nil, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := validOffer()
			tc.mutate(&p)

			got, err := DecodeAndValidate(mustEncode(t, p), tc.kind, testNow)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != p {
					t.Errorf("payload = %+v, want %+v", got, p)
				}
				return
			}

			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			var hsErr *HandshakeError
			if !errors.As(err, &hsErr) {
				t.Fatalf("err %T is not *HandshakeError", err)
			}
			if hsErr.Field != tc.field {
				t.Errorf("Field = %q, want %q", hsErr.Field, tc.field)
			}
		})
	}
}

// TestExpiredAlwaysRejected checks that a past exp is rejected for any
// combination of otherwise valid payloads.
func TestExpiredAlwaysRejected(t *testing.T) {
	for _, kind := range []Kind{KindOffer, KindAnswer} {
		for _, age := range []time.Duration{time.Millisecond, time.Minute, 365 * 24 * time.Hour} {
			p := validOffer()
			p.Kind = kind
			p.Exp = testNow.Add(-age).UnixMilli()

			_, err := DecodeAndValidate(mustEncode(t, p), kind, testNow)
			if !errors.Is(err, ErrExpiredHandshake) {
				t.Errorf("kind=%s age=%v: err = %v, want ErrExpiredHandshake", kind, age, err)
			}
		}
	}
}

func TestHandshakeErrorMessage(t *testing.T) {
	err := &HandshakeError{Field: "kind", Err: ErrKindMismatch, Details: "expected offer payload, received answer"}
	want := "unexpected handshake kind: kind: expected offer payload, received answer"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
