// Package token encodes and validates the handshake payloads that travel
// inside offer and answer links.
package token

// Version is the only handshake payload version this build accepts.
const Version = 1

// Kind is the handshake direction.
type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
)

// Payload is the handshake message embedded in a link. Possession of
// RoomSecret is the only proof of membership; there is no signature.
type Payload struct {
	V          int    `json:"v"`
	Kind       Kind   `json:"kind"`
	RoomCode   string `json:"roomCode"`
	RoomSecret string `json:"roomSecret"`
	InviteID   string `json:"inviteId"`
	HostID     string `json:"hostId,omitempty"`
	HostName   string `json:"hostName,omitempty"`
	GuestID    string `json:"guestId,omitempty"`
	GuestName  string `json:"guestName,omitempty"`
	Exp        int64  `json:"exp"` // unix milliseconds
	SDPType    string `json:"sdpType,omitempty"`
	SDP        string `json:"sdp"`
}
