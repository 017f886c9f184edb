// Package feed serves the room projection to a local page over a loopback
// WebSocket, and accepts presence changes and handshake links back from it.
package feed

import "github.com/1ureka/heartroom/internal/room"

// MessageType identifies a feed message.
type MessageType string

const (
	// server → page
	TypeView   MessageType = "view"
	TypeStatus MessageType = "status"
	TypeLink   MessageType = "link"

	// page → server
	TypeHeartState MessageType = "heart-state"
	TypeNavigate   MessageType = "navigate"
)

// Message is the JSON structure exchanged over the feed socket.
type Message struct {
	Type   MessageType `json:"type"`
	View   *room.View  `json:"view,omitempty"`
	Status *room.Note  `json:"status,omitempty"`
	Link   string      `json:"link,omitempty"`
	State  string      `json:"state,omitempty"`
	URL    string      `json:"url,omitempty"`
}
