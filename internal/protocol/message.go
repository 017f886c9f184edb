package protocol

// MessageType is the "type" tag of a data-channel message.
type MessageType string

const (
	TypeHello     MessageType = "hello"
	TypePresence  MessageType = "heart-state"
	TypeRoomState MessageType = "room-state"
)

// Message is the closed set of data-channel messages. Receivers switch on
// the concrete type: Hello, Presence, RoomState or Unknown.
type Message interface {
	Type() MessageType
	message()
}

// Hello announces the sender's identity. Sent on channel open and whenever
// the display name changes.
type Hello struct {
	PeerID   string `json:"peerId"`
	Name     string `json:"name"`
	RoomCode string `json:"roomCode"`
	Role     string `json:"role"`
	At       int64  `json:"at"`
}

// Presence carries the sender's current presence state.
type Presence struct {
	State State `json:"state"`
	At    int64 `json:"at"`
}

// RoomState carries a host snapshot. Only hosts send it.
type RoomState struct {
	Snapshot Snapshot `json:"snapshot"`
}

// Unknown is a well-formed message with a tag this build does not know.
type Unknown struct {
	Tag string
}

func (Hello) Type() MessageType     { return TypeHello }
func (Presence) Type() MessageType  { return TypePresence }
func (RoomState) Type() MessageType { return TypeRoomState }
func (u Unknown) Type() MessageType { return MessageType(u.Tag) }

func (Hello) message()     {}
func (Presence) message()  {}
func (RoomState) message() {}
func (Unknown) message()   {}
