// Package protocol defines the presence vocabulary and the messages exchanged
// over a room data channel.
package protocol

// State is a participant's presence as reported by its local detector.
type State string

const (
	StateIdle    State = "idle"
	StateWaiting State = "waiting"
	StateFriend  State = "friend"
	StateHeart   State = "heart"

	// StatePending is a projection-only value for invites that have not been
	// answered yet. It is never sent as presence.
	StatePending State = "pending"
)

// Valid reports whether s is one of the four presence states.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateWaiting, StateFriend, StateHeart:
		return true
	}
	return false
}

// NormalizeState maps any out-of-range input to StateWaiting.
func NormalizeState(v string) State {
	if s := State(v); s.Valid() {
		return s
	}
	return StateWaiting
}

// Quality classifies a link by the round-trip time of its best candidate pair.
type Quality string

const (
	QualityExcellent Quality = "excellent" // <= 80ms
	QualityGood      Quality = "good"      // <= 170ms
	QualityFair      Quality = "fair"      // <= 320ms
	QualityPoor      Quality = "poor"
	QualityUnknown   Quality = "unknown"
)

// ClassifyRTT maps a round-trip time in milliseconds to a Quality.
// Negative values mean "no measurement".
func ClassifyRTT(ms float64) Quality {
	switch {
	case ms < 0:
		return QualityUnknown
	case ms <= 80:
		return QualityExcellent
	case ms <= 170:
		return QualityGood
	case ms <= 320:
		return QualityFair
	default:
		return QualityPoor
	}
}
