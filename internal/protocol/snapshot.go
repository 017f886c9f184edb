package protocol

// Participant is one row of a room snapshot.
type Participant struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	State   State   `json:"state"`
	Status  string  `json:"status"`
	Quality Quality `json:"quality"`
	RTTMs   int     `json:"rttMs"`
	Hint    string  `json:"hint"`
}

// Snapshot is the host-authoritative view of the room. Seq increases with
// every snapshot a host builds, so guests can discard ones that arrive late.
type Snapshot struct {
	RoomCode     string        `json:"roomCode"`
	Participants []Participant `json:"participants"`
	UpdatedAt    int64         `json:"updatedAt"` // unix milliseconds
	Seq          uint64        `json:"seq,omitempty"`
}

// Supersedes reports whether s should replace prev. Snapshots from peers
// that do not stamp Seq fall back to UpdatedAt ordering.
func (s *Snapshot) Supersedes(prev *Snapshot) bool {
	if prev == nil {
		return true
	}
	if s.Seq > 0 && prev.Seq > 0 {
		return s.Seq > prev.Seq
	}
	return s.UpdatedAt >= prev.UpdatedAt
}
