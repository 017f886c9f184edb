package room

import (
	"fmt"

	"github.com/1ureka/heartroom/internal/protocol"
)

// View is the projection handed to renderers.
type View struct {
	Role         Role                   `json:"role"`
	RoomCode     string                 `json:"roomCode"`
	LocalPeerID  string                 `json:"localPeerId"`
	LocalName    string                 `json:"localName"`
	LocalState   protocol.State         `json:"localState"`
	Connected    bool                   `json:"connected"`
	Summary      string                 `json:"summary"`
	Participants []protocol.Participant `json:"participants"`
}

// View returns the current projection.
func (r *Room) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

func (r *Room) viewLocked() View {
	v := View{
		Role:        r.role,
		RoomCode:    r.roomCode,
		LocalPeerID: r.localPeerID,
		LocalName:   r.localName,
		LocalState:  r.localState,
	}

	switch r.role {
	case RoleHost:
		v.Participants, v.Connected, v.Summary = r.hostViewLocked()
	case RoleGuest:
		v.Participants, v.Connected, v.Summary = r.guestViewLocked()
	default:
		v.Participants = []protocol.Participant{r.localParticipantLocked("local")}
		v.Summary = "Participants: just you."
	}
	return v
}

func (r *Room) localParticipantLocked(status string) protocol.Participant {
	return protocol.Participant{
		ID:      r.localPeerID,
		Name:    r.localName + " (You)",
		State:   r.localState,
		Status:  status,
		Quality: protocol.QualityUnknown,
	}
}

func (r *Room) hostViewLocked() ([]protocol.Participant, bool, string) {
	participants := []protocol.Participant{r.hostParticipantLocked()}

	open, hearts := 0, 0
	for _, rec := range r.owned(ownerHost) {
		p := remoteParticipant(rec)
		if p.Status == "open" {
			open++
		}
		if p.State == protocol.StateHeart {
			hearts++
		}
		participants = append(participants, p)
	}

	pending := r.owned(ownerPending)
	for _, rec := range pending {
		name := rec.remoteName
		if name == "" {
			name = "Invite " + rec.inviteID
		}
		participants = append(participants, protocol.Participant{
			ID:      rec.inviteID,
			Name:    name,
			State:   protocol.StatePending,
			Status:  "awaiting answer",
			Quality: protocol.QualityUnknown,
		})
	}

	summary := fmt.Sprintf("Room %s: %d connected, %d remote heart(s), %d pending invite(s).",
		r.roomCode, open+1, hearts, len(pending))
	return participants, open > 0, summary
}

func (r *Room) guestViewLocked() ([]protocol.Participant, bool, string) {
	var hostRec *record
	if recs := r.owned(ownerGuest); len(recs) > 0 {
		hostRec = recs[0]
	}

	var participants []protocol.Participant
	if r.snapshot != nil {
		for _, p := range r.snapshot.Participants {
			if p.ID == "" {
				p.ID = r.newToken(4)
			}
			if p.Name == "" {
				p.Name = DefaultName
			}
			if p.Status == "" {
				p.Status = "open"
			}
			p.State = protocol.NormalizeState(string(p.State))
			participants = append(participants, p)
		}
	} else {
		participants = append(participants, r.localParticipantLocked("local"))

		host := protocol.Participant{
			ID:      r.hostID,
			Name:    "Host",
			State:   protocol.StateWaiting,
			Status:  "connecting",
			Quality: protocol.QualityUnknown,
		}
		if host.ID == "" {
			host.ID = "HOST"
		}
		if hostRec != nil {
			host.Name = hostRec.remoteName + " (Host)"
			host.State = protocol.NormalizeState(string(hostRec.remoteState))
			host.Status = hostRec.channelState()
		}
		participants = append(participants, host)
	}

	hasLocal, remoteHearts := false, 0
	for i, p := range participants {
		if p.ID == r.localPeerID {
			hasLocal = true
			continue
		}
		if p.State == protocol.StateHeart {
			remoteHearts++
		}
		// The guest measures its own link to the host.
		if hostRec != nil && p.ID == r.hostID {
			participants[i].Quality = hostRec.quality
			participants[i].RTTMs = hostRec.rttMs
			participants[i].Hint = qualityHint(hostRec.quality, hostRec.rttMs)
		}
	}
	if !hasLocal {
		participants = append(participants, r.localParticipantLocked("open"))
	}

	connected := hostRec != nil && hostRec.isOpen()
	if connected {
		return participants, true, fmt.Sprintf("Connected to room %s. Remote heart(s): %d.", r.roomCode, remoteHearts)
	}
	return participants, false, fmt.Sprintf("Room %s: response ready, waiting for host to apply it.", r.roomCode)
}
