package room

import (
	"fmt"

	"github.com/1ureka/heartroom/internal/peer"
	"github.com/1ureka/heartroom/internal/protocol"
	"github.com/1ureka/heartroom/internal/util"
)

// events binds session callbacks to rec. Callbacks for a record that has
// been detached are ignored.
func (r *Room) events(rec *record) peer.Events {
	return peer.Events{
		OnOpen:    func() { r.handleOpen(rec) },
		OnMessage: func(data []byte) { r.handleMessage(rec, data) },
		OnClose:   func() { r.handleClose(rec) },
		OnFailed:  func() { r.handleFailed(rec) },
		OnQuality: func(q protocol.Quality, rttMs int) { r.handleQuality(rec, q, rttMs) },
	}
}

func (r *Room) handleOpen(rec *record) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if rec.owner == ownerNone {
		return
	}

	r.send(rec, r.helloLocked())
	r.send(rec, r.presenceLocked())

	if r.role == RoleHost {
		r.info("Participant connected in room " + r.roomCode + ".")
		r.broadcastLocked()
	} else {
		r.info("Connected to host in room " + r.roomCode + ".")
	}
}

func (r *Room) handleMessage(rec *record, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		util.Stats.AddDropped()
		util.LogWarning("invite %s: ignoring message: %v", rec.inviteID, err)
		return
	}

	r.mu.Lock()
	defer r.unlockAndFlush()

	if rec.owner == ownerNone {
		return
	}

	switch m := msg.(type) {
	case protocol.Hello:
		if m.PeerID != "" {
			rec.remotePeerID = m.PeerID
			if rec.owner == ownerGuest {
				r.hostID = m.PeerID
			}
		}
		rec.remoteName = cleanName(m.Name, rec.remoteName)
		r.broadcastLocked()

	case protocol.Presence:
		rec.remoteState = protocol.NormalizeState(string(m.State))
		r.broadcastLocked()

	case protocol.RoomState:
		if rec.owner != ownerGuest {
			util.LogWarning("invite %s: ignoring room-state from a guest", rec.inviteID)
			return
		}
		snap := m.Snapshot
		if snap.RoomCode != "" && snap.RoomCode != r.roomCode {
			util.LogWarning("ignoring snapshot for room %s", snap.RoomCode)
			return
		}
		if !snap.Supersedes(r.snapshot) {
			util.LogDebug("ignoring stale snapshot seq=%d", snap.Seq)
			return
		}
		r.snapshot = &snap

	case protocol.Unknown:
		util.LogDebug("invite %s: ignoring %q message", rec.inviteID, m.Tag)
	}
}

func (r *Room) handleClose(rec *record) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if rec.owner == ownerNone {
		return
	}
	wasGuest := rec.owner == ownerGuest
	r.detach(rec)

	if wasGuest {
		util.LogWarning("Connection to host closed")
		r.fail("Connection to host closed.")
		return
	}
	r.info("A participant disconnected.")
	r.broadcastLocked()
}

func (r *Room) handleFailed(rec *record) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if rec.owner == ownerNone {
		return
	}
	r.detach(rec)

	util.LogError("invite %s: WebRTC connection failed", rec.inviteID)
	r.fail("WebRTC connection failed. Generate a fresh invite.")
	r.broadcastLocked()
}

func (r *Room) handleQuality(rec *record, q protocol.Quality, rttMs int) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if rec.owner == ownerNone {
		return
	}
	rec.quality, rec.rttMs = q, rttMs
	util.LogDebug("invite %s: link quality %s (%d ms)", rec.inviteID, q, rttMs)
	r.broadcastLocked()
}

// ---------------------------------------------------------------------------
// Local changes
// ---------------------------------------------------------------------------

// SetLocalState is the entry point for the local presence detector. The
// value is normalized; an unchanged state is a no-op.
func (r *Room) SetLocalState(state string) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	next := protocol.NormalizeState(state)
	if next == r.localState {
		return
	}
	r.localState = next

	msg := r.presenceLocked()
	for _, rec := range r.connected() {
		r.send(rec, msg)
	}
	r.broadcastLocked()
}

// SetDisplayName clamps and stores the local display name, re-announces it
// to connected peers and returns the name in effect.
func (r *Room) SetDisplayName(name string) string {
	r.mu.Lock()
	r.localName = cleanName(name, DefaultName)
	clean := r.localName

	msg := r.helloLocked()
	for _, rec := range r.connected() {
		r.send(rec, msg)
	}
	r.broadcastLocked()
	r.unlockAndFlush()

	if r.names != nil {
		if err := r.names.SaveName(clean); err != nil {
			util.LogWarning("Could not persist display name: %v", err)
		}
	}
	return clean
}

// LocalState returns the current local presence.
func (r *Room) LocalState() protocol.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.localState
}

// ---------------------------------------------------------------------------
// Wire
// ---------------------------------------------------------------------------

// connected returns the host or guest records whose channel is open.
func (r *Room) connected() []*record {
	var out []*record
	for _, o := range []owner{ownerHost, ownerGuest} {
		for _, rec := range r.owned(o) {
			if rec.isOpen() {
				out = append(out, rec)
			}
		}
	}
	return out
}

func (r *Room) helloLocked() protocol.Message {
	return protocol.Hello{
		PeerID:   r.localPeerID,
		Name:     r.localName,
		RoomCode: r.roomCode,
		Role:     string(r.role),
		At:       r.now().UnixMilli(),
	}
}

func (r *Room) presenceLocked() protocol.Message {
	return protocol.Presence{State: r.localState, At: r.now().UnixMilli()}
}

// send enqueues msg on rec's session. It never blocks.
func (r *Room) send(rec *record, msg protocol.Message) {
	if rec.conn == nil {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		util.LogError("encode %s: %v", msg.Type(), err)
		return
	}
	rec.conn.Send(data)
}

// broadcastLocked rebuilds the snapshot and pushes it to every open host
// peer. It does nothing unless hosting.
func (r *Room) broadcastLocked() {
	if r.role != RoleHost {
		return
	}

	snap := r.snapshotLocked()
	data, err := protocol.Encode(protocol.RoomState{Snapshot: snap})
	if err != nil {
		util.LogError("encode snapshot: %v", err)
		return
	}

	for _, rec := range r.owned(ownerHost) {
		if rec.isOpen() {
			rec.conn.Send(data)
		}
	}
}

// snapshotLocked builds the host-authoritative room snapshot.
func (r *Room) snapshotLocked() protocol.Snapshot {
	participants := []protocol.Participant{r.hostParticipantLocked()}
	for _, rec := range r.owned(ownerHost) {
		participants = append(participants, remoteParticipant(rec))
	}

	return protocol.Snapshot{
		RoomCode:     r.roomCode,
		Participants: participants,
		UpdatedAt:    r.now().UnixMilli(),
		Seq:          r.seq.Next(),
	}
}

func (r *Room) hostParticipantLocked() protocol.Participant {
	return protocol.Participant{
		ID:      r.localPeerID,
		Name:    r.localName + " (Host)",
		State:   r.localState,
		Status:  "open",
		Quality: protocol.QualityUnknown,
		Hint:    "room host",
	}
}

func remoteParticipant(rec *record) protocol.Participant {
	id := rec.remotePeerID
	if id == "" {
		id = rec.inviteID
	}
	name := rec.remoteName
	if name == "" {
		name = "Friend " + rec.inviteID
	}
	return protocol.Participant{
		ID:      id,
		Name:    name,
		State:   protocol.NormalizeState(string(rec.remoteState)),
		Status:  rec.channelState(),
		Quality: rec.quality,
		RTTMs:   rec.rttMs,
		Hint:    qualityHint(rec.quality, rec.rttMs),
	}
}

// qualityHint describes a link for display.
func qualityHint(q protocol.Quality, rttMs int) string {
	if q == "" || q == protocol.QualityUnknown {
		return "measuring link"
	}
	return fmt.Sprintf("%s link, %d ms", q, rttMs)
}
