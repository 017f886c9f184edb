// Package room implements the heart room: the solo/host/guest state machine,
// the link-based handshake that admits peers, and presence replication over
// the resulting data channels.
package room

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/1ureka/heartroom/internal/protocol"
	"github.com/1ureka/heartroom/internal/util"
)

// Role is the local side's part in the current room.
type Role string

const (
	RoleSolo  Role = "solo"
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

const (
	MaxNameLength = 24
	DefaultName   = "Friend"

	roomCodeLength   = 6
	roomSecretLength = 18
	peerIDLength     = 8
	inviteIDLength   = 8
)

// owner says which collection a record belongs to. A record is reachable
// from exactly one collection; ownerNone means it has been torn down.
type owner int

const (
	ownerNone owner = iota
	ownerPending
	ownerHost
	ownerGuest
)

// record is one invite attempt and its session.
type record struct {
	inviteID string
	ordinal  uint64
	owner    owner
	conn     Conn // nil while the session is being dialed

	remotePeerID string
	remoteName   string
	remoteState  protocol.State
	quality      protocol.Quality
	rttMs        int
}

func (rec *record) channelState() string {
	if rec.conn == nil {
		return "connecting"
	}
	return rec.conn.ChannelState()
}

func (rec *record) isOpen() bool {
	return rec.conn != nil && rec.conn.ChannelState() == "open"
}

// Options configures a Room.
type Options struct {
	Dialer   Dialer
	Names    NameStore // optional
	Observer Observer  // optional

	LinkBase     string
	HandshakeTTL time.Duration

	DisplayName  string // overrides the stored name when non-empty
	InitialState protocol.State

	Now      func() time.Time       // defaults to time.Now
	NewToken func(length int) string // defaults to util.RandomToken
}

// Room is the single room context of this process. All exported methods are
// safe for concurrent use; session callbacks are serialized by mu.
type Room struct {
	dialer   Dialer
	names    NameStore
	observer Observer
	linkBase string
	ttl      time.Duration
	now      func() time.Time
	newToken func(int) string

	mu          sync.Mutex
	role        Role
	roomCode    string
	roomSecret  string
	hostID      string
	localPeerID string
	localName   string
	localState  protocol.State

	records     map[string]*record
	nextOrdinal uint64
	snapshot    *protocol.Snapshot // last applied host snapshot (guest)
	seq         *protocol.SeqGen

	// Work deferred until the lock is released.
	closing []Conn
	notes   []Note
	viewGen uint64 // stamps each flushed view, under mu

	notifyMu    sync.Mutex // orders observer calls across flushes
	renderedGen uint64     // newest view handed to the observer, under notifyMu
}

// New creates a solo room with a fresh local peer id.
func New(opts Options) *Room {
	r := &Room{
		dialer:   opts.Dialer,
		names:    opts.Names,
		observer: opts.Observer,
		linkBase: opts.LinkBase,
		ttl:      opts.HandshakeTTL,
		now:      opts.Now,
		newToken: opts.NewToken,
		role:     RoleSolo,
		records:  make(map[string]*record),
		seq:      protocol.NewSeqGen(),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newToken == nil {
		r.newToken = util.RandomToken
	}
	if r.ttl <= 0 {
		r.ttl = 10 * time.Minute
	}

	r.localPeerID = r.newToken(peerIDLength)
	r.localState = protocol.StateIdle
	if opts.InitialState != "" {
		r.localState = protocol.NormalizeState(string(opts.InitialState))
	}

	name := opts.DisplayName
	if name == "" && r.names != nil {
		stored, err := r.names.LoadName()
		if err != nil {
			util.LogWarning("Could not read saved display name: %v", err)
		}
		name = stored
	}
	r.localName = cleanName(name, DefaultName)

	return r
}

// cleanName trims and clamps a display name, returning fallback when empty.
func cleanName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	if name == "" {
		return fallback
	}
	return name
}

// ---------------------------------------------------------------------------
// Lock discipline
// ---------------------------------------------------------------------------

// unlockAndFlush releases mu, then closes detached connections and notifies
// the observer with the queued notes and a fresh projection.
func (r *Room) unlockAndFlush() {
	closing, notes := r.closing, r.notes
	r.closing, r.notes = nil, nil
	r.viewGen++
	gen, view := r.viewGen, r.viewLocked()
	r.mu.Unlock()

	for _, c := range closing {
		if err := c.Close(); err != nil {
			util.LogDebug("close session: %v", err)
		}
	}

	r.notify(gen, notes, view)
}

// notify delivers notes and view to the observer. Flushes race once mu is
// released, so a view older than the last one rendered is dropped; notes are
// always delivered.
func (r *Room) notify(gen uint64, notes []Note, view View) {
	if r.observer == nil {
		return
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	for _, n := range notes {
		r.observer.Status(n)
	}
	if gen <= r.renderedGen {
		return
	}
	r.renderedGen = gen
	r.observer.Render(view)
}

func (r *Room) info(text string) {
	r.notes = append(r.notes, Note{Text: text})
}

func (r *Room) fail(text string) {
	r.notes = append(r.notes, Note{Text: text, Error: true})
}

// ---------------------------------------------------------------------------
// Arena
// ---------------------------------------------------------------------------

func (r *Room) addRecord(inviteID string, o owner) *record {
	r.nextOrdinal++
	rec := &record{
		inviteID:    inviteID,
		ordinal:     r.nextOrdinal,
		owner:       o,
		remoteState: protocol.StateWaiting,
		quality:     protocol.QualityUnknown,
	}
	r.records[inviteID] = rec
	return rec
}

// detach removes rec from its collection and schedules its connection for
// closing. Detaching twice is a no-op.
func (r *Room) detach(rec *record) {
	if rec.owner == ownerNone {
		return
	}
	rec.owner = ownerNone
	rec.quality, rec.rttMs = protocol.QualityUnknown, 0
	if r.records[rec.inviteID] == rec {
		delete(r.records, rec.inviteID)
	}
	if rec.conn != nil {
		r.closing = append(r.closing, rec.conn)
	}
}

// teardownLocked detaches every record and drops the cached snapshot.
func (r *Room) teardownLocked() {
	for _, rec := range r.records {
		r.detach(rec)
	}
	r.snapshot = nil
}

// owned returns the records held by o in insertion order.
func (r *Room) owned(o owner) []*record {
	var out []*record
	for _, rec := range r.records {
		if rec.owner == o {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b *record) int { return cmp.Compare(a.ordinal, b.ordinal) })
	return out
}

func (r *Room) inviteIDs(o owner) []string {
	var ids []string
	for _, rec := range r.owned(o) {
		ids = append(ids, rec.inviteID)
	}
	return ids
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

// Role returns the current role.
func (r *Room) Role() Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role
}

// Pending returns the invite ids awaiting an answer.
func (r *Room) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inviteIDs(ownerPending)
}

// HostPeers returns the invite ids whose answer has been applied.
func (r *Room) HostPeers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inviteIDs(ownerHost)
}

// GuestPeer returns the invite id of the session to the host, or "".
func (r *Room) GuestPeer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ids := r.inviteIDs(ownerGuest); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// LocalPeerID returns this process's peer id.
func (r *Room) LocalPeerID() string {
	return r.localPeerID
}

// ---------------------------------------------------------------------------
// Role transitions
// ---------------------------------------------------------------------------

// CreateRoom tears down every session and starts hosting a fresh room.
// It returns the new room code.
func (r *Room) CreateRoom() string {
	r.mu.Lock()
	defer r.unlockAndFlush()

	r.teardownLocked()
	r.role = RoleHost
	r.roomCode = r.newToken(roomCodeLength)
	r.roomSecret = r.newToken(roomSecretLength)
	r.hostID = r.localPeerID
	r.seq = protocol.NewSeqGen()

	util.LogInfo("Hosting room %s", r.roomCode)
	r.info("Room " + r.roomCode + " ready. Generate an invite link.")
	return r.roomCode
}

// Reset tears down every session and returns to solo.
func (r *Room) Reset() {
	r.mu.Lock()
	defer r.unlockAndFlush()

	r.resetLocked()
	r.info("No active WebRTC room.")
}

func (r *Room) resetLocked() {
	r.teardownLocked()
	r.role = RoleSolo
	r.roomCode = ""
	r.roomSecret = ""
	r.hostID = ""
}
