package room

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/1ureka/heartroom/internal/peer"
	"github.com/1ureka/heartroom/internal/token"
	"github.com/1ureka/heartroom/internal/util"
)

// CreateInvite opens a pending invite and returns its offer link. The
// description step runs without the lock; if the room changes meanwhile the
// invite is discarded. Any failure leaves no pending record behind.
func (r *Room) CreateInvite(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.role != RoleHost {
		r.fail("Create a room before generating invites.")
		r.unlockAndFlush()
		return "", newError("create invite", ErrNotHost)
	}

	inviteID := r.newToken(inviteIDLength)
	for r.records[inviteID] != nil {
		inviteID = r.newToken(inviteIDLength)
	}
	rec := r.addRecord(inviteID, ownerPending)
	roomCode, roomSecret := r.roomCode, r.roomSecret
	r.unlockAndFlush()

	conn, err := r.dialer.Dial(ctx, inviteID, true, r.events(rec))
	if err != nil {
		return "", r.abandonInvite(rec, nil, err)
	}
	if !r.adopt(rec, ownerPending, conn) {
		return "", r.abandonInvite(rec, conn, fmt.Errorf("room changed while preparing invite"))
	}

	desc, err := conn.CreateOffer(ctx)
	if err != nil {
		return "", r.abandonInvite(rec, conn, err)
	}

	r.mu.Lock()
	if rec.owner != ownerPending {
		r.unlockAndFlush()
		return "", r.abandonInvite(rec, conn, fmt.Errorf("room changed while preparing invite"))
	}

	link, err := token.BuildLink(r.linkBase, token.KindOffer, token.Payload{
		V:          token.Version,
		Kind:       token.KindOffer,
		RoomCode:   roomCode,
		RoomSecret: roomSecret,
		InviteID:   inviteID,
		HostID:     r.localPeerID,
		HostName:   r.localName,
		Exp:        r.now().Add(r.ttl).UnixMilli(),
		SDPType:    desc.Type,
		SDP:        desc.SDP,
	})
	if err != nil {
		r.unlockAndFlush()
		return "", r.abandonInvite(rec, conn, err)
	}

	util.LogDebug("invite %s: offer link is %d bytes", inviteID, len(link))
	r.info("Invite " + inviteID + " ready. Send it to your friend.")
	r.unlockAndFlush()
	return link, nil
}

// adopt attaches conn to rec if rec is still held by o.
func (r *Room) adopt(rec *record, o owner, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.owner != o {
		return false
	}
	rec.conn = conn
	return true
}

// abandonInvite rolls back a pending invite after a negotiation failure.
func (r *Room) abandonInvite(rec *record, conn Conn, cause error) error {
	r.mu.Lock()
	switch {
	case rec.owner == ownerPending:
		r.detach(rec)
	case conn != nil && rec.conn != conn:
		r.closing = append(r.closing, conn)
	}
	util.LogError("invite %s: %v", rec.inviteID, cause)
	r.fail("Failed to generate invite link.")
	r.unlockAndFlush()

	return wrapError("create invite", ErrNegotiation, cause.Error())
}

// ApplyAnswer validates a pasted answer link or token and commits the
// matching pending invite to the host peers. Validation failures leave the
// room untouched; a second application of the same answer fails with
// ErrUnknownInvite.
func (r *Room) ApplyAnswer(ctx context.Context, input string) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.role != RoleHost {
		r.fail("Only the host can apply answer links.")
		return newError("apply answer", ErrNotHost)
	}

	raw := token.ExtractToken(input, token.KindAnswer)
	if raw == "" {
		r.fail("Paste an answer link first.")
		return newError("apply answer", &token.HandshakeError{Err: token.ErrMalformedToken, Details: "empty input"})
	}

	p, err := token.DecodeAndValidate(raw, token.KindAnswer, r.now())
	if err != nil {
		r.fail(err.Error())
		return fmt.Errorf("apply answer: %w", err)
	}

	if p.RoomCode != r.roomCode {
		err := wrapError("apply answer", ErrRoomMismatch,
			"Answer is for room "+p.RoomCode+", but host room is "+r.roomCode+".")
		r.fail(userMessage(err))
		return err
	}
	if p.RoomSecret != r.roomSecret {
		err := wrapError("apply answer", ErrSecretMismatch,
			"Answer token secret mismatch. Ask friend to regenerate from latest invite.")
		r.fail(userMessage(err))
		return err
	}

	rec := r.records[p.InviteID]
	if rec == nil || rec.owner != ownerPending || rec.conn == nil {
		err := wrapError("apply answer", ErrUnknownInvite,
			"No pending invite found for this answer. Generate a new invite.")
		r.fail(userMessage(err))
		return err
	}

	if err := rec.conn.SetRemoteDescription(peer.Description{Type: p.SDPType, SDP: p.SDP}); err != nil {
		util.LogError("invite %s: %v", p.InviteID, err)
		r.fail("Could not apply answer link. Generate a fresh invite.")
		return wrapError("apply answer", ErrNegotiation, err.Error())
	}

	// Commit: pending → host. The record is not reachable as pending again.
	rec.owner = ownerHost
	rec.remotePeerID = p.GuestID
	rec.remoteName = cleanName(p.GuestName, cleanName(rec.remoteName, "Friend "+p.InviteID))

	util.LogInfo("Answer applied for invite %s (%s)", p.InviteID, rec.remoteName)
	r.info("Answer applied for invite " + p.InviteID + ". Waiting for channel open...")
	return nil
}

// JoinFromOffer validates an offer link or token, becomes a guest of the
// embedded room and returns the response link for the host. Joining is
// refused while hosting pending or connected peers. A negotiation failure
// returns the room to solo.
func (r *Room) JoinFromOffer(ctx context.Context, input string) (string, error) {
	r.mu.Lock()

	raw := token.ExtractToken(input, token.KindOffer)
	p, err := token.DecodeAndValidate(raw, token.KindOffer, r.now())
	if err != nil {
		r.fail(err.Error())
		r.unlockAndFlush()
		return "", fmt.Errorf("join: %w", err)
	}

	if r.role == RoleHost && len(r.records) > 0 {
		err := wrapError("join", ErrConflict,
			"You are already hosting active participants. Reset room before joining another invite.")
		r.fail(userMessage(err))
		r.unlockAndFlush()
		return "", err
	}

	r.teardownLocked()
	r.role = RoleGuest
	r.roomCode = p.RoomCode
	r.roomSecret = p.RoomSecret
	r.hostID = p.HostID

	rec := r.addRecord(p.InviteID, ownerGuest)
	rec.remotePeerID = p.HostID
	rec.remoteName = cleanName(p.HostName, "Host")

	util.LogInfo("Joining room %s hosted by %s", p.RoomCode, rec.remoteName)
	r.info("Invite detected. Generating response link...")
	r.unlockAndFlush()

	conn, err := r.dialer.Dial(ctx, p.InviteID, false, r.events(rec))
	if err != nil {
		return "", r.abandonJoin(rec, nil, err)
	}
	if !r.adopt(rec, ownerGuest, conn) {
		return "", r.abandonJoin(rec, conn, fmt.Errorf("room changed while joining"))
	}

	if err := conn.SetRemoteDescription(peer.Description{Type: p.SDPType, SDP: p.SDP}); err != nil {
		return "", r.abandonJoin(rec, conn, err)
	}
	desc, err := conn.CreateAnswer(ctx)
	if err != nil {
		return "", r.abandonJoin(rec, conn, err)
	}

	r.mu.Lock()
	if rec.owner != ownerGuest {
		r.unlockAndFlush()
		return "", r.abandonJoin(rec, conn, fmt.Errorf("room changed while joining"))
	}

	link, err := token.BuildLink(r.linkBase, token.KindAnswer, token.Payload{
		V:          token.Version,
		Kind:       token.KindAnswer,
		RoomCode:   p.RoomCode,
		RoomSecret: p.RoomSecret,
		InviteID:   p.InviteID,
		GuestID:    r.localPeerID,
		GuestName:  r.localName,
		Exp:        r.now().Add(r.ttl).UnixMilli(),
		SDPType:    desc.Type,
		SDP:        desc.SDP,
	})
	if err != nil {
		r.unlockAndFlush()
		return "", r.abandonJoin(rec, conn, err)
	}

	r.info("Response link ready for room " + p.RoomCode + ". Send it to host.")
	r.unlockAndFlush()
	return link, nil
}

// abandonJoin drops a half-negotiated guest session and returns to solo,
// unless the room has already moved on.
func (r *Room) abandonJoin(rec *record, conn Conn, cause error) error {
	r.mu.Lock()
	switch {
	case rec.owner == ownerGuest:
		r.resetLocked()
		r.fail("Could not join from invite link: " + cause.Error())
	case conn != nil && rec.conn != conn:
		r.closing = append(r.closing, conn)
	}
	util.LogError("join %s: %v", rec.inviteID, cause)
	r.unlockAndFlush()

	return wrapError("join", ErrNegotiation, cause.Error())
}

// ---------------------------------------------------------------------------
// Inbound links
// ---------------------------------------------------------------------------

// Location is the address inbound handshake links arrive on, the way a
// browser tab's URL would be. It is safe for concurrent use.
type Location struct {
	mu   sync.Mutex
	href string
}

// NewLocation returns a Location pointing at href.
func NewLocation(href string) *Location {
	return &Location{href: href}
}

// Navigate replaces the current address.
func (l *Location) Navigate(href string) {
	l.mu.Lock()
	l.href = strings.TrimSpace(href)
	l.mu.Unlock()
}

// Href returns the current address.
func (l *Location) Href() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.href
}

// Fragment returns the part after '#', without the '#'.
func (l *Location) Fragment() string {
	href := l.Href()
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[i+1:]
	}
	return ""
}

// ClearFragment drops the fragment so the same link is not processed twice.
func (l *Location) ClearFragment() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := strings.IndexByte(l.href, '#'); i >= 0 {
		l.href = l.href[:i]
	}
}

// Outcome reports what ProcessLocation did.
type Outcome struct {
	Kind token.Kind // empty when the fragment carried no handshake
	Link string     // the response link after joining
}

// ProcessLocation handles an offer= or answer= token in the location's
// fragment, then clears the fragment. Offer wins when both are present. An
// answer that arrives while not hosting is reported instead of applied.
func (r *Room) ProcessLocation(ctx context.Context, loc *Location) (Outcome, error) {
	offer, answer := token.ParseFragment(loc.Fragment())
	if offer == "" && answer == "" {
		return Outcome{}, nil
	}
	defer loc.ClearFragment()

	if offer != "" {
		link, err := r.JoinFromOffer(ctx, offer)
		return Outcome{Kind: token.KindOffer, Link: link}, err
	}

	if r.Role() != RoleHost {
		r.mu.Lock()
		r.info("Answer link detected. Paste it into the host room tab.")
		r.unlockAndFlush()
		return Outcome{Kind: token.KindAnswer}, nil
	}
	return Outcome{Kind: token.KindAnswer}, r.ApplyAnswer(ctx, answer)
}
