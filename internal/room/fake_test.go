package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/1ureka/heartroom/internal/peer"
	"github.com/1ureka/heartroom/internal/protocol"
	"github.com/1ureka/heartroom/internal/util"
)

func init() {
	util.SetLogOutput(io.Discard)
}

// Compile-time interface checks.
var (
	_ Dialer = (*fakeDialer)(nil)
	_ Conn   = (*fakeConn)(nil)
)

// fakeNet pairs fake sessions through the descriptions they exchange. An
// answer produced for an offer links the two conns once the initiator
// applies it, after which both sides open.
type fakeNet struct {
	mu      sync.Mutex
	n       int
	offers  map[string]*fakeConn
	answers map[string]*fakeConn
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		offers:  make(map[string]*fakeConn),
		answers: make(map[string]*fakeConn),
	}
}

func (n *fakeNet) register(m map[string]*fakeConn, kind string, c *fakeConn) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.n++
	sdp := fmt.Sprintf("v=0 fake-%s %s %d", kind, c.inviteID, n.n)
	m[sdp] = c
	return sdp
}

func (n *fakeNet) lookup(m map[string]*fakeConn, sdp string) *fakeConn {
	n.mu.Lock()
	defer n.mu.Unlock()
	return m[sdp]
}

// fakeDialer creates fakeConns and remembers them by invite id.
type fakeDialer struct {
	net *fakeNet

	mu         sync.Mutex
	conns      map[string]*fakeConn
	dialErr    error
	offerErr   error
	answerErr  error
	offerGate  chan struct{} // when set, CreateOffer blocks until it is closed
	offerStart chan string   // when set, receives the invite id as CreateOffer starts
}

func newFakeDialer(n *fakeNet) *fakeDialer {
	return &fakeDialer{net: n, conns: make(map[string]*fakeConn)}
}

func (d *fakeDialer) Dial(ctx context.Context, inviteID string, initiator bool, events peer.Events) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := &fakeConn{
		dialer:    d,
		inviteID:  inviteID,
		initiator: initiator,
		events:    events,
		queue:     make(chan func(), 1024),
		done:      make(chan struct{}),
		state:     "connecting",
	}
	go c.loop()
	d.conns[inviteID] = c
	return c, nil
}

func (d *fakeDialer) conn(inviteID string) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[inviteID]
}

// fakeConn is an in-memory session. Events are delivered in order on the
// conn's own goroutine, like callbacks on a real data channel.
type fakeConn struct {
	dialer    *fakeDialer
	inviteID  string
	initiator bool
	events    peer.Events

	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	state     string
	remote    *fakeConn
	described bool
	sent      [][]byte
}

func (c *fakeConn) loop() {
	for {
		select {
		case fn := <-c.queue:
			select {
			case <-c.done:
				return
			default:
			}
			fn()
		case <-c.done:
			return
		}
	}
}

func (c *fakeConn) enqueue(fn func()) {
	select {
	case c.queue <- fn:
	default:
	}
}

func (c *fakeConn) describe(ctx context.Context, kind string) error {
	d := c.dialer
	d.mu.Lock()
	gate, start := d.offerGate, d.offerStart
	offerErr, answerErr := d.offerErr, d.answerErr
	d.mu.Unlock()

	if kind == "offer" {
		if start != nil {
			start <- c.inviteID
		}
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if offerErr != nil {
			return offerErr
		}
	} else if answerErr != nil {
		return answerErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.described {
		return peer.ErrAlreadyDescribed
	}
	if c.state == "closed" {
		return peer.ErrClosed
	}
	c.described = true
	return nil
}

func (c *fakeConn) CreateOffer(ctx context.Context) (peer.Description, error) {
	if err := c.describe(ctx, "offer"); err != nil {
		return peer.Description{}, err
	}
	return peer.Description{Type: "offer", SDP: c.dialer.net.register(c.dialer.net.offers, "offer", c)}, nil
}

func (c *fakeConn) CreateAnswer(ctx context.Context) (peer.Description, error) {
	c.mu.Lock()
	hasRemote := c.remote != nil
	c.mu.Unlock()
	if !hasRemote {
		return peer.Description{}, errors.New("no remote offer")
	}
	if err := c.describe(ctx, "answer"); err != nil {
		return peer.Description{}, err
	}
	return peer.Description{Type: "answer", SDP: c.dialer.net.register(c.dialer.net.answers, "answer", c)}, nil
}

func (c *fakeConn) SetRemoteDescription(d peer.Description) error {
	if !c.initiator {
		host := c.dialer.net.lookup(c.dialer.net.offers, d.SDP)
		if host == nil || d.Type != "offer" {
			return errors.New("unknown offer")
		}
		c.mu.Lock()
		c.remote = host
		c.mu.Unlock()
		return nil
	}

	guest := c.dialer.net.lookup(c.dialer.net.answers, d.SDP)
	if guest == nil || d.Type != "answer" {
		return errors.New("unknown answer")
	}
	guest.mu.Lock()
	linked := guest.remote == c && guest.state == "connecting"
	guest.mu.Unlock()
	if !linked {
		return errors.New("answer belongs to another offer")
	}

	c.mu.Lock()
	c.remote = guest
	c.mu.Unlock()

	c.open()
	guest.open()
	return nil
}

func (c *fakeConn) open() {
	c.mu.Lock()
	if c.state != "connecting" {
		c.mu.Unlock()
		return
	}
	c.state = "open"
	c.mu.Unlock()
	c.enqueue(c.events.OnOpen)
}

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	if c.state != "open" {
		c.mu.Unlock()
		return false
	}
	c.sent = append(c.sent, data)
	remote := c.remote
	c.mu.Unlock()

	remote.enqueue(func() { remote.events.OnMessage(data) })
	return true
}

func (c *fakeConn) ChannelState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		c.state = "closed"
		remote := c.remote
		c.mu.Unlock()

		if remote != nil {
			remote.remoteClosed()
		}
	})
	return nil
}

func (c *fakeConn) remoteClosed() {
	c.mu.Lock()
	if c.state != "open" {
		c.mu.Unlock()
		return
	}
	c.state = "closed"
	c.mu.Unlock()
	c.enqueue(c.events.OnClose)
}

func (c *fakeConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// fail reports a terminal connection failure to the owner.
func (c *fakeConn) fail() {
	c.enqueue(c.events.OnFailed)
}

// sample reports a link-quality sample to the owner.
func (c *fakeConn) sample(q protocol.Quality, rttMs int) {
	c.enqueue(func() { c.events.OnQuality(q, rttMs) })
}

// deliver injects raw inbound data as if sent by the remote side.
func (c *fakeConn) deliver(data []byte) {
	c.enqueue(func() { c.events.OnMessage(data) })
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var testEpoch = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by the rooms of one test.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock { return &testClock{t: testEpoch} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recorder is an Observer that keeps every note and the latest view.
type recorder struct {
	mu    sync.Mutex
	notes []Note
	view  View
}

func (r *recorder) Status(n Note) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) Render(v View) {
	r.mu.Lock()
	r.view = v
	r.mu.Unlock()
}

func (r *recorder) sawNote(text string) bool {
	return r.count(text) > 0
}

func (r *recorder) count(text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Text == text {
			n++
		}
	}
	return n
}

// memNames is an in-memory NameStore.
type memNames struct {
	mu   sync.Mutex
	name string
}

func (m *memNames) LoadName() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name, nil
}

func (m *memNames) SaveName(name string) error {
	m.mu.Lock()
	m.name = name
	m.mu.Unlock()
	return nil
}

// testPeer bundles a room with its fakes.
type testPeer struct {
	*Room
	dialer *fakeDialer
	obs    *recorder
}

func newTestPeer(t *testing.T, n *fakeNet, clock *testClock, name string, tweak ...func(*Options)) *testPeer {
	t.Helper()
	d := newFakeDialer(n)
	obs := &recorder{}
	opts := Options{
		Dialer:       d,
		Observer:     obs,
		LinkBase:     "https://example.test/heart/",
		HandshakeTTL: 10 * time.Minute,
		DisplayName:  name,
		Now:          clock.Now,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	return &testPeer{Room: New(opts), dialer: d, obs: obs}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// connect runs a full invite → join → answer exchange and waits until both
// sides have handled the channel opening. It returns the invite id.
func connect(t *testing.T, host, guest *testPeer) string {
	t.Helper()
	ctx := context.Background()

	code := host.View().RoomCode
	hostNote := "Participant connected in room " + code + "."
	guestNote := "Connected to host in room " + code + "."
	hostSeen, guestSeen := host.obs.count(hostNote), guest.obs.count(guestNote)

	offer, err := host.CreateInvite(ctx)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	answer, err := guest.JoinFromOffer(ctx, offer)
	if err != nil {
		t.Fatalf("JoinFromOffer: %v", err)
	}
	inviteID := guest.GuestPeer()
	if err := host.ApplyAnswer(ctx, answer); err != nil {
		t.Fatalf("ApplyAnswer: %v", err)
	}

	waitFor(t, "host channel open", func() bool { return host.obs.count(hostNote) > hostSeen })
	waitFor(t, "guest channel open", func() bool { return guest.obs.count(guestNote) > guestSeen })
	return inviteID
}

// participant finds id in v.
func participant(v View, id string) (protocol.Participant, bool) {
	for _, p := range v.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return protocol.Participant{}, false
}

// checkExclusive asserts that only the collection matching the role holds
// records.
func checkExclusive(t *testing.T, p *testPeer) {
	t.Helper()
	role := p.Role()
	pending, hosted, guest := len(p.Pending()), len(p.HostPeers()), p.GuestPeer()

	switch role {
	case RoleSolo:
		if pending+hosted != 0 || guest != "" {
			t.Errorf("solo room holds sessions: pending=%d host=%d guest=%q", pending, hosted, guest)
		}
	case RoleHost:
		if guest != "" {
			t.Errorf("host room holds a guest session %q", guest)
		}
	case RoleGuest:
		if pending+hosted != 0 {
			t.Errorf("guest room holds host sessions: pending=%d host=%d", pending, hosted)
		}
	}
}
