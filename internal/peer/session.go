package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/heartroom/internal/protocol"
	"github.com/1ureka/heartroom/internal/util"
)

var (
	// ErrAlreadyDescribed is returned when a session is asked for a second
	// local description. Negotiation is single-shot.
	ErrAlreadyDescribed = errors.New("local description already created")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
)

// Description is a session description as carried inside handshake tokens.
type Description struct {
	Type string
	SDP  string
}

// Events are the callbacks a session reports to its owner. They run on pion's
// goroutines; any field may be nil. No event fires after Close.
type Events struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func()
	OnFailed  func()
	OnQuality func(q protocol.Quality, rttMs int)
}

// Dialer creates sessions with a shared configuration.
type Dialer struct {
	cfg Config
}

// NewDialer returns a Dialer for cfg.
func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg}
}

// Session wraps a single PeerConnection + DataChannel pair for one invite.
//
// An initiator creates the channel up front and produces the offer; a
// responder adopts the first inbound channel and produces the answer. The
// session lives until Close, independent of the ctx passed to Dial.
type Session struct {
	inviteID  string
	initiator bool
	cfg       Config
	events    Events

	pc         *webrtc.PeerConnection
	sender     *sender
	openSignal chan struct{}
	openOnce   sync.Once

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu        sync.Mutex
	dc        *webrtc.DataChannel
	described bool
	quality   protocol.Quality
	rttMs     int
}

// Dial creates a session backed by a new PeerConnection. ctx bounds creation
// only.
func (d *Dialer) Dial(ctx context.Context, inviteID string, initiator bool, events Events) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pc, err := newPeerConnection(d.cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	sCtx, sCancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		inviteID:   inviteID,
		initiator:  initiator,
		cfg:        d.cfg,
		events:     events,
		pc:         pc,
		openSignal: make(chan struct{}),
		ctx:        sCtx,
		cancel:     sCancel,
		quality:    protocol.QualityUnknown,
	}
	s.sender = newSender(sCtx, inviteID, s.openSignal)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("invite %s: PeerConnection state: %s", inviteID, state.String())
		if state == webrtc.PeerConnectionStateFailed && s.alive() && s.events.OnFailed != nil {
			s.events.OnFailed()
		}
	})

	if initiator {
		dc, err := newDataChannel(pc)
		if err != nil {
			sCancel()
			pc.Close()
			return nil, fmt.Errorf("create data channel: %w", err)
		}
		s.attachChannel(dc)
	} else {
		pc.OnDataChannel(s.attachChannel)
	}

	go s.sampleLoop()

	return s, nil
}

// attachChannel wires open/message/close/error handlers on dc. A responder
// keeps only the first inbound channel.
func (s *Session) attachChannel(dc *webrtc.DataChannel) {
	s.mu.Lock()
	if s.dc != nil {
		s.mu.Unlock()
		util.LogWarning("invite %s: ignoring extra data channel %q", s.inviteID, dc.Label())
		return
	}
	s.dc = dc
	s.mu.Unlock()

	s.sender.watch(dc)

	dc.OnOpen(func() {
		util.LogDebug("invite %s: DataChannel open", s.inviteID)
		s.openOnce.Do(func() { close(s.openSignal) })
		if s.alive() && s.events.OnOpen != nil {
			s.events.OnOpen()
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddRecv(len(msg.Data))
		if s.alive() && s.events.OnMessage != nil {
			s.events.OnMessage(msg.Data)
		}
	})

	dc.OnClose(func() {
		util.LogDebug("invite %s: DataChannel closed", s.inviteID)
		s.setQuality(protocol.QualityUnknown, 0)
		if s.alive() && s.events.OnClose != nil {
			s.events.OnClose()
		}
	})

	dc.OnError(func(err error) {
		util.LogWarning("invite %s: DataChannel error: %v", s.inviteID, err)
	})
}

func (s *Session) alive() bool {
	return s.ctx.Err() == nil
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// CreateOffer generates the local offer and waits for ICE gathering.
func (s *Session) CreateOffer(ctx context.Context) (Description, error) {
	return s.describe(ctx, webrtc.SDPTypeOffer)
}

// CreateAnswer generates the local answer and waits for ICE gathering. The
// remote offer must already be set.
func (s *Session) CreateAnswer(ctx context.Context) (Description, error) {
	return s.describe(ctx, webrtc.SDPTypeAnswer)
}

// describe runs create → set local → gather for one direction. Gathering is
// bounded by the gather timeout; on timeout the candidates gathered so far
// are used.
func (s *Session) describe(ctx context.Context, typ webrtc.SDPType) (Description, error) {
	s.mu.Lock()
	if s.described {
		s.mu.Unlock()
		return Description{}, ErrAlreadyDescribed
	}
	s.described = true
	s.mu.Unlock()

	if !s.alive() {
		return Description{}, ErrClosed
	}

	var (
		desc webrtc.SessionDescription
		err  error
	)
	if typ == webrtc.SDPTypeOffer {
		desc, err = s.pc.CreateOffer(nil)
	} else {
		desc, err = s.pc.CreateAnswer(nil)
	}
	if err != nil {
		return Description{}, fmt.Errorf("create %s: %w", typ, err)
	}

	gatherDone := webrtc.GatheringCompletePromise(s.pc)

	if err := s.pc.SetLocalDescription(desc); err != nil {
		return Description{}, fmt.Errorf("set local %s: %w", typ, err)
	}

	timer := time.NewTimer(s.cfg.GatherTimeout)
	defer timer.Stop()

	select {
	case <-gatherDone:
	case <-timer.C:
		util.LogWarning("invite %s: ICE gathering timed out after %v, using partial candidates", s.inviteID, s.cfg.GatherTimeout)
	case <-ctx.Done():
		return Description{}, ctx.Err()
	case <-s.ctx.Done():
		return Description{}, ErrClosed
	}

	local := s.pc.LocalDescription()
	if local == nil {
		return Description{}, fmt.Errorf("no local %s after gathering", typ)
	}
	return Description{Type: local.Type.String(), SDP: local.SDP}, nil
}

// SetRemoteDescription applies the remote SDP. An empty type defaults to the
// direction this side expects.
func (s *Session) SetRemoteDescription(d Description) error {
	if !s.alive() {
		return ErrClosed
	}

	typ := webrtc.NewSDPType(d.Type)
	if d.Type == "" {
		typ = webrtc.SDPTypeOffer
		if s.initiator {
			typ = webrtc.SDPTypeAnswer
		}
	}

	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: typ, SDP: d.SDP}); err != nil {
		return fmt.Errorf("set remote %s: %w", d.Type, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Send enqueues data for the sender loop. It never blocks; it reports false
// when the message was dropped.
func (s *Session) Send(data []byte) bool {
	return s.sender.send(s.ctx, data)
}

// ChannelState reports the DataChannel ready state ("connecting", "open",
// "closing", "closed"). A responder without a channel yet is "connecting".
func (s *Session) ChannelState() string {
	s.mu.Lock()
	dc := s.dc
	s.mu.Unlock()

	if dc == nil {
		return webrtc.DataChannelStateConnecting.String()
	}
	return dc.ReadyState().String()
}

// Quality returns the last sampled link quality.
func (s *Session) Quality() (protocol.Quality, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality, s.rttMs
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Close stops the sampler and sender, then shuts down the DataChannel and
// PeerConnection. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		dc := s.dc
		s.mu.Unlock()

		if dc != nil {
			err = dc.Close()
		}
		err = errors.Join(err, s.pc.Close())
	})
	return err
}
