package room

import (
	"context"

	"github.com/1ureka/heartroom/internal/peer"
)

// Conn is the part of a peer session the room drives. *peer.Session
// implements it.
type Conn interface {
	CreateOffer(ctx context.Context) (peer.Description, error)
	CreateAnswer(ctx context.Context) (peer.Description, error)
	SetRemoteDescription(d peer.Description) error
	Send(data []byte) bool
	ChannelState() string
	Close() error
}

// Dialer creates one Conn per invite.
type Dialer interface {
	Dial(ctx context.Context, inviteID string, initiator bool, events peer.Events) (Conn, error)
}

// NewPeerDialer adapts a *peer.Dialer to Dialer.
func NewPeerDialer(d *peer.Dialer) Dialer {
	return peerDialer{d}
}

type peerDialer struct {
	d *peer.Dialer
}

func (p peerDialer) Dial(ctx context.Context, inviteID string, initiator bool, events peer.Events) (Conn, error) {
	s, err := p.d.Dial(ctx, inviteID, initiator, events)
	if err != nil {
		return nil, err
	}
	return s, nil
}
