// Package peer wraps one pion PeerConnection and its "heart-room" DataChannel
// behind a non-trickle, single-shot negotiation API.
package peer

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// ChannelLabel is the label of the single ordered channel per session.
const ChannelLabel = "heart-room"

// Config holds the negotiation settings shared by every session.
type Config struct {
	ICEServers     []string      // STUN URLs only; no TURN relay
	GatherTimeout  time.Duration // upper bound on ICE gathering per description
	SampleInterval time.Duration // link-quality polling period
}

// newPeerConnection creates a PeerConnection configured with the STUN servers
// from cfg. An empty list yields host candidates only.
func newPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{
			{URLs: cfg.ICEServers},
		}
	}
	return webrtc.NewPeerConnection(config)
}

// newDataChannel creates the ordered, reliable channel used for presence
// messages. Only the initiating side calls it; the responder adopts the
// inbound channel via OnDataChannel.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	return pc.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
}
