package peer

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/heartroom/internal/util"
)

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 64         // outgoing message channel capacity
)

// sender is a goroutine-based message writer that serializes all writes to a
// single DataChannel, adding open-gate and backpressure control.
type sender struct {
	inviteID    string
	inbox       chan []byte
	drainSignal chan struct{}

	mu sync.Mutex
	dc *webrtc.DataChannel
}

// newSender creates a sender and starts the background loop. The loop waits
// for openSignal, so the channel may be attached later with watch. The loop
// exits when ctx is cancelled.
func newSender(ctx context.Context, inviteID string, openSignal <-chan struct{}) *sender {
	s := &sender{
		inviteID:    inviteID,
		inbox:       make(chan []byte, sendBufferSize),
		drainSignal: make(chan struct{}, 1),
	}

	go s.loop(ctx, openSignal)

	return s
}

// watch wires the backpressure callbacks on dc and makes it the write target.
func (s *sender) watch(dc *webrtc.DataChannel) {
	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drainSignal <- struct{}{}:
		default:
		}
	})

	s.mu.Lock()
	s.dc = dc
	s.mu.Unlock()
}

func (s *sender) channel() *webrtc.DataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc
}

// loop is the single-writer goroutine. It waits for the DataChannel to open,
// then drains the inbox with backpressure awareness.
func (s *sender) loop(ctx context.Context, openSignal <-chan struct{}) {
	// Phase 1: wait for DC to be open.
	select {
	case <-openSignal:
	case <-ctx.Done():
		return
	}

	dc := s.channel()
	if dc == nil {
		return
	}

	// Phase 2: send messages with backpressure.
	for {
		select {
		case data := <-s.inbox:
			if dc.BufferedAmount() > uint64(highWaterMark) {
				select {
				case <-s.drainSignal:
				case <-ctx.Done():
					return
				}
			}

			if err := dc.SendText(string(data)); err != nil {
				util.LogError("failed to send message (invite=%s): %v", s.inviteID, err)
				return
			}

			util.Stats.AddSent(len(data))
		case <-ctx.Done():
			return
		}
	}
}

// send enqueues a message for transmission without blocking. Messages sent
// after ctx is cancelled, or while the inbox is full, are dropped.
func (s *sender) send(ctx context.Context, data []byte) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.inbox <- data:
		return true
	default:
		util.LogWarning("send buffer full for invite %s, dropping message", s.inviteID)
		return false
	}
}
