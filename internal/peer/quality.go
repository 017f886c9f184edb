package peer

import (
	"math"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/heartroom/internal/protocol"
)

// sampleLoop polls link quality until the session is closed.
func (s *Session) sampleLoop() {
	ticker := time.NewTicker(s.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sampleQuality()
		case <-s.ctx.Done():
			return
		}
	}
}

// sampleQuality reads the best succeeded candidate pair while the ICE
// transport is connected and reports a change through OnQuality.
func (s *Session) sampleQuality() {
	switch s.pc.ICEConnectionState() {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
	default:
		return
	}

	q, rttMs := protocol.QualityUnknown, 0
	if rtt, ok := bestRoundTrip(s.pc.GetStats()); ok {
		ms := rtt.Seconds() * 1000
		q, rttMs = protocol.ClassifyRTT(ms), int(math.Round(ms))
	}

	if s.setQuality(q, rttMs) && s.alive() && s.events.OnQuality != nil {
		s.events.OnQuality(q, rttMs)
	}
}

// setQuality records a sample and reports whether it differs from the last.
func (s *Session) setQuality(q protocol.Quality, rttMs int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quality == q && s.rttMs == rttMs {
		return false
	}
	s.quality, s.rttMs = q, rttMs
	return true
}

// bestRoundTrip returns the lowest current round-trip time among succeeded
// candidate pairs in report.
func bestRoundTrip(report webrtc.StatsReport) (time.Duration, bool) {
	best := math.Inf(1)

	for _, stat := range report {
		var pair webrtc.ICECandidatePairStats
		switch v := stat.(type) {
		case webrtc.ICECandidatePairStats:
			pair = v
		case *webrtc.ICECandidatePairStats:
			pair = *v
		default:
			continue
		}

		if pair.State != webrtc.StatsICECandidatePairStateSucceeded || pair.CurrentRoundTripTime <= 0 {
			continue
		}
		best = math.Min(best, pair.CurrentRoundTripTime)
	}

	if math.IsInf(best, 1) {
		return 0, false
	}
	return time.Duration(best * float64(time.Second)), true
}
