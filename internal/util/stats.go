package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide data-channel message counter.
var Stats = &stats{}

type stats struct {
	MsgsSent  atomic.Int64 // messages written to any data channel
	MsgsRecv  atomic.Int64 // messages read from any data channel
	BytesSent atomic.Int64
	BytesRecv atomic.Int64
	Dropped   atomic.Int64 // inbound messages that failed to decode
}

func (s *stats) AddSent(n int) { s.MsgsSent.Add(1); s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int) { s.MsgsRecv.Add(1); s.BytesRecv.Add(int64(n)) }
func (s *stats) AddDropped()   { s.Dropped.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs message statistics at
// debug level every interval, skipping quiet periods. It stops when ctx is
// cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prevSent, prevRecv, prevDropped int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.MsgsSent.Load()
				recv := Stats.MsgsRecv.Load()
				dropped := Stats.Dropped.Load()

				if sent != prevSent || recv != prevRecv || dropped != prevDropped {
					logStats(sent-prevSent, recv-prevRecv, dropped-prevDropped,
						Stats.BytesSent.Load(), Stats.BytesRecv.Load())
				}

				prevSent = sent
				prevRecv = recv
				prevDropped = dropped

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a fixed-width string (exactly 8 chars),
// for example: "99.0   B", " 1.5 KiB".
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// logStats writes one reporter line at debug level.
func logStats(sent, recv, dropped, totalSent, totalRecv int64) {
	LogDebug("%s", formatStats(sent, recv, dropped, totalSent, totalRecv))
}

// formatStats renders one reporter line.
func formatStats(sent, recv, dropped, totalSent, totalRecv int64) string {
	return fmt.Sprintf("Msgs: %3d↑ %3d↓ %2d dropped | Total: %s↑ %s↓",
		sent,
		recv,
		dropped,
		formatBytes(float64(totalSent)),
		formatBytes(float64(totalRecv)),
	)
}
