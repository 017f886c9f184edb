package util

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/pterm/pterm"
)

func TestRandomTokenAlphabet(t *testing.T) {
	for _, length := range []int{4, 6, 8, 18} {
		tok := RandomToken(length)
		if len(tok) != length {
			t.Fatalf("RandomToken(%d) length = %d", length, len(tok))
		}
		for _, r := range tok {
			if !strings.ContainsRune(tokenAlphabet, r) {
				t.Errorf("RandomToken(%d) = %q contains %q outside the alphabet", length, tok, r)
			}
		}
	}
}

func TestRandomTokenDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := RandomToken(18)
		if seen[tok] {
			t.Fatalf("duplicate token %q after %d draws", tok, i)
		}
		seen[tok] = true
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
	}
	for _, tc := range testCases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestLogStatsVerbatim: the reporter line reaches the log unchanged, so a '%'
// in it is never read as a formatting verb.
func TestLogStatsVerbatim(t *testing.T) {
	var buf bytes.Buffer
	level := pterm.DefaultLogger.Level
	SetLogOutput(&buf)
	EnableDebug()
	t.Cleanup(func() {
		pterm.DefaultLogger.Level = level
		SetLogOutput(io.Discard)
	})

	logStats(3, 2, 1, 1536, 99)

	out := buf.String()
	if !strings.Contains(out, formatStats(3, 2, 1, 1536, 99)) {
		t.Errorf("log output %q does not contain the stats line", out)
	}
	if strings.Contains(out, "%!") {
		t.Errorf("log output %q has a formatting error", out)
	}

	buf.Reset()
	LogDebug("%s", "100% delivered")
	if !strings.Contains(buf.String(), "100% delivered") {
		t.Errorf("log output %q mangled a literal percent", buf.String())
	}
}
