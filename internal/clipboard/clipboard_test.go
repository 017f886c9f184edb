package clipboard

import (
	"errors"
	"io"
	"testing"

	"github.com/1ureka/heartroom/internal/util"
)

func init() {
	util.SetLogOutput(io.Discard)
}

func TestCopy(t *testing.T) {
	var written []string
	inits := 0
	c := &Copier{
		init:  func() error { inits++; return nil },
		write: func(b []byte) { written = append(written, string(b)) },
	}

	if !c.Copy("https://example.test/#offer=abc") {
		t.Fatal("Copy reported failure")
	}
	if c.Copy("") {
		t.Error("Copy of empty text reported success")
	}
	c.Copy("second")

	if inits != 1 {
		t.Errorf("init called %d times, want 1", inits)
	}
	if len(written) != 2 || written[0] != "https://example.test/#offer=abc" || written[1] != "second" {
		t.Errorf("written = %q", written)
	}
}

func TestCopyFallback(t *testing.T) {
	wrote := false
	c := &Copier{
		init:  func() error { return errors.New("no display") },
		write: func([]byte) { wrote = true },
	}

	if c.Copy("link") {
		t.Error("Copy reported success without a clipboard")
	}
	if c.Available() {
		t.Error("Available = true after init failure")
	}
	if wrote {
		t.Error("write called after init failure")
	}
}
