// Package clipboard copies handshake links to the system clipboard, falling
// back to asking the user to copy by hand when no clipboard is available.
package clipboard

import (
	"sync"

	"golang.design/x/clipboard"

	"github.com/1ureka/heartroom/internal/util"
)

// Copier writes text to the system clipboard. The clipboard is initialized
// lazily on the first Copy; if that fails every later Copy reports false.
type Copier struct {
	once    sync.Once
	initErr error

	init  func() error
	write func(text []byte)
}

// New returns a Copier backed by the system clipboard.
func New() *Copier {
	return &Copier{
		init:  clipboard.Init,
		write: func(b []byte) { clipboard.Write(clipboard.FmtText, b) },
	}
}

// Copy places text on the clipboard and reports whether it did. On false
// the caller should show the text for manual copying.
func (c *Copier) Copy(text string) bool {
	c.once.Do(func() {
		c.initErr = c.init()
		if c.initErr != nil {
			util.LogDebug("clipboard unavailable: %v", c.initErr)
		}
	})
	if c.initErr != nil || text == "" {
		return false
	}
	c.write([]byte(text))
	return true
}

// Available reports whether the clipboard initialized. It only has an answer
// after the first Copy.
func (c *Copier) Available() bool {
	return c.initErr == nil
}
