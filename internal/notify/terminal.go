package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// TerminalChannel prints notifications to the terminal with a bell so a
// triggered alert is noticed even when the log is scrolling.
type TerminalChannel struct {
	mu           sync.RWMutex
	out          io.Writer
	enabled      bool
	bellEnabled  bool
	colorEnabled bool
}

// NewTerminalChannel creates a terminal notification channel writing to
// stderr.
func NewTerminalChannel() *TerminalChannel {
	return &TerminalChannel{
		out:          os.Stderr,
		enabled:      true,
		bellEnabled:  true,
		colorEnabled: true,
	}
}

// Name returns the channel name.
func (c *TerminalChannel) Name() string { return "terminal" }

// IsEnabled reports whether the channel is enabled.
func (c *TerminalChannel) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled enables or disables the channel.
func (c *TerminalChannel) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// SetBellEnabled enables or disables the terminal bell.
func (c *TerminalChannel) SetBellEnabled(enabled bool) {
	c.mu.Lock()
	c.bellEnabled = enabled
	c.mu.Unlock()
}

// SetColorEnabled enables or disables colored output.
func (c *TerminalChannel) SetColorEnabled(enabled bool) {
	c.mu.Lock()
	c.colorEnabled = enabled
	c.mu.Unlock()
}

// Send prints the notification.
func (c *TerminalChannel) Send(ctx context.Context, n Notification) error {
	c.mu.RLock()
	out := c.out
	bell := c.bellEnabled
	color := c.colorEnabled
	c.mu.RUnlock()

	prefix := ""
	if bell {
		prefix = "\a"
	}

	line := fmt.Sprintf("%s [%s] %s: %s", n.Timestamp.Format("15:04:05"), n.Symbol, n.Title, n.Message)
	if color {
		line = "\033[33m" + line + "\033[0m"
	}

	_, err := fmt.Fprintln(out, prefix+line)
	return err
}
