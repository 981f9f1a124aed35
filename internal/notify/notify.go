// Package notify delivers triggered-alert notifications outside the
// WebSocket stream.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notification represents one message to deliver.
type Notification struct {
	Symbol    string
	Title     string
	Message   string
	Timestamp time.Time
}

// Channel defines the interface for a notification delivery channel.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// MultiNotifier sends notifications through every enabled channel. One
// channel failing does not stop delivery through the others.
type MultiNotifier struct {
	mu       sync.RWMutex
	channels []Channel
	logger   zerolog.Logger
}

// NewMultiNotifier creates a notifier over the given channels.
func NewMultiNotifier(logger zerolog.Logger, channels ...Channel) *MultiNotifier {
	return &MultiNotifier{
		channels: channels,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// AddChannel registers an additional delivery channel.
func (m *MultiNotifier) AddChannel(c Channel) {
	m.mu.Lock()
	m.channels = append(m.channels, c)
	m.mu.Unlock()
}

// Send delivers the notification through every enabled channel and returns
// an error only if every attempted channel failed.
func (m *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	m.mu.RLock()
	channels := append([]Channel(nil), m.channels...)
	m.mu.RUnlock()

	attempted := 0
	var failures []string
	for _, c := range channels {
		if !c.IsEnabled() {
			continue
		}
		attempted++
		if err := c.Send(ctx, n); err != nil {
			m.logger.Warn().Err(err).Str("channel", c.Name()).Msg("Notification delivery failed")
			failures = append(failures, c.Name())
		}
	}

	if attempted > 0 && len(failures) == attempted {
		return fmt.Errorf("all channels failed: %s", strings.Join(failures, ", "))
	}
	return nil
}

// LogChannel writes notifications into the application log. It is always
// enabled and cannot fail, which makes it the delivery floor.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a log-backed notification channel.
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With().Str("component", "notify").Logger()}
}

// Name returns the channel name.
func (c *LogChannel) Name() string { return "log" }

// IsEnabled reports whether the channel is enabled.
func (c *LogChannel) IsEnabled() bool { return true }

// Send writes the notification to the log.
func (c *LogChannel) Send(ctx context.Context, n Notification) error {
	c.logger.Info().
		Str("symbol", n.Symbol).
		Str("title", n.Title).
		Str("message", n.Message).
		Msg("Alert notification")
	return nil
}
