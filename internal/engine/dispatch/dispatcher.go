// internal/engine/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"fmt"

	"notification-engine/internal/models"
)

// Result is what a successful send reports back for record bookkeeping.
type Result struct {
	Provider          string
	ProviderMessageID string
}

// Dispatcher is the uniform send contract every channel transport
// implements. A send either succeeds with a Result or fails with a
// transport error that feeds the retry policy.
type Dispatcher interface {
	Channel() models.Channel
	Send(ctx context.Context, record *models.NotificationRecord) (*Result, error)
}

// Set holds exactly one dispatcher per channel. Keeping the four variants
// as struct fields rather than a map makes a missing channel a construction
// error instead of a runtime lookup miss.
type Set struct {
	Email Dispatcher
	SMS   Dispatcher
	Push  Dispatcher
	InApp Dispatcher
}

// ForChannel returns the dispatcher for the given channel.
func (s *Set) ForChannel(channel models.Channel) (Dispatcher, error) {
	switch channel {
	case models.ChannelEmail:
		return s.Email, nil
	case models.ChannelSMS:
		return s.SMS, nil
	case models.ChannelPush:
		return s.Push, nil
	case models.ChannelInApp:
		return s.InApp, nil
	}
	return nil, fmt.Errorf("no dispatcher for channel %q", channel)
}

// Validate checks that every channel has a transport wired.
func (s *Set) Validate() error {
	if s.Email == nil || s.SMS == nil || s.Push == nil || s.InApp == nil {
		return fmt.Errorf("dispatcher set is incomplete")
	}
	return nil
}
