// internal/models/notification.go
package models

import "time"

// Status is the delivery lifecycle state of a notification record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusOpened    Status = "opened"
	StatusClicked   Status = "clicked"
	StatusFailed    Status = "failed"
	StatusBounced   Status = "bounced"
)

// statusTransitions is the closed edge set of the delivery state machine.
// failed -> failed covers a retry attempt that fails again.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusDelivered, StatusFailed, StatusBounced},
	StatusSent:      {StatusDelivered, StatusOpened, StatusFailed, StatusBounced},
	StatusDelivered: {StatusOpened, StatusBounced},
	StatusOpened:    {StatusOpened, StatusClicked, StatusBounced},
	StatusClicked:   {StatusClicked, StatusOpened, StatusBounced},
	StatusFailed:    {StatusSent, StatusFailed, StatusBounced},
	StatusBounced:   {},
}

// CanTransition reports whether moving from s to next follows a defined edge.
// Self-transitions for opened/clicked are allowed so repeat events can bump
// counters without a state change.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ContentSnapshot is the rendered content captured at record creation.
// It is immutable: the record is never re-rendered.
type ContentSnapshot struct {
	Subject  string `json:"subject,omitempty"`
	Title    string `json:"title,omitempty"`
	HTML     string `json:"html,omitempty"`
	Text     string `json:"text,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

// Recipient is the concrete destination, channel-dependent. Push carries
// the full device tokens so dispatch can pick the platform application
// matching each token.
type Recipient struct {
	Email   string        `json:"email,omitempty"`
	Phone   string        `json:"phone,omitempty"`
	Devices []DeviceToken `json:"devices,omitempty"`
	UserID  string        `json:"userId,omitempty"`
}

// RelatedEntities carries opaque references to business entities.
// The engine never interprets these ids.
type RelatedEntities struct {
	OrderID   string `json:"orderId,omitempty"`
	ProductID string `json:"productId,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
}

// DeliveryError records why the last dispatch attempt failed.
type DeliveryError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Delivery tracks dispatch attempts and provider identifiers.
type Delivery struct {
	Provider    string         `json:"provider,omitempty"`
	ProviderID  string         `json:"providerId,omitempty"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"maxAttempts"`
	NextAttempt *time.Time     `json:"nextAttempt,omitempty"`
	LastAttempt *time.Time     `json:"lastAttempt,omitempty"`
	Error       *DeliveryError `json:"error,omitempty"`
}

// Scheduling tracks deferred sends.
type Scheduling struct {
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Timezone     string     `json:"timezone,omitempty"`
	Sent         bool       `json:"sent"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
}

// ClickedLink records a single click event.
type ClickedLink struct {
	URL       string    `json:"url"`
	ClickedAt time.Time `json:"clickedAt"`
}

// UnsubscribeEvent records an unsubscribe reported by a provider.
type UnsubscribeEvent struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason,omitempty"`
}

// Tracking accumulates engagement events reconciled from webhooks.
type Tracking struct {
	Opens         int               `json:"opens"`
	FirstOpenedAt *time.Time        `json:"firstOpenedAt,omitempty"`
	LastOpenedAt  *time.Time        `json:"lastOpenedAt,omitempty"`
	Clicks        int               `json:"clicks"`
	Links         []ClickedLink     `json:"links,omitempty"`
	Unsubscribed  *UnsubscribeEvent `json:"unsubscribed,omitempty"`
}

// NotificationRecord is the durable per-send entity. Created once per
// submission, mutated by dispatch attempts and webhook events.
type NotificationRecord struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"userId"`
	TemplateID   string                 `json:"templateId,omitempty"`
	TemplateName string                 `json:"templateName,omitempty"`
	Channel      Channel                `json:"channel"`
	Category     Category               `json:"category"`
	Content      ContentSnapshot        `json:"content"`
	Settings     ChannelSettings        `json:"settings,omitempty"`
	Recipient    Recipient              `json:"recipient"`
	Related      *RelatedEntities       `json:"related,omitempty"`
	Status       Status                 `json:"status"`
	Delivery     Delivery               `json:"delivery"`
	Scheduling   Scheduling             `json:"scheduling"`
	Tracking     Tracking               `json:"tracking"`
	Priority     Priority               `json:"priority"`
	Variables    map[string]interface{} `json:"variables,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// IsTerminal reports whether the record can never be dispatched again.
func (n *NotificationRecord) IsTerminal() bool {
	if n.Status == StatusBounced {
		return true
	}
	return n.Status == StatusFailed && n.Delivery.Attempts >= n.Delivery.MaxAttempts
}

// Retryable reports whether a failed record still has attempts left and a
// scheduled next attempt.
func (n *NotificationRecord) Retryable() bool {
	return n.Status == StatusFailed &&
		n.Delivery.Attempts < n.Delivery.MaxAttempts &&
		n.Delivery.NextAttempt != nil
}
