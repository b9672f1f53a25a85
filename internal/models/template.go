// internal/models/template.go
package models

import "time"

// Channel is the delivery medium for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Channels lists every supported channel.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp}

// IsValid reports whether c is one of the four supported channels.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// Category is the business reason for a notification.
type Category string

const (
	CategoryOrderConfirmation    Category = "order_confirmation"
	CategoryPaymentConfirmation  Category = "payment_confirmation"
	CategoryShippingUpdate       Category = "shipping_update"
	CategoryDeliveryConfirmation Category = "delivery_confirmation"
	CategoryOrderCancelled       Category = "order_cancelled"
	CategoryRefundProcessed      Category = "refund_processed"
	CategoryPasswordReset        Category = "password_reset"
	CategoryAccountCreated       Category = "account_created"
	CategoryLoginAlert           Category = "login_alert"
	CategoryBackInStock          Category = "product_back_in_stock"
	CategoryPriceDrop            Category = "price_drop"
	CategoryAbandonedCart        Category = "abandoned_cart"
	CategoryReviewRequest        Category = "review_request"
	CategoryPromotional          Category = "promotional"
	CategorySystemMaintenance    Category = "system_maintenance"
)

// Categories lists every defined category.
var Categories = []Category{
	CategoryOrderConfirmation,
	CategoryPaymentConfirmation,
	CategoryShippingUpdate,
	CategoryDeliveryConfirmation,
	CategoryOrderCancelled,
	CategoryRefundProcessed,
	CategoryPasswordReset,
	CategoryAccountCreated,
	CategoryLoginAlert,
	CategoryBackInStock,
	CategoryPriceDrop,
	CategoryAbandonedCart,
	CategoryReviewRequest,
	CategoryPromotional,
	CategorySystemMaintenance,
}

// IsValid reports whether c is a defined category.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Priority orders notifications for dispatch.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether p is a defined priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TemplateVariable declares a placeholder a template expects.
type TemplateVariable struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "string", "number", "boolean", "date"
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description,omitempty"`
}

// TemplateContent holds the renderable content fields of a template.
// Which fields are populated depends on the channel.
type TemplateContent struct {
	Subject  string `json:"subject,omitempty"`
	Title    string `json:"title,omitempty"`
	HTML     string `json:"html,omitempty"`
	Text     string `json:"text,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

// EmailSettings carries email-channel template settings.
type EmailSettings struct {
	FromName  string `json:"fromName,omitempty"`
	FromEmail string `json:"fromEmail,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
}

// SMSSettings carries sms-channel template settings.
type SMSSettings struct {
	MaxLength int    `json:"maxLength,omitempty"`
	SenderID  string `json:"senderId,omitempty"`
}

// PushSettings carries push-channel template settings.
type PushSettings struct {
	Icon        string       `json:"icon,omitempty"`
	Sound       string       `json:"sound,omitempty"`
	Badge       int          `json:"badge,omitempty"`
	ClickAction string       `json:"clickAction,omitempty"`
	Actions     []PushAction `json:"actions,omitempty"`
}

// PushAction is a tappable action attached to a push notification.
type PushAction struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// ChannelSettings groups the per-channel settings blocks.
type ChannelSettings struct {
	Email *EmailSettings `json:"email,omitempty"`
	SMS   *SMSSettings   `json:"sms,omitempty"`
	Push  *PushSettings  `json:"push,omitempty"`
}

// TemplateUsage tracks how often a template has been rendered.
type TemplateUsage struct {
	Count      int64      `json:"count"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// NotificationTemplate is reusable content with placeholder variables,
// scoped to one channel and category. Templates are authored by an external
// admin surface; this engine only reads them.
type NotificationTemplate struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"` // unique
	Channel   Channel            `json:"channel"`
	Category  Category           `json:"category"`
	Content   TemplateContent    `json:"content"`
	Variables []TemplateVariable `json:"variables,omitempty"`
	Settings  ChannelSettings    `json:"settings"`
	Active    bool               `json:"active"`
	Usage     TemplateUsage      `json:"usage"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
