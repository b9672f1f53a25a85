// internal/models/preferences.go
package models

import "time"

// PreferenceGroup buckets the notification categories users toggle as a unit.
type PreferenceGroup string

const (
	GroupOrderUpdates    PreferenceGroup = "orderUpdates"
	GroupPaymentUpdates  PreferenceGroup = "paymentUpdates"
	GroupShippingUpdates PreferenceGroup = "shippingUpdates"
	GroupPromotions      PreferenceGroup = "promotions"
	GroupSecurity        PreferenceGroup = "security"
	GroupProductUpdates  PreferenceGroup = "productUpdates"
)

// PreferenceGroups lists every group.
var PreferenceGroups = []PreferenceGroup{
	GroupOrderUpdates,
	GroupPaymentUpdates,
	GroupShippingUpdates,
	GroupPromotions,
	GroupSecurity,
	GroupProductUpdates,
}

// EmailChannelPrefs is a user's email channel block.
type EmailChannelPrefs struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address,omitempty"`
	Verified bool   `json:"verified"`
}

// SMSChannelPrefs is a user's sms channel block.
type SMSChannelPrefs struct {
	Enabled  bool   `json:"enabled"`
	Phone    string `json:"phone,omitempty"`
	Verified bool   `json:"verified"`
}

// DeviceToken is a registered push target.
type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"` // "ios", "android", "web"
	Active   bool   `json:"active"`
}

// PushChannelPrefs is a user's push channel block.
type PushChannelPrefs struct {
	Enabled bool          `json:"enabled"`
	Devices []DeviceToken `json:"devices,omitempty"`
}

// InAppChannelPrefs is a user's in-app channel block.
type InAppChannelPrefs struct {
	Enabled bool `json:"enabled"`
}

// ChannelPrefs groups the per-channel blocks.
type ChannelPrefs struct {
	Email EmailChannelPrefs `json:"email"`
	SMS   SMSChannelPrefs   `json:"sms"`
	Push  PushChannelPrefs  `json:"push"`
	InApp InAppChannelPrefs `json:"inApp"`
}

// GroupMatrix holds the per-channel toggles of one preference group.
type GroupMatrix struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
	InApp bool `json:"inApp"`
}

// ForChannel returns the toggle for the given channel.
func (g GroupMatrix) ForChannel(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return g.Email
	case ChannelSMS:
		return g.SMS
	case ChannelPush:
		return g.Push
	case ChannelInApp:
		return g.InApp
	}
	return false
}

// CategoryMatrix is the category-group x channel opt-in matrix.
type CategoryMatrix struct {
	OrderUpdates    GroupMatrix `json:"orderUpdates"`
	PaymentUpdates  GroupMatrix `json:"paymentUpdates"`
	ShippingUpdates GroupMatrix `json:"shippingUpdates"`
	Promotions      GroupMatrix `json:"promotions"`
	Security        GroupMatrix `json:"security"`
	ProductUpdates  GroupMatrix `json:"productUpdates"`
}

// ForGroup returns the matrix row for the given group.
func (m CategoryMatrix) ForGroup(g PreferenceGroup) GroupMatrix {
	switch g {
	case GroupOrderUpdates:
		return m.OrderUpdates
	case GroupPaymentUpdates:
		return m.PaymentUpdates
	case GroupShippingUpdates:
		return m.ShippingUpdates
	case GroupPromotions:
		return m.Promotions
	case GroupSecurity:
		return m.Security
	case GroupProductUpdates:
		return m.ProductUpdates
	}
	return GroupMatrix{}
}

// QuietHours is a local-time window during which push is suppressed.
// Start and End are "HH:MM"; the window may wrap midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

// TimingPrefs holds delivery timing settings.
type TimingPrefs struct {
	Timezone             string     `json:"timezone,omitempty"`
	QuietHours           QuietHours `json:"quietHours"`
	DigestFrequency      string     `json:"digestFrequency,omitempty"`      // "immediate", "daily", "weekly"
	PromotionalFrequency string     `json:"promotionalFrequency,omitempty"` // "all", "weekly", "none"
}

// UnsubscribePrefs records opt-outs. Global wins over everything else.
type UnsubscribePrefs struct {
	Global     bool       `json:"global"`
	Categories []Category `json:"categories,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// HasCategory reports whether the category is individually unsubscribed.
func (u UnsubscribePrefs) HasCategory(c Category) bool {
	for _, cat := range u.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// UserPreferences is the single per-user preference record, created lazily
// with defaults on first access.
type UserPreferences struct {
	UserID       string           `json:"userId"`
	Channels     ChannelPrefs     `json:"channels"`
	Categories   CategoryMatrix   `json:"categories"`
	Timing       TimingPrefs      `json:"timing"`
	Unsubscribed UnsubscribePrefs `json:"unsubscribed"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// ActiveDevices returns the devices eligible for push delivery. The full
// DeviceToken is kept so dispatch can route each token by platform.
func (p *UserPreferences) ActiveDevices() []DeviceToken {
	var devices []DeviceToken
	for _, d := range p.Channels.Push.Devices {
		if d.Active && d.Token != "" {
			devices = append(devices, d)
		}
	}
	return devices
}
