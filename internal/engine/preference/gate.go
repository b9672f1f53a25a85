// internal/engine/preference/gate.go
package preference

import (
	"time"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// categoryGroups maps every category to exactly one preference group. The
// gate depends on this being total; TestMapCategoryToGroup_Total pins it.
var categoryGroups = map[models.Category]models.PreferenceGroup{
	models.CategoryOrderConfirmation:    models.GroupOrderUpdates,
	models.CategoryOrderCancelled:       models.GroupOrderUpdates,
	models.CategoryReviewRequest:        models.GroupOrderUpdates,
	models.CategoryPaymentConfirmation:  models.GroupPaymentUpdates,
	models.CategoryRefundProcessed:      models.GroupPaymentUpdates,
	models.CategoryShippingUpdate:       models.GroupShippingUpdates,
	models.CategoryDeliveryConfirmation: models.GroupShippingUpdates,
	models.CategoryPromotional:          models.GroupPromotions,
	models.CategoryPriceDrop:            models.GroupPromotions,
	models.CategoryAbandonedCart:        models.GroupPromotions,
	models.CategoryPasswordReset:        models.GroupSecurity,
	models.CategoryAccountCreated:       models.GroupSecurity,
	models.CategoryLoginAlert:           models.GroupSecurity,
	models.CategorySystemMaintenance:    models.GroupSecurity,
	models.CategoryBackInStock:          models.GroupProductUpdates,
}

// MapCategoryToGroup resolves the preference group a category belongs to.
func MapCategoryToGroup(category models.Category) models.PreferenceGroup {
	return categoryGroups[category]
}

// Gate answers "can this user receive this notification on this channel
// right now". It fails closed: an unknown channel or category denies.
type Gate struct {
	logger logger.Logger
	now    func() time.Time
}

func NewGate(log logger.Logger) *Gate {
	return &Gate{logger: log, now: time.Now}
}

// CanReceive applies the opt-in checks in order: global unsubscribe,
// per-category unsubscribe, channel enablement, the group matrix, and
// finally quiet hours. Quiet hours suppress push only; email, sms and
// in-app are exempt by policy.
func (g *Gate) CanReceive(prefs *models.UserPreferences, channel models.Channel, category models.Category) (bool, string) {
	if prefs == nil {
		return false, "no preferences available"
	}

	if prefs.Unsubscribed.Global {
		return false, "user unsubscribed from all notifications"
	}
	if prefs.Unsubscribed.HasCategory(category) {
		return false, "user unsubscribed from category " + string(category)
	}
	if !channelEnabled(prefs, channel) {
		return false, "channel " + string(channel) + " disabled"
	}

	group := MapCategoryToGroup(category)
	if group == "" {
		return false, "unknown category " + string(category)
	}
	if !prefs.Categories.ForGroup(group).ForChannel(channel) {
		return false, "group " + string(group) + " disabled for channel " + string(channel)
	}

	if channel == models.ChannelPush && prefs.Timing.QuietHours.Enabled {
		if g.inQuietHours(prefs) {
			return false, "push suppressed during quiet hours"
		}
	}

	return true, ""
}

func channelEnabled(prefs *models.UserPreferences, channel models.Channel) bool {
	switch channel {
	case models.ChannelEmail:
		return prefs.Channels.Email.Enabled
	case models.ChannelSMS:
		return prefs.Channels.SMS.Enabled
	case models.ChannelPush:
		return prefs.Channels.Push.Enabled
	case models.ChannelInApp:
		return prefs.Channels.InApp.Enabled
	}
	return false
}

// inQuietHours checks the user's local clock against the configured window.
// The window may wrap midnight (e.g. 22:00 to 07:00). An unknown timezone
// or malformed window fails open so a bad setting never blocks delivery.
func (g *Gate) inQuietHours(prefs *models.UserPreferences) bool {
	qh := prefs.Timing.QuietHours

	loc, err := time.LoadLocation(timezoneOrUTC(prefs.Timing.Timezone))
	if err != nil {
		g.logger.Warn("unknown timezone in preferences, skipping quiet hours", map[string]interface{}{
			"userId":   prefs.UserID,
			"timezone": prefs.Timing.Timezone,
		})
		return false
	}

	start, okStart := parseClock(qh.Start)
	end, okEnd := parseClock(qh.End)
	if !okStart || !okEnd {
		g.logger.Warn("malformed quiet hours window, skipping", map[string]interface{}{
			"userId": prefs.UserID,
			"start":  qh.Start,
			"end":    qh.End,
		})
		return false
	}

	local := g.now().In(loc)
	minutes := local.Hour()*60 + local.Minute()

	if start <= end {
		return minutes >= start && minutes < end
	}
	// wraps midnight
	return minutes >= start || minutes < end
}

func timezoneOrUTC(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
