// internal/engine/preference/gate_test.go
package preference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

func newTestGate(t *testing.T) *Gate {
	return NewGate(logger.NewZapAdapter(zaptest.NewLogger(t)))
}

func TestMapCategoryToGroup_Total(t *testing.T) {
	for _, category := range models.Categories {
		group := MapCategoryToGroup(category)
		assert.NotEmpty(t, group, "category %s must map to a group", category)
	}
}

func TestMapCategoryToGroup_KnownMappings(t *testing.T) {
	tests := []struct {
		category models.Category
		group    models.PreferenceGroup
	}{
		{models.CategoryOrderConfirmation, models.GroupOrderUpdates},
		{models.CategoryPaymentConfirmation, models.GroupPaymentUpdates},
		{models.CategoryShippingUpdate, models.GroupShippingUpdates},
		{models.CategoryPromotional, models.GroupPromotions},
		{models.CategoryPasswordReset, models.GroupSecurity},
		{models.CategoryBackInStock, models.GroupProductUpdates},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.group, MapCategoryToGroup(tt.category))
	}
}

func TestCanReceive_GlobalUnsubscribeWins(t *testing.T) {
	gate := newTestGate(t)
	prefs := DefaultPreferences("user-1")
	prefs.Unsubscribed.Global = true

	// every other flag is permissive, global must still deny on all channels
	for _, channel := range models.Channels {
		ok, reason := gate.CanReceive(prefs, channel, models.CategoryOrderConfirmation)
		assert.False(t, ok, "channel %s", channel)
		assert.NotEmpty(t, reason)
	}
}

func TestCanReceive_CategoryUnsubscribe(t *testing.T) {
	gate := newTestGate(t)
	prefs := DefaultPreferences("user-1")
	prefs.Unsubscribed.Categories = []models.Category{models.CategoryShippingUpdate}

	ok, reason := gate.CanReceive(prefs, models.ChannelEmail, models.CategoryShippingUpdate)
	assert.False(t, ok)
	assert.Contains(t, reason, "shipping_update")

	ok, _ = gate.CanReceive(prefs, models.ChannelEmail, models.CategoryOrderConfirmation)
	assert.True(t, ok)
}

func TestCanReceive_ChannelDisabled(t *testing.T) {
	gate := newTestGate(t)
	prefs := DefaultPreferences("user-1")

	// sms is off by default
	ok, reason := gate.CanReceive(prefs, models.ChannelSMS, models.CategoryOrderConfirmation)
	assert.False(t, ok)
	assert.Contains(t, reason, "sms")

	prefs.Channels.SMS.Enabled = true
	ok, _ = gate.CanReceive(prefs, models.ChannelSMS, models.CategoryOrderConfirmation)
	assert.True(t, ok)
}

func TestCanReceive_GroupMatrix(t *testing.T) {
	gate := newTestGate(t)
	prefs := DefaultPreferences("user-1")
	prefs.Categories.Promotions.Email = false

	ok, reason := gate.CanReceive(prefs, models.ChannelEmail, models.CategoryPromotional)
	assert.False(t, ok)
	assert.Contains(t, reason, "promotions")

	// other groups on the same channel are unaffected
	ok, _ = gate.CanReceive(prefs, models.ChannelEmail, models.CategoryOrderConfirmation)
	assert.True(t, ok)

	// same group on another channel is unaffected
	ok, _ = gate.CanReceive(prefs, models.ChannelPush, models.CategoryPromotional)
	assert.True(t, ok)
}

func TestCanReceive_QuietHoursPushOnly(t *testing.T) {
	gate := newTestGate(t)
	gate.now = func() time.Time {
		return time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	}

	prefs := DefaultPreferences("user-1")
	prefs.Channels.SMS.Enabled = true
	prefs.Timing.Timezone = "UTC"
	prefs.Timing.QuietHours = models.QuietHours{Enabled: true, Start: "22:00", End: "07:00"}

	ok, reason := gate.CanReceive(prefs, models.ChannelPush, models.CategoryOrderConfirmation)
	assert.False(t, ok)
	assert.Contains(t, reason, "quiet hours")

	// quiet hours never gate the other channels
	for _, channel := range []models.Channel{models.ChannelEmail, models.ChannelSMS, models.ChannelInApp} {
		ok, _ := gate.CanReceive(prefs, channel, models.CategoryOrderConfirmation)
		assert.True(t, ok, "channel %s", channel)
	}
}

func TestCanReceive_QuietHoursWindow(t *testing.T) {
	tests := []struct {
		name       string
		clock      string
		start, end string
		suppressed bool
	}{
		{"inside plain window", "13:00", "12:00", "14:00", true},
		{"before plain window", "11:59", "12:00", "14:00", false},
		{"at window end", "14:00", "12:00", "14:00", false},
		{"wrapping, late evening", "23:30", "22:00", "07:00", true},
		{"wrapping, early morning", "06:30", "22:00", "07:00", true},
		{"wrapping, daytime", "12:00", "22:00", "07:00", false},
		{"at wrapping start", "22:00", "22:00", "07:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newTestGate(t)
			clock, err := time.Parse("15:04", tt.clock)
			require.NoError(t, err)
			gate.now = func() time.Time {
				return time.Date(2025, 6, 1, clock.Hour(), clock.Minute(), 0, 0, time.UTC)
			}

			prefs := DefaultPreferences("user-1")
			prefs.Timing.Timezone = "UTC"
			prefs.Timing.QuietHours = models.QuietHours{Enabled: true, Start: tt.start, End: tt.end}

			ok, _ := gate.CanReceive(prefs, models.ChannelPush, models.CategoryOrderConfirmation)
			assert.Equal(t, tt.suppressed, !ok)
		})
	}
}

func TestCanReceive_UnknownTimezoneFailsOpen(t *testing.T) {
	gate := newTestGate(t)
	prefs := DefaultPreferences("user-1")
	prefs.Timing.Timezone = "Not/AZone"
	prefs.Timing.QuietHours = models.QuietHours{Enabled: true, Start: "00:00", End: "23:59"}

	ok, _ := gate.CanReceive(prefs, models.ChannelPush, models.CategoryOrderConfirmation)
	assert.True(t, ok)
}

func TestDefaultPreferences(t *testing.T) {
	prefs := DefaultPreferences("user-1")

	assert.Equal(t, "user-1", prefs.UserID)
	assert.True(t, prefs.Channels.Email.Enabled)
	assert.False(t, prefs.Channels.SMS.Enabled)
	assert.True(t, prefs.Channels.Push.Enabled)
	assert.True(t, prefs.Channels.InApp.Enabled)
	assert.False(t, prefs.Unsubscribed.Global)
	assert.Equal(t, "UTC", prefs.Timing.Timezone)
}
