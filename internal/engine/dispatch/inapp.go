// internal/engine/dispatch/inapp.go
package dispatch

import (
	"context"

	"github.com/google/uuid"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// InAppProvider is the provider name recorded for in-app deliveries.
const InAppProvider = "internal"

// InAppDispatcher makes no external call: the persisted record is the
// delivery, read later by the in-app UI out of the store.
type InAppDispatcher struct {
	logger logger.Logger
}

func NewInAppDispatcher(log logger.Logger) *InAppDispatcher {
	return &InAppDispatcher{logger: log}
}

func (d *InAppDispatcher) Channel() models.Channel {
	return models.ChannelInApp
}

func (d *InAppDispatcher) Send(_ context.Context, record *models.NotificationRecord) (*Result, error) {
	if record.Recipient.UserID == "" {
		return nil, errors.NewRecipientMissingError(string(models.ChannelInApp), record.UserID)
	}

	d.logger.Debug("in-app notification stored", map[string]interface{}{
		"notificationId": record.ID,
		"userId":         record.Recipient.UserID,
	})

	return &Result{
		Provider:          InAppProvider,
		ProviderMessageID: "inapp-" + uuid.NewString(),
	}, nil
}
