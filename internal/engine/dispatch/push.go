// internal/engine/dispatch/push.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	awsx "notification-engine/internal/common/aws"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

type PushConfig struct {
	MobilePlatformARN string
	WebPlatformARN    string
	DefaultTopicARN   string
	DefaultSound      string
	DefaultIcon       string
}

// pushPayload is the one logical notification the dispatcher builds; the
// per-platform adaptation happens in buildMessage, not in the caller.
type pushPayload struct {
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Icon        string                 `json:"icon,omitempty"`
	Sound       string                 `json:"sound,omitempty"`
	Badge       int                    `json:"badge,omitempty"`
	ClickAction string                 `json:"clickAction,omitempty"`
	Actions     []models.PushAction    `json:"actions,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// PushDispatcher delivers to SNS platform endpoints. A multicast send
// reports per-token success/failure counts and succeeds as long as at
// least one token was reached.
type PushDispatcher struct {
	client       awsx.SNSAPI
	providerName string
	config       PushConfig
	logger       logger.Logger
}

func NewPushDispatcher(client awsx.SNSAPI, providerName string, config PushConfig, log logger.Logger) *PushDispatcher {
	return &PushDispatcher{
		client:       client,
		providerName: providerName,
		config:       config,
		logger:       log,
	}
}

func (d *PushDispatcher) Channel() models.Channel {
	return models.ChannelPush
}

func (d *PushDispatcher) Send(ctx context.Context, record *models.NotificationRecord) (*Result, error) {
	devices := record.Recipient.Devices
	if len(devices) == 0 {
		return nil, errors.NewRecipientMissingError(string(models.ChannelPush), record.UserID)
	}

	message, err := d.buildMessage(record)
	if err != nil {
		return nil, errors.NewValidationError("build push payload: " + err.Error())
	}

	var (
		successes int
		failures  int
		firstID   string
		lastErr   error
	)

	for _, device := range devices {
		messageID, err := d.sendToDevice(ctx, device, message)
		if err != nil {
			failures++
			lastErr = err
			d.logger.Warn("push send to token failed", map[string]interface{}{
				"notificationId": record.ID,
				"platform":       device.Platform,
				"error":          err.Error(),
			})
			continue
		}
		successes++
		if firstID == "" {
			firstID = messageID
		}
	}

	d.logger.Info("push dispatched", map[string]interface{}{
		"notificationId": record.ID,
		"tokens":         len(devices),
		"successes":      successes,
		"failures":       failures,
		"provider":       d.providerName,
	})

	if successes == 0 {
		return nil, errors.NewTransportError(d.providerName, fmt.Errorf("all %d tokens failed: %v", failures, lastErr))
	}

	return &Result{
		Provider:          d.providerName,
		ProviderMessageID: firstID,
	}, nil
}

// SubscribeTopic registers a device as a platform endpoint and subscribes
// it to the topic, returning the subscription ARN.
func (d *PushDispatcher) SubscribeTopic(ctx context.Context, topicARN string, device models.DeviceToken) (string, error) {
	endpointARN, err := d.endpointFor(ctx, device)
	if err != nil {
		return "", errors.NewTransportError(d.providerName, err)
	}

	out, err := d.client.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(topicARN),
		Protocol: aws.String("application"),
		Endpoint: aws.String(endpointARN),
	})
	if err != nil {
		return "", errors.NewTransportError(d.providerName, err)
	}
	return aws.ToString(out.SubscriptionArn), nil
}

// UnsubscribeTopic removes a topic subscription.
func (d *PushDispatcher) UnsubscribeTopic(ctx context.Context, subscriptionARN string) error {
	_, err := d.client.Unsubscribe(ctx, &sns.UnsubscribeInput{
		SubscriptionArn: aws.String(subscriptionARN),
	})
	if err != nil {
		return errors.NewTransportError(d.providerName, err)
	}
	return nil
}

// BroadcastTopic publishes one notification to every subscriber of a topic.
func (d *PushDispatcher) BroadcastTopic(ctx context.Context, topicARN string, record *models.NotificationRecord) (*Result, error) {
	if topicARN == "" {
		topicARN = d.config.DefaultTopicARN
	}
	if topicARN == "" {
		return nil, errors.NewValidationError("no topic ARN configured for broadcast")
	}

	message, err := d.buildMessage(record)
	if err != nil {
		return nil, errors.NewValidationError("build push payload: " + err.Error())
	}

	out, err := d.client.Publish(ctx, &sns.PublishInput{
		TopicArn:         aws.String(topicARN),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return nil, errors.NewTransportError(d.providerName, err)
	}

	return &Result{
		Provider:          d.providerName,
		ProviderMessageID: aws.ToString(out.MessageId),
	}, nil
}

func (d *PushDispatcher) sendToDevice(ctx context.Context, device models.DeviceToken, message string) (string, error) {
	endpointARN, err := d.endpointFor(ctx, device)
	if err != nil {
		return "", err
	}

	out, err := d.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(endpointARN),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// endpointFor registers the token against the platform application matching
// the device platform: browser tokens go to the web application, ios and
// android to the mobile one. A missing ARN falls back to the other.
func (d *PushDispatcher) endpointFor(ctx context.Context, device models.DeviceToken) (string, error) {
	platformARN := d.config.MobilePlatformARN
	if device.Platform == "web" && d.config.WebPlatformARN != "" {
		platformARN = d.config.WebPlatformARN
	}
	if platformARN == "" {
		platformARN = d.config.WebPlatformARN
	}

	out, err := d.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(platformARN),
		Token:                  aws.String(device.Token),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.EndpointArn), nil
}

// buildMessage renders the per-platform SNS message structure from one
// logical payload: APNS for iOS, GCM for Android and browser push, and a
// plain default fallback.
func (d *PushDispatcher) buildMessage(record *models.NotificationRecord) (string, error) {
	payload := d.payloadFrom(record)

	apns, err := json.Marshal(map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{
				"title": payload.Title,
				"body":  payload.Body,
			},
			"sound": payload.Sound,
			"badge": payload.Badge,
		},
		"data": payload.Data,
	})
	if err != nil {
		return "", err
	}

	gcmBody := map[string]interface{}{
		"notification": map[string]interface{}{
			"title":        payload.Title,
			"body":         payload.Body,
			"icon":         payload.Icon,
			"sound":        payload.Sound,
			"click_action": payload.ClickAction,
		},
		"data": payload.Data,
	}
	if len(payload.Actions) > 0 {
		gcmBody["actions"] = payload.Actions
	}
	gcm, err := json.Marshal(gcmBody)
	if err != nil {
		return "", err
	}

	message, err := json.Marshal(map[string]string{
		"default": payload.Body,
		"APNS":    string(apns),
		"GCM":     string(gcm),
	})
	if err != nil {
		return "", err
	}
	return string(message), nil
}

func (d *PushDispatcher) payloadFrom(record *models.NotificationRecord) pushPayload {
	payload := pushPayload{
		Title: record.Content.Title,
		Body:  record.Content.Text,
		Icon:  d.config.DefaultIcon,
		Sound: d.config.DefaultSound,
	}
	if payload.Title == "" {
		payload.Title = record.Content.Subject
	}

	// Precedence: config defaults, then template settings, then per-request
	// metadata.
	if ps := record.Settings.Push; ps != nil {
		if ps.Icon != "" {
			payload.Icon = ps.Icon
		}
		if ps.Sound != "" {
			payload.Sound = ps.Sound
		}
		if ps.Badge > 0 {
			payload.Badge = ps.Badge
		}
		if ps.ClickAction != "" {
			payload.ClickAction = ps.ClickAction
		}
		if len(ps.Actions) > 0 {
			payload.Actions = ps.Actions
		}
	}

	if record.Metadata != nil {
		if icon, ok := record.Metadata["icon"].(string); ok && icon != "" {
			payload.Icon = icon
		}
		if sound, ok := record.Metadata["sound"].(string); ok && sound != "" {
			payload.Sound = sound
		}
		if action, ok := record.Metadata["clickAction"].(string); ok {
			payload.ClickAction = action
		}
		if badge, ok := record.Metadata["badge"].(float64); ok {
			payload.Badge = int(badge)
		}
		if data, ok := record.Metadata["data"].(map[string]interface{}); ok {
			payload.Data = data
		}
	}

	return payload
}
