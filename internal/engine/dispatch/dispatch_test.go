// internal/engine/dispatch/dispatch_test.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	awsx "notification-engine/internal/common/aws"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

func testLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func emailRecord() *models.NotificationRecord {
	return &models.NotificationRecord{
		ID:      "ntf-1",
		UserID:  "user-1",
		Channel: models.ChannelEmail,
		Content: models.ContentSnapshot{
			Subject: "Order shipped",
			HTML:    "<p>Your order shipped</p>",
			Text:    "Your order shipped",
		},
		Recipient: models.Recipient{UserID: "user-1", Email: "ann@example.com"},
	}
}

// failingSES always errors, for transport failure paths.
type failingSES struct{}

func (f *failingSES) SendEmail(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return nil, fmt.Errorf("ses unavailable")
}

// recordingSES wraps the simulated client and captures sends.
type recordingSES struct {
	awsx.SimulatedSES
	sent []ses.SendEmailInput
}

func (r *recordingSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	r.sent = append(r.sent, *params)
	return r.SimulatedSES.SendEmail(ctx, params, optFns...)
}

// recordingSNS wraps the simulated client and captures publishes and
// endpoint registrations; tokens in failTokens make CreatePlatformEndpoint
// fail to exercise partial multicast.
type recordingSNS struct {
	awsx.SimulatedSNS
	published  []sns.PublishInput
	endpoints  []sns.CreatePlatformEndpointInput
	failTokens map[string]bool
}

func (r *recordingSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	r.published = append(r.published, *params)
	return r.SimulatedSNS.Publish(ctx, params, optFns...)
}

func (r *recordingSNS) CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error) {
	r.endpoints = append(r.endpoints, *params)
	if params.Token != nil && r.failTokens[*params.Token] {
		return nil, fmt.Errorf("invalid token")
	}
	return r.SimulatedSNS.CreatePlatformEndpoint(ctx, params, optFns...)
}

func TestEmailDispatcher_SimulatedSend(t *testing.T) {
	d := NewEmailDispatcher(awsx.NewSimulatedSES(), awsx.SimulationProvider,
		EmailConfig{FromEmail: "noreply@example.com", FromName: "Acme"}, testLogger(t))

	result, err := d.Send(context.Background(), emailRecord())
	require.NoError(t, err)
	assert.Equal(t, "simulation", result.Provider)
	assert.NotEmpty(t, result.ProviderMessageID)
}

func TestEmailDispatcher_MissingRecipient(t *testing.T) {
	d := NewEmailDispatcher(awsx.NewSimulatedSES(), awsx.SimulationProvider, EmailConfig{}, testLogger(t))

	record := emailRecord()
	record.Recipient.Email = ""

	_, err := d.Send(context.Background(), record)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecipientMissing))
}

func TestEmailDispatcher_TemplateSenderOverride(t *testing.T) {
	client := &recordingSES{}
	d := NewEmailDispatcher(client, awsx.SimulationProvider,
		EmailConfig{FromEmail: "noreply@example.com", FromName: "Acme"}, testLogger(t))

	record := emailRecord()
	record.Settings.Email = &models.EmailSettings{
		FromName:  "Acme Shipping",
		FromEmail: "shipping@example.com",
		ReplyTo:   "support@example.com",
	}

	_, err := d.Send(context.Background(), record)
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	assert.Equal(t, "Acme Shipping <shipping@example.com>", aws.ToString(client.sent[0].Source))
	assert.Equal(t, []string{"support@example.com"}, client.sent[0].ReplyToAddresses)
}

func TestEmailDispatcher_ConfigSenderWhenNoSettings(t *testing.T) {
	client := &recordingSES{}
	d := NewEmailDispatcher(client, awsx.SimulationProvider,
		EmailConfig{FromEmail: "noreply@example.com", FromName: "Acme"}, testLogger(t))

	_, err := d.Send(context.Background(), emailRecord())
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	assert.Equal(t, "Acme <noreply@example.com>", aws.ToString(client.sent[0].Source))
	assert.Empty(t, client.sent[0].ReplyToAddresses)
}

func TestEmailDispatcher_TransportError(t *testing.T) {
	d := NewEmailDispatcher(&failingSES{}, "ses", EmailConfig{FromEmail: "noreply@example.com"}, testLogger(t))

	_, err := d.Send(context.Background(), emailRecord())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTransportFailed))
	assert.True(t, errors.IsRetryable(err))
}

func TestSMSDispatcher_NormalizesToE164(t *testing.T) {
	client := &recordingSNS{}
	d := NewSMSDispatcher(client, awsx.SimulationProvider, SMSConfig{DefaultCountryCode: "1"}, testLogger(t))

	record := &models.NotificationRecord{
		ID:        "ntf-2",
		UserID:    "user-1",
		Channel:   models.ChannelSMS,
		Content:   models.ContentSnapshot{Text: "Your order shipped"},
		Recipient: models.Recipient{UserID: "user-1", Phone: "(555) 123-4567"},
	}

	result, err := d.Send(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ProviderMessageID)

	require.Len(t, client.published, 1)
	assert.Equal(t, "+15551234567", aws.ToString(client.published[0].PhoneNumber))
	assert.Equal(t, "Your order shipped", aws.ToString(client.published[0].Message))
}

func TestSMSDispatcher_AlreadyE164(t *testing.T) {
	client := &recordingSNS{}
	d := NewSMSDispatcher(client, awsx.SimulationProvider, SMSConfig{DefaultCountryCode: "1"}, testLogger(t))

	record := &models.NotificationRecord{
		Content:   models.ContentSnapshot{Text: "hi"},
		Recipient: models.Recipient{Phone: "+447911123456"},
	}

	_, err := d.Send(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "+447911123456", aws.ToString(client.published[0].PhoneNumber))
}

func TestSMSDispatcher_InvalidPhone(t *testing.T) {
	d := NewSMSDispatcher(&recordingSNS{}, awsx.SimulationProvider, SMSConfig{}, testLogger(t))

	record := &models.NotificationRecord{
		Content:   models.ContentSnapshot{Text: "hi"},
		Recipient: models.Recipient{Phone: "12"},
	}

	_, err := d.Send(context.Background(), record)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))
}

func TestSMSDispatcher_TruncatesToMaxLength(t *testing.T) {
	client := &recordingSNS{}
	d := NewSMSDispatcher(client, awsx.SimulationProvider,
		SMSConfig{DefaultCountryCode: "1", MaxLength: 10}, testLogger(t))

	record := &models.NotificationRecord{
		Content:   models.ContentSnapshot{Text: "this text is longer than ten characters"},
		Recipient: models.Recipient{Phone: "+15551234567"},
	}

	_, err := d.Send(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "this text ", aws.ToString(client.published[0].Message))
}

func TestSMSDispatcher_TruncatesOnRuneBoundary(t *testing.T) {
	client := &recordingSNS{}
	d := NewSMSDispatcher(client, awsx.SimulationProvider,
		SMSConfig{DefaultCountryCode: "1", MaxLength: 6}, testLogger(t))

	record := &models.NotificationRecord{
		Content:   models.ContentSnapshot{Text: "héllo wörld"},
		Recipient: models.Recipient{Phone: "+15551234567"},
	}

	_, err := d.Send(context.Background(), record)
	require.NoError(t, err)

	sent := aws.ToString(client.published[0].Message)
	assert.Equal(t, "héllo ", sent)
	assert.True(t, utf8.ValidString(sent))
}

func TestSMSDispatcher_TemplateSettingsOverrideConfig(t *testing.T) {
	client := &recordingSNS{}
	d := NewSMSDispatcher(client, awsx.SimulationProvider,
		SMSConfig{DefaultCountryCode: "1", MaxLength: 100, SenderID: "DEFAULT"}, testLogger(t))

	record := &models.NotificationRecord{
		Content:   models.ContentSnapshot{Text: "this text is longer than ten characters"},
		Recipient: models.Recipient{Phone: "+15551234567"},
		Settings: models.ChannelSettings{
			SMS: &models.SMSSettings{MaxLength: 10, SenderID: "ACME"},
		},
	}

	_, err := d.Send(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, "this text ", aws.ToString(client.published[0].Message))
	attr := client.published[0].MessageAttributes["AWS.SNS.SMS.SenderID"]
	assert.Equal(t, "ACME", aws.ToString(attr.StringValue))
}

func pushRecord(tokens ...string) *models.NotificationRecord {
	var devices []models.DeviceToken
	for _, tok := range tokens {
		devices = append(devices, models.DeviceToken{Token: tok, Platform: "ios", Active: true})
	}
	return &models.NotificationRecord{
		ID:      "ntf-3",
		UserID:  "user-1",
		Channel: models.ChannelPush,
		Content: models.ContentSnapshot{
			Title: "Order shipped",
			Text:  "Your order is on its way",
		},
		Recipient: models.Recipient{UserID: "user-1", Devices: devices},
	}
}

func TestPushDispatcher_Multicast(t *testing.T) {
	client := &recordingSNS{}
	d := NewPushDispatcher(client, awsx.SimulationProvider,
		PushConfig{MobilePlatformARN: "arn:app/mobile"}, testLogger(t))

	result, err := d.Send(context.Background(), pushRecord("tok-1", "tok-2", "tok-3"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.ProviderMessageID)
	assert.Len(t, client.published, 3)
}

func TestPushDispatcher_PartialFailureStillSucceeds(t *testing.T) {
	client := &recordingSNS{failTokens: map[string]bool{"tok-bad": true}}
	d := NewPushDispatcher(client, awsx.SimulationProvider,
		PushConfig{MobilePlatformARN: "arn:app/mobile"}, testLogger(t))

	result, err := d.Send(context.Background(), pushRecord("tok-bad", "tok-good"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.ProviderMessageID)
	assert.Len(t, client.published, 1)
}

func TestPushDispatcher_AllTokensFail(t *testing.T) {
	client := &recordingSNS{failTokens: map[string]bool{"tok-a": true, "tok-b": true}}
	d := NewPushDispatcher(client, awsx.SimulationProvider,
		PushConfig{MobilePlatformARN: "arn:app/mobile"}, testLogger(t))

	_, err := d.Send(context.Background(), pushRecord("tok-a", "tok-b"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTransportFailed))
}

func TestPushDispatcher_PlatformPayloads(t *testing.T) {
	client := &recordingSNS{}
	d := NewPushDispatcher(client, awsx.SimulationProvider,
		PushConfig{MobilePlatformARN: "arn:app/mobile", DefaultSound: "ping", DefaultIcon: "bell"}, testLogger(t))

	record := pushRecord("tok-1")
	record.Metadata = map[string]interface{}{
		"clickAction": "OPEN_ORDER",
		"badge":       float64(2),
		"data":        map[string]interface{}{"orderId": "ord-9"},
	}

	_, err := d.Send(context.Background(), record)
	require.NoError(t, err)
	require.Len(t, client.published, 1)

	var message map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.published[0].Message)), &message))

	assert.Equal(t, "Your order is on its way", message["default"])
	assert.True(t, strings.Contains(message["APNS"], "Order shipped"))
	assert.True(t, strings.Contains(message["GCM"], "OPEN_ORDER"))
	assert.True(t, strings.Contains(message["GCM"], "bell"))
	assert.True(t, strings.Contains(message["APNS"], "ping"))
	assert.True(t, strings.Contains(message["GCM"], "ord-9"))
}

func TestPushDispatcher_RoutesWebTokensToWebPlatform(t *testing.T) {
	client := &recordingSNS{}
	d := NewPushDispatcher(client, awsx.SimulationProvider,
		PushConfig{MobilePlatformARN: "arn:app/mobile", WebPlatformARN: "arn:app/web"}, testLogger(t))

	record := pushRecord("tok-ios")
	record.Recipient.Devices = append(record.Recipient.Devices,
		models.DeviceToken{Token: "tok-web", Platform: "web", Active: true})

	_, err := d.Send(context.Background(), record)
	require.NoError(t, err)

	require.Len(t, client.endpoints, 2)
	assert.Equal(t, "arn:app/mobile", aws.ToString(client.endpoints[0].PlatformApplicationArn))
	assert.Equal(t, "tok-ios", aws.ToString(client.endpoints[0].Token))
	assert.Equal(t, "arn:app/web", aws.ToString(client.endpoints[1].PlatformApplicationArn))
	assert.Equal(t, "tok-web", aws.ToString(client.endpoints[1].Token))
}

func TestPushDispatcher_TemplateSettingsShapePayload(t *testing.T) {
	client := &recordingSNS{}
	d := NewPushDispatcher(client, awsx.SimulationProvider,
		PushConfig{MobilePlatformARN: "arn:app/mobile", DefaultSound: "ping"}, testLogger(t))

	record := pushRecord("tok-1")
	record.Settings.Push = &models.PushSettings{
		Sound:       "chime",
		ClickAction: "OPEN_DEALS",
		Actions:     []models.PushAction{{ID: "view", Title: "View deal", URL: "https://example.com/deal"}},
	}
	// per-request metadata still wins over template settings
	record.Metadata = map[string]interface{}{"clickAction": "OPEN_ORDER"}

	_, err := d.Send(context.Background(), record)
	require.NoError(t, err)
	require.Len(t, client.published, 1)

	var message map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.published[0].Message)), &message))

	assert.True(t, strings.Contains(message["APNS"], "chime"))
	assert.True(t, strings.Contains(message["GCM"], "OPEN_ORDER"))
	assert.False(t, strings.Contains(message["GCM"], "OPEN_DEALS"))
	assert.True(t, strings.Contains(message["GCM"], "View deal"))
}

func TestPushDispatcher_TopicLifecycle(t *testing.T) {
	client := &recordingSNS{}
	d := NewPushDispatcher(client, awsx.SimulationProvider,
		PushConfig{MobilePlatformARN: "arn:app/mobile", DefaultTopicARN: "arn:topic/all"}, testLogger(t))

	ctx := context.Background()

	subARN, err := d.SubscribeTopic(ctx, "arn:topic/all",
		models.DeviceToken{Token: "tok-1", Platform: "ios", Active: true})
	require.NoError(t, err)
	assert.NotEmpty(t, subARN)

	result, err := d.BroadcastTopic(ctx, "", pushRecord("tok-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.ProviderMessageID)

	require.NoError(t, d.UnsubscribeTopic(ctx, subARN))
}

func TestInAppDispatcher(t *testing.T) {
	d := NewInAppDispatcher(testLogger(t))

	record := &models.NotificationRecord{
		ID:        "ntf-4",
		UserID:    "user-1",
		Channel:   models.ChannelInApp,
		Recipient: models.Recipient{UserID: "user-1"},
	}

	result, err := d.Send(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, InAppProvider, result.Provider)
	assert.NotEmpty(t, result.ProviderMessageID)
}

func TestSet_ForChannel(t *testing.T) {
	set := &Set{
		Email: NewEmailDispatcher(awsx.NewSimulatedSES(), awsx.SimulationProvider, EmailConfig{}, testLogger(t)),
		SMS:   NewSMSDispatcher(awsx.NewSimulatedSNS(), awsx.SimulationProvider, SMSConfig{}, testLogger(t)),
		Push:  NewPushDispatcher(awsx.NewSimulatedSNS(), awsx.SimulationProvider, PushConfig{}, testLogger(t)),
		InApp: NewInAppDispatcher(testLogger(t)),
	}
	require.NoError(t, set.Validate())

	for _, channel := range models.Channels {
		d, err := set.ForChannel(channel)
		require.NoError(t, err)
		assert.Equal(t, channel, d.Channel())
	}

	_, err := set.ForChannel(models.Channel("carrier_pigeon"))
	assert.Error(t, err)
}
