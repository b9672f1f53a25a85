// internal/engine/dispatch/sms.go
package dispatch

import (
	"context"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	awsx "notification-engine/internal/common/aws"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/validation"
	"notification-engine/internal/models"
)

// e164Pattern is the shape SNS accepts for direct SMS publishes.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

type SMSConfig struct {
	DefaultCountryCode string
	SenderID           string
	MaxLength          int
}

// SMSDispatcher normalizes the destination to E.164 and publishes the
// rendered text through SNS.
type SMSDispatcher struct {
	client       awsx.SNSAPI
	providerName string
	config       SMSConfig
	logger       logger.Logger
}

func NewSMSDispatcher(client awsx.SNSAPI, providerName string, config SMSConfig, log logger.Logger) *SMSDispatcher {
	if config.DefaultCountryCode == "" {
		config.DefaultCountryCode = "1"
	}
	return &SMSDispatcher{
		client:       client,
		providerName: providerName,
		config:       config,
		logger:       log,
	}
}

func (d *SMSDispatcher) Channel() models.Channel {
	return models.ChannelSMS
}

func (d *SMSDispatcher) Send(ctx context.Context, record *models.NotificationRecord) (*Result, error) {
	if record.Recipient.Phone == "" {
		return nil, errors.NewRecipientMissingError(string(models.ChannelSMS), record.UserID)
	}

	phone := validation.NormalizePhone(record.Recipient.Phone, d.config.DefaultCountryCode)
	if !e164Pattern.MatchString(phone) {
		return nil, errors.NewValidationError("phone number is not E.164 after normalization: " + phone)
	}

	maxLength := d.config.MaxLength
	senderID := d.config.SenderID
	if ss := record.Settings.SMS; ss != nil {
		if ss.MaxLength > 0 {
			maxLength = ss.MaxLength
		}
		if ss.SenderID != "" {
			senderID = ss.SenderID
		}
	}

	text := truncateRunes(record.Content.Text, maxLength)

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(text),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
	if senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(senderID),
		}
	}

	out, err := d.client.Publish(ctx, input)
	if err != nil {
		return nil, errors.NewTransportError(d.providerName, err)
	}

	d.logger.Info("sms dispatched", map[string]interface{}{
		"notificationId": record.ID,
		"to":             phone,
		"provider":       d.providerName,
		"messageId":      aws.ToString(out.MessageId),
	})

	return &Result{
		Provider:          d.providerName,
		ProviderMessageID: aws.ToString(out.MessageId),
	}, nil
}

// truncateRunes cuts text to at most max runes. Cutting on rune boundaries
// keeps multi-byte characters intact.
func truncateRunes(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
