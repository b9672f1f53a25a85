// internal/engine/dispatch/email.go
package dispatch

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	awsx "notification-engine/internal/common/aws"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/validation"
	"notification-engine/internal/models"
)

type EmailConfig struct {
	FromEmail string
	FromName  string
}

// EmailDispatcher sends the rendered subject/html/text through SES. When
// the channel is unconfigured the injected client is the simulated one and
// providerName is "simulation"; the send path is identical either way.
type EmailDispatcher struct {
	client       awsx.SESAPI
	providerName string
	config       EmailConfig
	logger       logger.Logger
}

func NewEmailDispatcher(client awsx.SESAPI, providerName string, config EmailConfig, log logger.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		client:       client,
		providerName: providerName,
		config:       config,
		logger:       log,
	}
}

func (d *EmailDispatcher) Channel() models.Channel {
	return models.ChannelEmail
}

func (d *EmailDispatcher) Send(ctx context.Context, record *models.NotificationRecord) (*Result, error) {
	if record.Recipient.Email == "" {
		return nil, errors.NewRecipientMissingError(string(models.ChannelEmail), record.UserID)
	}
	if !validation.ValidateEmail(record.Recipient.Email) {
		return nil, errors.NewValidationError("malformed email address: " + record.Recipient.Email)
	}

	fromEmail := d.config.FromEmail
	fromName := d.config.FromName
	var replyTo []string
	if es := record.Settings.Email; es != nil {
		if es.FromEmail != "" {
			fromEmail = es.FromEmail
		}
		if es.FromName != "" {
			fromName = es.FromName
		}
		if es.ReplyTo != "" {
			replyTo = []string{es.ReplyTo}
		}
	}

	from := fromEmail
	if fromName != "" {
		from = fromName + " <" + fromEmail + ">"
	}

	body := &types.Body{}
	if record.Content.HTML != "" {
		body.Html = &types.Content{Data: aws.String(record.Content.HTML), Charset: aws.String("UTF-8")}
	}
	if record.Content.Text != "" {
		body.Text = &types.Content{Data: aws.String(record.Content.Text), Charset: aws.String("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{record.Recipient.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(record.Content.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
		ReplyToAddresses: replyTo,
	}

	out, err := d.client.SendEmail(ctx, input)
	if err != nil {
		return nil, errors.NewTransportError(d.providerName, err)
	}

	d.logger.Info("email dispatched", map[string]interface{}{
		"notificationId": record.ID,
		"to":             record.Recipient.Email,
		"provider":       d.providerName,
		"messageId":      aws.ToString(out.MessageId),
	})

	return &Result{
		Provider:          d.providerName,
		ProviderMessageID: aws.ToString(out.MessageId),
	}, nil
}
