// internal/engine/webhook/parsers.go
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProviderEvent is the normalized shape every provider payload reduces to.
type ProviderEvent struct {
	ProviderMessageID string
	EventType         string
	URL               string
	Reason            string
	Code              string
	Email             string
}

// emailEvent is one element of a transactional-email provider's event
// array. Providers disagree on field names, so both spellings of the
// message id are accepted.
type emailEvent struct {
	MessageID    string `json:"messageId"`
	SGMessageID  string `json:"sg_message_id"`
	Event        string `json:"event"`
	Email        string `json:"email"`
	URL          string `json:"url"`
	Reason       string `json:"reason"`
	BounceType   string `json:"type"`
	TimestampSec int64  `json:"timestamp"`
}

// smsCallback is an SMS gateway's status callback body.
type smsCallback struct {
	MessageSid    string `json:"MessageSid"`
	MessageID     string `json:"messageId"`
	MessageStatus string `json:"MessageStatus"`
	Status        string `json:"status"`
	ErrorCode     string `json:"ErrorCode"`
	ErrorMessage  string `json:"ErrorMessage"`
}

// parseEmailEvents decodes a provider event array into normalized events.
func parseEmailEvents(payload []byte) ([]ProviderEvent, error) {
	var raw []emailEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode email event array: %w", err)
	}

	events := make([]ProviderEvent, 0, len(raw))
	for _, item := range raw {
		id := item.MessageID
		if id == "" {
			id = item.SGMessageID
		}
		events = append(events, ProviderEvent{
			ProviderMessageID: id,
			EventType:         strings.ToLower(item.Event),
			URL:               item.URL,
			Reason:            item.Reason,
			Email:             item.Email,
		})
	}
	return events, nil
}

// parseSMSCallback decodes a single status callback into one normalized
// event.
func parseSMSCallback(payload []byte) ([]ProviderEvent, error) {
	var raw smsCallback
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode sms status callback: %w", err)
	}

	id := raw.MessageID
	if id == "" {
		id = raw.MessageSid
	}
	status := raw.Status
	if status == "" {
		status = raw.MessageStatus
	}

	return []ProviderEvent{{
		ProviderMessageID: id,
		EventType:         strings.ToLower(status),
		Reason:            raw.ErrorMessage,
		Code:              raw.ErrorCode,
	}}, nil
}
