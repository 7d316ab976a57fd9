package domain

import "strings"

// InboundMessage is one text message from the conversational channel. It
// is never persisted.
type InboundMessage struct {
	SenderID      string
	MessageID     string
	Text          string
	ChannelNumber string
}

// WebhookPayload is the WhatsApp Cloud API notification body.
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// TextMessages flattens the payload into its non-empty text messages.
func (p WebhookPayload) TextMessages() []InboundMessage {
	var out []InboundMessage

	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if field := strings.TrimSpace(change.Field); field != "" && field != "messages" {
				continue
			}
			for _, m := range change.Value.Messages {
				if strings.ToLower(strings.TrimSpace(m.Type)) != "text" {
					continue
				}
				body := strings.TrimSpace(m.Text.Body)
				if body == "" {
					continue
				}
				out = append(out, InboundMessage{
					SenderID:      strings.TrimSpace(m.From),
					MessageID:     strings.TrimSpace(m.ID),
					Text:          body,
					ChannelNumber: change.Value.Metadata.DisplayPhoneNumber,
				})
			}
		}
	}

	return out
}
