package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/tablelink/pkg/config"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

// WhatsAppSender sends text messages through the WhatsApp Cloud API.
type WhatsAppSender struct {
	token      string
	phoneID    string
	apiVersion string
	baseURL    string
	client     *http.Client
}

type WhatsAppOption func(*WhatsAppSender)

func WithGraphBaseURL(url string) WhatsAppOption {
	return func(s *WhatsAppSender) { s.baseURL = strings.TrimRight(url, "/") }
}

func WithHTTPClient(c *http.Client) WhatsAppOption {
	return func(s *WhatsAppSender) { s.client = c }
}

func NewWhatsAppSender(cfg config.WhatsAppConfig, opts ...WhatsAppOption) *WhatsAppSender {
	s := &WhatsAppSender{
		token:      strings.TrimSpace(cfg.AccessToken),
		phoneID:    strings.TrimSpace(cfg.PhoneNumberID),
		apiVersion: strings.TrimSpace(cfg.APIVersion),
		baseURL:    defaultGraphBaseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	if s.apiVersion == "" {
		s.apiVersion = "v20.0"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether both the access token and phone number id are set.
func (s *WhatsAppSender) Enabled() bool {
	return s.token != "" && s.phoneID != ""
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body       string `json:"body"`
		PreviewURL bool   `json:"preview_url"`
	} `json:"text"`
}

func (s *WhatsAppSender) SendText(ctx context.Context, to, text string) error {
	if !s.Enabled() {
		return ErrMissingChannelCredentials
	}

	msg := textMessage{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(strings.TrimSpace(to), "+"),
		Type:             "text",
	}
	msg.Text.Body = text
	msg.Text.PreviewURL = true

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.apiVersion, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp api error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
