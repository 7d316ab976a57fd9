package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/tablelink/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppSenderSendText(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody textMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"messages":[{"id":"wamid.x"}]}`))
	}))
	defer srv.Close()

	s := NewWhatsAppSender(config.WhatsAppConfig{
		AccessToken:   "tok",
		PhoneNumberID: "12345",
		APIVersion:    "v20.0",
	}, WithGraphBaseURL(srv.URL))

	err := s.SendText(context.Background(), "+5215512345678", "hello")
	require.NoError(t, err)

	assert.Equal(t, "/v20.0/12345/messages", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "whatsapp", gotBody.MessagingProduct)
	assert.Equal(t, "5215512345678", gotBody.To)
	assert.Equal(t, "text", gotBody.Type)
	assert.Equal(t, "hello", gotBody.Text.Body)
}

func TestWhatsAppSenderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
	}))
	defer srv.Close()

	s := NewWhatsAppSender(config.WhatsAppConfig{AccessToken: "tok", PhoneNumberID: "1"}, WithGraphBaseURL(srv.URL))

	err := s.SendText(context.Background(), "123", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.NotErrorIs(t, err, ErrMissingChannelCredentials)
}

func TestWhatsAppSenderMissingCredentials(t *testing.T) {
	tests := []config.WhatsAppConfig{
		{},
		{AccessToken: "tok"},
		{PhoneNumberID: "1"},
		{AccessToken: "  ", PhoneNumberID: "1"},
	}

	for _, cfg := range tests {
		s := NewWhatsAppSender(cfg)
		assert.False(t, s.Enabled())
		assert.ErrorIs(t, s.SendText(context.Background(), "123", "hi"), ErrMissingChannelCredentials)
	}
}

type stubSender struct {
	err   error
	calls int
}

func (s *stubSender) SendText(context.Context, string, string) error {
	s.calls++
	return s.err
}

func TestNotifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want SendResult
	}{
		{name: "delivered", want: SendResult{Delivered: true}},
		{name: "missing credentials", err: ErrMissingChannelCredentials, want: SendResult{Skipped: true}},
		{name: "wrapped missing credentials", err: errors.Join(errors.New("send"), ErrMissingChannelCredentials), want: SendResult{Skipped: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{err: tt.err}
			got := NewNotifier(sender).Notify(context.Background(), "+15550001111", "hi")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, sender.calls)
		})
	}
}

func TestNotifierSendFailure(t *testing.T) {
	boom := errors.New("timeout")
	got := NewNotifier(&stubSender{err: boom}).Notify(context.Background(), "+15550001111", "hi")

	assert.False(t, got.Delivered)
	assert.False(t, got.Skipped)
	assert.ErrorIs(t, got.Err, boom)
}

func TestNotifierWithoutSender(t *testing.T) {
	var n *Notifier
	assert.Equal(t, SendResult{Skipped: true}, n.Notify(context.Background(), "1", "hi"))
	assert.Equal(t, SendResult{Skipped: true}, NewNotifier(nil).Notify(context.Background(), "1", "hi"))
}

func TestDevSender(t *testing.T) {
	assert.NoError(t, DevSender{}.SendText(context.Background(), "+15550001111", "hi"))
}

func TestLinkText(t *testing.T) {
	text := LinkText("https://t.example/r/abc", time.Hour)
	assert.Contains(t, text, "https://t.example/r/abc")
	assert.Contains(t, text, "60 minutes")
}
