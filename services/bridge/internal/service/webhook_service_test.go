package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/diagnosis/tablelink/pkg/events"
	"github.com/diagnosis/tablelink/services/bridge/internal/channel"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/diagnosis/tablelink/services/bridge/internal/interpreter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTables map[string]*domain.Table

func (s stubTables) FindTableByCode(_ context.Context, code, _ string) (*domain.Table, error) {
	return s[code], nil
}

func newTestWebhookService(t *testing.T, sender channel.Sender) (*webhookService, *mockPublisher) {
	t.Helper()
	cfg := testConfig()
	clock := newTestClock()
	pub := &mockPublisher{}

	links := NewLinkService(newTestSigner(t, clock), newTestRegistry(cfg, clock), pub, cfg)
	in := interpreter.New(stubTables{
		"A12": {ID: "6f1c2a8e-3b4d-4e5f-8a9b-0c1d2e3f4a5b", Code: "A12", BranchID: "B1", RestaurantID: "R1"},
	})

	svc := NewWebhookService(in, links, channel.NewNotifier(sender), pub, cfg).(*webhookService)
	return svc, pub
}

func payload(t *testing.T, messages ...[3]string) domain.WebhookPayload {
	t.Helper()
	type msg struct {
		From string `json:"from"`
		ID   string `json:"id"`
		Type string `json:"type"`
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	}
	var msgs []msg
	for _, m := range messages {
		mm := msg{From: m[0], ID: m[1], Type: "text"}
		mm.Text.Body = m[2]
		msgs = append(msgs, mm)
	}
	raw, err := json.Marshal(map[string]any{
		"object": "whatsapp_business_account",
		"entry": []any{map[string]any{
			"id": "1",
			"changes": []any{map[string]any{
				"field": "messages",
				"value": map[string]any{"messages": msgs},
			}},
		}},
	})
	require.NoError(t, err)

	var p domain.WebhookPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func TestWebhookVerify(t *testing.T) {
	svc, _ := newTestWebhookService(t, &mockSender{})

	got, ok := svc.Verify("subscribe", "verify-me", "12345")
	assert.True(t, ok)
	assert.Equal(t, "12345", got)

	_, ok = svc.Verify("subscribe", "wrong", "12345")
	assert.False(t, ok)
	_, ok = svc.Verify("unsubscribe", "verify-me", "12345")
	assert.False(t, ok)
	_, ok = svc.Verify("subscribe", "verify-me", "")
	assert.False(t, ok)

	svc.config.WhatsApp.VerifyToken = ""
	_, ok = svc.Verify("subscribe", "", "12345")
	assert.False(t, ok, "an unset verify token never matches")
}

func TestWebhookVerifySignature(t *testing.T) {
	svc, _ := newTestWebhookService(t, &mockSender{})
	body := []byte(`{"object":"whatsapp_business_account"}`)

	assert.True(t, svc.VerifySignature(body, ""), "no app secret configured")

	svc.config.WhatsApp.AppSecret = "app-secret"
	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write(body)
	good := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.True(t, svc.VerifySignature(body, good))
	assert.False(t, svc.VerifySignature(body, ""))
	assert.False(t, svc.VerifySignature(body, "sha1=abc"))
	assert.False(t, svc.VerifySignature(body, "sha256=zz"))
	assert.False(t, svc.VerifySignature(append(body, ' '), good))
}

func TestWebhookAcceptIssuesLink(t *testing.T) {
	sender := &mockSender{}
	svc, pub := newTestWebhookService(t, sender)

	svc.Accept(context.Background(), payload(t, [3]string{"5215512345678", "wamid.1", "table: A12"}), "https://short.example")
	svc.Wait()

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "5215512345678", sent[0].to)
	assert.Contains(t, sent[0].text, "https://short.example/r/")
	assert.Contains(t, pub.subjects(), events.LinkIssued)
	assert.Contains(t, pub.subjects(), events.MessageReceived)
}

func TestWebhookAcceptReplies(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"help", channel.HelpText},
		{"AYUDA", channel.HelpText},
		{"order", channel.PromptForCodeText},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			sender := &mockSender{}
			svc, _ := newTestWebhookService(t, sender)

			svc.Accept(context.Background(), payload(t, [3]string{"15550001111", "wamid." + tt.text, tt.text}), "http://localhost")
			svc.Wait()

			sent := sender.messages()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.want, sent[0].text)
		})
	}
}

func TestWebhookAcceptIgnoresNoise(t *testing.T) {
	sender := &mockSender{}
	svc, _ := newTestWebhookService(t, sender)

	svc.Accept(context.Background(), payload(t, [3]string{"15550001111", "wamid.9", "thanks, bye"}), "http://localhost")
	svc.Wait()

	assert.Empty(t, sender.messages())
}

func TestWebhookAcceptDeduplicates(t *testing.T) {
	sender := &mockSender{}
	svc, _ := newTestWebhookService(t, sender)
	p := payload(t, [3]string{"15550001111", "wamid.dup", "help"})

	svc.Accept(context.Background(), p, "http://localhost")
	svc.Accept(context.Background(), p, "http://localhost")
	svc.Wait()

	assert.Len(t, sender.messages(), 1)
}

func TestWebhookAcceptSurvivesCanceledRequest(t *testing.T) {
	sender := &mockSender{}
	svc, _ := newTestWebhookService(t, sender)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Accept(ctx, payload(t, [3]string{"15550001111", "wamid.c", "help"}), "http://localhost")
	cancel()
	svc.Wait()

	assert.Len(t, sender.messages(), 1)
}

func TestWebhookAcceptSendFailureIsSwallowed(t *testing.T) {
	sender := &mockSender{err: channel.ErrMissingChannelCredentials}
	svc, _ := newTestWebhookService(t, sender)

	assert.NotPanics(t, func() {
		svc.Accept(context.Background(), payload(t,
			[3]string{"15550001111", "wamid.a", "help"},
			[3]string{"15550002222", "wamid.b", "mesa: A12"},
		), "http://localhost")
		svc.Wait()
	})
	assert.Len(t, sender.messages(), 2)
}

func TestWebhookLinkTextMentionsExpiry(t *testing.T) {
	sender := &mockSender{}
	svc, _ := newTestWebhookService(t, sender)

	svc.Accept(context.Background(), payload(t, [3]string{"15550001111", "wamid.e", "order A12"}), "http://localhost")
	svc.Wait()

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.True(t, strings.Contains(sent[0].text, "60 minutes"))
}
