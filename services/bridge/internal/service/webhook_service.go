package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/tablelink/pkg/config"
	"github.com/diagnosis/tablelink/pkg/events"
	"github.com/diagnosis/tablelink/pkg/logger"
	"github.com/diagnosis/tablelink/services/bridge/internal/channel"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/diagnosis/tablelink/services/bridge/internal/interpreter"
)

const (
	messageTimeout = 15 * time.Second
	dedupWindow    = 10 * time.Minute
)

type WebhookService interface {
	// Verify answers the channel's subscription handshake.
	Verify(mode, token, challenge string) (string, bool)
	// VerifySignature checks X-Hub-Signature-256. It passes when no app
	// secret is configured.
	VerifySignature(body []byte, header string) bool
	// Accept schedules every new text message in payload and returns
	// immediately. It never fails.
	Accept(ctx context.Context, payload domain.WebhookPayload, shortBase string)
	// Wait blocks until every scheduled message has been handled.
	Wait()
}

type webhookService struct {
	interpreter *interpreter.Interpreter
	links       LinkService
	notifier    *channel.Notifier
	publisher   events.Publisher
	config      *config.Config
	now         func() time.Time

	wg sync.WaitGroup

	seenMu sync.Mutex
	seen   map[string]time.Time
}

func NewWebhookService(
	in *interpreter.Interpreter,
	links LinkService,
	notifier *channel.Notifier,
	publisher events.Publisher,
	cfg *config.Config,
) WebhookService {
	return &webhookService{
		interpreter: in,
		links:       links,
		notifier:    notifier,
		publisher:   publisher,
		config:      cfg,
		now:         time.Now,
		seen:        make(map[string]time.Time),
	}
}

func (s *webhookService) Verify(mode, token, challenge string) (string, bool) {
	expected := s.config.WhatsApp.VerifyToken
	if expected == "" || challenge == "" || mode != "subscribe" {
		return "", false
	}
	if !hmac.Equal([]byte(token), []byte(expected)) {
		return "", false
	}
	return challenge, true
}

func (s *webhookService) VerifySignature(body []byte, header string) bool {
	secret := strings.TrimSpace(s.config.WhatsApp.AppSecret)
	if secret == "" {
		return true
	}

	sig := strings.TrimSpace(header)
	if !strings.HasPrefix(sig, "sha256=") {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

func (s *webhookService) Accept(ctx context.Context, payload domain.WebhookPayload, shortBase string) {
	for _, msg := range payload.TextMessages() {
		if msg.MessageID != "" && !s.markSeen(msg.MessageID) {
			logger.DebugContext(ctx, "Duplicate message ignored", "message_id", msg.MessageID)
			continue
		}

		// The request context ends with the acknowledgment.
		msgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), messageTimeout)
		s.wg.Add(1)
		go func(msg domain.InboundMessage) {
			defer s.wg.Done()
			defer cancel()
			s.handle(msgCtx, msg, shortBase)
		}(msg)
	}
}

func (s *webhookService) Wait() {
	s.wg.Wait()
}

// handle runs enrichment, issuance and the reply in that order.
func (s *webhookService) handle(ctx context.Context, msg domain.InboundMessage, shortBase string) {
	ctx = context.WithValue(ctx, logger.SenderKey, logger.MaskPhone(msg.SenderID))
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Panic while handling message", "message_id", msg.MessageID, "panic", r)
		}
	}()

	result := s.interpreter.Interpret(ctx, msg)
	for _, d := range result.Degraded {
		logger.WarnContext(ctx, "Interpretation degraded", "message_id", msg.MessageID, "detail", d.String())
	}

	events.PublishBestEffort(ctx, s.publisher, events.MessageReceived, events.MessageReceivedEvent{
		MessageID: msg.MessageID,
		Action:    string(result.Action.Kind),
		Degraded:  len(result.Degraded),
		At:        s.now().UTC(),
	})

	var reply string
	switch result.Action.Kind {
	case interpreter.ActionReplyHelp:
		reply = channel.HelpText
	case interpreter.ActionPromptForCode:
		reply = channel.PromptForCodeText
	case interpreter.ActionIssueBridgeLink:
		link, err := s.links.IssueUnchecked(ctx, result.Action.Location, result.Action.SenderPhone, "", shortBase)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to issue link for message", "message_id", msg.MessageID, "error", err)
			return
		}
		reply = channel.LinkText(link.ShortURL, time.Duration(link.ExpiresIn)*time.Second)
	default:
		return
	}

	res := s.notifier.Notify(ctx, msg.SenderID, reply)
	logger.DebugContext(ctx, "Reply processed",
		"message_id", msg.MessageID,
		"delivered", res.Delivered,
		"skipped", res.Skipped,
	)
}

// markSeen reports false when id was already seen inside the dedup window.
func (s *webhookService) markSeen(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	now := s.now()
	cutoff := now.Add(-dedupWindow)
	for k, ts := range s.seen {
		if ts.Before(cutoff) {
			delete(s.seen, k)
		}
	}

	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = now
	return true
}
