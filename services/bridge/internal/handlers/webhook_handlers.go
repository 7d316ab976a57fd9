package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/diagnosis/tablelink/pkg/logger"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
)

const maxWebhookBody = 1 << 20

// WebhookVerify handles GET /webhook/whatsapp.
func (h *Handlers) WebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := h.webhookService.Verify(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if !ok {
		logger.WarnContext(r.Context(), "Webhook verification rejected", "mode", q.Get("hub.mode"))
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden"))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// WebhookReceive handles POST /webhook/whatsapp. It always answers 200:
// a failed acknowledgment makes the channel redeliver, which is worse than
// dropping one bad event.
func (h *Handlers) WebhookReceive(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(r.Context(), "Panic in webhook", "panic", rec)
		}
		ack(w)
	}()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		logger.WarnContext(r.Context(), "Failed to read webhook body", "error", err)
		return
	}

	if !h.webhookService.VerifySignature(raw, r.Header.Get("X-Hub-Signature-256")) {
		logger.WarnContext(r.Context(), "Webhook signature mismatch, event dropped")
		return
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logger.WarnContext(r.Context(), "Invalid webhook payload", "error", err)
		return
	}

	h.webhookService.Accept(r.Context(), payload, shortBase(r))
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))
}
