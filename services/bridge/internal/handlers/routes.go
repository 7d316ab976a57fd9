package handlers

import (
	"net/http"
	"time"

	"github.com/diagnosis/tablelink/pkg/auth"
	mw "github.com/diagnosis/tablelink/pkg/middleware"
	"github.com/go-chi/chi/v5"
)

const idempotencyTTL = 24 * time.Hour

// Router builds the bridge's HTTP surface. limiter may be nil.
func (h *Handlers) Router(idempotency mw.IdempotencyStore, limiter *mw.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bridge"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.Health)
	r.Use(mw.CORS(h.config.Server.CORSOrigins))

	r.Route("/webhook/whatsapp", func(r chi.Router) {
		r.Get("/", h.WebhookVerify)
		r.Post("/", h.WebhookReceive)
	})

	r.With(limiter.For("redeem")).Get("/r/{code}", h.Redeem)

	r.Route("/api", func(r chi.Router) {
		r.With(
			limiter.For("issue"),
			mw.RequireSession(h.signer, auth.RoleStaff),
			mw.Idempotency(idempotency, idempotencyTTL),
		).Post("/links", h.IssueLink)

		r.Route("/session", func(r chi.Router) {
			r.With(limiter.For("exchange")).Post("/exchange", h.Exchange)
			r.With(mw.RequireSession(h.signer, auth.RoleGuest, auth.RoleCustomer)).Get("/me", h.Me)
		})

		if h.config.Debug.Endpoints {
			r.Get("/debug/token", h.DebugToken)
		}
	})

	return r
}
