package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/diagnosis/tablelink/pkg/auth"
	"github.com/diagnosis/tablelink/pkg/config"
	"github.com/diagnosis/tablelink/pkg/logger"
	"github.com/diagnosis/tablelink/services/bridge/internal/service"
)

// Error codes returned in JSON error bodies.
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInvalidToken  = "INVALID_TOKEN"
	CodeExpiredToken  = "EXPIRED_TOKEN"
	CodeInternalError = "INTERNAL_ERROR"
)

type Handlers struct {
	linkService     service.LinkService
	identityService service.IdentityService
	webhookService  service.WebhookService
	signer          *auth.Signer
	config          *config.Config
}

func New(
	linkService service.LinkService,
	identityService service.IdentityService,
	webhookService service.WebhookService,
	signer *auth.Signer,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		linkService:     linkService,
		identityService: identityService,
		webhookService:  webhookService,
		signer:          signer,
		config:          cfg,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSON(w, statusCode, errorResponse{Error: message, Code: code})
}

// shortBase is the scheme and host the request arrived on, honoring
// proxy headers.
func shortBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}

	host := r.Host
	if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}

func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
