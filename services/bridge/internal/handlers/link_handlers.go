package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/tablelink/pkg/logger"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/diagnosis/tablelink/services/bridge/internal/registry"
	"github.com/go-chi/chi/v5"
)

// IssueLink handles POST /api/links. The route requires a staff session, so
// the phone in the request is one the back office vouches for.
func (h *Handlers) IssueLink(w http.ResponseWriter, r *http.Request) {
	var req domain.IssueLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", CodeInvalidInput)
		return
	}

	resp, err := h.linkService.Issue(r.Context(), req, shortBase(r))
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error(), CodeInvalidInput)
			return
		}
		logger.ErrorContext(r.Context(), "Failed to issue link", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue link", CodeInternalError)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Redeem handles GET /r/{code}. It never lets a panic or error escape as
// anything other than a rendered page.
func (h *Handlers) Redeem(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(r.Context(), "Panic during redemption", "panic", rec)
			renderPage(w, http.StatusInternalServerError, pageError)
		}
	}()

	code := chi.URLParam(r, "code")

	destination, err := h.linkService.Redeem(r.Context(), code)
	switch {
	case err == nil:
		http.Redirect(w, r, destination, http.StatusFound)
	case errors.Is(err, registry.ErrCodeUnknown):
		renderPage(w, http.StatusNotFound, pageNotFound)
	case errors.Is(err, registry.ErrCodeExpired):
		renderPage(w, http.StatusGone, pageExpired)
	default:
		logger.ErrorContext(r.Context(), "Failed to redeem link", "error", err)
		renderPage(w, http.StatusInternalServerError, pageError)
	}
}
