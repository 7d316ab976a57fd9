package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/tablelink/pkg/auth"
	"github.com/diagnosis/tablelink/pkg/logger"
	"github.com/diagnosis/tablelink/pkg/middleware"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
)

// Exchange handles POST /api/session/exchange.
func (h *Handlers) Exchange(w http.ResponseWriter, r *http.Request) {
	var req domain.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", CodeInvalidInput)
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required", CodeInvalidInput)
		return
	}

	result, err := h.identityService.Exchange(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredCredential):
			writeError(w, http.StatusUnauthorized, "Bridge token expired", CodeExpiredToken)
		case errors.Is(err, auth.ErrInvalidCredential):
			writeError(w, http.StatusUnauthorized, "Invalid bridge token", CodeInvalidToken)
		default:
			logger.ErrorContext(r.Context(), "Failed to exchange bridge token", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create session", CodeInternalError)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type meResponse struct {
	Guest     bool            `json:"guest"`
	Role      string          `json:"role"`
	Subject   string          `json:"subject"`
	Phone     *string         `json:"phone"`
	Name      string          `json:"name,omitempty"`
	Location  domain.Location `json:"location"`
	ExpiresAt int64           `json:"expiresAt"`
}

// Me handles GET /api/session/me. RequireSession runs first.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Session required", CodeUnauthorized)
		return
	}

	resp := meResponse{
		Guest:   claims.IsGuest(),
		Role:    claims.Role,
		Subject: claims.SubjectID(),
		Name:    claims.Name,
		Location: domain.Location{
			RestaurantID: claims.RestaurantID,
			BranchID:     claims.BranchID,
			TableID:      claims.TableID,
		},
	}
	if claims.Phone != "" {
		phone := claims.Phone
		resp.Phone = &phone
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}

	writeJSON(w, http.StatusOK, resp)
}

type debugError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type debugTokenResponse struct {
	Valid   bool          `json:"valid"`
	Payload *auth.Payload `json:"payload,omitempty"`
	Error   *debugError   `json:"error,omitempty"`
}

// DebugToken handles GET /api/debug/token. It is only routed when debug
// endpoints are enabled.
func (h *Handlers) DebugToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required", CodeInvalidInput)
		return
	}

	claims, err := h.signer.Verify(token)
	if err != nil {
		writeJSON(w, http.StatusOK, debugTokenResponse{
			Error: &debugError{Name: auth.ErrorName(err), Message: err.Error()},
		})
		return
	}

	writeJSON(w, http.StatusOK, debugTokenResponse{Valid: true, Payload: &claims.Payload})
}
