package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/tablelink/pkg/utils"
)

// ValidationError is returned before any credential is minted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type IssueLinkRequest struct {
	RestaurantID string `json:"restaurantId"`
	BranchID     string `json:"branchId"`
	TableID      string `json:"tableId"`
	Phone        string `json:"phone,omitempty"`
	Name         string `json:"name,omitempty"`
}

func (r *IssueLinkRequest) Normalize() {
	r.RestaurantID = strings.TrimSpace(r.RestaurantID)
	r.BranchID = strings.TrimSpace(r.BranchID)
	r.TableID = strings.TrimSpace(r.TableID)
	r.Phone = utils.NormalizePhone(r.Phone)
	r.Name = strings.TrimSpace(r.Name)
}

func (r *IssueLinkRequest) Validate() error {
	if r.RestaurantID == "" {
		return &ValidationError{Field: "restaurantId", Message: "is required"}
	}
	if r.BranchID == "" {
		return &ValidationError{Field: "branchId", Message: "is required"}
	}
	if r.TableID == "" {
		return &ValidationError{Field: "tableId", Message: "is required"}
	}
	if r.Phone != "" && !utils.IsValidPhone(r.Phone) {
		return &ValidationError{Field: "phone", Message: "invalid phone format"}
	}
	if len(r.Name) > 120 {
		return &ValidationError{Field: "name", Message: "must be at most 120 characters"}
	}
	return nil
}

func (r *IssueLinkRequest) Location() Location {
	return Location{RestaurantID: r.RestaurantID, BranchID: r.BranchID, TableID: r.TableID}
}

type LinkResponse struct {
	URL       string `json:"url"`
	ShortURL  string `json:"shortUrl"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	Code      string `json:"code"`
}

// LinkEntry is what the registry keeps per short code.
type LinkEntry struct {
	Code       string    `json:"code"`
	Credential string    `json:"credential"`
	Location   Location  `json:"location"`
	CreatedAt  time.Time `json:"createdAt"`
}
