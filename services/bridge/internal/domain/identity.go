package domain

import "time"

type Customer struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Table struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	BranchID     string `json:"branchId"`
	RestaurantID string `json:"restaurantId"`
}

// ResolvedIdentity is either a guest (EphemeralID set) or a persisted
// customer (CustomerID set).
type ResolvedIdentity struct {
	Guest       bool     `json:"guest"`
	EphemeralID string   `json:"ephemeralId,omitempty"`
	CustomerID  string   `json:"customerId,omitempty"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       *string  `json:"phone"`
	Location    Location `json:"location"`
}

type SessionResult struct {
	Identity     ResolvedIdentity `json:"identity"`
	SessionToken string           `json:"sessionToken"`
	ExpiresIn    int64            `json:"expiresIn"`
}

type ExchangeRequest struct {
	Token string `json:"token"`
}
