package domain

import "strings"

// Location is the (restaurant, branch, table) ordering context.
type Location struct {
	RestaurantID string `json:"restaurantId,omitempty"`
	BranchID     string `json:"branchId,omitempty"`
	TableID      string `json:"tableId,omitempty"`
}

func (l Location) IsEmpty() bool {
	return l.RestaurantID == "" && l.BranchID == "" && l.TableID == ""
}

func (l Location) IsComplete() bool {
	return l.RestaurantID != "" && l.BranchID != "" && l.TableID != ""
}

// Normalize trims every id.
func (l *Location) Normalize() {
	l.RestaurantID = strings.TrimSpace(l.RestaurantID)
	l.BranchID = strings.TrimSpace(l.BranchID)
	l.TableID = strings.TrimSpace(l.TableID)
}
