package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Credential kinds.
const (
	KindBridge  = "bridge"
	KindSession = "session"
)

// Session roles. Downstream authorization must check these. Staff
// sessions are minted by the back office with the shared secret and are
// the only ones allowed to issue links over the API.
const (
	RoleGuest    = "guest"
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

const audience = "tablelink"

// Payload is the identity and location hint carried by a credential.
type Payload struct {
	Phone        string `json:"phone,omitempty"`
	Name         string `json:"name,omitempty"`
	RestaurantID string `json:"restaurantId,omitempty"`
	BranchID     string `json:"branchId,omitempty"`
	TableID      string `json:"tableId,omitempty"`
	Kind         string `json:"kind"`
	Role         string `json:"role,omitempty"`
	CustomerID   string `json:"customerId,omitempty"`
	EphemeralID  string `json:"ephemeralId,omitempty"`
	StaffID      string `json:"staffId,omitempty"`
}

// SubjectID is the id the session acts as.
func (p Payload) SubjectID() string {
	switch p.Role {
	case RoleCustomer:
		return p.CustomerID
	case RoleStaff:
		return p.StaffID
	default:
		return p.EphemeralID
	}
}

// IsGuest reports whether a session credential carries the guest role.
func (p Payload) IsGuest() bool {
	return p.Role == RoleGuest
}

type Claims struct {
	Payload
	jwt.RegisteredClaims
}

func (c *Claims) validateShape() error {
	switch c.Kind {
	case KindBridge:
	case KindSession:
		switch c.Role {
		case RoleGuest:
		case RoleCustomer:
			if c.CustomerID == "" {
				return errMissingField("customerId")
			}
		case RoleStaff:
			if c.StaffID == "" {
				return errMissingField("staffId")
			}
		default:
			return errMissingField("role")
		}
	case "":
		return errMissingField("kind")
	default:
		return errUnknownKind(c.Kind)
	}
	if c.IssuedAt == nil {
		return errMissingField("iat")
	}
	return nil
}
