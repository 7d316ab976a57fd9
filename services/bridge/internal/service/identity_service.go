package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/diagnosis/tablelink/pkg/auth"
	"github.com/diagnosis/tablelink/pkg/config"
	"github.com/diagnosis/tablelink/pkg/events"
	"github.com/diagnosis/tablelink/pkg/logger"
	"github.com/diagnosis/tablelink/pkg/utils"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/diagnosis/tablelink/services/bridge/internal/repository"
)

type IdentityService interface {
	// Resolve never writes. A failed customer lookup falls back to a guest
	// identity.
	Resolve(ctx context.Context, phone string, loc domain.Location) (*domain.SessionResult, error)
	// Exchange verifies a bridge credential and resolves its payload.
	Exchange(ctx context.Context, bridgeToken string) (*domain.SessionResult, error)
}

type identityService struct {
	customers repository.CustomerRepository
	signer    *auth.Signer
	publisher events.Publisher
	config    *config.Config
	now       func() time.Time
}

func NewIdentityService(
	customers repository.CustomerRepository,
	signer *auth.Signer,
	publisher events.Publisher,
	cfg *config.Config,
) IdentityService {
	return &identityService{
		customers: customers,
		signer:    signer,
		publisher: publisher,
		config:    cfg,
		now:       time.Now,
	}
}

func (s *identityService) Exchange(ctx context.Context, bridgeToken string) (*domain.SessionResult, error) {
	claims, err := s.signer.VerifyKind(bridgeToken, auth.KindBridge)
	if err != nil {
		return nil, err
	}

	loc := domain.Location{
		RestaurantID: claims.RestaurantID,
		BranchID:     claims.BranchID,
		TableID:      claims.TableID,
	}
	return s.resolve(ctx, claims.Phone, claims.Name, loc)
}

func (s *identityService) Resolve(ctx context.Context, phone string, loc domain.Location) (*domain.SessionResult, error) {
	return s.resolve(ctx, phone, "", loc)
}

func (s *identityService) resolve(ctx context.Context, phone, name string, loc domain.Location) (*domain.SessionResult, error) {
	phone = utils.NormalizePhone(phone)
	loc.Normalize()

	if phone != "" && s.customers != nil {
		customer, err := s.customers.FindByPhone(ctx, phone, loc.RestaurantID)
		if err != nil {
			logger.WarnContext(ctx, "Customer lookup failed, continuing as guest",
				"phone", logger.MaskPhone(phone),
				"error", err,
			)
		} else if customer != nil {
			return s.customerSession(ctx, customer, phone, loc)
		}
	}

	return s.guestSession(ctx, phone, name, loc)
}

func (s *identityService) customerSession(ctx context.Context, c *domain.Customer, phone string, loc domain.Location) (*domain.SessionResult, error) {
	if loc.RestaurantID == "" {
		loc.RestaurantID = c.RestaurantID
	}

	ttl := s.config.Auth.CustomerSessionTTL
	token, err := s.signer.IssueSession(auth.Payload{
		Phone:        phone,
		Name:         c.Name,
		RestaurantID: loc.RestaurantID,
		BranchID:     loc.BranchID,
		TableID:      loc.TableID,
		Role:         auth.RoleCustomer,
		CustomerID:   c.ID,
	}, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue customer session: %w", err)
	}

	s.publishResolved(ctx, false, c.ID, loc)

	return &domain.SessionResult{
		Identity: domain.ResolvedIdentity{
			Guest:      false,
			CustomerID: c.ID,
			Name:       c.Name,
			Email:      c.Email,
			Phone:      &phone,
			Location:   loc,
		},
		SessionToken: token,
		ExpiresIn:    int64(ttl.Seconds()),
	}, nil
}

func (s *identityService) guestSession(ctx context.Context, phone, name string, loc domain.Location) (*domain.SessionResult, error) {
	ephemeralID, err := s.ephemeralID(phone)
	if err != nil {
		return nil, err
	}

	ttl := s.config.Auth.GuestSessionTTL
	token, err := s.signer.IssueSession(auth.Payload{
		Phone:        phone,
		Name:         name,
		RestaurantID: loc.RestaurantID,
		BranchID:     loc.BranchID,
		TableID:      loc.TableID,
		Role:         auth.RoleGuest,
		EphemeralID:  ephemeralID,
	}, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue guest session: %w", err)
	}

	s.publishResolved(ctx, true, "", loc)

	identity := domain.ResolvedIdentity{
		Guest:       true,
		EphemeralID: ephemeralID,
		Name:        name,
		Location:    loc,
	}
	if phone != "" {
		identity.Phone = &phone
	}

	return &domain.SessionResult{
		Identity:     identity,
		SessionToken: token,
		ExpiresIn:    int64(ttl.Seconds()),
	}, nil
}

// ephemeralID is guest_<digits|anon>_<unix millis>_<random hex>.
func (s *identityService) ephemeralID(phone string) (string, error) {
	who := utils.PhoneDigits(phone)
	if who == "" {
		who = "anon"
	}

	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate guest id: %w", err)
	}
	return fmt.Sprintf("guest_%s_%d_%s", who, s.now().UnixMilli(), hex.EncodeToString(b)), nil
}

func (s *identityService) publishResolved(ctx context.Context, guest bool, customerID string, loc domain.Location) {
	events.PublishBestEffort(ctx, s.publisher, events.SessionResolved, events.SessionResolvedEvent{
		Guest:        guest,
		CustomerID:   customerID,
		RestaurantID: loc.RestaurantID,
		TableID:      loc.TableID,
		ResolvedAt:   s.now().UTC(),
	})
}
