package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/tablelink/pkg/auth"
	"github.com/diagnosis/tablelink/pkg/config"
	"github.com/diagnosis/tablelink/pkg/events"
	"github.com/diagnosis/tablelink/pkg/logger"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/diagnosis/tablelink/services/bridge/internal/registry"
	"github.com/google/go-querystring/query"
)

const (
	SourceAPI     = "api"
	SourceChannel = "channel"
)

type LinkService interface {
	// Issue validates the request before anything is minted.
	Issue(ctx context.Context, req domain.IssueLinkRequest, shortBase string) (*domain.LinkResponse, error)
	// IssueUnchecked accepts partial locations; used by the channel flow.
	IssueUnchecked(ctx context.Context, loc domain.Location, phone, name, shortBase string) (*domain.LinkResponse, error)
	// Redeem returns the destination URL for a live code. Registry errors
	// (ErrCodeUnknown, ErrCodeExpired) are returned unwrapped.
	Redeem(ctx context.Context, code string) (string, error)
}

type linkService struct {
	signer    *auth.Signer
	registry  *registry.Registry
	publisher events.Publisher
	config    *config.Config
	now       func() time.Time
}

func NewLinkService(
	signer *auth.Signer,
	reg *registry.Registry,
	publisher events.Publisher,
	cfg *config.Config,
) LinkService {
	return &linkService{
		signer:    signer,
		registry:  reg,
		publisher: publisher,
		config:    cfg,
		now:       time.Now,
	}
}

func (s *linkService) Issue(ctx context.Context, req domain.IssueLinkRequest, shortBase string) (*domain.LinkResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.issue(ctx, req.Location(), req.Phone, req.Name, shortBase, SourceAPI)
}

func (s *linkService) IssueUnchecked(ctx context.Context, loc domain.Location, phone, name, shortBase string) (*domain.LinkResponse, error) {
	loc.Normalize()
	return s.issue(ctx, loc, phone, name, shortBase, SourceChannel)
}

func (s *linkService) issue(ctx context.Context, loc domain.Location, phone, name, shortBase, source string) (*domain.LinkResponse, error) {
	token, err := s.signer.IssueBridge(auth.Payload{
		Phone:        phone,
		Name:         name,
		RestaurantID: loc.RestaurantID,
		BranchID:     loc.BranchID,
		TableID:      loc.TableID,
	}, s.config.Auth.BridgeTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue bridge credential: %w", err)
	}

	entry, err := s.registry.Put(ctx, token, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to register link: %w", err)
	}

	destination, err := DestinationURL(s.config.Links.PortalBaseURL, token, loc)
	if err != nil {
		return nil, err
	}

	base := s.config.Links.ShortBaseURL
	if base == "" {
		base = shortBase
	}

	logger.InfoContext(ctx, "Bridge link issued",
		"source", source,
		"table_id", loc.TableID,
	)

	events.PublishBestEffort(ctx, s.publisher, events.LinkIssued, events.LinkIssuedEvent{
		Code:         entry.Code,
		RestaurantID: loc.RestaurantID,
		BranchID:     loc.BranchID,
		TableID:      loc.TableID,
		Source:       source,
		ExpiresAt:    s.registry.ExpiresAt(entry.CreatedAt),
	})

	return &domain.LinkResponse{
		URL:       destination,
		ShortURL:  base + "/r/" + entry.Code,
		Token:     token,
		ExpiresIn: int64(s.registry.TTL().Seconds()),
		Code:      entry.Code,
	}, nil
}

func (s *linkService) Redeem(ctx context.Context, code string) (string, error) {
	entry, err := s.registry.Redeem(ctx, code)
	if err != nil {
		return "", err
	}

	destination, err := DestinationURL(s.config.Links.PortalBaseURL, entry.Credential, entry.Location)
	if err != nil {
		return "", err
	}

	events.PublishBestEffort(ctx, s.publisher, events.LinkRedeemed, events.LinkRedeemedEvent{
		Code:       code,
		TableID:    entry.Location.TableID,
		OneTime:    s.registry.OneTime(),
		RedeemedAt: s.now().UTC(),
	})

	return destination, nil
}

type destinationQuery struct {
	Token        string `url:"token"`
	RestaurantID string `url:"restaurantId,omitempty"`
	BranchID     string `url:"branchId,omitempty"`
	TableID      string `url:"tableId,omitempty"`
}

// DestinationURL is the portal entry point carrying the bridge credential
// and the location triple.
func DestinationURL(portalBase, token string, loc domain.Location) (string, error) {
	v, err := query.Values(destinationQuery{
		Token:        token,
		RestaurantID: loc.RestaurantID,
		BranchID:     loc.BranchID,
		TableID:      loc.TableID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode destination query: %w", err)
	}
	return portalBase + "/?" + v.Encode(), nil
}
