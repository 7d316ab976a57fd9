package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/tablelink/pkg/auth"
	"github.com/diagnosis/tablelink/pkg/events"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/diagnosis/tablelink/services/bridge/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLinkService(t *testing.T) (*linkService, *testClock, *mockPublisher) {
	t.Helper()
	cfg := testConfig()
	clock := newTestClock()
	pub := &mockPublisher{}
	svc := NewLinkService(newTestSigner(t, clock), newTestRegistry(cfg, clock), pub, cfg).(*linkService)
	svc.now = clock.Now
	return svc, clock, pub
}

func TestLinkServiceIssue(t *testing.T) {
	svc, clock, pub := newTestLinkService(t)
	ctx := context.Background()

	resp, err := svc.Issue(ctx, domain.IssueLinkRequest{
		RestaurantID: " R1 ",
		BranchID:     "B1",
		TableID:      "T1",
		Phone:        "+1 (555) 000-1111",
	}, "https://short.example")
	require.NoError(t, err)

	assert.Len(t, resp.Code, registry.CodeLength)
	assert.Equal(t, "https://short.example/r/"+resp.Code, resp.ShortURL)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	u, err := url.Parse(resp.URL)
	require.NoError(t, err)
	assert.Equal(t, "portal.example.com", u.Host)
	assert.Equal(t, "/", u.Path)
	assert.Equal(t, resp.Token, u.Query().Get("token"))
	assert.Equal(t, "R1", u.Query().Get("restaurantId"))
	assert.Equal(t, "B1", u.Query().Get("branchId"))
	assert.Equal(t, "T1", u.Query().Get("tableId"))

	signer := newTestSigner(t, clock)
	claims, err := signer.VerifyKind(resp.Token, auth.KindBridge)
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", claims.Phone)
	assert.Equal(t, "T1", claims.TableID)

	assert.Equal(t, []string{events.LinkIssued}, pub.subjects())
}

func TestLinkServiceIssueValidation(t *testing.T) {
	svc, _, pub := newTestLinkService(t)

	tests := []struct {
		name  string
		req   domain.IssueLinkRequest
		field string
	}{
		{"missing restaurant", domain.IssueLinkRequest{BranchID: "B1", TableID: "T1"}, "restaurantId"},
		{"missing branch", domain.IssueLinkRequest{RestaurantID: "R1", TableID: "T1"}, "branchId"},
		{"missing table", domain.IssueLinkRequest{RestaurantID: "R1", BranchID: "B1", TableID: "   "}, "tableId"},
		{"bad phone", domain.IssueLinkRequest{RestaurantID: "R1", BranchID: "B1", TableID: "T1", Phone: "12"}, "phone"},
		{"long name", domain.IssueLinkRequest{RestaurantID: "R1", BranchID: "B1", TableID: "T1", Name: strings.Repeat("x", 121)}, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Issue(context.Background(), tt.req, "https://short.example")
			require.Error(t, err)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, pub.subjects(), "nothing is minted for invalid requests")
}

func TestLinkServiceConfiguredShortBase(t *testing.T) {
	svc, _, _ := newTestLinkService(t)
	svc.config.Links.ShortBaseURL = "https://tbl.link"

	resp, err := svc.IssueUnchecked(context.Background(), domain.Location{TableID: "T1"}, "", "", "http://derived.local")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.ShortURL, "https://tbl.link/r/"))
}

func TestLinkServiceIssueUncheckedPartialLocation(t *testing.T) {
	svc, _, _ := newTestLinkService(t)

	resp, err := svc.IssueUnchecked(context.Background(), domain.Location{TableID: "A12"}, "+15550001111", "", "http://localhost:8080")
	require.NoError(t, err)

	u, err := url.Parse(resp.URL)
	require.NoError(t, err)
	assert.Equal(t, "A12", u.Query().Get("tableId"))
	assert.False(t, u.Query().Has("restaurantId"))
}

func TestLinkServiceRedeem(t *testing.T) {
	svc, clock, pub := newTestLinkService(t)
	ctx := context.Background()

	resp, err := svc.Issue(ctx, domain.IssueLinkRequest{RestaurantID: "R1", BranchID: "B1", TableID: "T1"}, "http://localhost")
	require.NoError(t, err)

	dest, err := svc.Redeem(ctx, resp.Code)
	require.NoError(t, err)
	assert.Equal(t, resp.URL, dest)
	assert.Equal(t, []string{events.LinkIssued, events.LinkRedeemed}, pub.subjects())

	clock.Advance(time.Hour)
	_, err = svc.Redeem(ctx, resp.Code)
	assert.ErrorIs(t, err, registry.ErrCodeExpired)

	_, err = svc.Redeem(ctx, "nope")
	assert.ErrorIs(t, err, registry.ErrCodeUnknown)
}

func TestDestinationURL(t *testing.T) {
	got, err := DestinationURL("https://portal.example.com", "a.b.c", domain.Location{RestaurantID: "R1", BranchID: "B 1", TableID: "T1"})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", u.Query().Get("token"))
	assert.Equal(t, "B 1", u.Query().Get("branchId"))
}
