package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/tablelink/pkg/auth"
	"github.com/diagnosis/tablelink/pkg/config"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/diagnosis/tablelink/services/bridge/internal/registry"
	"github.com/stretchr/testify/require"
)

// ---------- Mocks ----------

type mockCustomerRepo struct {
	customers map[string]*domain.Customer // phone digits -> customer
	err       error
	calls     int
}

func (m *mockCustomerRepo) FindByPhone(_ context.Context, phone, restaurantID string) (*domain.Customer, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.customers[phone]
	if !ok {
		return nil, nil
	}
	if restaurantID != "" && c.RestaurantID != restaurantID {
		return nil, nil
	}
	return c, nil
}

type published struct {
	subject string
	data    interface{}
}

type mockPublisher struct {
	mu     sync.Mutex
	events []published
}

func (m *mockPublisher) Publish(_ context.Context, subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, published{subject: subject, data: data})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.subject)
	}
	return out
}

type sentMessage struct {
	to   string
	text string
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockSender) SendText(_ context.Context, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{to: to, text: text})
	return m.err
}

func (m *mockSender) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// ---------- Fixtures ----------

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret",
			BridgeTokenTTL:     60 * time.Minute,
			GuestSessionTTL:    2 * time.Hour,
			CustomerSessionTTL: 720 * time.Hour,
		},
		Links: config.LinkConfig{
			TTLMinutes:    60,
			Store:         "memory",
			PortalBaseURL: "https://portal.example.com",
		},
		WhatsApp: config.WhatsAppConfig{
			VerifyToken: "verify-me",
		},
	}
}

func newTestSigner(t *testing.T, clock *testClock) *auth.Signer {
	t.Helper()
	signer, err := auth.NewSigner("test-secret", auth.WithClock(clock.Now))
	require.NoError(t, err)
	return signer
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestRegistry(cfg *config.Config, clock *testClock) *registry.Registry {
	return registry.New(registry.NewMemoryStore(), cfg.Links.TTL(), cfg.Links.OneTime, registry.WithClock(clock.Now))
}
