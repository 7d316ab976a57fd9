package registry

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
)

var (
	ErrCodeUnknown   = errors.New("link code unknown")
	ErrCodeExpired   = errors.New("link code expired")
	ErrCodeCollision = errors.New("could not allocate a free link code")
)

const (
	// codeBytes random bytes give 72 bits of entropy and a 12 character code.
	codeBytes  = 9
	CodeLength = 12

	maxPutAttempts = 3

	// expiredGrace keeps expired entries around in stores that reclaim on
	// their own, so a late redemption still reports "expired".
	expiredGrace = time.Hour
)

// Registry maps short codes to bridge credentials with lazy TTL expiry and
// optional one-time consumption.
type Registry struct {
	store   Store
	ttl     time.Duration
	oneTime bool
	now     func() time.Time
	rand    func([]byte) (int, error)
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithRandom replaces crypto/rand.Read for code generation.
func WithRandom(read func([]byte) (int, error)) Option {
	return func(r *Registry) { r.rand = read }
}

func New(store Store, ttl time.Duration, oneTime bool, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		ttl:     ttl,
		oneTime: oneTime,
		now:     time.Now,
		rand:    rand.Read,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) TTL() time.Duration { return r.ttl }
func (r *Registry) OneTime() bool      { return r.oneTime }

// NewCode returns a fresh URL-safe code of CodeLength characters.
func (r *Registry) NewCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := r.rand(b); err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Put stores credential and location under a new code. A code that is
// already live is never overwritten; generation is retried instead.
func (r *Registry) Put(ctx context.Context, credential string, loc domain.Location) (domain.LinkEntry, error) {
	entry := domain.LinkEntry{
		Credential: credential,
		Location:   loc,
		CreatedAt:  r.now(),
	}

	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		code, err := r.NewCode()
		if err != nil {
			return domain.LinkEntry{}, err
		}
		entry.Code = code

		stored, err := r.store.PutNew(ctx, entry, r.ttl+expiredGrace)
		if err != nil {
			return domain.LinkEntry{}, fmt.Errorf("failed to store link: %w", err)
		}
		if stored {
			return entry, nil
		}
	}
	return domain.LinkEntry{}, ErrCodeCollision
}

// Redeem returns the entry for code if it is live. Expired entries are
// deleted and reported as ErrCodeExpired. In one-time mode the entry is
// deleted before it is returned; losing that delete to a concurrent
// redemption yields ErrCodeUnknown.
func (r *Registry) Redeem(ctx context.Context, code string) (domain.LinkEntry, error) {
	entry, err := r.store.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return domain.LinkEntry{}, ErrCodeUnknown
	}
	if err != nil {
		return domain.LinkEntry{}, fmt.Errorf("failed to read link: %w", err)
	}

	if r.now().Sub(entry.CreatedAt) >= r.ttl {
		if _, err := r.store.Delete(ctx, code); err != nil {
			return domain.LinkEntry{}, fmt.Errorf("failed to delete expired link: %w", err)
		}
		return domain.LinkEntry{}, ErrCodeExpired
	}

	if r.oneTime {
		deleted, err := r.store.Delete(ctx, code)
		if err != nil {
			return domain.LinkEntry{}, fmt.Errorf("failed to consume link: %w", err)
		}
		if !deleted {
			return domain.LinkEntry{}, ErrCodeUnknown
		}
	}
	return entry, nil
}

// Delete removes code regardless of its state.
func (r *Registry) Delete(ctx context.Context, code string) error {
	_, err := r.store.Delete(ctx, code)
	return err
}

// ExpiresAt is when an entry created at createdAt stops being live.
func (r *Registry) ExpiresAt(createdAt time.Time) time.Time {
	return createdAt.Add(r.ttl)
}
