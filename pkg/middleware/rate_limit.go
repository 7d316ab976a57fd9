package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/tablelink/pkg/logger"
)

// RateLimitStore counts hits per key inside a fixed window.
type RateLimitStore interface {
	// Hit records one request for key and returns the count in the
	// current window.
	Hit(ctx context.Context, key string, window time.Duration) (int, error)
}

type RateLimitConfig struct {
	Requests int                            // max requests per window
	Window   time.Duration                  // window length
	Scope    string                         // prefixed to keys so routes count separately
	KeyFunc  func(r *http.Request) []string // rate limit keys for a request
	SkipFunc func(r *http.Request) bool

	// TrustedProxies are the networks whose forwarding headers are believed
	// by the default key function.
	TrustedProxies []netip.Prefix
}

type RateLimiter struct {
	store  RateLimitStore
	config RateLimitConfig
}

func NewRateLimiter(store RateLimitStore, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKeyFunc(config.TrustedProxies)
	}
	return &RateLimiter{store: store, config: config}
}

// Middleware rejects requests over the limit with 429. Store errors let the
// request through.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl == nil || rl.config.Requests <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if rl.config.SkipFunc != nil && rl.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			for _, key := range rl.config.KeyFunc(r) {
				if !rl.allow(r.Context(), key) {
					w.Header().Set("Retry-After", strconv.Itoa(int(rl.config.Window.Seconds())))
					writeError(w, http.StatusTooManyRequests, "Too many requests. Try again later.", "RATE_LIMIT_EXCEEDED")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// For returns the middleware counting under its own scope, so each route
// gets a separate budget.
func (rl *RateLimiter) For(scope string) func(http.Handler) http.Handler {
	if rl == nil {
		return rl.Middleware()
	}
	scoped := *rl
	scoped.config.Scope = scope
	return scoped.Middleware()
}

func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	hashed := fmt.Sprintf("%x", sha256.Sum256([]byte(rl.config.Scope+":"+key)))

	count, err := rl.store.Hit(ctx, hashed, rl.config.Window)
	if err != nil {
		logger.WarnContext(ctx, "Rate limit check failed, allowing request", "error", err)
		return true
	}
	return count <= rl.config.Requests
}

// ClientIPKeyFunc limits by client IP as seen through trusted proxies.
func ClientIPKeyFunc(trusted []netip.Prefix) func(r *http.Request) []string {
	return func(r *http.Request) []string {
		if ip := clientIP(r, trusted); ip != "" {
			return []string{"ip:" + ip}
		}
		return nil
	}
}

// ParseTrustedProxies accepts CIDRs or bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

// clientIP is the peer address unless the peer is a trusted proxy. Then
// X-Forwarded-For is walked from the right and the first hop outside the
// trusted networks wins, so a client cannot choose its own key by
// prepending entries.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !isTrusted(remote, trusted) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return remote
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
