package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("expired credential")
)

func errMissingField(name string) error {
	return fmt.Errorf("%w: missing %s", ErrInvalidCredential, name)
}

func errUnknownKind(kind string) error {
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidCredential, kind)
}

// Signer issues and verifies HS256 credentials. It holds no state beyond
// the secret and the clock.
type Signer struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Signer)

// WithClock replaces time.Now for both issuance and verification.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSigner(secret string, opts ...Option) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signer secret is required")
	}
	s := &Signer{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs payload with an expiry of ttl from now.
func (s *Signer) Issue(p Payload, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	now := s.now()
	claims := Claims{
		Payload: p,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{audience},
		},
	}
	if err := claims.validateShape(); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

func (s *Signer) IssueBridge(p Payload, ttl time.Duration) (string, error) {
	p.Kind = KindBridge
	p.Role = ""
	return s.Issue(p, ttl)
}

func (s *Signer) IssueSession(p Payload, ttl time.Duration) (string, error) {
	p.Kind = KindSession
	return s.Issue(p, ttl)
}

// Verify returns the claims of a credential signed by this signer. Errors
// wrap ErrInvalidCredential or ErrExpiredCredential.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithAudience(audience),
		jwt.WithStrictDecoding(),
	)

	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredCredential, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidCredential
	}
	if err := claims.validateShape(); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyKind is Verify plus a check on the credential kind.
func (s *Signer) VerifyKind(tokenString, kind string) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s credential, got %s", ErrInvalidCredential, kind, claims.Kind)
	}
	return claims, nil
}

// ErrorName is the short name used by introspection responses.
func ErrorName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExpiredCredential):
		return "ExpiredCredential"
	case errors.Is(err, ErrInvalidCredential):
		return "InvalidCredential"
	default:
		return "Error"
	}
}
