package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role issued today.
const RoleAdmin = "admin"

// Claims represents the identity contained in an admin token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
	ErrBadPassword   = errors.New("invalid credentials")
)

// Signer issues and verifies HS256 tokens with a fixed secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner builds a signer. An empty secret is rejected outside dev-like
// environments and replaced with a fixed development secret otherwise.
func NewSigner(secret string, ttl time.Duration, devLike bool) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		if !devLike {
			return nil, ErrMissingSecret
		}
		secret = "dev-secret"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// AdminClaims returns claims for the admin role with the given subject.
func AdminClaims(sub string) Claims {
	return Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
}

// Sign signs the given claims, filling iat and exp when unset.
func (s *Signer) Sign(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("sub is required")
	}
	now := s.now()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the claims.
func (s *Signer) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Signer) TTL() time.Duration { return s.ttl }

// CheckPassword compares a submitted password with the configured one in
// constant time. An unconfigured password never matches.
func CheckPassword(configured, submitted string) error {
	if configured == "" {
		return ErrBadPassword
	}
	a := sha256.Sum256([]byte(configured))
	b := sha256.Sum256([]byte(submitted))
	if subtle.ConstantTimeCompare(a[:], b[:]) != 1 {
		return ErrBadPassword
	}
	return nil
}
