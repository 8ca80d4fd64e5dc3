// Package auth issues and checks the bearer tokens of the users API.
//
// CLIENT CREDENTIALS FLOW:
//  1. A registered API client POSTs its client_id and client_secret to
//     /oauth/token with grant_type=client_credentials
//  2. The server verifies the secret against the stored bcrypt hash
//  3. The server answers with a signed JWT access token and its lifetime
//  4. The client sends "Authorization: Bearer <token>" on every call;
//     RequireBearer validates it and stores the client ID in the context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"iss":"user-directory","sub":"<client_id>","jti":"<xid>","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// Tokens are stateless. Nothing is stored server-side; the jti only makes
// every token unique for log correlation.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "user-directory"

// DefaultTokenTTL is the access token lifetime used when none is configured.
const DefaultTokenTTL = 15 * time.Minute

// ErrTokenExpired is returned by Validate for a well-formed token past its
// expiry.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret used for both signing and verifying, so the
// same secret must be configured on every instance of the server.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. ttl <= 0 means DefaultTokenTTL.
// Example secret: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the lifetime of tokens issued by Issue.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs an access token for the given client ID with the configured
// lifetime.
func (s *TokenService) Issue(clientID string) (string, error) {
	return s.IssueWithTTL(clientID, s.ttl)
}

// IssueWithTTL signs a token with a custom lifetime. A negative d yields an
// already expired token, which the tests use.
//
// Signing algorithm: HS256 (HMAC-SHA256). Symmetric, same key for signing
// and verifying.
func (s *TokenService) IssueWithTTL(clientID string, d time.Duration) (string, error) {
	if clientID == "" {
		return "", errors.New("auth: client ID must not be empty")
	}

	now := time.Now()
	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Subject:   clientID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string and returns the client ID in
// its "sub" claim.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired, and carries an expiry at all
//   - Issuer is "user-directory"
//   - Algorithm is HS256, which rules out "none" and algorithm confusion
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
