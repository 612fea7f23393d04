package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"speechplay/internal/game"
)

const tokenIssuer = "speechplay"

var (
	// ErrInvalidToken is returned for any token that fails verification
	ErrInvalidToken = errors.New("invalid participant token")
	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("token signing secret is not configured")
)

// Participant is the verified identity behind a request
type Participant struct {
	ID   string
	Role game.Role
}

// Actor converts the participant into a game actor
func (p Participant) Actor() game.Actor {
	return game.Actor{ID: p.ID, Role: p.Role}
}

type participantClaims struct {
	jwt.RegisteredClaims
	Role game.Role `json:"role"`
}

// TokenIssuer signs and verifies HS256 participant tokens. Tokens are
// minted by the surrounding auth layer once it has logged a person in.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer for secret with the given token lifetime
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for participant id acting in role
func (ti *TokenIssuer) Issue(id string, role game.Role) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("participant id is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("invalid role %q", role)
	}

	now := ti.now()
	claims := participantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// Verify parses a token and returns the participant it names
func (ti *TokenIssuer) Verify(token string) (Participant, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
	)
	claims := &participantClaims{}

	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return ti.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Participant{}, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Participant{}, ErrInvalidToken
	}
	return Participant{ID: claims.Subject, Role: claims.Role}, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
