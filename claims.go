package aegisx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// DevIdentityEmail is the fixed development identity substituted when a
// stored token carries no decodable user projection. Explicitly a
// development convenience, not a security mechanism.
const DevIdentityEmail = "admin@aegisx.local"

// TokenClaims is the projection decoded from an access token's payload
// segment. The signature is never verified client-side; the server is
// the only party that can vouch for the token.
type TokenClaims struct {
	Subject     string
	Email       string
	FirstName   string
	LastName    string
	Role        UserRole
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type tokenPayload struct {
	jwt.RegisteredClaims
	UID         string   `json:"uid,omitempty"`
	Email       string   `json:"email,omitempty"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// DecodeToken decodes the payload segment of raw without verifying the
// signature.
func DecodeToken(raw string) (*TokenClaims, error) {
	payload := &tokenPayload{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, payload); err != nil {
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims := &TokenClaims{
		Subject:     payload.RegisteredClaims.Subject,
		Email:       payload.Email,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		Role:        payload.Role,
		Permissions: payload.Permissions,
	}

	if payload.UID != "" {
		claims.Subject = payload.UID
	}

	if payload.RegisteredClaims.IssuedAt != nil {
		claims.IssuedAt = payload.RegisteredClaims.IssuedAt.Time
	}
	if payload.RegisteredClaims.ExpiresAt != nil {
		claims.ExpiresAt = payload.RegisteredClaims.ExpiresAt.Time
	}

	return claims, nil
}

// Expired reports whether the expiry claim is missing or in the past.
// A missing claim counts as expired (fail-closed).
func (c *TokenClaims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt)
}

// User builds the user projection carried by the token. Returns nil
// when the token has neither a subject nor an email to anchor it.
func (c *TokenClaims) User() *User {
	if c == nil || (c.Subject == "" && c.Email == "") {
		return nil
	}

	return &User{
		ID:          c.Subject,
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Role:        c.Role,
		Permissions: c.Permissions,
	}
}

// IsTokenExpired compares the decoded expiry claim against now. Any
// decode failure counts as expired.
func IsTokenExpired(raw string, now time.Time) bool {
	claims, err := DecodeToken(raw)
	if err != nil {
		return true
	}
	return claims.Expired(now)
}

// DevelopmentUser returns the fixed identity substituted when a stored
// token decodes to nothing usable. The id is derived deterministically
// from the email so repeated startups agree on it.
func DevelopmentUser() *User {
	user := &User{
		Email:     DevIdentityEmail,
		FirstName: "Admin",
		LastName:  "User",
		Role:      RoleAdmin,
	}

	if id, err := hashid.NewUUID(DevIdentityEmail); err == nil {
		user.ID = id.String()
	}

	return user
}
