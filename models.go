package aegisx

import (
	"encoding/json"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// User is the authenticated-user projection held by the session. It is
// immutable once constructed: the Client replaces it wholesale, never
// mutates it in place. Display name and initials are computed, never
// stored.
type User struct {
	ID          string   `json:"id,omitempty"`
	Email       string   `json:"email,omitempty"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Role        UserRole `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// DisplayName joins first and last name, falling back to the local
// part of the email, then the raw email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}

	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}

	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// Initials returns up to two uppercase initials derived from the
// display name.
func (u *User) Initials() string {
	name := u.DisplayName()
	if name == "" {
		return ""
	}

	parts := strings.Fields(name)
	initials := strings.ToUpper(parts[0][:1])
	if len(parts) > 1 {
		initials += strings.ToUpper(parts[len(parts)-1][:1])
	}
	return initials
}

// HasPermission checks the explicit permission list first and falls
// back to the role hierarchy when the list grants nothing.
func (u *User) HasPermission(permission string) bool {
	if u == nil {
		return false
	}

	for _, granted := range u.Permissions {
		if MatchPermission(granted, permission) {
			return true
		}
	}

	action := permission
	if idx := strings.LastIndex(permission, ":"); idx >= 0 {
		action = permission[idx+1:]
	}

	switch action {
	case "read", "view":
		return RoleCanRead(u.Role)
	case "edit", "update":
		return RoleCanEdit(u.Role)
	case "create":
		return RoleCanCreate(u.Role)
	case "delete":
		return RoleCanDelete(u.Role)
	default:
		return false
	}
}

// Clone returns a copy safe to hand across the read-only boundary.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}

	clone := *u
	if u.Permissions != nil {
		clone.Permissions = make([]string, len(u.Permissions))
		copy(clone.Permissions, u.Permissions)
	}
	return &clone
}

// LoginPayload carries the credential exchange request.
type LoginPayload struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"-"`
}

// Validate checks the payload before it goes on the wire.
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
	)
}

// RegisterPayload carries the account creation request.
type RegisterPayload struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Validate checks the payload before it goes on the wire.
func (p RegisterPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 0)),
	)
}

// apiEnvelope is the response wrapper every AegisX endpoint uses.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// authPayload is the data section returned by login, register and
// refresh. Refresh responses only populate AccessToken.
type authPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
	User         *User  `json:"user,omitempty"`
}
