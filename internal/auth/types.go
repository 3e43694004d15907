package auth

import (
	"strings"
	"time"
)

// Principal is an authenticated identity.
type Principal struct {
	ID            string     `json:"id"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	DisplayName   string     `json:"display_name"`
	Role          Role       `json:"role"`
	HomeTenantID  string     `json:"home_tenant_id,omitempty"`
	Active        bool       `json:"active"`
	EmailVerified bool       `json:"email_verified"`
	PhoneVerified bool       `json:"phone_verified"`
	PasswordHash  string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the principal has been anonymized.
func (p Principal) Deleted() bool {
	return p.DeletedAt != nil
}

// RefreshToken is the persisted handle behind an opaque refresh string.
type RefreshToken struct {
	Token       string
	PrincipalID string
	ExpiresAt   time.Time
	Revoked     bool
	Remember    bool
	CreatedAt   time.Time
}

// Usable reports whether the record may still be exchanged.
func (t RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// NormalizeEmail lower-cases and trims an email identifier.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips formatting characters from a phone identifier.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IdentifierKind tells which principal identifier a login string names.
type IdentifierKind int

const (
	IdentifierEmail IdentifierKind = iota
	IdentifierPhone
)

// ParseIdentifier classifies identifier and returns its normalized form.
// Anything containing "@" is an email; everything else is a phone number.
func ParseIdentifier(identifier string) (IdentifierKind, string) {
	if strings.Contains(identifier, "@") {
		return IdentifierEmail, NormalizeEmail(identifier)
	}
	return IdentifierPhone, NormalizePhone(identifier)
}

// anonymizedEmail frees the email uniqueness slot of a deleted principal.
func anonymizedEmail(id string) string {
	return "deleted+" + strings.ToLower(id) + "@invalid"
}
