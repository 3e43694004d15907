package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/ids"
)

const (
	defaultAccessTTL          = 30 * time.Minute
	defaultRefreshTTL         = 7 * 24 * time.Hour
	defaultRememberMultiplier = 4
	defaultIssuer             = "hostelhub"
	refreshTokenBytes         = 32
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

// Claims are the verified contents of an access token.
type Claims struct {
	Role         Role   `json:"role"`
	HomeTenantID string `json:"home_tenant_id,omitempty"`
	Email        string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the result of issuing or rotating credentials.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"`
}

// TokenService mints and verifies access tokens and manages refresh records.
type TokenService struct {
	principals PrincipalStore
	refresh    RefreshTokenStore
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	remember   int
	now        func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl < 0 {
			return errors.New("auth: access ttl must be positive")
		}
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl < 0 {
			return errors.New("auth: refresh ttl must be positive")
		}
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithRememberMultiplier sets the factor applied to both TTLs for remembered logins.
func WithRememberMultiplier(n int) TokenOption {
	return func(s *TokenService) error {
		if n < 1 {
			return fmt.Errorf("auth: remember multiplier %d must be >= 1", n)
		}
		s.remember = n
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs a TokenService signing with secret.
func NewTokenService(principals PrincipalStore, refresh RefreshTokenStore, secret string, opts ...TokenOption) (*TokenService, error) {
	if principals == nil || refresh == nil {
		return nil, errors.New("auth: principal and refresh stores are required")
	}
	if len(strings.TrimSpace(secret)) < MinSecretLength {
		return nil, fmt.Errorf("auth: token secret must be at least %d characters", MinSecretLength)
	}
	svc := &TokenService{
		principals: principals,
		refresh:    refresh,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		remember:   defaultRememberMultiplier,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func (s *TokenService) ttls(remember bool) (time.Duration, time.Duration) {
	if !remember {
		return s.accessTTL, s.refreshTTL
	}
	m := time.Duration(s.remember)
	return s.accessTTL * m, s.refreshTTL * m
}

// Issue mints an access token and persists a new refresh record for p.
func (s *TokenService) Issue(ctx context.Context, p Principal, remember bool) (TokenPair, error) {
	if p.ID == "" || !p.Role.Valid() {
		return TokenPair{}, apperr.Invalid("principal is incomplete")
	}
	now := s.now().UTC()
	accessTTL, refreshTTL := s.ttls(remember)

	access, accessExp, err := s.mint(p, now, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := randomToken()
	if err != nil {
		return TokenPair{}, apperr.Infra(err)
	}
	rec := RefreshToken{
		Token:       refresh,
		PrincipalID: p.ID,
		ExpiresAt:   now.Add(refreshTTL),
		Remember:    remember,
		CreatedAt:   now,
	}
	if err := s.refresh.Create(ctx, rec); err != nil {
		return TokenPair{}, apperr.Infra(err)
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: rec.ExpiresAt,
		TokenType:        "Bearer",
	}, nil
}

func (s *TokenService) mint(p Principal, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Role:         p.Role,
		HomeTenantID: p.HomeTenantID,
		Email:        p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ids.NewJTI(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccess validates signature, issuer and expiry of an access token.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.ErrInvalidCredential
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidCredential, err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, apperr.ErrInvalidCredential
	}
	return claims, nil
}

// Rotate exchanges a usable refresh token for a fresh pair. The old record
// is revoked in the same conditional update that validates it.
func (s *TokenService) Rotate(ctx context.Context, refresh string) (TokenPair, error) {
	refresh = strings.TrimSpace(refresh)
	if refresh == "" {
		return TokenPair{}, apperr.ErrInvalidCredential
	}
	rec, err := s.refresh.Consume(ctx, refresh, s.now().UTC())
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidCredential) || errors.Is(err, apperr.ErrNotFound) {
			return TokenPair{}, apperr.ErrInvalidCredential
		}
		return TokenPair{}, apperr.Infra(err)
	}
	p, err := s.principals.Get(ctx, rec.PrincipalID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return TokenPair{}, apperr.ErrInvalidCredential
		}
		return TokenPair{}, apperr.Infra(err)
	}
	if !p.Active || p.Deleted() {
		return TokenPair{}, apperr.ErrInvalidCredential
	}
	return s.Issue(ctx, p, rec.Remember)
}

// Revoke marks a refresh token revoked. Repeated calls are harmless.
func (s *TokenService) Revoke(ctx context.Context, refresh string) (bool, error) {
	ok, err := s.refresh.Revoke(ctx, strings.TrimSpace(refresh))
	if err != nil {
		return false, apperr.Infra(err)
	}
	return ok, nil
}

// RevokeAll revokes every active refresh record of principalID.
func (s *TokenService) RevokeAll(ctx context.Context, principalID string) (int, error) {
	n, err := s.refresh.RevokeAll(ctx, principalID)
	if err != nil {
		return 0, apperr.Infra(err)
	}
	return n, nil
}

// GCExpired deletes refresh records past expiry.
func (s *TokenService) GCExpired(ctx context.Context) (int, error) {
	n, err := s.refresh.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, apperr.Infra(err)
	}
	return n, nil
}

// Login checks identifier and password and issues credentials.
func (s *TokenService) Login(ctx context.Context, identifier, password string, remember bool) (TokenPair, Principal, error) {
	p, err := s.principals.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return TokenPair{}, Principal{}, apperr.ErrInvalidCredential
		}
		return TokenPair{}, Principal{}, apperr.Infra(err)
	}
	if !p.Active || p.Deleted() {
		return TokenPair{}, Principal{}, apperr.ErrInvalidCredential
	}
	if err := VerifyPassword(p.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, apperr.ErrInvalidCredential
	}
	pair, err := s.Issue(ctx, p, remember)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, p, nil
}

// PrincipalForClaims loads the live principal behind verified claims.
func (s *TokenService) PrincipalForClaims(ctx context.Context, claims *Claims) (Principal, error) {
	p, err := s.principals.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Principal{}, apperr.ErrInvalidCredential
		}
		return Principal{}, apperr.Infra(err)
	}
	if !p.Active || p.Deleted() {
		return Principal{}, apperr.ErrInvalidCredential
	}
	return p, nil
}

func randomToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
