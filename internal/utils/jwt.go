package utils // package utils provides token minting, validation and hashing helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens

	"github.com/agritrust/connect-api/internal/model"
)

// TokenKind distinguishes the two credential types minted by TokenService.
// Access and refresh tokens are signed with different secrets, so a token of
// one kind can never verify as the other.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Sentinel validation errors.  ErrTokenExpired is returned when the signature
// checks out but the expiry has passed; every other failure (bad signature,
// wrong kind, wrong issuer or audience, malformed input) maps to
// ErrTokenInvalid so callers cannot distinguish forgeries from garbage.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenClaims is the decoded payload of an access or refresh token.
type TokenClaims struct {
	SubjectID uint64     // account id the token was minted for
	Role      model.Role // role captured at issue time
	Version   uint64     // refresh-token version captured at issue time
	Kind      TokenKind  // access or refresh
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService mints and validates the signed session credentials used by
// the auth flows.  Now is overridable so tests can control the clock; it
// defaults to time.Now when left nil.
type TokenService struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Now           func() time.Time
}

// NewTokenService builds a TokenService from distinct signing secrets and
// configured lifetimes.
func NewTokenService(accessSecret, refreshSecret, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		Issuer:        issuer,
		Audience:      audience,
		Now:           time.Now,
	}
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TokenService) secretFor(kind TokenKind) []byte {
	if kind == KindRefresh {
		return s.RefreshSecret
	}
	return s.AccessSecret
}

func (s *TokenService) ttlFor(kind TokenKind) time.Duration {
	if kind == KindRefresh {
		return s.RefreshTTL
	}
	return s.AccessTTL
}

// IssueAccess signs a short-lived HS256 access token for the subject.
func (s *TokenService) IssueAccess(subjectID uint64, role model.Role, version uint64) (string, time.Time, error) {
	return s.issue(KindAccess, subjectID, role, version)
}

// IssueRefresh signs a long-lived HS256 refresh token for the subject.  The
// caller is expected to persist a hash of the returned string on the account
// record; the signature alone is not sufficient for revocation.
func (s *TokenService) IssueRefresh(subjectID uint64, role model.Role, version uint64) (string, time.Time, error) {
	return s.issue(KindRefresh, subjectID, role, version)
}

func (s *TokenService) issue(kind TokenKind, subjectID uint64, role model.Role, version uint64) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttlFor(kind))
	claims := jwt.MapClaims{
		"sub":  subjectID,
		"role": string(role),
		"ver":  version,
		"kind": string(kind),
		"iss":  s.Issuer,
		"aud":  s.Audience,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secretFor(kind))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks the signature, expiry, issuer, audience and kind of a token
// against the service's own identity.  Tokens minted by a different system
// instance (different issuer/audience or secret) are rejected.
func (s *TokenService) Verify(token string, kind TokenKind) (TokenClaims, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenInvalid
			}
			return s.secretFor(kind), nil
		},
		jwt.WithIssuer(s.Issuer),
		jwt.WithAudience(s.Audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenInvalid
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}
	tc, ok := claimsFromMap(mc)
	if !ok || tc.Kind != kind {
		return TokenClaims{}, ErrTokenInvalid
	}
	return tc, nil
}

// Decode extracts the payload without checking the signature.  It exists for
// non-authoritative inspection (expiry diagnostics) and must never be used
// to authorize an action.
func (s *TokenService) Decode(token string) (TokenClaims, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return TokenClaims{}, false
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, false
	}
	return claimsFromMap(mc)
}

// IsExpired reports whether the token's exp claim has passed.  Undecodable
// tokens count as expired.
func (s *TokenService) IsExpired(token string) bool {
	tc, ok := s.Decode(token)
	if !ok {
		return true
	}
	return !s.now().Before(tc.ExpiresAt)
}

// TimeRemaining returns how long until the token expires, clamped at zero.
func (s *TokenService) TimeRemaining(token string) time.Duration {
	tc, ok := s.Decode(token)
	if !ok {
		return 0
	}
	if rem := tc.ExpiresAt.Sub(s.now()); rem > 0 {
		return rem
	}
	return 0
}

// claimsFromMap converts raw MapClaims into a TokenClaims.  JWT numeric
// values decode as float64.
func claimsFromMap(mc jwt.MapClaims) (TokenClaims, bool) {
	sub, ok := mc["sub"].(float64)
	if !ok || sub <= 0 {
		return TokenClaims{}, false
	}
	role, ok := mc["role"].(string)
	if !ok {
		return TokenClaims{}, false
	}
	kind, ok := mc["kind"].(string)
	if !ok {
		return TokenClaims{}, false
	}
	tc := TokenClaims{
		SubjectID: uint64(sub),
		Role:      model.Role(role),
		Kind:      TokenKind(kind),
	}
	if v, ok := mc["ver"].(float64); ok {
		tc.Version = uint64(v)
	}
	if iat, ok := mc["iat"].(float64); ok {
		tc.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	if exp, ok := mc["exp"].(float64); ok {
		tc.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return tc, true
}
