package contracts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/moviegen/forge/internal/schemas"
)

// Principal is the identity decoded from a caller-supplied bearer token,
// attached to an InputEvent's editedBy provenance (SPEC_FULL.md §2.11).
// It does not replace schemas.EditSource's closed enum: a verified
// Principal's EditSource fills in the edit source only for edits that do
// not name one, an explicitly named edit source is kept, and the
// principal's identity is logged alongside.
type Principal struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// EditSource maps the principal's role to the closed EditSource enum an
// InputEvent actually carries (schemas.EditSource has no room for a raw
// role string): a "workflow" role stamps EditedByWorkflow, anything else
// verified stamps EditedByUser. The Principal itself is logged alongside
// the chosen EditSource rather than embedded in the event, since
// InputEvent's shape is fixed by spec.md §3.5.
func (p *Principal) EditSource() schemas.EditSource {
	if p.Role == "workflow" {
		return schemas.EditedByWorkflow
	}
	return schemas.EditedByUser
}

type principalClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// PrincipalManager issues and verifies HMAC-signed bearer tokens carrying
// a Principal, grounded on the teacher's pkg/auth JWTManager shape
// (Generate/Verify/Refresh over a secret + fixed TTL) — the teacher ships
// jwt_test.go without an implementation; this is that implementation,
// repurposed from authenticating HTTP requests to stamping provenance on
// input edits.
type PrincipalManager struct {
	secret []byte
	ttl    time.Duration
}

// NewPrincipalManager creates a manager signing/verifying with secret and
// issuing tokens valid for ttl.
func NewPrincipalManager(secret string, ttl time.Duration) *PrincipalManager {
	return &PrincipalManager{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token for the given principal.
func (m *PrincipalManager) Issue(userID, email, role string) (string, error) {
	now := time.Now()
	claims := principalClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("contracts: sign principal token: %w", err)
	}
	return signed, nil
}

// Verify validates token and returns the Principal it carries.
func (m *PrincipalManager) Verify(token string) (*Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &principalClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrincipal, err)
	}
	claims, ok := parsed.Claims.(*principalClaims)
	if !ok {
		return nil, ErrInvalidPrincipal
	}
	return &Principal{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// Refresh verifies token and mints a fresh one for the same principal.
func (m *PrincipalManager) Refresh(token string) (string, error) {
	p, err := m.Verify(token)
	if err != nil {
		return "", err
	}
	return m.Issue(p.UserID, p.Email, p.Role)
}
