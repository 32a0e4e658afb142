package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueRequest describes a standalone-mode token. The server validates these
// with JWTMiddleware using the same HS256 key.
type IssueRequest struct {
	Principal *Principal
	TenantID  string
	Issuer    string
	TTL       time.Duration
	Now       time.Time
}

// IssueToken signs an HS256 token carrying the principal's roles and
// surgery memberships.
func IssueToken(key []byte, req IssueRequest) (string, error) {
	if len(key) == 0 {
		return "", errors.New("signing key is required")
	}
	p := req.Principal
	if p == nil || p.UserID == "" {
		return "", errors.New("principal with a user id is required")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	claims := &Claims{
		TenantID:   req.TenantID,
		Email:      p.Email,
		Name:       p.Name,
		GlobalRole: string(p.GlobalRole),
		Surgeries:  make(map[string]string, len(p.Surgeries)),
	}
	for id, role := range p.Surgeries {
		claims.Surgeries[id.String()] = string(role)
	}
	claims.Subject = p.UserID
	claims.Issuer = req.Issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
