package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims is the token payload issued to signposting users. Surgeries maps a
// surgery ID to the caller's role there.
type Claims struct {
	jwt.RegisteredClaims
	TenantID   string            `json:"tenant_id"`
	Email      string            `json:"email"`
	Name       string            `json:"name"`
	GlobalRole string            `json:"global_role"`
	Surgeries  map[string]string `json:"surgeries"`
}

// Principal converts raw claims into a typed Principal, rejecting unknown
// roles and malformed surgery IDs.
func (c *Claims) Principal() (*Principal, error) {
	global, err := ParseGlobalRole(c.GlobalRole)
	if err != nil {
		return nil, err
	}
	p := &Principal{
		UserID:     c.Subject,
		Email:      strings.ToLower(c.Email),
		Name:       c.Name,
		GlobalRole: global,
		Surgeries:  make(map[uuid.UUID]SurgeryRole, len(c.Surgeries)),
	}
	for rawID, rawRole := range c.Surgeries {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, err
		}
		role, err := ParseSurgeryRole(rawRole)
		if err != nil {
			return nil, err
		}
		p.Surgeries[id] = role
	}
	return p, nil
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey switches validation to HS256 (standalone mode).
	SigningKey []byte
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	var keyFunc jwt.Keyfunc
	if len(cfg.SigningKey) > 0 {
		keyFunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	} else {
		jwksURL := cfg.JWKSURL
		if jwksURL == "" && cfg.Issuer != "" {
			if discovered, err := DiscoverJWKSURL(cfg.Issuer); err == nil {
				jwksURL = discovered
			}
		}
		keyFunc = jwksKeyFunc(jwksURL)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			principal, err := claims.Principal()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}

			c.Set("jwt_tenant_id", claims.TenantID)
			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), principal)))
			return next(c)
		}
	}
}

// DevAuthMiddleware treats every request as the superuser "dev-user". It is
// only installed when ENV=development.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if PrincipalFromContext(c.Request().Context()) == nil {
				p := &Principal{
					UserID:     "dev-user",
					Email:      "dev@localhost",
					Name:       "Developer",
					GlobalRole: GlobalRoleSuperuser,
					Surgeries:  map[uuid.UUID]SurgeryRole{},
				}
				c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			}
			return next(c)
		}
	}
}
