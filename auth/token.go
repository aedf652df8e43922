// Package auth issues and resolves the signed session token and checks
// credentials.
package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"fm3d/models"
)

const (
	CookieName = "fm3d_token"
	contextKey = "identity"
	issuer     = "fm3d"
)

// Identity is who is acting on a request.
type Identity struct {
	ID   string      `json:"id"`
	Role models.Role `json:"role"`
}

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewTokens(secret string, ttl time.Duration, secureCookie bool) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, secure: secureCookie}
}

// Issue signs a token carrying the user's id and role.
func (t *Tokens) Issue(u models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing session token")
	}
	return signed, nil
}

// Resolve returns the identity carried by raw. Missing, malformed, expired
// or forged tokens all resolve to no identity.
func (t *Tokens) Resolve(raw string) (Identity, bool) {
	if raw == "" {
		return Identity{}, false
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, false
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" || !claims.Role.Valid() {
		return Identity{}, false
	}
	return Identity{ID: claims.Subject, Role: claims.Role}, true
}

// Middleware resolves the token cookie once per request and stores the
// identity on the context. Anonymous requests pass through untouched.
func (t *Tokens) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(CookieName)
		if err == nil {
			if id, ok := t.Resolve(raw); ok {
				c.Set(contextKey, id)
			}
		}
		c.Next()
	}
}

func (t *Tokens) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(t.ttl.Seconds()), "/", "", t.secure, true)
}

func (t *Tokens) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", t.secure, true)
}

// Current returns the identity resolved by Middleware, if any.
func Current(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
