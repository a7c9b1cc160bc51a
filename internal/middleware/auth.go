package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mindlog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "mindlog-api"
	TokenAudience = "mindlog-client"
	TokenTTL      = 7 * 24 * time.Hour

	blacklistPrefix = "blacklist:"
)

// Claims is the JWT payload issued at login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return uint(id), nil
}

// Auth issues, validates and revokes HS256 tokens. Revoked token ids are
// kept in Redis until the token would have expired.
type Auth struct {
	secret []byte
	rdb    *redis.Client
	now    func() time.Time
}

// NewAuth creates an Auth. rdb may be nil, in which case logout is a no-op.
func NewAuth(secret string, rdb *redis.Client) *Auth {
	return &Auth{secret: []byte(secret), rdb: rdb, now: time.Now}
}

// IssueToken creates a signed token for the user.
func (a *Auth) IssueToken(userID uint, username string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := a.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates signature, issuer, audience and expiry.
func (a *Auth) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Revoke blacklists the token id for the rest of its lifetime.
func (a *Auth) Revoke(ctx context.Context, claims *Claims) error {
	if a.rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(a.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return a.rdb.Set(ctx, blacklistPrefix+claims.ID, "1", ttl).Err()
}

func (a *Auth) revoked(ctx context.Context, jti string) bool {
	if a.rdb == nil || jti == "" {
		return false
	}
	n, err := a.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	return err == nil && n > 0
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func (a *Auth) authenticate(c *fiber.Ctx, tokenString string) error {
	claims, err := a.ParseToken(tokenString)
	if err != nil {
		return models.NewUnauthorizedError("Invalid or expired token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return models.NewUnauthorizedError("Invalid user ID in token")
	}
	if a.revoked(c.UserContext(), claims.ID) {
		return models.NewUnauthorizedError("Token has been revoked")
	}

	c.Locals("userID", userID)
	c.Locals("username", claims.Username)
	c.Locals("claims", claims)
	c.SetUserContext(enrichContext(c))
	return nil
}

// AuthRequired rejects requests without a valid bearer token.
func (a *Auth) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}
		if err := a.authenticate(c, tokenString); err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		return c.Next()
	}
}

// OptionalAuth sets the identity when a valid token is present and lets
// anonymous requests through otherwise.
func (a *Auth) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := bearerToken(c); tokenString != "" {
			_ = a.authenticate(c, tokenString)
		}
		return c.Next()
	}
}

// UserIDFrom returns the authenticated user id or 0.
func UserIDFrom(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// ClaimsFrom returns the parsed claims of an authenticated request.
func ClaimsFrom(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals("claims").(*Claims)
	return claims
}
