package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"approval-ledger/internal/model"
	"approval-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by RequireRole.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	ContextUserName = "userName"
)

const (
	accessTokenCookie = "access_token"
	devFallbackSecret = "default_super_secret_key"
)

var (
	secretMu  sync.RWMutex
	jwtSecret []byte
)

// InitAuth sets the HMAC secret used to sign and verify tokens. An empty
// secret falls back to a development key; config validation refuses that in
// release mode.
func InitAuth(secret string) {
	if secret == "" {
		slog.Warn("jwt secret not configured, using development fallback")
		secret = devFallbackSecret
	}
	secretMu.Lock()
	jwtSecret = []byte(secret)
	secretMu.Unlock()
}

func GetJWTSecret() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	if jwtSecret == nil {
		return []byte(devFallbackSecret)
	}
	return jwtSecret
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   string
	Name   string
}

// IssueToken signs an HS256 token carrying the caller identity.
func IssueToken(id Identity, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  id.UserID,
		"role": id.Role,
		"name": id.Name,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(GetJWTSecret())
}

// ParseToken verifies tokenString and extracts the identity.
func ParseToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return GetJWTSecret(), nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return Identity{}, errors.New("role not found in token")
	}
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	return Identity{UserID: sub, Role: role, Name: name}, nil
}

func cookieSecurity() (http.SameSite, bool) {
	if gin.Mode() == gin.ReleaseMode {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func SetTokenCookie(c *gin.Context, accessToken string, ttl time.Duration) {
	sameSite, secure := cookieSecurity()
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, accessToken, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie
func ClearTokenCookie(c *gin.Context) {
	sameSite, secure := cookieSecurity()
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
}

func tokenFromRequest(c *gin.Context) (string, string) {
	if tokenString, err := c.Cookie(accessTokenCookie); err == nil && tokenString != "" {
		return tokenString, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// RequireRole validates the token (cookie first, then Bearer header) and
// checks the caller's role against allowedRoles. Admin always passes; no
// roles means any authenticated user.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := tokenFromRequest(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
			return
		}

		id, err := ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		if !roleAllowed(id.Role, allowedRoles) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(ContextUserID, id.UserID)
		c.Set(ContextUserRole, id.Role)
		c.Set(ContextUserName, id.Name)
		c.Next()
	}
}

func roleAllowed(role string, allowed []string) bool {
	if role == model.RoleAdmin || len(allowed) == 0 {
		return model.ValidRole(role)
	}
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// CurrentIdentity returns the identity stored by RequireRole.
func CurrentIdentity(c *gin.Context) Identity {
	return Identity{
		UserID: c.GetString(ContextUserID),
		Role:   c.GetString(ContextUserRole),
		Name:   c.GetString(ContextUserName),
	}
}
