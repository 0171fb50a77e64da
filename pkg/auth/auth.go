package auth

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"cluster-portal/pkg/config"
	"cluster-portal/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
)

// Claims represents the session cookie claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Auth issues and validates session tokens for the API server
type Auth struct {
	config *config.MockConfig
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time
}

// New creates a new Auth instance issuing tokens valid for ttl
func New(cfg *config.MockConfig, ttl time.Duration) *Auth {
	return &Auth{config: cfg, ttl: ttl, now: time.Now, revoked: make(map[string]time.Time)}
}

// ValidateCredentials validates username and password
func (a *Auth) ValidateCredentials(username, password string) error {
	if username == a.config.Username && password == a.config.Password {
		return nil
	}
	return ErrInvalidCredentials
}

// GenerateToken generates a signed token for the user and returns its expiry
func (a *Auth) GenerateToken(username string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.JWTSecret))
	return signed, expiresAt, err
}

// ValidateToken validates a token and returns the claims
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := parse(tokenString, a.config.JWTSecret, a.now)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	_, revoked := a.revoked[tokenString]
	a.mu.RUnlock()
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke rejects tokenString from now on. Revocations are forgotten once the
// token would have expired anyway.
func (a *Auth) Revoke(tokenString string) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	if claims, err := parse(tokenString, a.config.JWTSecret, a.now); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for token, exp := range a.revoked {
		if exp.Before(now) {
			delete(a.revoked, token)
		}
	}
	a.revoked[tokenString] = expiresAt
}

func parse(tokenString, secret string, now func() time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Username != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// SessionFromToken derives the client session from a session cookie value.
// With an empty secret the claims are read without checking the signature;
// the server still rejects a forged token on the next request.
func SessionFromToken(tokenString, secret string) (models.Session, error) {
	var claims *Claims
	if secret != "" {
		c, err := parse(tokenString, secret, time.Now)
		if err != nil {
			return models.Session{}, err
		}
		claims = c
	} else {
		c := &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, c); err != nil || c.Username == "" {
			return models.Session{}, ErrInvalidToken
		}
		claims = c
	}

	s := models.Session{Identity: claims.Username, Token: tokenString}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Middleware returns a Gin middleware rejecting requests without a valid
// session with the portal's {code, data} error body
func (a *Auth) Middleware(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip login and view manifests
		if c.Request.URL.Path == "/api/login" ||
			strings.HasPrefix(c.Request.URL.Path, "/modules/") {
			c.Next()
			return
		}

		// Check for token in cookie first
		tokenString, err := c.Cookie(cookieName)
		if err != nil {
			// Try Authorization header
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorInfo{Code: models.CodeNotSignedIn})
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			code := models.CodeInvalidToken
			switch {
			case errors.Is(err, ErrTokenExpired):
				code = models.CodeSessionExpired
			case errors.Is(err, ErrTokenRevoked):
				code = models.CodePermissionRevoked
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorInfo{Code: code})
			return
		}

		c.Set("username", claims.Username)
		c.Set("token", tokenString)
		c.Next()
	}
}
