package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	sessionIDKey     = "session_id"
	sessionExpiryKey = "session_expiry"
)

// SessionClaims is the payload of the session cookie
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionCookie signs and reads the cookie that carries the session id
type SessionCookie struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionCookie creates a cookie codec
func NewSessionCookie(name, secret string, ttl time.Duration, secure bool, logger *zap.Logger) *SessionCookie {
	return &SessionCookie{
		name:   name,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		logger: logger,
		now:    time.Now,
	}
}

// Middleware resolves the session id from the cookie. A missing, expired or
// tampered cookie yields an empty id; the request proceeds either way.
func (s *SessionCookie) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(s.name)
		if err != nil || raw == "" {
			c.Set(sessionIDKey, "")
			c.Next()
			return
		}

		id, expiry, err := s.parse(raw)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				s.logger.Debug("Session cookie expired")
			} else {
				s.logger.Warn("Invalid session cookie", zap.Error(err))
			}
			id = ""
		}

		c.Set(sessionIDKey, id)
		if id != "" {
			c.Set(sessionExpiryKey, expiry)
		}
		c.Next()
	}
}

func (s *SessionCookie) parse(raw string) (string, time.Time, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", time.Time{}, err
	}
	if !token.Valid || claims.SessionID == "" || claims.ExpiresAt == nil {
		return "", time.Time{}, jwt.ErrTokenInvalidClaims
	}
	return claims.SessionID, claims.ExpiresAt.Time, nil
}

// Issue signs sessionID into the cookie and makes it the request's session
func (s *SessionCookie) Issue(c *gin.Context, sessionID string) error {
	now := s.now()
	claims := &SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session cookie: %w", err)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, signed, int(s.ttl.Seconds()), "/", "", s.secure, true)
	c.Set(sessionIDKey, sessionID)
	c.Set(sessionExpiryKey, claims.ExpiresAt.Time)
	return nil
}

// Refresh re-issues the request's cookie once less than half of its lifetime
// is left, so an expert who keeps working keeps the session the server
// slides forward on every write.
func (s *SessionCookie) Refresh(c *gin.Context) error {
	id := SessionID(c)
	if id == "" {
		return nil
	}
	expiry, ok := c.Get(sessionExpiryKey)
	if !ok {
		return nil
	}
	if at, ok := expiry.(time.Time); ok && at.Sub(s.now()) >= s.ttl/2 {
		return nil
	}
	return s.Issue(c, id)
}

// Clear removes the cookie from the client
func (s *SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, "", -1, "/", "", s.secure, true)
	c.Set(sessionIDKey, "")
	c.Set(sessionExpiryKey, time.Time{})
}

// SessionID returns the id resolved by SessionCookie.Middleware
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
