package http

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/auth"
	"github.com/vovakirdan/ledgerchat/internal/proto"
)

// ContextKeySubject is the context key for the token subject.
const ContextKeySubject = "subject"

// AuthMiddleware creates a middleware that validates JWT tokens.
// Browsers cannot set headers on websocket upgrades, so a token query parameter is accepted too.
func AuthMiddleware(cfg *auth.JWTConfig, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			// Extract token from "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug().Msg("invalid authorization header format")
				abortWith(c, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
				return
			}
			token = parts[1]
		}
		if token == "" {
			logger.Debug().Msg("missing authorization header")
			abortWith(c, http.StatusUnauthorized, "unauthorized", "missing authorization header")
			return
		}

		claims, err := auth.ValidateToken(cfg, token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			abortWith(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// RateLimitMiddleware rejects requests beyond the limiter's budget.
func RateLimitMiddleware(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow() {
			abortWith(c, http.StatusTooManyRequests, "rate_limited", "send budget exhausted, retry later")
			return
		}
		c.Next()
	}
}

// localOriginPatterns are the browser origins allowed besides the server's own host.
var localOriginPatterns = []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*", "[::1]", "[::1]:*"}

// OriginMiddleware rejects browser requests from pages not served on this host or
// on a loopback address. Requests without an Origin header (CLI tools) pass.
func OriginMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || localOrigin(origin, c.Request.Host) {
			c.Next()
			return
		}
		logger.Warn().Str("origin", origin).Str("path", c.Request.URL.Path).Msg("cross-origin request rejected")
		abortWith(c, http.StatusForbidden, "forbidden_origin", "cross-origin requests are not allowed")
	}
}

func localOrigin(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, host) {
		return true
	}
	if u.Hostname() == "localhost" {
		return true
	}
	ip := net.ParseIP(u.Hostname())
	return ip != nil && ip.IsLoopback()
}

// RequireJSONMiddleware rejects bodies not declared as application/json, so a
// page cannot reach the handler with a simple form or text/plain POST.
func RequireJSONMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.ContentType() != gin.MIMEJSON {
			abortWith(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "content type must be application/json")
			return
		}
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("subject", c.GetString(ContextKeySubject)).
			Msg("http request")
	}
}

func abortWith(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, proto.Error{Code: code, Msg: msg})
}
