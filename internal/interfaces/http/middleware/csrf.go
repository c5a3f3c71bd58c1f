// Package middleware provides the gin middleware sessiond contributes to the
// HTTP surface: the request-forgery guard and bearer-session authentication.
package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/internal/domain/service"
	"github.com/soleron/sessiond/pkg/constants"
	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/logger"
	"github.com/soleron/sessiond/pkg/utils"
)

// CSRFGuard implements the double-submit cookie pattern: a random secret is
// held server-side, scoped by a session identifier, and an HMAC-signed token
// derived from it travels in a cookie that state-changing requests must echo
// through a header or form field.
//
// Pre-authentication the session identifier is derived from the requester's
// IP and user agent; once a session is established the guard scopes the
// secret to the session's own identifier, which is the stronger binding.
type CSRFGuard struct {
	signingKey []byte
	cookieName string
	secure     bool

	// secrets maps session identifier → server-held secret, bounded by TTL.
	secrets *gocache.Cache

	audit   service.AuditService
	metrics service.MetricsRecorder
	logger  logger.Logger
}

// NewCSRFGuard creates the request-forgery guard. audit and metrics may be
// nil.
func NewCSRFGuard(signingSecret, cookieName string, secure bool, audit service.AuditService, metrics service.MetricsRecorder, log logger.Logger) *CSRFGuard {
	if cookieName == "" {
		cookieName = constants.CSRFCookieName
	}
	return &CSRFGuard{
		signingKey: []byte(signingSecret),
		cookieName: cookieName,
		secure:     secure,
		secrets:    gocache.New(constants.CSRFSecretTTL, 2*constants.CSRFSecretTTL),
		audit:      audit,
		metrics:    metrics,
		logger:     log.WithComponent("CSRFGuard"),
	}
}

// Middleware validates the double-submit pair on state-changing requests.
// GET, HEAD, and OPTIONS are exempt since they must not carry side effects;
// on those the guard ensures a token cookie is present for the client to echo
// later.
func (g *CSRFGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			g.ensureCookie(c)
			c.Next()
			return
		}

		cookie, err := c.Cookie(g.cookieName)
		if err != nil || cookie == "" {
			g.reject(c, "missing CSRF cookie")
			return
		}

		submitted := c.GetHeader(constants.CSRFHeaderName)
		if submitted == "" {
			submitted = c.PostForm(constants.CSRFFormField)
		}
		if submitted == "" {
			g.reject(c, "missing CSRF token")
			return
		}

		// Both halves of the pair must match, and the token itself must
		// verify against the server-held secret for this requester.
		if subtle.ConstantTimeCompare([]byte(cookie), []byte(submitted)) != 1 {
			g.reject(c, "cookie and submitted token differ")
			return
		}
		if !g.verify(g.sessionIdentifier(c), submitted) {
			g.reject(c, "token signature invalid or secret expired")
			return
		}

		c.Next()
	}
}

// IssueToken mints a fresh token for the requester, stores the server-side
// secret, and sets the cookie. Exposed so login pages can embed the token in
// forms.
func (g *CSRFGuard) IssueToken(c *gin.Context) string {
	sid := g.sessionIdentifier(c)
	secret := utils.MustOpaqueToken(32)
	g.secrets.Set(sid, secret, gocache.DefaultExpiration)

	token := g.sign(sid, secret)
	g.setCookie(c, token)
	return token
}

func (g *CSRFGuard) ensureCookie(c *gin.Context) {
	if cookie, err := c.Cookie(g.cookieName); err == nil && cookie != "" {
		if g.verify(g.sessionIdentifier(c), cookie) {
			return
		}
	}
	g.IssueToken(c)
}

// sessionIdentifier scopes the CSRF secret. The authenticated session's own
// ID wins; the IP+user-agent derivation only covers pre-authentication
// flows.
func (g *CSRFGuard) sessionIdentifier(c *gin.Context) string {
	if v, ok := c.Get(string(constants.ContextKeySession)); ok {
		if session, ok := v.(*models.Session); ok {
			return "s:" + session.ID
		}
	}
	sum := sha256.Sum256([]byte(c.ClientIP() + "|" + c.Request.UserAgent()))
	return "d:" + hex.EncodeToString(sum[:])
}

// sign builds token = base64(secret) + "." + hex(HMAC(key, sid|secret)).
func (g *CSRFGuard) sign(sid, secret string) string {
	mac := hmac.New(sha256.New, g.signingKey)
	mac.Write([]byte(sid))
	mac.Write([]byte{0})
	mac.Write([]byte(secret))
	return base64.RawURLEncoding.EncodeToString([]byte(secret)) + "." + hex.EncodeToString(mac.Sum(nil))
}

func (g *CSRFGuard) verify(sid, token string) bool {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return false
	}
	secretBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	secret := string(secretBytes)

	held, ok := g.secrets.Get(sid)
	if !ok || subtle.ConstantTimeCompare([]byte(held.(string)), secretBytes) != 1 {
		return false
	}

	expected := g.sign(sid, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

func (g *CSRFGuard) setCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     g.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// reject maps every validation failure to the uniform forgery outcome. It
// never silently passes.
func (g *CSRFGuard) reject(c *gin.Context, detail string) {
	if g.metrics != nil {
		g.metrics.RecordSecuritySignal(constants.EventCSRFRejected)
	}
	if g.audit != nil {
		err := g.audit.RecordEvent(c.Request.Context(), &models.SecurityEvent{
			EventType: constants.EventCSRFRejected,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Detail:    detail,
		})
		if err != nil {
			g.logger.Error(c.Request.Context(), "Failed to record audit event", err, logger.Fields{
				"event_type": constants.EventCSRFRejected,
			})
		}
	}
	g.logger.Warn(c.Request.Context(), "CSRF validation failed", logger.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"ip":     c.ClientIP(),
		"detail": detail,
	})

	appErr := errors.ErrInvalidCSRFToken
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}
