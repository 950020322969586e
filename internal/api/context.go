package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"lo1server/internal/auth"
	"lo1server/internal/httperr"
	"lo1server/internal/session"
	"lo1server/internal/upload"
)

const requestContextKey = "lo1_request_context"

// RequestContext is the per-request state handed to every handler. Fields
// are filled by the stages that own them; Session and Files stay nil on
// routes that do not use them.
type RequestContext struct {
	Cookies     map[string]string
	CurrentUser *auth.User
	Session     *session.Session
	Files       *upload.Submission
}

// handlerFunc is a route handler that receives the request context and
// returns errors instead of writing error responses.
type handlerFunc func(c *gin.Context, rc *RequestContext) error

// handle adapts fn to gin. Errors go to the terminal error stage.
func handle(fn handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := requestContext(c)
		if rc == nil {
			_ = c.Error(httperr.Internal("request context missing", nil))
			c.Abort()
			return
		}
		if err := fn(c, rc); err != nil {
			_ = c.Error(err)
			c.Abort()
		}
	}
}

// contextMiddleware builds the RequestContext from the inbound cookies and
// the current user attached by auth.Middleware.
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := &RequestContext{Cookies: parseCookies(c.Request)}
		if user, ok := auth.UserFromContext(c); ok {
			rc.CurrentUser = user
		}
		c.Set(requestContextKey, rc)
		c.Next()
	}
}

// sessionMiddleware loads the session for routes that use one.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := requestContext(c)
		if rc == nil {
			_ = c.Error(httperr.Internal("request context missing", nil))
			c.Abort()
			return
		}
		s, err := h.sessions.Load(c.Request.Context(), c.Request)
		if err != nil {
			_ = c.Error(httperr.Store("load", err))
			c.Abort()
			return
		}
		rc.Session = s
		c.Next()
	}
}

func requestContext(c *gin.Context) *RequestContext {
	val, ok := c.Get(requestContextKey)
	if !ok {
		return nil
	}
	rc, _ := val.(*RequestContext)
	return rc
}

// parseCookies returns the inbound cookies by name, URL-decoded. The first
// cookie of a repeated name wins.
func parseCookies(r *http.Request) map[string]string {
	out := make(map[string]string)
	for _, c := range r.Cookies() {
		if _, seen := out[c.Name]; seen {
			continue
		}
		v, err := url.PathUnescape(c.Value)
		if err != nil {
			v = c.Value
		}
		out[c.Name] = v
	}
	return out
}
