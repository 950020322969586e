package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lo1server/internal/httperr"
	"lo1server/internal/session"
	"lo1server/internal/views"
)

type cookiePage struct {
	views.Page
	ActiveCookies map[string]string
	Posted        map[string]string
}

func (h *Handler) cookieGet(c *gin.Context, rc *RequestContext) error {
	c.HTML(http.StatusOK, "set-cookie", cookiePage{
		Page:          h.page(rc, "GET - Set Cookie"),
		ActiveCookies: rc.Cookies,
		Posted:        map[string]string{},
	})
	return nil
}

// cookiePost either clears every inbound cookie or sets the posted one. The
// page shows the cookies the request arrived with, not the new ones.
func (h *Handler) cookiePost(c *gin.Context, rc *RequestContext) error {
	if err := c.Request.ParseForm(); err != nil {
		return httperr.BadRequest("invalid form body", err)
	}
	posted := firstValues(c.Request.PostForm)
	httpOnly := posted["hide"] == "yes"

	if posted["clear"] == "clear" {
		for name := range rc.Cookies {
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     name,
				Value:    "",
				Path:     stateMount,
				MaxAge:   -1,
				HttpOnly: httpOnly,
				SameSite: http.SameSiteLaxMode,
			})
		}
		h.logger.Debug("cookies cleared", "count", len(rc.Cookies))
	} else {
		ck := &http.Cookie{
			Name:     posted["name"],
			Value:    url.PathEscape(posted["value"]),
			Path:     stateMount,
			HttpOnly: httpOnly,
			SameSite: http.SameSiteLaxMode,
		}
		if ck.Name == "" {
			return httperr.BadRequest("cookie name is required", nil)
		}
		if err := ck.Valid(); err != nil {
			return httperr.BadRequest("invalid cookie", err)
		}
		if raw := posted["expiry"]; raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil {
				if secs > 0 {
					ck.MaxAge = secs
					ck.Expires = time.Now().Add(time.Duration(secs) * time.Second)
				} else {
					ck.MaxAge = -1
				}
			}
		}
		http.SetCookie(c.Writer, ck)
		h.logger.Debug("cookie set", "name", ck.Name, "max_age", ck.MaxAge, "http_only", ck.HttpOnly)
	}

	c.HTML(http.StatusOK, "set-cookie", cookiePage{
		Page:          h.page(rc, "POST - Set Cookie"),
		ActiveCookies: rc.Cookies,
		Posted:        posted,
	})
	return nil
}

type sessionPage struct {
	views.Page
	SessionID     string
	ActiveSession string
	Posted        map[string]string
}

func (h *Handler) sessionGet(c *gin.Context, rc *RequestContext) error {
	s := rc.Session
	if err := h.sessions.Commit(c.Request.Context(), c.Writer, s); err != nil {
		return httperr.Store("save", err)
	}
	c.HTML(http.StatusOK, "set-session", sessionPage{
		Page:          h.page(rc, "GET - Set Session"),
		SessionID:     s.ID(),
		ActiveSession: s.JSON(),
		Posted:        map[string]string{},
	})
	return nil
}

// sessionPost runs the requested lifecycle action, or stores the posted value
// (under category when one is given), then saves the session.
func (h *Handler) sessionPost(c *gin.Context, rc *RequestContext) error {
	ctx := c.Request.Context()
	if err := c.Request.ParseForm(); err != nil {
		return httperr.BadRequest("invalid form body", err)
	}
	posted := firstValues(c.Request.PostForm)
	s := rc.Session

	switch posted["purpose"] {
	case "regenerate":
		if err := s.Regenerate(ctx); err != nil {
			return httperr.Store("regenerate", err)
		}
	case "destroy":
		if err := s.Destroy(ctx); err != nil {
			return httperr.Store("destroy", err)
		}
	case "reload":
		if err := s.Reload(ctx); err != nil {
			return httperr.Store("reload", err)
		}
	default:
		if posted["name"] == "" {
			break
		}
		if err := s.SetIn(posted["category"], posted["name"], posted["value"]); err != nil {
			if errors.Is(err, session.ErrNotCategory) {
				return httperr.BadRequest("category holds a plain value", err)
			}
			return err
		}
	}

	if err := h.sessions.Commit(ctx, c.Writer, s); err != nil {
		return httperr.Store("save", err)
	}
	h.logger.Debug("session saved", "id", s.ID(), "purpose", posted["purpose"], "destroyed", s.Destroyed())

	c.HTML(http.StatusOK, "set-session", sessionPage{
		Page:          h.page(rc, "POST - Set Session"),
		SessionID:     s.ID(),
		ActiveSession: s.JSON(),
		Posted:        posted,
	})
	return nil
}

func firstValues(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for k := range v {
		out[k] = v.Get(k)
	}
	return out
}
