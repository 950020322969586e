// Package auth attaches the current user to each request. It performs no
// credential checks itself; an Authenticator decides who the caller is.
package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lo1server/internal/httperr"
)

const currentUserContextKey = "auth_current_user"

// User is the identity attached to a request.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Authenticator resolves the caller of r. A nil user means anonymous.
type Authenticator func(r *http.Request) (*User, error)

// Anonymous treats every caller as anonymous.
func Anonymous(*http.Request) (*User, error) {
	return nil, nil
}

// Middleware resolves the current user with authn and stores it in the
// context, anonymous included.
func Middleware(authn Authenticator) gin.HandlerFunc {
	if authn == nil {
		authn = Anonymous
	}
	return func(c *gin.Context) {
		user, err := authn(c.Request)
		if err != nil {
			_ = c.Error(httperr.Internal("resolve current user", err))
			c.Abort()
			return
		}
		c.Set(currentUserContextKey, user)
		c.Next()
	}
}

// UserFromContext returns the current user. ok is false for anonymous
// requests and when the middleware did not run.
func UserFromContext(c *gin.Context) (*User, bool) {
	val, ok := c.Get(currentUserContextKey)
	if !ok {
		return nil, false
	}
	user, ok := val.(*User)
	return user, ok && user != nil
}
