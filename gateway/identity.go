package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UserHeader carries the id of the signed-in user. Authentication happens
// upstream; the gateway only trusts and forwards it.
const UserHeader = "X-User-Id"

const userIDKey = "user_id"

// RequireUser rejects requests that carry no valid user id.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, present, ok := parseUser(c)
		if !present || !ok {
			abortWithError(c, http.StatusUnauthorized, "Unauthenticated", "sign in required")
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// OptionalUser records the user id when one is sent. A malformed id is
// still rejected.
func OptionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, present, ok := parseUser(c)
		if present && !ok {
			abortWithError(c, http.StatusUnauthorized, "Unauthenticated", "invalid user id")
			return
		}
		if present {
			c.Set(userIDKey, id)
		}
		c.Next()
	}
}

func parseUser(c *gin.Context) (id int64, present, ok bool) {
	raw := c.GetHeader(UserHeader)
	if raw == "" {
		return 0, false, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, true, false
	}
	return id, true, true
}

// userID returns the id stored by RequireUser or OptionalUser, or 0 for an
// anonymous visitor.
func userID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
