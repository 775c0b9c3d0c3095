package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-grading-api/internal/models"
	appErrors "github.com/noah-isme/fyp-grading-api/pkg/errors"
	"github.com/noah-isme/fyp-grading-api/pkg/response"
)

// RoleSelf grants access when the caller is the student named in the route.
const RoleSelf = "SELF"

// selfParams are checked in order; the first one present decides SELF.
var selfParams = []string{"studentId", "id"}

// RBAC admits callers whose role is listed. RoleSelf additionally admits a
// caller whose id matches the route's student parameter.
func RBAC(allowed ...string) gin.HandlerFunc {
	roles := make(map[models.UserRole]bool, len(allowed))
	self := false
	for _, a := range allowed {
		if a == RoleSelf {
			self = true
			continue
		}
		roles[models.UserRole(a)] = true
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		switch {
		case claims == nil:
			response.Abort(c, appErrors.ErrUnauthorized)
		case roles[claims.Role], self && ownsRoute(c, claims.UserID):
			c.Next()
		default:
			response.Abort(c, appErrors.ErrForbidden)
		}
	}
}

func ownsRoute(c *gin.Context, userID string) bool {
	for _, name := range selfParams {
		if v := c.Param(name); v != "" {
			return v == userID
		}
	}
	return false
}
