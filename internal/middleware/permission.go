package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/leasehold/leasehold/internal/authz"
	"github.com/leasehold/leasehold/pkg/errors"
	"github.com/leasehold/leasehold/pkg/response"
)

// RequirePermission checks that the authenticated user holds the (action,
// resource) permission inside the tenant named by the route. The tenant is
// taken from the :tenantId path parameter, falling back to the token claim.
func RequirePermission(query *authz.Query, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(string)

		tenantID := c.Param("tenantId")
		if tenantID == "" {
			if tv, ok := c.Get(CtxTenantIDKey); ok {
				tenantID, _ = tv.(string)
			}
		}

		allowed, err := query.UserHasPermission(c.Request.Context(), userID, tenantID, action, resource)
		if err != nil {
			response.Error(c, errors.ErrInternalServer.WithMessage("permission check failed"))
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
