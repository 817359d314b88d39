package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/construction_backend/models"
	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stores the principal in the request context.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		auth = strings.TrimSpace(auth[len(bearer):])

		validate, err := utils.JwtValidate(secret, auth)
		if err != nil || !validate.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || claim.ID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), auth)
		ctx = utils.SetPrincipalInContext(ctx, utils.Principal{ID: claim.ID, Name: claim.Name, Role: claim.Role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireApprover lets only roles allowed to approve budgets and issue documents through.
func RequireApprover() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c.Request.Context())
		if !models.UserRole(role).CanApprove() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
