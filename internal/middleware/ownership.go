package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OwnershipMiddleware ensures data isolation by account: every teacher
// only sees their own groups, tests and scores
func OwnershipMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("user_role")

		// Admins can access every account's data
		if userRole == "admin" {
			c.Next()
			return
		}

		userID, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied: no user in context"})
			c.Abort()
			return
		}

		ownerID, ok := userID.(uuid.UUID)
		if !ok || ownerID == uuid.Nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid user ID"})
			c.Abort()
			return
		}

		c.Set("owner_id", ownerID.String())
		c.Next()
	}
}
