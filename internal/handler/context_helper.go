package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vokatra/cfp-admin-api/internal/middleware"
	"github.com/vokatra/cfp-admin-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func recordedBy(c *gin.Context) *string {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	id := claims.UserID
	return &id
}
