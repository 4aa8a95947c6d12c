package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yigit/unisphere-digest/internal/app/controllers"
	"github.com/yigit/unisphere-digest/internal/middleware"
	"github.com/yigit/unisphere-digest/internal/pkg/auth"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	digestController *controllers.DigestController,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group; every route requires an operator token
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.JWTAuth(), authMiddleware.RoleRequired(auth.RoleOperator))

	digests := v1.Group("/digests")
	{
		digests.POST("/run", digestController.RunAll)
	}

	schools := v1.Group("/schools/:id/digests")
	{
		schools.POST("/run", digestController.RunSchool)
		schools.GET("/preview/:userId", digestController.Preview)
	}
}
