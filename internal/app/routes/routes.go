package routes

import (
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/controllers"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/middleware"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/websocket"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	calculatorController *controllers.CalculatorController,
	calculationController *controllers.CalculationController,
	healthController *controllers.HealthController,
	wsHandler *websocket.Handler,
	authMiddleware *middleware.AuthMiddleware,
) {
	router.GET("/health", healthController.Health)
	router.GET("/ping", healthController.Ping)

	// API version group
	v1 := router.Group("/api/v1")

	// --- Public routes ---
	v1.GET("/grades", calculatorController.Grades)
	v1.POST("/cgpa/calculate", calculatorController.Calculate)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/refresh", authController.RefreshToken)
	}

	// --- Authenticated routes ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		authenticated.POST("/auth/logout", authController.Logout)
		authenticated.GET("/auth/me", authController.Me)

		calculations := authenticated.Group("/calculations")
		{
			calculations.GET("", calculationController.List)
			calculations.POST("", calculationController.Create)

			// registered before /:id so the literal segment wins
			calculations.GET("/auto-save", calculationController.GetAutoSave)
			calculations.POST("/auto-save", calculationController.AutoSave)

			calculations.GET("/:id", calculationController.Get)
			calculations.PUT("/:id", calculationController.Update)
			calculations.PATCH("/:id", calculationController.Rename)
			calculations.DELETE("/:id", calculationController.Delete)
			calculations.GET("/:id/edit", calculationController.EditView)
			calculations.GET("/:id/prior", calculationController.PriorHistory)
		}

		authenticated.GET("/ws", wsHandler.HandleConnection)
	}
}
