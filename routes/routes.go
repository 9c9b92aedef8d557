package routes

import (
	"bursary-management-api/controllers"
	"bursary-management-api/metrics"
	"bursary-management-api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, h *controllers.Handlers, limiter *middleware.RateLimiter) {
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health)

		// Public routes
		public := v1.Group("")
		public.Use(limiter.Middleware())
		{
			public.POST("/auth/login", h.Login)
			public.GET("/deadline", h.DeadlineStatus)

			applications := public.Group("/applications")
			{
				applications.POST("", h.CreateApplication)
				applications.GET("/:reference", h.GetApplication)
				applications.POST("/check-duplicate", h.CheckDuplicate)

				// Applicant self-service edits, gated by email and edit window
				applications.POST("/check-edit-eligibility", h.CheckEditEligibility)
				applications.POST("/get-for-edit", h.GetForEdit)
				applications.PATCH("/:reference/edit", h.EditApplication)
			}
		}

		// Admin routes (require a valid admin token)
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(h.Auth))
		{
			applications := admin.Group("/applications")
			{
				applications.GET("", h.AdminListApplications)
				applications.GET("/stats", h.AdminApplicationStats)
				applications.POST("/bulk-status", h.AdminBulkChangeStatus)
				applications.GET("/:reference", h.AdminGetApplication)
				applications.POST("/:reference/status", h.AdminChangeStatus)
				applications.GET("/:reference/history", h.AdminStatusHistory)
			}

			deadlines := admin.Group("/deadlines")
			{
				deadlines.GET("", h.AdminListDeadlines)
				deadlines.POST("", h.AdminCreateDeadline)
				deadlines.PUT("/:id", h.AdminUpdateDeadline)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"success": false, "error": "endpoint not found"})
	})
}
