package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"todo-sync/internal/config"
	"todo-sync/internal/middleware"
	"todo-sync/internal/monitoring"
	"todo-sync/internal/session"
	"todo-sync/internal/sync"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Config      *config.Config
	Coordinator *sync.Coordinator
	Sessions    *session.Manager
	Tokens      *session.TokenManager
	Logger      zerolog.Logger
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithLog(deps.Logger))
	router.Use(monitoring.MetricsMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if deps.Config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(deps.Config.RateLimit)
		router.Use(limiter.Middleware())
	}

	router.GET("/health", monitoring.HealthHandler())
	router.GET("/health/live", monitoring.LivenessHandler())
	router.GET("/health/ready", monitoring.ReadinessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())

	tasks := NewTaskHandler(deps.Coordinator)
	categories := NewCategoryHandler(deps.Coordinator)
	data := NewDataHandler(deps.Coordinator)
	sessions := NewSessionHandler(deps.Sessions, deps.Tokens, deps.Coordinator)

	api := router.Group("/api/v1")
	api.Use(middleware.OptionalAuth(deps.Tokens))
	{
		api.GET("/tasks", tasks.GetTasks)
		api.POST("/tasks", tasks.CreateTask)
		api.PATCH("/tasks/:id", tasks.UpdateTask)
		api.POST("/tasks/:id/toggle", tasks.ToggleTask)
		api.DELETE("/tasks/:id", tasks.DeleteTask)
		api.DELETE("/tasks/completed", tasks.ClearCompleted)
		api.GET("/tasks/stats", tasks.GetStats)

		api.GET("/categories", categories.GetCategories)
		api.POST("/categories", categories.CreateCategory)
		api.PATCH("/categories/:id", categories.UpdateCategory)
		api.DELETE("/categories/:id", categories.DeleteCategory)

		api.GET("/data/export", data.ExportData)
		api.POST("/data/import", data.ImportData)

		api.POST("/session", sessions.SignIn)
		api.POST("/session/restore", sessions.Restore)
		api.DELETE("/session", sessions.SignOut)
		api.GET("/session", sessions.Status)
	}

	// Manual sync trigger requires a valid token since it touches the
	// remote account.
	authed := router.Group("/api/v1")
	authed.Use(middleware.AuthMiddleware(deps.Tokens))
	{
		authed.POST("/sync", func(c *gin.Context) {
			deps.Coordinator.TriggerSync(c.Request.Context())
			c.JSON(http.StatusAccepted, gin.H{"message": "sync scheduled"})
		})
	}

	return router
}
