package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medicab/scheduler/internal/config"
	"github.com/medicab/scheduler/internal/middleware"
	"github.com/medicab/scheduler/pkg/auth"
	"github.com/medicab/scheduler/pkg/metrics"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Config       *config.Config
	Logger       *zap.Logger
	Collector    *metrics.Collector
	JWTManager   *auth.JWTManager
	Appointments *AppointmentHandler
}

// NewRouter assembles the HTTP surface: health and metrics are open,
// everything under /api/v1 requires a valid access token.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Observe(deps.Logger, deps.Collector))
	router.Use(middleware.NewRateLimiter(deps.Config.RateLimit).Handler())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": deps.Config.App.Name,
			"version": deps.Config.App.Version,
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := router.Group("/api/v1")
	api.Use(middleware.Authenticate(deps.JWTManager))

	appointments := api.Group("/appointments")
	{
		appointments.POST("", deps.Appointments.Create)
		appointments.GET("", deps.Appointments.List)
		appointments.GET("/:id", deps.Appointments.Get)
		appointments.PUT("/:id/reschedule", deps.Appointments.Reschedule)
		appointments.POST("/:id/cancel", deps.Appointments.Cancel)
		appointments.POST("/:id/status", middleware.RequireRoles("doctor", "admin"), deps.Appointments.TransitionStatus)
	}

	schedule := api.Group("/schedule")
	{
		schedule.GET("/slots", deps.Appointments.AvailableSlots)
		schedule.POST("/conflicts", deps.Appointments.CheckConflicts)
	}

	return router
}
