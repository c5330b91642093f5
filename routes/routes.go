package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tokenalert_backend/controllers"
	"tokenalert_backend/middleware"
	"tokenalert_backend/services/notify"
)

// Controllers bundles every controller the router needs
type Controllers struct {
	Alert  *controllers.AlertController
	Market *controllers.MarketController
	Status *controllers.StatusController
	Hub    *notify.Hub
}

// SetupRoutes registers every API endpoint on the router
func SetupRoutes(router *gin.Engine, ctrl Controllers) {
	router.Use(corsMiddleware())

	router.GET("/health", ctrl.Status.Health)
	router.GET("/ready", ctrl.Status.Ready)

	api := router.Group("/api")
	{
		api.GET("/health", ctrl.Status.Health)
		api.GET("/stats", ctrl.Status.Stats)
		api.GET("/market-data", ctrl.Market.GetMarketData)
		api.GET("/prices", ctrl.Market.GetPrices)

		alerts := api.Group("/alerts")
		alerts.Use(middleware.JWTAuthMiddleware())
		{
			alerts.GET("", ctrl.Alert.ListAlerts)
			alerts.POST("", ctrl.Alert.CreateAlert)
			alerts.POST("/check", ctrl.Alert.CheckAlerts)
			alerts.DELETE("/:id", ctrl.Alert.DeleteAlert)
			alerts.POST("/:id/pause", ctrl.Alert.PauseAlert)
			alerts.POST("/:id/resume", ctrl.Alert.ResumeAlert)
		}
	}

	router.GET("/ws", middleware.WSAuthMiddleware(), func(c *gin.Context) {
		userID, err := middleware.GetUserFromContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctrl.Hub.ServeWS(c.Writer, c.Request, userID)
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
