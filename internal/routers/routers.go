package routers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Morgiver/invitation-core/internal/handlers"
	logger "github.com/Morgiver/invitation-core/middleware/log"
)

// SetupRoutes installs the global middleware and every route.
func SetupRoutes(r *gin.Engine, log *logger.Logger, invitationHandler *handlers.InvitationHandler) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", logger.TraceIDHeader}
	corsConfig.ExposeHeaders = []string{logger.TraceIDHeader}
	r.Use(cors.New(corsConfig))
	r.Use(logger.GinMiddleware(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	RegisterInvitationRoutes(r, invitationHandler)
}

func RegisterInvitationRoutes(r *gin.Engine, invitationHandler *handlers.InvitationHandler) {
	group := r.Group("/api/v1/invitations")
	{
		group.POST("", invitationHandler.CreateInvitation)
		group.GET("", invitationHandler.ListInvitations) // ?status=
		group.GET("/stats", invitationHandler.GetStats)

		group.POST("/validate", invitationHandler.ValidateInvitation)
		group.POST("/use", invitationHandler.UseInvitation)

		group.GET("/code/:code", invitationHandler.GetInvitationByCode)
		group.GET("/creator/:user_id", invitationHandler.GetInvitationsByCreator)

		group.GET("/:id", invitationHandler.GetInvitation)
		group.POST("/:id/revoke", invitationHandler.RevokeInvitation)
	}
}
