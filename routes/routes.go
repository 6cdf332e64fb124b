package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"herdmind/handlers"
	"herdmind/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	sessionHandler *handlers.SessionHandler,
	questionHandler *handlers.QuestionHandler,
	hub *services.Hub,
	sessionService *services.SessionService,
) {
	api := router.Group("/api")
	{
		api.GET("/questions", questionHandler.ListQuestions)

		sessions := api.Group("/sessions")
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.GET("/:identifier", sessionHandler.FetchSession)
			sessions.POST("/:id/start", sessionHandler.StartSession)
			sessions.POST("/:id/players", sessionHandler.JoinSession)
			sessions.POST("/:id/invitations", sessionHandler.CreateInvitation)
			sessions.POST("/:id/rounds/:roundId/responses", sessionHandler.RecordResponse)
			sessions.POST("/:id/rounds/:roundId/finalize", sessionHandler.FinalizeRound)
			sessions.POST("/:id/advance", sessionHandler.AdvanceSession)
		}

		api.POST("/invitations/:inviteId/remind", sessionHandler.RemindInvitation)
	}

	// Push channel: one subscription per session id, fed a SESSION_UPDATE
	// after every successful mutation.
	router.GET("/ws/:sessionId", func(c *gin.Context) {
		sessionID := c.Param("sessionId")

		// Resolve codes to ids so subscribers can use either.
		snapshot, err := sessionService.FetchSession(sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("session_id", snapshot.ID).Msg("websocket upgrade failed")
			return
		}

		hub.RegisterClient(conn, snapshot.ID)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
