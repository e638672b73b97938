package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// NewRouter wires every REST route of the lobby API.
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", handlers.Ping)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	invites := router.Group("/invites")
	invites.POST("", handlers.SendInvite)
	invites.GET("/:user", handlers.PendingInvites)
	invites.GET("/:user/sent", handlers.SentInvites)
	invites.POST("/:user/:inviteID/accept", handlers.AcceptInvite)
	invites.POST("/:user/:inviteID/decline", handlers.DeclineInvite)

	sessions := router.Group("/sessions")
	sessions.GET("", handlers.ActiveSessions)
	sessions.GET("/:id", handlers.GetSession)
	sessions.DELETE("/:id", handlers.LeaveSession)

	router.GET("/leaderboard", handlers.WinsLeaderboard)
	router.GET("/leaderboard/:game", handlers.GameLeaderboard)

	router.POST("/solo/:game/move", handlers.SoloMove)

	return router
}

// Start serves handler on port until ctx is done.
func Start(ctx context.Context, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx) //nolint: contextcheck // parent is already done
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
