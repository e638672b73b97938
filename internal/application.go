package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rocketscienceinc/duoplay-backend/internal/config"
	"github.com/rocketscienceinc/duoplay-backend/internal/repository"
	"github.com/rocketscienceinc/duoplay-backend/internal/repository/storage"
	"github.com/rocketscienceinc/duoplay-backend/internal/rules"
	"github.com/rocketscienceinc/duoplay-backend/internal/service"
	"github.com/rocketscienceinc/duoplay-backend/internal/session"
	"github.com/rocketscienceinc/duoplay-backend/internal/usecase"
	"github.com/rocketscienceinc/duoplay-backend/transport/rest"
	"github.com/rocketscienceinc/duoplay-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString, conf.Redis.DB)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sessionRepo := repository.NewSessionRepository(logger, redisStorage.Connection)
	inviteRepo := repository.NewInviteRepository(redisStorage.Connection)
	leaderboardRepo := repository.NewLeaderboardRepository(redisStorage.Connection)

	ruleOptions := rules.Options{CheckersNoMoveLoss: conf.Session.CheckersNoMoveLoss}

	rewardService := service.NewRewardService(logger, leaderboardRepo)
	botService := service.NewBotService(logger, rewardService, ruleOptions, nil)
	lobby := usecase.NewLobby(logger, inviteRepo, sessionRepo)

	if conf.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		router := rest.NewRouter(rest.NewHandlers(logger, lobby, rewardService, botService))
		if httpErr := rest.Start(ctx, conf.HTTPPort, router); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, sessionRepo, rewardService, session.Config{
			Retry: session.RetryConfig{
				InitialInterval: conf.Session.WriteRetry.InitialInterval,
				MaxElapsed:      conf.Session.WriteRetry.MaxElapsed,
			},
			Rules: ruleOptions,
		})
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
