package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

type sessionStore interface {
	GetByID(ctx context.Context, id string) (*entity.GameSession, error)
	Update(ctx context.Context, id string, version int64, patch entity.SessionPatch) (*entity.GameSession, error)
	Subscribe(ctx context.Context, id string) (entity.SessionSubscription, error)
}

type rewardRecorder interface {
	RecordResult(ctx context.Context, game entity.Game, player string, finalScore int) (*entity.Reward, error)
}

type handlerFunc func(ctx context.Context, client *client, message *Message) error

// Server binds every socket to a session controller for one player.
type Server struct {
	logger  *slog.Logger
	store   sessionStore
	rewards rewardRecorder
	config  session.Config

	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, store sessionStore, rewards rewardRecorder, config session.Config) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		store:   store,
		rewards: rewards,
		config:  config,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionMove] = server.handleMove
	server.handlers[actionSelect] = server.handleSelect
	server.handlers[actionReset] = server.handleReset
	server.handlers[actionView] = server.handleView

	return server
}

// Handler serves /ws?session=&player=. ctx bounds every controller it starts.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveSession(ctx, w, r)
	})
	return mux
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx) //nolint: contextcheck // parent is already done
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveSession(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	player := r.URL.Query().Get("player")
	log := that.logger.With("method", "serveSession", "sessionID", sessionID, "playerID", player)

	if sessionID == "" || player == "" {
		http.Error(w, "session and player are required", http.StatusBadRequest)
		return
	}

	current, err := that.store.GetByID(r.Context(), sessionID)
	switch {
	case errors.Is(err, apperror.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		log.Error("failed to load session", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	case !current.HasPlayer(player):
		http.Error(w, apperror.ErrNotInSession.Error(), http.StatusForbidden)
		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := &client{
		logger: log,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	config := that.config
	config.OnChange = func(view session.View) {
		client.push(actionState, view)
	}
	controller := session.NewController(that.logger, that.store, that.rewards, sessionID, player, config)
	client.controller = controller

	log.Info("WebSocket connection established")

	go func() {
		defer cancel()
		if err := controller.Run(connCtx); err != nil {
			log.Error("session controller stopped", "error", err)
		}
	}()

	go client.writePump(connCtx)

	that.readPump(connCtx, client)
	cancel()

	log.Info("WebSocket connection closed")
}

// readPump processes client messages until the socket or the controller goes away.
func (that *Server) readPump(ctx context.Context, client *client) {
	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		<-ctx.Done()
		// unblocks ReadMessage once the controller stops
		_ = client.conn.SetReadDeadline(time.Now())
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				client.logger.Error("error reading message", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			client.pushError("", "malformed message")
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			client.pushError(message.Action, "unknown action")
			continue
		}

		if err = handler(ctx, client, &message); err != nil {
			client.logger.Error("error processing message", "action", message.Action, "error", err)
			client.pushError(message.Action, err.Error())
		}
	}
}
