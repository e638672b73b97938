package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/service"
)

const defaultLeaderboardLimit = 10

type lobby interface {
	SendInvite(ctx context.Context, from, to string, game entity.Game) (*entity.Invite, error)
	PendingInvites(ctx context.Context, user string) ([]*entity.Invite, error)
	SentInvites(ctx context.Context, user string) ([]*entity.Invite, error)
	AcceptInvite(ctx context.Context, user, inviteID string) (*entity.GameSession, error)
	DeclineInvite(ctx context.Context, user, inviteID string) error
	ActiveSessions(ctx context.Context, player string) ([]*entity.GameSession, error)
	GetSession(ctx context.Context, id string) (*entity.GameSession, error)
	LeaveSession(ctx context.Context, id, player string) error
}

type leaderboards interface {
	WinsLeaderboard(ctx context.Context, limit int64) ([]entity.LeaderboardEntry, error)
	GameLeaderboard(ctx context.Context, game entity.Game, limit int64) ([]entity.LeaderboardEntry, error)
}

type soloPlayer interface {
	Play(ctx context.Context, req service.SoloRequest) (*service.SoloResult, error)
}

type Handlers struct {
	logger *slog.Logger

	lobby        lobby
	leaderboards leaderboards
	solo         soloPlayer
}

func NewHandlers(logger *slog.Logger, lobby lobby, leaderboards leaderboards, solo soloPlayer) *Handlers {
	return &Handlers{
		logger:       logger.With("component", "rest"),
		lobby:        lobby,
		leaderboards: leaderboards,
		solo:         solo,
	}
}

type sendInviteRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
	Game string `json:"game" binding:"required"`
}

func (that *Handlers) SendInvite(c *gin.Context) {
	var req sendInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := entity.ParseGame(req.Game)
	if err != nil {
		that.fail(c, "SendInvite", err)
		return
	}

	invite, err := that.lobby.SendInvite(c.Request.Context(), req.From, req.To, game)
	if err != nil {
		that.fail(c, "SendInvite", err)
		return
	}

	c.JSON(http.StatusCreated, invite)
}

func (that *Handlers) PendingInvites(c *gin.Context) {
	invites, err := that.lobby.PendingInvites(c.Request.Context(), c.Param("user"))
	if err != nil {
		that.fail(c, "PendingInvites", err)
		return
	}

	c.JSON(http.StatusOK, invites)
}

func (that *Handlers) SentInvites(c *gin.Context) {
	invites, err := that.lobby.SentInvites(c.Request.Context(), c.Param("user"))
	if err != nil {
		that.fail(c, "SentInvites", err)
		return
	}

	c.JSON(http.StatusOK, invites)
}

func (that *Handlers) AcceptInvite(c *gin.Context) {
	session, err := that.lobby.AcceptInvite(c.Request.Context(), c.Param("user"), c.Param("inviteID"))
	if err != nil {
		that.fail(c, "AcceptInvite", err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (that *Handlers) DeclineInvite(c *gin.Context) {
	if err := that.lobby.DeclineInvite(c.Request.Context(), c.Param("user"), c.Param("inviteID")); err != nil {
		that.fail(c, "DeclineInvite", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (that *Handlers) ActiveSessions(c *gin.Context) {
	player := c.Query("player")
	if player == "" {
		that.fail(c, "ActiveSessions", apperror.ErrEmptyPlayer)
		return
	}

	sessions, err := that.lobby.ActiveSessions(c.Request.Context(), player)
	if err != nil {
		that.fail(c, "ActiveSessions", err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

func (that *Handlers) GetSession(c *gin.Context) {
	session, err := that.lobby.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		that.fail(c, "GetSession", err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (that *Handlers) LeaveSession(c *gin.Context) {
	if err := that.lobby.LeaveSession(c.Request.Context(), c.Param("id"), c.Query("player")); err != nil {
		that.fail(c, "LeaveSession", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (that *Handlers) WinsLeaderboard(c *gin.Context) {
	entries, err := that.leaderboards.WinsLeaderboard(c.Request.Context(), limitParam(c))
	if err != nil {
		that.fail(c, "WinsLeaderboard", err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (that *Handlers) GameLeaderboard(c *gin.Context) {
	game, err := entity.ParseGame(c.Param("game"))
	if err != nil {
		that.fail(c, "GameLeaderboard", err)
		return
	}

	entries, err := that.leaderboards.GameLeaderboard(c.Request.Context(), game, limitParam(c))
	if err != nil {
		that.fail(c, "GameLeaderboard", err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

type soloMoveRequest struct {
	Player string `json:"player"`
	// GameState is the {"board": ...} document returned by the previous call; empty starts a new game.
	GameState json.RawMessage  `json:"gameState"`
	Move      entity.Move      `json:"move"`
	ChainFrom *checkers.Square `json:"chainFrom"`
}

func (that *Handlers) SoloMove(c *gin.Context) {
	game, err := entity.ParseGame(c.Param("game"))
	if err != nil {
		that.fail(c, "SoloMove", err)
		return
	}

	var req soloMoveRequest
	if err = c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var state entity.GameState
	if len(req.GameState) == 0 || string(req.GameState) == "null" {
		state, err = entity.InitialState(game)
	} else {
		state, err = entity.DecodeState(game, req.GameState)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := that.solo.Play(c.Request.Context(), service.SoloRequest{
		Game:      game,
		Player:    req.Player,
		State:     state,
		Move:      req.Move,
		ChainFrom: req.ChainFrom,
	})
	if err != nil {
		that.fail(c, "SoloMove", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func limitParam(c *gin.Context) int64 {
	limit, err := strconv.ParseInt(c.Query("limit"), 10, 64)
	if err != nil || limit <= 0 {
		return defaultLeaderboardLimit
	}
	return limit
}

func (that *Handlers) fail(c *gin.Context, method string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "method", method, "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrUnknownGame),
		errors.Is(err, apperror.ErrIllegalMove),
		errors.Is(err, apperror.ErrSelfInvite),
		errors.Is(err, apperror.ErrEmptyPlayer):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotInSession):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrSessionNotFound),
		errors.Is(err, apperror.ErrInviteNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrInviteNotPending),
		errors.Is(err, apperror.ErrSessionExists),
		errors.Is(err, apperror.ErrStaleWrite):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
