package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/metrics"
)

type inviteRepo interface {
	Save(ctx context.Context, invite *entity.Invite) error
	GetInbox(ctx context.Context, user string) ([]*entity.Invite, error)
	GetSent(ctx context.Context, user string) ([]*entity.Invite, error)
	GetFromInbox(ctx context.Context, user, id string) (*entity.Invite, error)
	Resolve(ctx context.Context, invite *entity.Invite) error
}

type sessionRepo interface {
	Create(ctx context.Context, session *entity.GameSession) (*entity.GameSession, error)
	GetByID(ctx context.Context, id string) (*entity.GameSession, error)
	DeleteByID(ctx context.Context, id string) error
	ListByPlayer(ctx context.Context, player string) ([]*entity.GameSession, error)
}

// Lobby pairs players through invites and hands out the sessions they play in.
type Lobby struct {
	logger      *slog.Logger
	inviteRepo  inviteRepo
	sessionRepo sessionRepo

	newID func() string
	now   func() time.Time
}

func NewLobby(logger *slog.Logger, inviteRepo inviteRepo, sessionRepo sessionRepo) *Lobby {
	return &Lobby{
		logger: logger.With("component", "lobby"),

		inviteRepo:  inviteRepo,
		sessionRepo: sessionRepo,

		newID: uuid.NewString,
		now:   time.Now,
	}
}

func (that *Lobby) SendInvite(ctx context.Context, from, to string, game entity.Game) (*entity.Invite, error) {
	log := that.logger.With("method", "SendInvite", "from", from, "to", to)

	if from == "" || to == "" {
		return nil, apperror.ErrEmptyPlayer
	}

	if from == to {
		return nil, apperror.ErrSelfInvite
	}

	if err := game.Validate(); err != nil {
		return nil, err
	}

	invite := &entity.Invite{
		ID:        that.newID(),
		From:      from,
		To:        to,
		Game:      game,
		GameName:  game.Title(),
		Status:    entity.InvitePending,
		Timestamp: that.now().UnixMilli(),
	}

	if err := that.inviteRepo.Save(ctx, invite); err != nil {
		return nil, fmt.Errorf("failed to send invite: %w", err)
	}

	log.Info("invite sent", "inviteID", invite.ID, "game", game)

	return invite, nil
}

// PendingInvites lists the invites waiting in user's inbox.
func (that *Lobby) PendingInvites(ctx context.Context, user string) ([]*entity.Invite, error) {
	invites, err := that.inviteRepo.GetInbox(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get invites: %w", err)
	}

	pending := make([]*entity.Invite, 0, len(invites))
	for _, invite := range invites {
		if invite.IsPending() {
			pending = append(pending, invite)
		}
	}

	return pending, nil
}

func (that *Lobby) SentInvites(ctx context.Context, user string) ([]*entity.Invite, error) {
	invites, err := that.inviteRepo.GetSent(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get sent invites: %w", err)
	}

	return invites, nil
}

// AcceptInvite creates the session with the inviter as player one and first to move.
// The invite is claimed before the session exists, so only one accept can win.
func (that *Lobby) AcceptInvite(ctx context.Context, user, inviteID string) (*entity.GameSession, error) {
	log := that.logger.With("method", "AcceptInvite", "playerID", user, "inviteID", inviteID)

	invite, err := that.pendingInvite(ctx, user, inviteID)
	if err != nil {
		return nil, err
	}

	session, err := entity.NewSession(that.newID(), invite.Game, invite.From, invite.To, that.now())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session: %w", err)
	}

	accepted := *invite
	accepted.Status = entity.InviteAccepted
	accepted.SessionID = session.ID
	if err = that.inviteRepo.Resolve(ctx, &accepted); err != nil {
		return nil, fmt.Errorf("failed to resolve invite: %w", err)
	}

	created, err := that.sessionRepo.Create(ctx, session)
	if err != nil {
		if reopenErr := that.inviteRepo.Save(ctx, invite); reopenErr != nil {
			log.Error("failed to reopen invite", "error", reopenErr)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	metrics.SessionsCreated.WithLabelValues(string(created.Game)).Inc()
	log.Info("invite accepted", "sessionID", created.ID, "game", created.Game)

	return created, nil
}

func (that *Lobby) DeclineInvite(ctx context.Context, user, inviteID string) error {
	invite, err := that.pendingInvite(ctx, user, inviteID)
	if err != nil {
		return err
	}

	invite.Status = entity.InviteDeclined
	if err = that.inviteRepo.Resolve(ctx, invite); err != nil {
		return fmt.Errorf("failed to resolve invite: %w", err)
	}

	that.logger.Info("invite declined", "playerID", user, "inviteID", inviteID)

	return nil
}

func (that *Lobby) pendingInvite(ctx context.Context, user, inviteID string) (*entity.Invite, error) {
	invite, err := that.inviteRepo.GetFromInbox(ctx, user, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}

	if invite.To != user {
		return nil, fmt.Errorf("invite %s: %w", inviteID, apperror.ErrInviteNotFound)
	}

	if !invite.IsPending() {
		return nil, fmt.Errorf("invite %s: %w", inviteID, apperror.ErrInviteNotPending)
	}

	return invite, nil
}

// ActiveSessions lists the player's sessions that are not finished, newest first.
func (that *Lobby) ActiveSessions(ctx context.Context, player string) ([]*entity.GameSession, error) {
	sessions, err := that.sessionRepo.ListByPlayer(ctx, player)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	active := make([]*entity.GameSession, 0, len(sessions))
	for _, session := range sessions {
		if !session.IsFinished() {
			active = append(active, session)
		}
	}

	sortNewestFirst(active)

	return active, nil
}

func (that *Lobby) GetSession(ctx context.Context, id string) (*entity.GameSession, error) {
	session, err := that.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// LeaveSession deletes the session. Either player may do it.
func (that *Lobby) LeaveSession(ctx context.Context, id, player string) error {
	session, err := that.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if !session.HasPlayer(player) {
		return fmt.Errorf("player %s: %w", player, apperror.ErrNotInSession)
	}

	if err = that.sessionRepo.DeleteByID(ctx, id); err != nil && !errors.Is(err, apperror.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	that.logger.Info("session closed", "sessionID", id, "playerID", player)

	return nil
}

func sortNewestFirst(sessions []*entity.GameSession) {
	slices.SortStableFunc(sessions, func(a, b *entity.GameSession) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
}
