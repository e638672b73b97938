package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/metrics"
	"github.com/rocketscienceinc/duoplay-backend/internal/rules"
)

type sessionStore interface {
	GetByID(ctx context.Context, id string) (*entity.GameSession, error)
	Update(ctx context.Context, id string, version int64, patch entity.SessionPatch) (*entity.GameSession, error)
	Subscribe(ctx context.Context, id string) (entity.SessionSubscription, error)
}

type rewardRecorder interface {
	RecordResult(ctx context.Context, game entity.Game, player string, finalScore int) (*entity.Reward, error)
}

type RetryConfig struct {
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

type Config struct {
	Retry RetryConfig
	Rules rules.Options
	// OnChange receives a view after every state change. It runs on the
	// controller goroutine and must not block.
	OnChange func(View)
}

type command struct {
	run  func(ctx context.Context)
	done chan struct{}
}

// Controller keeps one player's view of a session in sync with the store.
// All state is owned by the goroutine inside Run; the exported methods hand
// work to it and wait for the answer.
type Controller struct {
	logger  *slog.Logger
	store   sessionStore
	rewards rewardRecorder
	config  Config

	sessionID string
	player    string

	commands chan command
	stopped  chan struct{}

	phase     Phase
	session   *entity.GameSession
	chainFrom *checkers.Square
	selection *Selection
	// dirty is set while the local state holds a move the store has not accepted.
	dirty bool
}

func NewController(logger *slog.Logger, store sessionStore, rewards rewardRecorder, sessionID, player string, config Config) *Controller {
	if config.Retry.InitialInterval <= 0 {
		config.Retry.InitialInterval = backoff.DefaultInitialInterval
	}
	if config.Retry.MaxElapsed <= 0 {
		config.Retry.MaxElapsed = backoff.DefaultMaxElapsedTime
	}

	return &Controller{
		logger: logger.With("component", "session-controller", "sessionID", sessionID, "playerID", player),

		store:   store,
		rewards: rewards,
		config:  config,

		sessionID: sessionID,
		player:    player,

		commands: make(chan command),
		stopped:  make(chan struct{}),

		phase: PhaseIdle,
	}
}

// Run subscribes to the session and processes events until ctx is done or
// the session is deleted.
func (that *Controller) Run(ctx context.Context) error {
	defer close(that.stopped)

	sub, err := that.store.Subscribe(ctx, that.sessionID)
	if err != nil {
		that.phase = PhaseClosed
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			that.logger.Error("failed to close subscription", "error", err)
		}
	}()

	that.setPhase(PhaseAwaitingSnapshot)

	changes := sub.Changes()
	for {
		select {
		case <-ctx.Done():
			that.phase = PhaseClosed
			return nil

		case change, ok := <-changes:
			if !ok {
				that.logger.Info("subscription ended")
				that.setPhase(PhaseClosed)
				return nil
			}

			if change.Deleted {
				that.logger.Info("session deleted")
				that.session = nil
				that.setPhase(PhaseClosed)
				return nil
			}

			that.handleRemote(change.Session)

		case cmd := <-that.commands:
			cmd.run(ctx)
			close(cmd.done)
		}
	}
}

func (that *Controller) call(ctx context.Context, run func(ctx context.Context)) error {
	cmd := command{run: run, done: make(chan struct{})}

	select {
	case that.commands <- cmd:
	case <-that.stopped:
		return apperror.ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-that.stopped:
		return apperror.ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Move plays a local move. Rejected moves come back as an outcome with a
// reason; the error is reserved for writes the store did not take.
func (that *Controller) Move(ctx context.Context, move entity.Move) (MoveOutcome, error) {
	var (
		outcome MoveOutcome
		err     error
	)

	if callErr := that.call(ctx, func(ctx context.Context) {
		outcome, err = that.handleMove(ctx, move)
	}); callErr != nil {
		return MoveOutcome{}, callErr
	}

	return outcome, err
}

// Select picks a checkers piece and returns where it may move.
func (that *Controller) Select(ctx context.Context, from checkers.Square) (*Selection, error) {
	var (
		selection *Selection
		err       error
	)

	if callErr := that.call(ctx, func(context.Context) {
		selection, err = that.handleSelect(from)
	}); callErr != nil {
		return nil, callErr
	}

	return selection, err
}

// Reset restores the opening position. Either player may reset at any time
// after the first snapshot.
func (that *Controller) Reset(ctx context.Context) error {
	var err error

	if callErr := that.call(ctx, func(ctx context.Context) {
		err = that.handleReset(ctx)
	}); callErr != nil {
		return callErr
	}

	return err
}

func (that *Controller) View(ctx context.Context) (View, error) {
	var view View

	if err := that.call(ctx, func(context.Context) {
		view = that.view()
	}); err != nil {
		return View{}, err
	}

	return view, nil
}

func (that *Controller) handleMove(ctx context.Context, move entity.Move) (MoveOutcome, error) {
	log := that.logger.With("method", "handleMove")

	if reason := that.moveBlocked(); reason != nil {
		if errors.Is(reason, apperror.ErrNotYourTurn) {
			metrics.Moves.WithLabelValues(string(that.session.Game), metrics.MoveNotYourTurn).Inc()
		}
		return MoveOutcome{Reason: reason}, nil
	}

	game := that.session.Game
	side := that.session.Players.Side(that.player)

	verdict, err := rules.Apply(game, that.session.GameState, side, move, that.chainFrom, that.config.Rules)
	if err != nil {
		metrics.Moves.WithLabelValues(string(game), metrics.MoveIllegal).Inc()
		log.Debug("illegal move refused", "error", err)
		return MoveOutcome{Reason: err}, nil
	}

	state := verdict.State
	patch := entity.SessionPatch{Author: that.player, GameState: &state}
	next := that.session.Clone()
	next.GameState = state.Clone()

	outcome := MoveOutcome{Accepted: true}

	switch {
	case verdict.Finished:
		status := entity.StatusFinished
		winner := entity.WinnerDraw
		if !verdict.IsDraw() {
			winner = next.Players.BySide(verdict.Winner)
		}
		patch.Status = &status
		patch.Winner = &winner
		next.Status = status
		next.Winner = winner

		outcome.Finished = true
		outcome.Result = resultFor(next, that.player)

	case verdict.ChainFrom != nil:
		outcome.ChainContinues = true

	default:
		opponent := next.Players.Opponent(that.player)
		patch.CurrentTurn = &opponent
		next.CurrentTurn = opponent
	}

	base := that.session.Version

	// the move shows locally before the store confirms it
	that.session = next
	that.chainFrom = verdict.ChainFrom
	that.selection = nil
	that.dirty = true
	that.setPhase(phaseFor(next, that.player))

	written, err := that.write(ctx, base, patch)
	if err != nil {
		metrics.Moves.WithLabelValues(string(game), metrics.MoveWriteFailed).Inc()
		that.reconcile(ctx, err)
		return MoveOutcome{}, fmt.Errorf("failed to write move: %w", err)
	}

	metrics.Moves.WithLabelValues(string(game), metrics.MoveAccepted).Inc()

	that.session = written
	that.dirty = false
	that.setPhase(phaseFor(written, that.player))

	if outcome.Finished {
		that.finished(ctx, written)
	}

	return outcome, nil
}

func (that *Controller) moveBlocked() error {
	switch that.phase {
	case PhaseMyTurn:
		return nil
	case PhaseOpponentTurn:
		return apperror.ErrNotYourTurn
	case PhaseFinished:
		return apperror.ErrGameFinished
	case PhaseClosed:
		return apperror.ErrControllerStopped
	default:
		return apperror.ErrGameIsNotStarted
	}
}

func (that *Controller) finished(ctx context.Context, session *entity.GameSession) {
	outcome := metrics.OutcomeWin
	if session.Winner == entity.WinnerDraw {
		outcome = metrics.OutcomeDraw
	}
	metrics.SessionsFinished.WithLabelValues(string(session.Game), outcome).Inc()

	if session.Winner != that.player || that.rewards == nil {
		return
	}

	reward, err := that.rewards.RecordResult(ctx, session.Game, that.player, session.Game.WinScore())
	if err != nil {
		that.logger.Error("failed to record result", "error", err)
		return
	}

	that.logger.Info("result recorded", "trophyPoints", reward.TrophyPoints, "wins", reward.Wins)
}

func (that *Controller) handleSelect(from checkers.Square) (*Selection, error) {
	if reason := that.moveBlocked(); reason != nil {
		return nil, reason
	}

	side := that.session.Players.Side(that.player)

	targets, err := rules.MovesFrom(that.session.GameState, side, from, that.chainFrom)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no moves from %d,%d: %w", from.Row, from.Col, apperror.ErrIllegalMove)
	}

	that.selection = &Selection{From: from, Targets: targets}
	that.notify()

	return that.selection, nil
}

func (that *Controller) handleReset(ctx context.Context) error {
	if that.session == nil {
		return apperror.ErrGameIsNotStarted
	}

	next := that.session.Clone()
	if err := next.Reset(); err != nil {
		return err
	}

	base := that.session.Version

	that.session = next
	that.chainFrom = nil
	that.selection = nil
	that.dirty = true
	that.setPhase(phaseFor(next, that.player))

	written, err := that.write(ctx, base, entity.SessionPatch{Author: that.player, Reset: true})
	if err != nil {
		that.reconcile(ctx, err)
		return fmt.Errorf("failed to write reset: %w", err)
	}

	that.logger.Info("session reset", "version", written.Version)

	that.session = written
	that.dirty = false
	that.setPhase(phaseFor(written, that.player))

	return nil
}

func (that *Controller) handleRemote(session *entity.GameSession) {
	if that.session != nil && !that.dirty && session.Version <= that.session.Version {
		return
	}

	that.adopt(session)
}

// adopt takes the store's record as the truth. Remote boards are not re-validated.
// A capture chain in progress is picked up from the record.
func (that *Controller) adopt(session *entity.GameSession) {
	that.session = session
	that.chainFrom = nil
	if session.GameState.ChainFrom != nil {
		from := *session.GameState.ChainFrom
		that.chainFrom = &from
	}
	that.selection = nil
	that.dirty = false
	that.setPhase(phaseFor(session, that.player))
}

func (that *Controller) write(ctx context.Context, version int64, patch entity.SessionPatch) (*entity.GameSession, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = that.config.Retry.InitialInterval
	policy.MaxElapsedTime = that.config.Retry.MaxElapsed

	operation := func() (*entity.GameSession, error) {
		session, err := that.store.Update(ctx, that.sessionID, version, patch)
		if err != nil && isPermanent(err) {
			return nil, backoff.Permanent(err)
		}
		return session, err
	}

	notify := func(err error, wait time.Duration) {
		metrics.StoreRetries.Inc()
		that.logger.Warn("session write failed, retrying", "error", err, "wait", wait)
	}

	return backoff.RetryNotifyWithData(operation, backoff.WithContext(policy, ctx), notify)
}

func isPermanent(err error) bool {
	return errors.Is(err, apperror.ErrStaleWrite) ||
		errors.Is(err, apperror.ErrNotYourTurn) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrNotInSession) ||
		errors.Is(err, apperror.ErrInvalidStatus) ||
		errors.Is(err, apperror.ErrSessionNotFound)
}

// reconcile handles a failed write. When the store refused the write outright
// its record wins; otherwise the optimistic state stays until the next snapshot.
func (that *Controller) reconcile(ctx context.Context, writeErr error) {
	log := that.logger.With("method", "reconcile")

	if !isPermanent(writeErr) {
		log.Error("session write abandoned", "error", writeErr)
		return
	}

	if errors.Is(writeErr, apperror.ErrStaleWrite) {
		metrics.StaleWrites.WithLabelValues(string(that.session.Game)).Inc()
	}

	current, err := that.store.GetByID(ctx, that.sessionID)
	if err != nil {
		log.Error("failed to reload session", "error", err)
		return
	}

	log.Info("session write refused, adopting stored record", "error", writeErr, "version", current.Version)
	that.adopt(current)
}

func (that *Controller) setPhase(phase Phase) {
	if that.phase != phase {
		that.logger.Debug("phase changed", "from", that.phase, "to", phase)
	}
	that.phase = phase
	that.notify()
}

func (that *Controller) notify() {
	if that.config.OnChange != nil {
		that.config.OnChange(that.view())
	}
}

func (that *Controller) view() View {
	view := View{
		Phase:  that.phase,
		Player: that.player,
		Result: resultFor(that.session, that.player),
	}

	if that.session != nil {
		view.Session = that.session.Clone()
	}

	if that.chainFrom != nil {
		from := *that.chainFrom
		view.ChainFrom = &from
	}

	if that.selection != nil {
		selection := *that.selection
		selection.Targets = append([]entity.Move(nil), that.selection.Targets...)
		view.Selection = &selection
	}

	return view
}

func phaseFor(session *entity.GameSession, player string) Phase {
	switch {
	case session.IsFinished():
		return PhaseFinished
	case session.IsWaiting():
		return PhaseAwaitingSnapshot
	case session.CurrentTurn == player:
		return PhaseMyTurn
	default:
		return PhaseOpponentTurn
	}
}
