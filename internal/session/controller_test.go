package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/tictactoe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sessionID = "s1"

type mockRewards struct {
	mock.Mock
}

func (that *mockRewards) RecordResult(ctx context.Context, game entity.Game, player string, finalScore int) (*entity.Reward, error) {
	args := that.Called(ctx, game, player, finalScore)
	reward, _ := args.Get(0).(*entity.Reward)
	return reward, args.Error(1)
}

func newSession(t *testing.T, game entity.Game) *entity.GameSession {
	t.Helper()

	session, err := entity.NewSession(sessionID, game, "alice", "bob", time.Now())
	require.NoError(t, err)

	return session
}

type running struct {
	*Controller
	done <-chan error
}

func start(t *testing.T, store *memStore, player string, rewards rewardRecorder, config Config) running {
	t.Helper()

	if config.Retry.InitialInterval == 0 {
		config.Retry = RetryConfig{InitialInterval: time.Millisecond, MaxElapsed: 50 * time.Millisecond}
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	controller := NewController(logger, store, rewards, sessionID, player, config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- controller.Run(ctx)
	}()

	t.Cleanup(cancel)

	return running{Controller: controller, done: done}
}

func waitFor(t *testing.T, controller running, cond func(View) bool) View {
	t.Helper()

	var last View
	require.Eventually(t, func() bool {
		view, err := controller.View(context.Background())
		if err != nil {
			return false
		}
		last = view
		return cond(view)
	}, time.Second, 2*time.Millisecond)

	return last
}

func inPhase(phase Phase) func(View) bool {
	return func(view View) bool {
		return view.Phase == phase
	}
}

func atVersion(version int64) func(View) bool {
	return func(view View) bool {
		return view.Session != nil && view.Session.Version == version
	}
}

func stored(t *testing.T, store *memStore) *entity.GameSession {
	t.Helper()

	session, err := store.GetByID(context.Background(), sessionID)
	require.NoError(t, err)

	return session
}

func TestController_FirstSnapshot(t *testing.T) {
	// Given: a fresh tic-tac-toe session between alice and bob
	store := newMemStore(newSession(t, entity.GameTicTacToe))

	// When: both players open it
	alice := start(t, store, "alice", nil, Config{})
	bob := start(t, store, "bob", nil, Config{})

	// Then: the inviter moves first
	view := waitFor(t, alice, inPhase(PhaseMyTurn))
	assert.Equal(t, int64(1), view.Session.Version)
	waitFor(t, bob, inPhase(PhaseOpponentTurn))
}

func TestController_RefusedMoves(t *testing.T) {
	ctx := context.Background()

	t.Run("Illegal move touches nothing", func(t *testing.T) {
		// Given: it is alice's turn
		store := newMemStore(newSession(t, entity.GameTicTacToe))
		alice := start(t, store, "alice", nil, Config{})
		waitFor(t, alice, inPhase(PhaseMyTurn))

		// When: she plays off the board
		outcome, err := alice.Move(ctx, entity.Move{Cell: 9})

		// Then: the move is refused without a write
		require.NoError(t, err)
		assert.False(t, outcome.Accepted)
		require.ErrorIs(t, outcome.Reason, apperror.ErrIllegalMove)
		assert.Zero(t, store.Updates())

		view, err := alice.View(ctx)
		require.NoError(t, err)
		assert.Equal(t, PhaseMyTurn, view.Phase)
		assert.Equal(t, tictactoe.NewBoard(), *view.Session.GameState.TicTacToe)
	})

	t.Run("Input is ignored on the opponent's turn", func(t *testing.T) {
		store := newMemStore(newSession(t, entity.GameTicTacToe))
		bob := start(t, store, "bob", nil, Config{})
		waitFor(t, bob, inPhase(PhaseOpponentTurn))

		outcome, err := bob.Move(ctx, entity.Move{Cell: 4})

		require.NoError(t, err)
		assert.False(t, outcome.Accepted)
		require.ErrorIs(t, outcome.Reason, apperror.ErrNotYourTurn)
		assert.Zero(t, store.Updates())
	})
}

func TestController_TicTacToeGame(t *testing.T) {
	ctx := context.Background()

	// Given: both players connected and a rewards collaborator expecting alice's win
	store := newMemStore(newSession(t, entity.GameTicTacToe))
	rewards := &mockRewards{}
	rewards.On("RecordResult", mock.Anything, entity.GameTicTacToe, "alice", 10).
		Return(&entity.Reward{Player: "alice", TrophyPoints: 2, Wins: 1}, nil).Once()

	alice := start(t, store, "alice", rewards, Config{})
	bob := start(t, store, "bob", rewards, Config{})
	waitFor(t, alice, inPhase(PhaseMyTurn))
	waitFor(t, bob, inPhase(PhaseOpponentTurn))

	players := map[string]running{"alice": alice, "bob": bob}
	turns := []struct {
		player string
		cell   int
	}{
		{"alice", 0}, {"bob", 3}, {"alice", 1}, {"bob", 4},
	}

	// When: they alternate without a winner
	for i, turn := range turns {
		mover := players[turn.player]
		waitFor(t, mover, inPhase(PhaseMyTurn))

		outcome, err := mover.Move(ctx, entity.Move{Cell: turn.cell})
		require.NoError(t, err)
		require.True(t, outcome.Accepted)

		// Then: every accepted move hands the turn to the other player
		session := stored(t, store)
		assert.Equal(t, int64(i+2), session.Version)
		assert.Equal(t, session.Players.Opponent(turn.player), session.CurrentTurn)
	}

	// When: alice completes the top row
	waitFor(t, alice, inPhase(PhaseMyTurn))
	outcome, err := alice.Move(ctx, entity.Move{Cell: 2})
	require.NoError(t, err)

	// Then: both sides see the same finished game
	assert.True(t, outcome.Finished)
	assert.Equal(t, ResultWin, outcome.Result)

	session := stored(t, store)
	assert.Equal(t, entity.StatusFinished, session.Status)
	assert.Equal(t, "alice", session.Winner)

	view := waitFor(t, bob, inPhase(PhaseFinished))
	assert.Equal(t, ResultLoss, view.Result)
	assert.Equal(t, *session.GameState.TicTacToe, *view.Session.GameState.TicTacToe)

	// Then: a finished game refuses further moves
	late, err := bob.Move(ctx, entity.Move{Cell: 8})
	require.NoError(t, err)
	require.ErrorIs(t, late.Reason, apperror.ErrGameFinished)

	rewards.AssertExpectations(t)
}

func TestController_CheckersChainJump(t *testing.T) {
	ctx := context.Background()

	// Given: red can capture twice with the piece on 6,1
	var board checkers.Board
	board[6][1] = checkers.Piece{Owner: checkers.Red}
	board[7][6] = checkers.Piece{Owner: checkers.Red}
	board[5][2] = checkers.Piece{Owner: checkers.Black}
	board[3][4] = checkers.Piece{Owner: checkers.Black}
	board[0][7] = checkers.Piece{Owner: checkers.Black}

	session := newSession(t, entity.GameCheckers)
	session.GameState = entity.GameState{Checkers: &board}

	store := newMemStore(session)
	alice := start(t, store, "alice", nil, Config{})
	waitFor(t, alice, inPhase(PhaseMyTurn))

	// When: alice plays the first jump
	outcome, err := alice.Move(ctx, entity.Move{
		From: checkers.Square{Row: 6, Col: 1},
		To:   checkers.Square{Row: 4, Col: 3},
	})
	require.NoError(t, err)

	// Then: the board is written but the turn stays hers
	assert.True(t, outcome.ChainContinues)
	written := stored(t, store)
	assert.Equal(t, int64(2), written.Version)
	assert.Equal(t, "alice", written.CurrentTurn)
	assert.Equal(t, checkers.None, written.GameState.Checkers[5][2].Owner)

	view, err := alice.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseMyTurn, view.Phase)
	require.NotNil(t, view.ChainFrom)
	assert.Equal(t, checkers.Square{Row: 4, Col: 3}, *view.ChainFrom)

	// Then: only the jumping piece may move, and only by jumping
	_, err = alice.Select(ctx, checkers.Square{Row: 7, Col: 6})
	require.ErrorIs(t, err, apperror.ErrIllegalMove)

	selection, err := alice.Select(ctx, checkers.Square{Row: 4, Col: 3})
	require.NoError(t, err)
	assert.Equal(t, []entity.Move{{
		From: checkers.Square{Row: 4, Col: 3},
		To:   checkers.Square{Row: 2, Col: 5},
	}}, selection.Targets)

	other, err := alice.Move(ctx, entity.Move{
		From: checkers.Square{Row: 7, Col: 6},
		To:   checkers.Square{Row: 6, Col: 5},
	})
	require.NoError(t, err)
	require.ErrorIs(t, other.Reason, apperror.ErrIllegalMove)

	// When: the chain is finished
	outcome, err = alice.Move(ctx, entity.Move{
		From: checkers.Square{Row: 4, Col: 3},
		To:   checkers.Square{Row: 2, Col: 5},
	})
	require.NoError(t, err)

	// Then: the turn passes
	assert.False(t, outcome.ChainContinues)
	assert.Equal(t, "bob", stored(t, store).CurrentTurn)

	view, err = alice.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseOpponentTurn, view.Phase)
	assert.Nil(t, view.ChainFrom)
	assert.Nil(t, view.Selection)
}

func TestController_CheckersChainSurvivesReconnect(t *testing.T) {
	ctx := context.Background()

	// Given: red has captures from two pieces
	var board checkers.Board
	board[6][1] = checkers.Piece{Owner: checkers.Red}
	board[6][7] = checkers.Piece{Owner: checkers.Red}
	board[5][2] = checkers.Piece{Owner: checkers.Black}
	board[5][6] = checkers.Piece{Owner: checkers.Black}
	board[3][4] = checkers.Piece{Owner: checkers.Black}

	session := newSession(t, entity.GameCheckers)
	session.GameState = entity.GameState{Checkers: &board}

	store := newMemStore(session)
	first := start(t, store, "alice", nil, Config{})
	waitFor(t, first, inPhase(PhaseMyTurn))

	// Given: alice starts a double jump with the piece on 6,1
	outcome, err := first.Move(ctx, entity.Move{
		From: checkers.Square{Row: 6, Col: 1},
		To:   checkers.Square{Row: 4, Col: 3},
	})
	require.NoError(t, err)
	require.True(t, outcome.ChainContinues)

	written := stored(t, store)
	require.NotNil(t, written.GameState.ChainFrom)
	assert.Equal(t, checkers.Square{Row: 4, Col: 3}, *written.GameState.ChainFrom)

	// When: alice comes back on a new controller
	again := start(t, store, "alice", nil, Config{})
	view := waitFor(t, again, atVersion(2))

	// Then: the chain is restored from the record
	assert.Equal(t, PhaseMyTurn, view.Phase)
	require.NotNil(t, view.ChainFrom)
	assert.Equal(t, checkers.Square{Row: 4, Col: 3}, *view.ChainFrom)

	// Then: the other piece may not jump in the middle of the chain
	other, err := again.Move(ctx, entity.Move{
		From: checkers.Square{Row: 6, Col: 7},
		To:   checkers.Square{Row: 4, Col: 5},
	})
	require.NoError(t, err)
	assert.False(t, other.Accepted)
	require.ErrorIs(t, other.Reason, apperror.ErrIllegalMove)
	assert.Equal(t, int64(2), stored(t, store).Version)

	// When: the chain is finished from the new controller
	outcome, err = again.Move(ctx, entity.Move{
		From: checkers.Square{Row: 4, Col: 3},
		To:   checkers.Square{Row: 2, Col: 5},
	})
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)

	// Then: the turn passes and the record no longer marks a chain
	final := stored(t, store)
	assert.Equal(t, "bob", final.CurrentTurn)
	assert.Nil(t, final.GameState.ChainFrom)
}

func TestController_ResetFinishedSession(t *testing.T) {
	ctx := context.Background()

	// Given: a finished game that bob won
	board := tictactoe.Board{tictactoe.O, tictactoe.O, tictactoe.O, tictactoe.X, tictactoe.X}
	session := newSession(t, entity.GameTicTacToe)
	session.GameState = entity.GameState{TicTacToe: &board}
	session.Status = entity.StatusFinished
	session.Winner = "bob"

	store := newMemStore(session)
	alice := start(t, store, "alice", nil, Config{})
	bob := start(t, store, "bob", nil, Config{})
	view := waitFor(t, alice, inPhase(PhaseFinished))
	assert.Equal(t, ResultLoss, view.Result)
	waitFor(t, bob, inPhase(PhaseFinished))

	// When: bob resets
	require.NoError(t, bob.Reset(ctx))

	// Then: the record is back at the opening with player one to move
	reset := stored(t, store)
	assert.Equal(t, entity.StatusPlaying, reset.Status)
	assert.Equal(t, "alice", reset.CurrentTurn)
	assert.Empty(t, reset.Winner)
	assert.Equal(t, tictactoe.NewBoard(), *reset.GameState.TicTacToe)

	view = waitFor(t, alice, inPhase(PhaseMyTurn))
	assert.Equal(t, ResultNone, view.Result)
	waitFor(t, bob, inPhase(PhaseOpponentTurn))
}

func TestController_StaleWriteAdoptsStore(t *testing.T) {
	ctx := context.Background()

	// Given: alice is at version 1 and another writer moved the record on unseen
	store := newMemStore(newSession(t, entity.GameTicTacToe))
	alice := start(t, store, "alice", nil, Config{})
	waitFor(t, alice, inPhase(PhaseMyTurn))

	store.Mute()
	_, err := store.Update(ctx, sessionID, 1, entity.SessionPatch{Author: "bob", Reset: true})
	require.NoError(t, err)

	// When: alice plays on her old copy
	_, err = alice.Move(ctx, entity.Move{Cell: 4})

	// Then: the write is refused and the stored record replaces her optimistic one
	require.ErrorIs(t, err, apperror.ErrStaleWrite)

	view, err := alice.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.Session.Version)
	assert.Equal(t, tictactoe.Empty, view.Session.GameState.TicTacToe[4])
	assert.Equal(t, PhaseMyTurn, view.Phase)
	assert.Equal(t, 2, store.Updates())
}

func TestController_WriteRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Transient failures are retried", func(t *testing.T) {
		// Given: a store that fails twice
		store := newMemStore(newSession(t, entity.GameTicTacToe))
		alice := start(t, store, "alice", nil, Config{})
		waitFor(t, alice, inPhase(PhaseMyTurn))
		store.FailNext(2)

		// When: alice moves
		outcome, err := alice.Move(ctx, entity.Move{Cell: 0})

		// Then: the third attempt lands
		require.NoError(t, err)
		assert.True(t, outcome.Accepted)
		assert.Equal(t, 3, store.Updates())
		assert.Equal(t, "bob", stored(t, store).CurrentTurn)
	})

	t.Run("Exhausted retries keep the local move until the next snapshot", func(t *testing.T) {
		// Given: a store that keeps failing
		store := newMemStore(newSession(t, entity.GameTicTacToe))
		alice := start(t, store, "alice", nil, Config{
			Retry: RetryConfig{InitialInterval: time.Millisecond, MaxElapsed: 20 * time.Millisecond},
		})
		waitFor(t, alice, inPhase(PhaseMyTurn))
		store.FailNext(1 << 20)

		// When: alice moves
		_, err := alice.Move(ctx, entity.Move{Cell: 0})

		// Then: the failure is surfaced and the optimistic board stays
		require.ErrorIs(t, err, errStoreUnavailable)
		view, err := alice.View(ctx)
		require.NoError(t, err)
		assert.Equal(t, PhaseOpponentTurn, view.Phase)
		assert.Equal(t, tictactoe.X, view.Session.GameState.TicTacToe[0])
		assert.Equal(t, int64(1), stored(t, store).Version)

		// When: the store pushes its record again
		store.FailNext(0)
		store.Republish(sessionID)

		// Then: the remote record wins
		view = waitFor(t, alice, inPhase(PhaseMyTurn))
		assert.Equal(t, tictactoe.Empty, view.Session.GameState.TicTacToe[0])
	})
}

func TestController_RemoteSnapshots(t *testing.T) {
	// Given: alice waiting on bob
	session := newSession(t, entity.GameTicTacToe)
	session.CurrentTurn = "bob"

	store := newMemStore(session)
	alice := start(t, store, "alice", nil, Config{})
	waitFor(t, alice, inPhase(PhaseOpponentTurn))

	// When: a newer record arrives with a board no legal game reaches
	trusted := session.Clone()
	board := tictactoe.Board{tictactoe.O, tictactoe.O, tictactoe.O, tictactoe.O}
	trusted.GameState = entity.GameState{TicTacToe: &board}
	trusted.CurrentTurn = "alice"
	trusted.Version = 5
	store.Put(trusted)

	// Then: it is taken verbatim
	view := waitFor(t, alice, atVersion(5))
	assert.Equal(t, board, *view.Session.GameState.TicTacToe)
	assert.Equal(t, PhaseMyTurn, view.Phase)

	// When: an older record shows up late
	late := session.Clone()
	late.Version = 3
	store.Put(late)

	marker := trusted.Clone()
	marker.Version = 6
	store.Put(marker)

	// Then: it is ignored
	view = waitFor(t, alice, atVersion(6))
	assert.Equal(t, board, *view.Session.GameState.TicTacToe)
	assert.Equal(t, "alice", view.Session.CurrentTurn)
}

func TestController_SessionDeleted(t *testing.T) {
	ctx := context.Background()

	// Given: a running controller
	store := newMemStore(newSession(t, entity.GameConnectFour))
	alice := start(t, store, "alice", nil, Config{})
	waitFor(t, alice, inPhase(PhaseMyTurn))

	// When: the session is deleted
	store.Delete(sessionID)

	// Then: the controller stops cleanly and refuses further work
	select {
	case err := <-alice.done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("controller did not stop")
	}

	_, err := alice.Move(ctx, entity.Move{Column: 3})
	require.ErrorIs(t, err, apperror.ErrControllerStopped)
}

func TestController_OnChange(t *testing.T) {
	ctx := context.Background()

	var (
		mu     sync.Mutex
		phases []Phase
	)
	onChange := func(view View) {
		mu.Lock()
		defer mu.Unlock()
		if len(phases) == 0 || phases[len(phases)-1] != view.Phase {
			phases = append(phases, view.Phase)
		}
	}

	// Given: a controller reporting its changes
	store := newMemStore(newSession(t, entity.GameConnectFour))
	alice := start(t, store, "alice", nil, Config{OnChange: onChange})
	waitFor(t, alice, inPhase(PhaseMyTurn))

	// When: alice drops a disc
	_, err := alice.Move(ctx, entity.Move{Column: 3})
	require.NoError(t, err)

	// Then: every phase was reported in order
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseAwaitingSnapshot, PhaseMyTurn, PhaseOpponentTurn}, phases)
}
