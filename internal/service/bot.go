package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/rules"
)

// Solo results from the human's point of view.
const (
	SoloHuman    = "human"
	SoloComputer = "computer"
	SoloDraw     = entity.WinnerDraw
)

// In solo play the human is always side one and the computer side two.
const (
	humanSide    = entity.SideOne
	computerSide = entity.SideTwo
)

type SoloRequest struct {
	Game   entity.Game      `json:"-"`
	Player string           `json:"player,omitempty"`
	State  entity.GameState `json:"-"`
	Move   entity.Move      `json:"move"`
	// ChainFrom continues a checkers capture started by the previous request.
	ChainFrom *checkers.Square `json:"chainFrom,omitempty"`
}

type SoloResult struct {
	State         entity.GameState `json:"gameState"`
	ComputerMoves []entity.Move    `json:"computerMoves,omitempty"`
	Finished      bool             `json:"finished"`
	Winner        string           `json:"winner,omitempty"`
	ChainFrom     *checkers.Square `json:"chainFrom,omitempty"`
	Reward        *entity.Reward   `json:"reward,omitempty"`
}

type BotService interface {
	// Play applies the human move and, unless that ends the game, the computer's reply.
	Play(ctx context.Context, req SoloRequest) (*SoloResult, error)
}

type rewardRecorder interface {
	RecordResult(ctx context.Context, game entity.Game, player string, finalScore int) (*entity.Reward, error)
}

type botService struct {
	logger *slog.Logger

	rewards rewardRecorder
	options rules.Options

	mu  sync.Mutex
	rng *rand.Rand
}

func NewBotService(logger *slog.Logger, rewards rewardRecorder, options rules.Options, rng *rand.Rand) BotService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint: gosec // not used for security
	}

	return &botService{
		logger:  logger.With("component", "bot-service"),
		rewards: rewards,
		options: options,
		rng:     rng,
	}
}

func (that *botService) Play(ctx context.Context, req SoloRequest) (*SoloResult, error) {
	log := that.logger.With("method", "Play", "game", req.Game)

	if err := req.Game.Validate(); err != nil {
		return nil, err
	}

	human, err := rules.Apply(req.Game, req.State, humanSide, req.Move, req.ChainFrom, that.options)
	if err != nil {
		return nil, fmt.Errorf("failed to make turn: %w", err)
	}

	result := &SoloResult{State: human.State}

	switch {
	case human.Finished:
		that.finish(result, human)
	case human.ChainFrom != nil:
		result.ChainFrom = human.ChainFrom
		return result, nil
	default:
		if err = that.reply(req.Game, result); err != nil {
			return nil, err
		}
	}

	if result.Winner == SoloHuman && req.Player != "" && that.rewards != nil {
		reward, err := that.rewards.RecordResult(ctx, req.Game, req.Player, req.Game.WinScore())
		if err != nil {
			log.Error("failed to record solo win", "playerID", req.Player, "error", err)
		} else {
			result.Reward = reward
		}
	}

	return result, nil
}

// reply plays the computer's turn, following its own capture chain to the end.
func (that *botService) reply(game entity.Game, result *SoloResult) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	var chainFrom *checkers.Square
	for {
		move, err := rules.ComputerMove(game, result.State, computerSide, chainFrom, that.rng)
		if err != nil {
			if game == entity.GameCheckers && chainFrom == nil {
				// a computer with no move left concedes
				result.Finished = true
				result.Winner = SoloHuman
				return nil
			}
			return fmt.Errorf("bot failed to make turn: %w", err)
		}

		verdict, err := rules.Apply(game, result.State, computerSide, move, chainFrom, that.options)
		if err != nil {
			return fmt.Errorf("bot failed to make turn: %w", err)
		}

		result.State = verdict.State
		result.ComputerMoves = append(result.ComputerMoves, move)

		if verdict.ChainFrom == nil {
			if verdict.Finished {
				that.finish(result, verdict)
			}
			return nil
		}

		chainFrom = verdict.ChainFrom
	}
}

func (that *botService) finish(result *SoloResult, verdict rules.Verdict) {
	result.Finished = true

	switch verdict.Winner {
	case humanSide:
		result.Winner = SoloHuman
	case computerSide:
		result.Winner = SoloComputer
	default:
		result.Winner = SoloDraw
	}
}
