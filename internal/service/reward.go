package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
)

type RewardService interface {
	// RecordResult credits one win worth finalScore in game to player.
	RecordResult(ctx context.Context, game entity.Game, player string, finalScore int) (*entity.Reward, error)
	WinsLeaderboard(ctx context.Context, limit int64) ([]entity.LeaderboardEntry, error)
	GameLeaderboard(ctx context.Context, game entity.Game, limit int64) ([]entity.LeaderboardEntry, error)
}

type leaderboardRepository interface {
	IncrementWins(ctx context.Context, player string) (int64, error)
	SubmitScore(ctx context.Context, game entity.Game, player string, score int) (bool, error)
	AddTrophyPoints(ctx context.Context, player string, points int64) (int64, error)
	TopWins(ctx context.Context, limit int64) ([]entity.LeaderboardEntry, error)
	TopScores(ctx context.Context, game entity.Game, limit int64) ([]entity.LeaderboardEntry, error)
}

type rewardService struct {
	logger *slog.Logger

	leaderboardRepo leaderboardRepository
}

func NewRewardService(logger *slog.Logger, leaderboardRepo leaderboardRepository) RewardService {
	return &rewardService{
		logger:          logger.With("component", "reward-service"),
		leaderboardRepo: leaderboardRepo,
	}
}

func (that *rewardService) RecordResult(ctx context.Context, game entity.Game, player string, finalScore int) (*entity.Reward, error) {
	log := that.logger.With("method", "RecordResult", "game", game, "playerID", player)

	if player == "" {
		return nil, apperror.ErrEmptyPlayer
	}

	if err := game.Validate(); err != nil {
		return nil, err
	}

	reward := &entity.Reward{
		Player:       player,
		Game:         game,
		Score:        finalScore,
		TrophyPoints: entity.TrophyPointsFor(finalScore),
	}

	total, err := that.leaderboardRepo.AddTrophyPoints(ctx, player, reward.TrophyPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to award trophy points: %w", err)
	}
	reward.TotalPoints = total

	if reward.NewBest, err = that.leaderboardRepo.SubmitScore(ctx, game, player, finalScore); err != nil {
		return nil, fmt.Errorf("failed to submit score: %w", err)
	}

	if reward.Wins, err = that.leaderboardRepo.IncrementWins(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to record win: %w", err)
	}

	log.Info("win recorded", "score", finalScore, "trophyPoints", reward.TrophyPoints, "wins", reward.Wins)

	return reward, nil
}

func (that *rewardService) WinsLeaderboard(ctx context.Context, limit int64) ([]entity.LeaderboardEntry, error) {
	entries, err := that.leaderboardRepo.TopWins(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get wins leaderboard: %w", err)
	}
	return entries, nil
}

func (that *rewardService) GameLeaderboard(ctx context.Context, game entity.Game, limit int64) ([]entity.LeaderboardEntry, error) {
	if err := game.Validate(); err != nil {
		return nil, err
	}

	entries, err := that.leaderboardRepo.TopScores(ctx, game, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s leaderboard: %w", game, err)
	}
	return entries, nil
}
