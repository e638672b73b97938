package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
)

const (
	winsLeaderboardKey = "leaderboard"
	gameLeaderboard    = "gameLeaderboards:"
	trophyPointsKey    = "trophyPoints"
)

type LeaderboardRepository interface {
	IncrementWins(ctx context.Context, player string) (int64, error)
	// SubmitScore keeps the higher of the stored and the given score and reports whether it rose.
	SubmitScore(ctx context.Context, game entity.Game, player string, score int) (bool, error)
	AddTrophyPoints(ctx context.Context, player string, points int64) (int64, error)
	TrophyPoints(ctx context.Context, player string) (int64, error)
	TopWins(ctx context.Context, limit int64) ([]entity.LeaderboardEntry, error)
	TopScores(ctx context.Context, game entity.Game, limit int64) ([]entity.LeaderboardEntry, error)
}

type dbLeaderboard struct {
	client *redis.Client
}

func NewLeaderboardRepository(client *redis.Client) LeaderboardRepository {
	return &dbLeaderboard{
		client: client,
	}
}

func (that *dbLeaderboard) IncrementWins(ctx context.Context, player string) (int64, error) {
	wins, err := that.client.ZIncrBy(ctx, winsLeaderboardKey, 1, player).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment wins: %w", err)
	}

	return int64(wins), nil
}

func (that *dbLeaderboard) SubmitScore(ctx context.Context, game entity.Game, player string, score int) (bool, error) {
	changed, err := that.client.ZAddArgs(ctx, gameLeaderboard+string(game), redis.ZAddArgs{
		GT:      true,
		Ch:      true,
		Members: []redis.Z{{Score: float64(score), Member: player}},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("failed to submit score: %w", err)
	}

	return changed > 0, nil
}

func (that *dbLeaderboard) AddTrophyPoints(ctx context.Context, player string, points int64) (int64, error) {
	total, err := that.client.HIncrBy(ctx, trophyPointsKey, player, points).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add trophy points: %w", err)
	}

	return total, nil
}

func (that *dbLeaderboard) TrophyPoints(ctx context.Context, player string) (int64, error) {
	total, err := that.client.HGet(ctx, trophyPointsKey, player).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get trophy points: %w", err)
	}

	return total, nil
}

func (that *dbLeaderboard) TopWins(ctx context.Context, limit int64) ([]entity.LeaderboardEntry, error) {
	return that.top(ctx, winsLeaderboardKey, limit)
}

func (that *dbLeaderboard) TopScores(ctx context.Context, game entity.Game, limit int64) ([]entity.LeaderboardEntry, error) {
	return that.top(ctx, gameLeaderboard+string(game), limit)
}

func (that *dbLeaderboard) top(ctx context.Context, key string, limit int64) ([]entity.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	members, err := that.client.ZRevRangeWithScores(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	entries := make([]entity.LeaderboardEntry, 0, len(members))
	for i, member := range members {
		player, _ := member.Member.(string)
		entries = append(entries, entity.LeaderboardEntry{
			Rank:   i + 1,
			Player: player,
			Score:  int64(member.Score),
		})
	}

	return entries, nil
}
