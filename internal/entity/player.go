package entity

// Reward is what a player earned for one win.
type Reward struct {
	Player       string `json:"player"`
	Game         Game   `json:"game"`
	Score        int    `json:"score"`
	TrophyPoints int64  `json:"trophyPoints"`
	TotalPoints  int64  `json:"totalPoints"`
	Wins         int64  `json:"wins"`
	NewBest      bool   `json:"newBest"`
}

// TrophyPointsFor converts a final score into trophy points.
func TrophyPointsFor(score int) int64 {
	if score <= 0 {
		return 0
	}
	return int64(score / 5)
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Score  int64  `json:"score"`
}
