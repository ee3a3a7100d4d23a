package leaderboard

import (
	"poll-node/modules/config"
)

type leaderboardConfig struct {
	// Schedule is a robfig/cron spec, e.g. "@every 1m".
	Schedule string `validate:"required"`
	Size     int    `validate:"gt=0,lte=1000"`
}

type LeaderboardConfig = *config.Config[leaderboardConfig]

func NewLeaderboardConfig(dataDir ...string) LeaderboardConfig {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}

	return config.New(leaderboardConfig{
		Schedule: "@every 1m",
		Size:     10,
	}, dataDirPtr)
}
