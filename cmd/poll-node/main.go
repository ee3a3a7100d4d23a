package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"poll-node/lib/logger"
	"poll-node/modules/aggregate"
	"poll-node/modules/api"
	pollCommon "poll-node/modules/common"
	"poll-node/modules/db"
	"poll-node/modules/db/polldb"
	"poll-node/modules/db/polldb/creators"
	"poll-node/modules/db/polldb/entries"
	"poll-node/modules/db/polldb/polls"
	"poll-node/modules/db/polldb/votes"
	"poll-node/modules/indexer"
	"poll-node/modules/journal"
	"poll-node/modules/leaderboard"
	stateEngine "poll-node/modules/state-engine"
)

type configPlugin interface {
	Init() error
}

func main() {
	a, err := ParseArgs()
	if err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}

	nodeConf := pollCommon.NewNodeConfig(a.dataDir)
	dbConf := db.NewDbConfig(a.dataDir)
	apiConf := api.NewApiConfig(a.dataDir)
	boardConf := leaderboard.NewLeaderboardConfig(a.dataDir)

	for _, c := range []configPlugin{nodeConf, dbConf, apiConf, boardConf} {
		if err := c.Init(); err != nil {
			fmt.Println("error is", err)
			os.Exit(1)
		}
	}
	dbConf.SetSuffix(a.dbSuffix)

	if a.isInit {
		fmt.Println("wrote configs to", a.dataDir)
		fmt.Println("admin", nodeConf.Admin().Hex())
		return
	}

	log := logger.New(nodeConf.Get().LogLevel)

	plugins := make([]aggregate.Plugin, 0)

	var (
		j          journal.Journal
		pollsDb    polls.Polls
		votesDb    votes.VoteRecords
		creatorsDb creators.Creators
	)

	switch nodeConf.Get().JournalBackend {
	case pollCommon.JournalMongo:
		database := db.New(dbConf)
		pollDb := polldb.New(database, dbConf)
		entriesDb := entries.New(pollDb)
		pollsDb = polls.New(pollDb)
		votesDb = votes.New(pollDb)
		creatorsDb = creators.New(pollDb)

		plugins = append(plugins,
			database,
			pollDb,
			db.NewReindex(pollDb.DbInstance, log),
			entriesDb,
			pollsDb,
			votesDb,
			creatorsDb,
		)
		j = entriesDb
	default:
		flat := journal.NewFlatfsJournal(nodeConf.FlatfsPath())
		plugins = append(plugins, flat)
		j = flat
	}

	se := stateEngine.New(nodeConf, j, pollCommon.SystemClock, log)
	plugins = append(plugins, se)

	if pollsDb != nil {
		plugins = append(plugins, indexer.New(
			func() indexer.Source { return se.PollRegistry() },
			pollsDb,
			votesDb,
			creatorsDb,
			log,
		))
	}

	board := leaderboard.New(
		boardConf,
		func() leaderboard.Balances { return se.PollToken() },
		func() leaderboard.Accounts { return se.PollRegistry() },
		log,
	)
	plugins = append(plugins,
		board,
		api.New(apiConf, nodeConf, se, board, log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting poll node", "journal", nodeConf.Get().JournalBackend, "admin", nodeConf.Admin())
	if err := aggregate.NewWithContext(ctx, plugins).Run(); err != nil {
		log.Error("node stopped", "err", err)
		os.Exit(1)
	}
}
