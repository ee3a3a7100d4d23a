package leaderboard_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"poll-node/lib/logger"
	"poll-node/lib/test_utils"
	pollCommon "poll-node/modules/common"
	feeLedger "poll-node/modules/fee-ledger"
	"poll-node/modules/leaderboard"
	pollRegistry "poll-node/modules/poll-registry"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	admin := test_utils.Account("admin")
	alice := test_utils.Account("alice")
	bob := test_utils.Account("bob")

	j := test_utils.NewMockJournal()
	token := feeLedger.New(crypto.CreateAddress(admin.Address, 0), j, nil, logger.Discard())
	registry := pollRegistry.New(admin.Address, crypto.CreateAddress(admin.Address, 1), token, j, nil, nil, logger.Discard())
	require.NoError(t, token.Mint(ctx, admin.Address, pollCommon.GENESIS_SUPPLY))
	require.NoError(t, token.Approve(ctx, admin.Address, registry.Address(), pollCommon.POLL_CREATION_FEE))

	rec, err := registry.CreatePoll(ctx, admin.Address, "Q", []string{"a", "b"}, 60)
	require.NoError(t, err)
	_, err = registry.Vote(ctx, alice.Address, rec.PollId, 0)
	require.NoError(t, err)
	_, err = registry.Vote(ctx, bob.Address, rec.PollId, 1)
	require.NoError(t, err)

	// 1.5 POLL, shown as 1 whole token
	require.NoError(t, token.Transfer(ctx, admin.Address, bob.Address, uint256.NewInt(1_500_000_000_000_000_000)))

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0755))
	err = os.WriteFile(
		filepath.Join(dir, "config", "leaderboardConfig.json"),
		[]byte(`{"Schedule": "@every 1h", "Size": 2}`),
		0644,
	)
	require.NoError(t, err)
	conf := leaderboard.NewLeaderboardConfig(dir)
	require.NoError(t, conf.Init())
	assert.Equal(t, 2, conf.Get().Size)

	lb := leaderboard.New(conf,
		func() leaderboard.Balances { return token },
		func() leaderboard.Accounts { return registry },
		logger.Discard(),
	)
	test_utils.RunPlugin(t, lb, true)

	board := lb.Board()
	require.Len(t, board, 2)
	assert.Equal(t, admin.Address, board[0].Address)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "999898", board[0].Balance)
	assert.Equal(t, uint64(1), board[0].PollsCreated)

	assert.Equal(t, bob.Address, board[1].Address)
	assert.Equal(t, "1", board[1].Balance)
	assert.Equal(t, "1500000000000000000", board[1].BalanceRaw)
	assert.Equal(t, uint64(1), board[1].VotesCast)
}
