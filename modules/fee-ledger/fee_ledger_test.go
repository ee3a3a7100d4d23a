package feeLedger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"poll-node/lib/logger"
	"poll-node/lib/test_utils"
	pollCommon "poll-node/modules/common"
	feeLedger "poll-node/modules/fee-ledger"
	"poll-node/modules/journal"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = test_utils.Account("admin")
	alice    = test_utils.Account("alice")
	registry = test_utils.Account("registry")
)

func poll(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func newToken(t *testing.T) (*feeLedger.PollToken, *test_utils.MockJournal) {
	j := test_utils.NewMockJournal()
	clock := test_utils.NewManualClock(time.Unix(1_700_000_000, 0))
	token := feeLedger.New(test_utils.Account("token").Address, j, clock, logger.Discard())
	require.NoError(t, token.Mint(context.Background(), admin.Address, pollCommon.GENESIS_SUPPLY))
	return token, j
}

func TestGenesisMint(t *testing.T) {
	token, j := newToken(t)

	assert.Equal(t, pollCommon.GENESIS_SUPPLY, token.BalanceOf(admin.Address))
	assert.Equal(t, pollCommon.GENESIS_SUPPLY, token.TotalSupply())
	info := token.Info()
	assert.Equal(t, "POLL", info.Symbol)
	assert.Equal(t, uint8(18), info.Decimals)

	require.Equal(t, 1, j.Len())
	assert.Equal(t, journal.TypeTokenMint, j.Last().Type)
	assert.Equal(t, int64(1_700_000_000), j.Last().Timestamp)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	token, j := newToken(t)

	require.NoError(t, token.Transfer(ctx, admin.Address, alice.Address, poll(500)))
	assert.Equal(t, poll(500), token.BalanceOf(alice.Address))
	assert.Equal(t, poll(999_500), token.BalanceOf(admin.Address))
	assert.Equal(t, 2, j.Len())

	err := token.Transfer(ctx, alice.Address, admin.Address, poll(501))
	assert.ErrorIs(t, err, feeLedger.ErrInsufficientBalance)
	assert.Equal(t, 2, j.Len())
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	token, _ := newToken(t)

	err := token.TransferFrom(admin.Address, registry.Address, poll(100))
	assert.ErrorIs(t, err, feeLedger.ErrInsufficientAllowance)

	require.NoError(t, token.Approve(ctx, admin.Address, registry.Address, poll(150)))
	require.NoError(t, token.TransferFrom(admin.Address, registry.Address, poll(100)))

	assert.Equal(t, poll(50), token.Allowance(admin.Address, registry.Address))
	assert.Equal(t, poll(100), token.BalanceOf(registry.Address))

	err = token.TransferFrom(admin.Address, registry.Address, poll(100))
	assert.ErrorIs(t, err, feeLedger.ErrInsufficientAllowance)
}

func TestTransferFromInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	token, _ := newToken(t)

	require.NoError(t, token.Approve(ctx, alice.Address, registry.Address, poll(100)))
	err := token.TransferFrom(alice.Address, registry.Address, poll(100))
	assert.ErrorIs(t, err, feeLedger.ErrInsufficientBalance)
	assert.Equal(t, poll(100), token.Allowance(alice.Address, registry.Address))
}

func TestUnlimitedAllowance(t *testing.T) {
	ctx := context.Background()
	token, _ := newToken(t)
	unlimited := new(uint256.Int).SetAllOne()

	require.NoError(t, token.Approve(ctx, admin.Address, registry.Address, unlimited))
	require.NoError(t, token.TransferFrom(admin.Address, registry.Address, poll(100)))
	assert.Equal(t, unlimited, token.Allowance(admin.Address, registry.Address))
}

func TestJournalFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	token, j := newToken(t)
	j.Fail = errors.New("disk full")

	err := token.Transfer(ctx, admin.Address, alice.Address, poll(1))
	assert.EqualError(t, err, "disk full")
	assert.True(t, token.BalanceOf(alice.Address).IsZero())

	err = token.Approve(ctx, admin.Address, alice.Address, poll(1))
	assert.Error(t, err)
	assert.True(t, token.Allowance(admin.Address, alice.Address).IsZero())
}

func TestSessionDoneAndRevert(t *testing.T) {
	ctx := context.Background()
	token, _ := newToken(t)
	require.NoError(t, token.Approve(ctx, admin.Address, registry.Address, poll(300)))

	session := token.NewSession()
	require.NoError(t, session.TransferFrom(admin.Address, registry.Address, poll(100)))
	assert.Equal(t, poll(100), session.BalanceOf(registry.Address))
	assert.Equal(t, poll(200), session.Allowance(admin.Address, registry.Address))
	session.Revert()

	assert.True(t, token.BalanceOf(registry.Address).IsZero())
	assert.Equal(t, poll(300), token.Allowance(admin.Address, registry.Address))

	session = token.NewSession()
	require.NoError(t, session.TransferFrom(admin.Address, registry.Address, poll(100)))
	require.NoError(t, session.TransferFrom(admin.Address, registry.Address, poll(100)))
	session.Done()
	// second close is a no-op
	session.Revert()

	assert.Equal(t, poll(200), token.BalanceOf(registry.Address))
	assert.Equal(t, poll(100), token.Allowance(admin.Address, registry.Address))
	assert.Equal(t, poll(999_800), token.BalanceOf(admin.Address))

	assert.ErrorIs(t, session.TransferFrom(admin.Address, registry.Address, poll(1)), feeLedger.ErrSessionClosed)
}

func TestSessionRejectsWithoutAllowance(t *testing.T) {
	token, _ := newToken(t)

	session := token.NewSession()
	defer session.Revert()
	err := session.TransferFrom(admin.Address, registry.Address, pollCommon.POLL_CREATION_FEE)
	assert.ErrorIs(t, err, feeLedger.ErrInsufficientAllowance)
}

func TestHoldersOrdering(t *testing.T) {
	ctx := context.Background()
	token, _ := newToken(t)
	require.NoError(t, token.Transfer(ctx, admin.Address, alice.Address, poll(10)))
	require.NoError(t, token.Transfer(ctx, admin.Address, registry.Address, poll(20)))

	holders := token.Holders()
	require.Len(t, holders, 3)
	assert.Equal(t, admin.Address, holders[0].Address)
	assert.Equal(t, registry.Address, holders[1].Address)
	assert.Equal(t, alice.Address, holders[2].Address)
}

func TestReplayRebuildsBalances(t *testing.T) {
	ctx := context.Background()
	token, j := newToken(t)
	require.NoError(t, token.Transfer(ctx, admin.Address, alice.Address, poll(10)))
	require.NoError(t, token.Approve(ctx, alice.Address, registry.Address, poll(5)))

	rebuilt := feeLedger.New(token.Address(), nil, nil, logger.Discard())
	require.NoError(t, j.Replay(ctx, 0, rebuilt.Apply))

	assert.Equal(t, token.BalanceOf(admin.Address), rebuilt.BalanceOf(admin.Address))
	assert.Equal(t, token.BalanceOf(alice.Address), rebuilt.BalanceOf(alice.Address))
	assert.Equal(t, poll(5), rebuilt.Allowance(alice.Address, registry.Address))
	assert.Equal(t, pollCommon.GENESIS_SUPPLY, rebuilt.TotalSupply())
}
