package pollRegistry_test

import (
	"context"
	"testing"

	"poll-node/lib/ethsig"
	"poll-node/lib/test_utils"
	pollRegistry "poll-node/modules/poll-registry"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, scheme ethsig.Scheme, signer test_utils.TestAccount, pollId, optionId uint64) []byte {
	t.Helper()
	sig, err := ethsig.SignBallot(scheme, ethsig.Ballot{PollId: pollId, OptionId: optionId, Voter: signer.Address}, signer.Key)
	require.NoError(t, err)
	return sig
}

func schemes() []ethsig.Scheme {
	return []ethsig.Scheme{
		ethsig.Personal(),
		ethsig.EIP712(1337, crypto.CreateAddress(admin.Address, 1)),
	}
}

func TestRelayedVoteTalliesSigner(t *testing.T) {
	for _, scheme := range schemes() {
		t.Run(scheme.Name(), func(t *testing.T) {
			f := setup(t, scheme)
			ctx := context.Background()
			pollId := f.colorPoll(t)

			sig := sign(t, scheme, alice, pollId, 2)
			rec, err := f.registry.VoteWithSignature(ctx, relayer.Address, pollId, 2, alice.Address, sig)
			require.NoError(t, err)
			assert.NotEmpty(t, rec.TxId)

			results, _ := f.registry.GetPollResults(pollId)
			assert.Equal(t, []uint64{0, 0, 1}, results)

			// the vote belongs to the signer, not the relayer
			assert.True(t, f.registry.VoteOf(pollId, alice.Address).IsSome())
			assert.True(t, f.registry.VoteOf(pollId, relayer.Address).IsNone())
			assert.Equal(t, uint64(1), f.registry.AccountStats(alice.Address).VotesCast)
			assert.Equal(t, uint64(1), f.registry.AccountStats(relayer.Address).VotesRelayed)

			last := f.journal.Last()
			assert.Equal(t, relayer.Address.Hex(), last.Caller)
			assert.Equal(t, alice.Address.Hex(), last.Voter)
			assert.Equal(t, scheme.Name(), last.Scheme)

			voted := f.events[len(f.events)-1].(pollRegistry.Voted)
			assert.Equal(t, alice.Address, voted.Voter)
			assert.Equal(t, relayer.Address, voted.Relayer)
		})
	}
}

func TestRelayedReplayIsAlreadyVoted(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	pollId := f.colorPoll(t)
	sig := sign(t, ethsig.Personal(), alice, pollId, 0)

	_, err := f.registry.VoteWithSignature(ctx, relayer.Address, pollId, 0, alice.Address, sig)
	require.NoError(t, err)

	// same signature from another relayer
	_, err = f.registry.VoteWithSignature(ctx, bob.Address, pollId, 0, alice.Address, sig)
	assert.ErrorIs(t, err, pollRegistry.ErrAlreadyVoted)

	// and alice voting directly
	_, err = f.registry.Vote(ctx, alice.Address, pollId, 1)
	assert.ErrorIs(t, err, pollRegistry.ErrAlreadyVoted)
}

func TestRelayedVoteRejectsWrongSigner(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	pollId := f.colorPoll(t)

	// bob signs a ballot naming alice
	ballot := ethsig.Ballot{PollId: pollId, OptionId: 1, Voter: alice.Address}
	sig, err := ethsig.SignBallot(ethsig.Personal(), ballot, bob.Key)
	require.NoError(t, err)

	_, err = f.registry.VoteWithSignature(ctx, relayer.Address, pollId, 1, alice.Address, sig)
	assert.ErrorIs(t, err, pollRegistry.ErrInvalidSignature)
	assert.ErrorIs(t, err, ethsig.ErrSignerMismatch)

	results, _ := f.registry.GetPollResults(pollId)
	assert.Equal(t, []uint64{0, 0, 0}, results)
}

func TestRelayedVoteRejectsTamperedChoice(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	pollId := f.colorPoll(t)

	sig := sign(t, ethsig.Personal(), alice, pollId, 0)
	_, err := f.registry.VoteWithSignature(ctx, relayer.Address, pollId, 1, alice.Address, sig)
	assert.ErrorIs(t, err, pollRegistry.ErrInvalidSignature)
}

func TestRelayedVoteRejectsMalformedSignature(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	pollId := f.colorPoll(t)

	_, err := f.registry.VoteWithSignature(ctx, relayer.Address, pollId, 0, alice.Address, []byte{1, 2, 3})
	assert.ErrorIs(t, err, pollRegistry.ErrInvalidSignature)
	assert.ErrorIs(t, err, ethsig.ErrSigIncorrectLen)
}

func TestRelayedVoteSchemeMismatch(t *testing.T) {
	registryScheme := ethsig.EIP712(1337, crypto.CreateAddress(admin.Address, 1))
	f := setup(t, registryScheme)
	pollId := f.colorPoll(t)

	sig := sign(t, ethsig.Personal(), alice, pollId, 0)
	_, err := f.registry.VoteWithSignature(context.Background(), relayer.Address, pollId, 0, alice.Address, sig)
	assert.ErrorIs(t, err, pollRegistry.ErrInvalidSignature)

	otherChain := ethsig.EIP712(1, crypto.CreateAddress(admin.Address, 1))
	sig = sign(t, otherChain, alice, pollId, 0)
	_, err = f.registry.VoteWithSignature(context.Background(), relayer.Address, pollId, 0, alice.Address, sig)
	assert.ErrorIs(t, err, pollRegistry.ErrInvalidSignature)
}

func TestRelayedVoteChecksAfterRecovery(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	pollId := f.colorPoll(t)

	sig := sign(t, ethsig.Personal(), alice, 42, 0)
	_, err := f.registry.VoteWithSignature(ctx, relayer.Address, 42, 0, alice.Address, sig)
	assert.ErrorIs(t, err, pollRegistry.ErrPollNotFound)

	sig = sign(t, ethsig.Personal(), alice, pollId, 3)
	_, err = f.registry.VoteWithSignature(ctx, relayer.Address, pollId, 3, alice.Address, sig)
	assert.ErrorIs(t, err, pollRegistry.ErrInvalidOption)
}
