package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"poll-node/lib/ethsig"
	"poll-node/lib/logger"
	"poll-node/lib/test_utils"
	"poll-node/modules/api"
	pollCommon "poll-node/modules/common"
	"poll-node/modules/journal"
	"poll-node/modules/leaderboard"
	pollRegistry "poll-node/modules/poll-registry"
	stateEngine "poll-node/modules/state-engine"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBoard []leaderboard.Entry

func (f fakeBoard) Board() []leaderboard.Entry { return f }

type fixture struct {
	server *httptest.Server
	state  *stateEngine.StateEngine
	conf   pollCommon.NodeConfig
}

func setup(t *testing.T) fixture {
	dir := t.TempDir()
	conf := pollCommon.NewNodeConfig(dir)
	apiConf := api.NewApiConfig(dir)
	j := journal.NewDatastoreJournal(dssync.MutexWrap(datastore.NewMapDatastore()))
	se := stateEngine.New(conf, j, nil, logger.Discard())
	test_utils.RunPlugins(t, conf, apiConf, j, se)
	require.True(t, se.Ready())

	board := fakeBoard{{Rank: 1, Address: conf.Admin(), Balance: "999900"}}
	manager := api.New(apiConf, conf, se, board, logger.Discard())
	require.NoError(t, manager.Init())

	srv := httptest.NewServer(manager.Routes())
	t.Cleanup(srv.Close)
	return fixture{srv, se, conf}
}

func (f fixture) get(t *testing.T, path string, out any) int {
	res, err := http.Get(f.server.URL + "/api/v1" + path)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (f fixture) post(t *testing.T, path string, body any, out any) int {
	b, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(f.server.URL+"/api/v1"+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (f fixture) createPoll(t *testing.T) uint64 {
	var out struct {
		PollId uint64 `json:"poll_id"`
		TxId   string `json:"tx_id"`
	}
	status := f.post(t, "/create-poll", map[string]any{
		"question": "Favorite color?",
		"options":  []string{"Red", "Blue", "Green"},
		"duration": 3600,
	}, &out)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, out.TxId)
	return out.PollId
}

func sign(t *testing.T, f fixture, pollId, optionId uint64, voter test_utils.TestAccount) string {
	scheme, err := f.conf.Scheme()
	require.NoError(t, err)
	sig, err := ethsig.SignBallot(scheme, ethsig.Ballot{PollId: pollId, OptionId: optionId, Voter: voter.Address}, voter.Key)
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

func TestHealthBeforeStart(t *testing.T) {
	dir := t.TempDir()
	conf := pollCommon.NewNodeConfig(dir)
	require.NoError(t, conf.Init())
	apiConf := api.NewApiConfig(dir)
	require.NoError(t, apiConf.Init())

	j := journal.NewDatastoreJournal(dssync.MutexWrap(datastore.NewMapDatastore()))
	se := stateEngine.New(conf, j, nil, logger.Discard())
	require.NoError(t, se.Init())

	manager := api.New(apiConf, conf, se, fakeBoard{}, logger.Discard())
	require.NoError(t, manager.Init())
	srv := httptest.NewServer(manager.Routes())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestHealthAndAdmin(t *testing.T) {
	f := setup(t)

	var health map[string]any
	assert.Equal(t, http.StatusOK, f.get(t, "/health", &health))
	assert.Equal(t, "ok", health["status"])
	// genesis mint is the only entry
	assert.EqualValues(t, 1, health["journal_head"])

	var admin struct {
		Address string `json:"address"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/admin-address", &admin))
	assert.Equal(t, f.conf.Admin().Hex(), admin.Address)
}

func TestCreatePollAndRelayVote(t *testing.T) {
	f := setup(t)
	pollId := f.createPoll(t)
	assert.Equal(t, uint64(0), pollId)

	var count struct {
		Count uint64 `json:"count"`
	}
	f.get(t, "/poll-count", &count)
	assert.Equal(t, uint64(1), count.Count)

	// the operator paid exactly the fee
	expected := pollCommon.GENESIS_SUPPLY.Clone()
	expected.Sub(expected, pollCommon.POLL_CREATION_FEE)
	assert.Equal(t, expected, f.state.PollToken().BalanceOf(f.conf.Admin()))

	voter := test_utils.Account("alice")
	var relayed struct {
		TxId string `json:"tx_id"`
	}
	status := f.post(t, "/relay-vote", map[string]any{
		"poll_id":   pollId,
		"option_id": 1,
		"voter":     voter.Address.Hex(),
		"signature": sign(t, f, pollId, 1, voter),
	}, &relayed)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, relayed.TxId)

	var results struct {
		Votes []uint64 `json:"votes"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/polls/0/results", &results))
	assert.Equal(t, []uint64{0, 1, 0}, results.Votes)

	var records []pollRegistry.VoteRecord
	assert.Equal(t, http.StatusOK, f.get(t, "/polls/0/votes", &records))
	require.Len(t, records, 1)
	assert.Equal(t, voter.Address, records[0].Voter)
	assert.Equal(t, f.conf.Admin(), records[0].Relayer)

	var poll map[string]any
	assert.Equal(t, http.StatusOK, f.get(t, "/polls/0", &poll))
	assert.Equal(t, "Favorite color?", poll["question"])
	assert.EqualValues(t, 1, poll["total_votes"])
	assert.Equal(t, false, poll["ended"])

	// same ballot again
	var errBody map[string]string
	status = f.post(t, "/relay-vote", map[string]any{
		"poll_id":   pollId,
		"option_id": 1,
		"voter":     voter.Address.Hex(),
		"signature": sign(t, f, pollId, 1, voter),
	}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, errBody["error"])

	var user map[string]any
	assert.Equal(t, http.StatusOK, f.get(t, "/users/"+voter.Address.Hex(), &user))
	assert.EqualValues(t, 1, user["votes_cast"])
	assert.Equal(t, false, user["is_creator"])
}

func TestRelayVoteRejections(t *testing.T) {
	f := setup(t)
	pollId := f.createPoll(t)
	alice := test_utils.Account("alice")
	mallory := test_utils.Account("mallory")

	// signed by someone other than the claimed voter
	status := f.post(t, "/relay-vote", map[string]any{
		"poll_id":   pollId,
		"option_id": 0,
		"voter":     alice.Address.Hex(),
		"signature": sign(t, f, pollId, 0, mallory),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = f.post(t, "/relay-vote", map[string]any{
		"poll_id":   pollId,
		"option_id": 0,
		"voter":     alice.Address.Hex(),
		"signature": "0x1234",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = f.post(t, "/relay-vote", map[string]any{
		"poll_id":   7,
		"option_id": 0,
		"voter":     alice.Address.Hex(),
		"signature": sign(t, f, 7, 0, alice),
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = f.post(t, "/relay-vote", map[string]any{
		"poll_id":   pollId,
		"option_id": 0,
		"voter":     "not-an-address",
		"signature": sign(t, f, pollId, 0, alice),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, []uint64{0, 0, 0}, mustResults(t, f, pollId))
}

func mustResults(t *testing.T, f fixture, pollId uint64) []uint64 {
	votes, err := f.state.PollRegistry().GetPollResults(pollId)
	require.NoError(t, err)
	return votes
}

func TestCreatePollValidation(t *testing.T) {
	f := setup(t)

	status := f.post(t, "/create-poll", map[string]any{
		"question": "Only one?",
		"options":  []string{"Yes"},
		"duration": 60,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = f.post(t, "/create-poll", map[string]any{
		"question": "Zero duration?",
		"options":  []string{"Yes", "No"},
		"duration": 0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = f.post(t, "/create-poll", map[string]any{
		"options":  []string{"Yes", "No"},
		"duration": 60,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, uint64(0), f.state.PollRegistry().PollCount())
	// rejected requests leave balance, allowance and journal alone
	assert.Equal(t, pollCommon.GENESIS_SUPPLY, f.state.PollToken().BalanceOf(f.conf.Admin()))
	assert.True(t, f.state.PollToken().Allowance(f.conf.Admin(), f.state.PollRegistry().Address()).IsZero())
	head, err := f.state.Journal().Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head)
}

func TestCreatePollShortBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sink := test_utils.Account("sink")
	require.NoError(t, f.state.PollToken().Transfer(ctx, f.conf.Admin(), sink.Address, pollCommon.GENESIS_SUPPLY))

	var errBody map[string]string
	status := f.post(t, "/create-poll", map[string]any{
		"question": "Favorite color?",
		"options":  []string{"Red", "Blue"},
		"duration": 60,
	}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Not enough POLL tokens", errBody["error"])
	assert.Equal(t, uint64(0), f.state.PollRegistry().PollCount())
	assert.True(t, f.state.PollToken().Allowance(f.conf.Admin(), f.state.PollRegistry().Address()).IsZero())
}

func TestAddCreatorAndBallotDigest(t *testing.T) {
	f := setup(t)
	bob := test_utils.Account("bob")

	assert.Equal(t, http.StatusOK, f.post(t, "/creators", map[string]any{"account": bob.Address.Hex()}, nil))
	assert.True(t, f.state.PollRegistry().IsCreator(bob.Address))
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/creators", map[string]any{"account": "0x12"}, nil))

	var digest struct {
		Scheme string `json:"scheme"`
		Digest string `json:"digest"`
	}
	path := "/ballot-digest?poll_id=3&option_id=2&voter=" + bob.Address.Hex()
	assert.Equal(t, http.StatusOK, f.get(t, path, &digest))
	assert.Equal(t, ethsig.SchemePersonal, digest.Scheme)
	assert.Equal(t, ethsig.BallotDigest(3, 2, bob.Address).Hex(), digest.Digest)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/ballot-digest?poll_id=x&option_id=2&voter="+bob.Address.Hex(), nil))
}

func TestBalanceAndLeaderboard(t *testing.T) {
	f := setup(t)

	var bal map[string]any
	assert.Equal(t, http.StatusOK, f.get(t, "/balance/"+f.conf.Admin().Hex(), &bal))
	assert.Equal(t, pollCommon.GENESIS_SUPPLY.Dec(), bal["balance"])
	assert.Equal(t, pollCommon.TOKEN_SYMBOL, bal["symbol"])

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/balance/nope", nil))

	var board []leaderboard.Entry
	assert.Equal(t, http.StatusOK, f.get(t, "/leaderboard", &board))
	require.Len(t, board, 1)
	assert.Equal(t, f.conf.Admin(), board[0].Address)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, api.StatusFor(pollRegistry.ErrUnauthorized))
	assert.Equal(t, http.StatusPaymentRequired, api.StatusFor(pollRegistry.ErrFeeDebitFailed))
	assert.Equal(t, http.StatusConflict, api.StatusFor(pollRegistry.ErrPollEnded))
	assert.Equal(t, http.StatusInternalServerError, api.StatusFor(assert.AnError))
}
