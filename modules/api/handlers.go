package api

import (
	"net/http"
	"strconv"

	"poll-node/lib/ethsig"
	"poll-node/lib/utils"
	pollRegistry "poll-node/modules/poll-registry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ===== views =====

type pollView struct {
	pollRegistry.Poll
	TotalVotes uint64 `json:"total_votes"`
	Ended      bool   `json:"ended"`
}

func (api *apiManager) view(p pollRegistry.Poll) pollView {
	now := api.clock.Now().Unix()
	return pollView{p, p.TotalVotes(), p.Ended(now)}
}

func pathPollId(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid poll id")
		return 0, false
	}
	return id, true
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// ===== reads =====

func (api *apiManager) health(w http.ResponseWriter, r *http.Request) {
	if !api.state.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "starting"})
		return
	}
	head, err := api.state.Journal().Head(r.Context())
	if err != nil {
		api.fail(w, r, err)
		return
	}
	reg := api.state.PollRegistry()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"poll_count":   reg.PollCount(),
		"journal_head": head,
		"admin":        reg.Admin(),
		"registry":     reg.Address(),
		"token":        api.state.PollToken().Address(),
		"scheme":       reg.Scheme().Name(),
	})
}

func (api *apiManager) adminAddress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"address": api.state.PollRegistry().Admin()})
}

func (api *apiManager) listPolls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, utils.Map(api.state.PollRegistry().GetAllPolls(), api.view))
}

func (api *apiManager) getPoll(w http.ResponseWriter, r *http.Request) {
	id, ok := pathPollId(w, r)
	if !ok {
		return
	}
	p, err := api.state.PollRegistry().GetPoll(id)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.view(p))
}

func (api *apiManager) getPollResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathPollId(w, r)
	if !ok {
		return
	}
	votes, err := api.state.PollRegistry().GetPollResults(id)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"poll_id": id, "votes": votes})
}

func (api *apiManager) getPollVotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathPollId(w, r)
	if !ok {
		return
	}
	records, err := api.state.PollRegistry().VoteRecords(id)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (api *apiManager) pollCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"count": api.state.PollRegistry().PollCount()})
}

func (api *apiManager) ballotDigest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pollId, err := strconv.ParseUint(q.Get("poll_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid poll_id")
		return
	}
	optionId, err := strconv.ParseUint(q.Get("option_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid option_id")
		return
	}
	voter, ok := parseAddress(w, q.Get("voter"))
	if !ok {
		return
	}

	scheme := api.state.PollRegistry().Scheme()
	ballot := ethsig.Ballot{PollId: pollId, OptionId: optionId, Voter: voter}
	hash, err := scheme.Hash(ballot)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scheme":       scheme.Name(),
		"digest":       ballot.Digest(),
		"signing_hash": hexutil.Encode(hash),
	})
}

func (api *apiManager) balance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r.PathValue("address"))
	if !ok {
		return
	}
	token := api.state.PollToken()
	info := token.Info()
	writeJSON(w, http.StatusOK, map[string]any{
		"address":  addr,
		"balance":  token.BalanceOf(addr).Dec(),
		"symbol":   info.Symbol,
		"decimals": info.Decimals,
	})
}

func (api *apiManager) leaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.board.Board())
}

func (api *apiManager) user(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r.PathValue("address"))
	if !ok {
		return
	}
	stats := api.state.PollRegistry().AccountStats(addr)
	writeJSON(w, http.StatusOK, map[string]any{
		"address":       addr,
		"polls_created": stats.PollsCreated,
		"votes_cast":    stats.VotesCast,
		"votes_relayed": stats.VotesRelayed,
		"is_creator":    stats.IsCreator,
		"balance":       api.state.PollToken().BalanceOf(addr).Dec(),
	})
}

// ===== operator actions =====

type createPollRequest struct {
	Question string   `json:"question" validate:"required,max=512"`
	Options  []string `json:"options" validate:"dive,required,max=256"`
	Duration uint64   `json:"duration"`
}

// createPoll creates a poll as the operator, approving exactly the fee first
// when the operator's allowance to the registry is short.
func (api *apiManager) createPoll(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[createPollRequest](api, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	reg := api.state.PollRegistry()
	token := api.state.PollToken()
	fee := reg.Fee()

	if !reg.IsCreator(api.operator) {
		api.fail(w, r, pollRegistry.ErrUnauthorized)
		return
	}
	// reject before approving so a bad request leaves no journal entry
	if len(req.Options) < 2 {
		api.fail(w, r, pollRegistry.ErrInvalidOptions)
		return
	}
	if req.Duration == 0 {
		api.fail(w, r, pollRegistry.ErrInvalidDuration)
		return
	}
	if token.BalanceOf(api.operator).Lt(fee) {
		writeError(w, http.StatusBadRequest, "Not enough POLL tokens")
		return
	}
	if token.Allowance(api.operator, reg.Address()).Lt(fee) {
		if err := token.Approve(ctx, api.operator, reg.Address(), fee); err != nil {
			api.fail(w, r, err)
			return
		}
	}

	rec, err := reg.CreatePoll(ctx, api.operator, req.Question, req.Options, req.Duration)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"poll_id": rec.PollId, "tx_id": rec.TxId})
}

type relayVoteRequest struct {
	PollId    uint64 `json:"poll_id"`
	OptionId  uint64 `json:"option_id"`
	Voter     string `json:"voter" validate:"required,eth_addr"`
	Signature string `json:"signature" validate:"required"`
}

func (api *apiManager) relayVote(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[relayVoteRequest](api, w, r)
	if !ok {
		return
	}
	sig, err := ethsig.ParseSignature(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := api.state.PollRegistry().VoteWithSignature(
		r.Context(),
		api.operator,
		req.PollId,
		req.OptionId,
		common.HexToAddress(req.Voter),
		sig,
	)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tx_id": rec.TxId})
}

type addCreatorRequest struct {
	Account string `json:"account" validate:"required,eth_addr"`
}

func (api *apiManager) addCreator(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[addCreatorRequest](api, w, r)
	if !ok {
		return
	}
	rec, err := api.state.PollRegistry().AddPollCreator(r.Context(), api.operator, common.HexToAddress(req.Account))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": common.HexToAddress(req.Account), "tx_id": rec.TxId})
}
