package pollRegistry

import (
	"context"
	"fmt"
	"math"
	"slices"

	"poll-node/lib/ethsig"
	"poll-node/modules/journal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// CreatePoll charges caller the creation fee and registers a new poll that
// accepts votes until now + duration seconds. caller must have approved the
// registry address for at least the fee.
func (r *Registry) CreatePoll(ctx context.Context, caller common.Address, question string, options []string, duration uint64) (Receipt, error) {
	entry := &journal.Entry{
		Type:      journal.TypeCreatePoll,
		Timestamp: r.clock.Now().Unix(),
		Caller:    caller.Hex(),
		Question:  question,
		Options:   slices.Clone(options),
		Duration:  duration,
	}

	r.mu.Lock()
	evt, err := r.createPoll(ctx, entry, true)
	if err != nil {
		r.mu.Unlock()
		return Receipt{}, err
	}
	r.log.Debug("poll created", "poll_id", entry.PollId, "creator", caller, "seq", entry.Seq)
	r.unlockAndPublish(evt)

	return Receipt{entry.PollId, entry.Seq, entry.Id}, nil
}

// Vote tallies voter's choice of optionId on pollId.
func (r *Registry) Vote(ctx context.Context, voter common.Address, pollId uint64, optionId uint64) (Receipt, error) {
	entry := &journal.Entry{
		Type:      journal.TypeVote,
		Timestamp: r.clock.Now().Unix(),
		Caller:    voter.Hex(),
		PollId:    pollId,
		OptionId:  optionId,
		Voter:     voter.Hex(),
	}

	r.mu.Lock()
	evt, err := r.vote(ctx, entry, voter, common.Address{}, true)
	if err != nil {
		r.mu.Unlock()
		return Receipt{}, err
	}
	r.log.Debug("vote accepted", "poll_id", pollId, "option_id", optionId, "voter", voter, "seq", entry.Seq)
	r.unlockAndPublish(evt)

	return Receipt{pollId, entry.Seq, entry.Id}, nil
}

// VoteWithSignature tallies a vote signed off-band by voter and submitted by
// relayer. The signature must cover (pollId, optionId, voter) under the
// registry's scheme; the recovered signer is the effective voter.
func (r *Registry) VoteWithSignature(ctx context.Context, relayer common.Address, pollId uint64, optionId uint64, voter common.Address, signature []byte) (Receipt, error) {
	res := ethsig.VerifyBallot(r.scheme, ethsig.Ballot{PollId: pollId, OptionId: optionId, Voter: voter}, signature)
	if res.IsErr() {
		return Receipt{}, fmt.Errorf("%w: %w", ErrInvalidSignature, res.UnwrapErr())
	}
	signer := res.Unwrap()

	entry := &journal.Entry{
		Type:      journal.TypeVoteWithSignature,
		Timestamp: r.clock.Now().Unix(),
		Caller:    relayer.Hex(),
		PollId:    pollId,
		OptionId:  optionId,
		Voter:     signer.Hex(),
		Signature: hexutil.Encode(signature),
		Scheme:    r.scheme.Name(),
	}

	r.mu.Lock()
	evt, err := r.vote(ctx, entry, signer, relayer, true)
	if err != nil {
		r.mu.Unlock()
		return Receipt{}, err
	}
	r.log.Debug("relayed vote accepted", "poll_id", pollId, "option_id", optionId, "voter", signer, "relayer", relayer, "seq", entry.Seq)
	r.unlockAndPublish(evt)

	return Receipt{pollId, entry.Seq, entry.Id}, nil
}

// AddPollCreator lets account create polls. Only the admin may call it;
// adding an existing creator succeeds without a journal entry.
func (r *Registry) AddPollCreator(ctx context.Context, caller common.Address, account common.Address) (Receipt, error) {
	entry := &journal.Entry{
		Type:      journal.TypeAddCreator,
		Timestamp: r.clock.Now().Unix(),
		Caller:    caller.Hex(),
		Account:   account.Hex(),
	}

	r.mu.Lock()
	evt, err := r.addCreator(ctx, entry, true)
	if err != nil {
		r.mu.Unlock()
		return Receipt{}, err
	}
	if evt == nil {
		r.mu.Unlock()
		return Receipt{}, nil
	}
	r.log.Debug("creator added", "account", account, "seq", entry.Seq)
	r.unlockAndPublish(evt)

	return Receipt{Seq: entry.Seq, TxId: entry.Id}, nil
}

// ===== shared apply paths, callers hold mu =====
//
// persist is false when replaying the journal: the entry is already stored
// and its Timestamp stands in for the clock.

func (r *Registry) createPoll(ctx context.Context, entry *journal.Entry, persist bool) (Event, error) {
	caller := common.HexToAddress(entry.Caller)
	now := entry.Timestamp

	if !r.isCreator(caller) {
		return nil, fmt.Errorf("%w: %s is not a poll creator", ErrUnauthorized, caller.Hex())
	}
	if len(entry.Options) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOptions, len(entry.Options))
	}
	if entry.Duration == 0 || entry.Duration > uint64(math.MaxInt64-now) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDuration, entry.Duration)
	}

	fee := r.fee
	if !persist {
		recorded, err := uint256.FromDecimal(entry.Fee)
		if err != nil {
			return nil, fmt.Errorf("%w: seq %d fee %q", journal.ErrCorrupt, entry.Seq, entry.Fee)
		}
		fee = recorded
		if entry.PollId != uint64(len(r.polls)) {
			return nil, fmt.Errorf("%w: seq %d creates poll %d, expected %d", journal.ErrSeqGap, entry.Seq, entry.PollId, len(r.polls))
		}
	}

	session := r.ledger.OpenSession()
	if err := session.TransferFrom(caller, r.address, fee); err != nil {
		session.Revert()
		return nil, fmt.Errorf("%w: %w", ErrFeeDebitFailed, err)
	}

	entry.PollId = uint64(len(r.polls))
	entry.Fee = fee.Dec()
	if persist {
		if err := r.journal.Append(ctx, entry); err != nil {
			session.Revert()
			r.log.Error("failed to journal poll creation", "creator", caller, "err", err)
			return nil, err
		}
	}
	session.Done()

	p := &Poll{
		Id:        entry.PollId,
		Question:  entry.Question,
		Options:   slices.Clone(entry.Options),
		Votes:     make([]uint64, len(entry.Options)),
		EndTime:   now + int64(entry.Duration),
		Creator:   caller,
		CreatedAt: now,
	}
	r.polls = append(r.polls, p)
	r.statsFor(caller).PollsCreated++

	return PollCreated{
		EventMeta: EventMeta{entry.Seq, entry.Id, now},
		PollId:    p.Id,
		Question:  p.Question,
		Creator:   caller,
		Options:   slices.Clone(p.Options),
		EndTime:   p.EndTime,
	}, nil
}

func (r *Registry) vote(ctx context.Context, entry *journal.Entry, voter common.Address, relayer common.Address, persist bool) (Event, error) {
	p, err := r.poll(entry.PollId)
	if err != nil {
		return nil, err
	}
	if p.Ended(entry.Timestamp) {
		return nil, fmt.Errorf("%w: poll %d ended at %d", ErrPollEnded, p.Id, p.EndTime)
	}
	if entry.OptionId >= uint64(len(p.Options)) {
		return nil, fmt.Errorf("%w: poll %d has %d options, got %d", ErrInvalidOption, p.Id, len(p.Options), entry.OptionId)
	}
	key := voteKey{p.Id, voter}
	if _, voted := r.votes[key]; voted {
		return nil, fmt.Errorf("%w: %s on poll %d", ErrAlreadyVoted, voter.Hex(), p.Id)
	}

	if persist {
		if err := r.journal.Append(ctx, entry); err != nil {
			r.log.Error("failed to journal vote", "poll_id", p.Id, "voter", voter, "err", err)
			return nil, err
		}
	}

	p.Votes[entry.OptionId]++
	r.votes[key] = VoteRecord{
		PollId:    p.Id,
		Voter:     voter,
		OptionId:  entry.OptionId,
		Relayer:   relayer,
		Seq:       entry.Seq,
		TxId:      entry.Id,
		Timestamp: entry.Timestamp,
	}
	r.statsFor(voter).VotesCast++
	if relayer != (common.Address{}) {
		r.statsFor(relayer).VotesRelayed++
	}

	return Voted{
		EventMeta: EventMeta{entry.Seq, entry.Id, entry.Timestamp},
		PollId:    p.Id,
		OptionId:  entry.OptionId,
		Voter:     voter,
		Relayer:   relayer,
	}, nil
}

// addCreator returns a nil event when account is already a creator.
func (r *Registry) addCreator(ctx context.Context, entry *journal.Entry, persist bool) (Event, error) {
	caller := common.HexToAddress(entry.Caller)
	account := common.HexToAddress(entry.Account)

	if caller != r.admin {
		return nil, fmt.Errorf("%w: only the admin can add creators", ErrUnauthorized)
	}
	if _, ok := r.creators[account]; ok {
		return nil, nil
	}

	if persist {
		if err := r.journal.Append(ctx, entry); err != nil {
			r.log.Error("failed to journal creator", "account", account, "err", err)
			return nil, err
		}
	}
	r.creators[account] = struct{}{}

	return CreatorAdded{
		EventMeta: EventMeta{entry.Seq, entry.Id, entry.Timestamp},
		Account:   account,
	}, nil
}
