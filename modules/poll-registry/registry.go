package pollRegistry

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"

	"poll-node/lib/ethsig"
	"poll-node/lib/pubsub"
	pollCommon "poll-node/modules/common"
	feeLedger "poll-node/modules/fee-ledger"
	"poll-node/modules/journal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/moznion/go-optional"
)

// Registry owns polls, vote records and the creator set. Mutations run one at
// a time under mu and are journaled before they are applied; events are
// published after mu is released, in commit order.
//
// Event handlers must not call mutating methods.
type Registry struct {
	mu        sync.RWMutex
	publishMu sync.Mutex

	admin   common.Address
	address common.Address
	fee     *uint256.Int

	polls    []*Poll
	votes    map[voteKey]VoteRecord
	creators map[common.Address]struct{}
	stats    map[common.Address]*AccountStats

	ledger  feeLedger.SessionOpener
	journal journal.Journal
	scheme  ethsig.Scheme
	clock   pollCommon.Clock
	events  *pubsub.Bus[Event]
	log     *slog.Logger
}

// New creates an empty registry. address is the account creation fees are
// paid to.
func New(
	admin common.Address,
	address common.Address,
	ledger feeLedger.SessionOpener,
	j journal.Journal,
	scheme ethsig.Scheme,
	clock pollCommon.Clock,
	log *slog.Logger,
) *Registry {
	if clock == nil {
		clock = pollCommon.SystemClock
	}
	if scheme == nil {
		scheme = ethsig.Personal()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		admin:    admin,
		address:  address,
		fee:      pollCommon.POLL_CREATION_FEE.Clone(),
		polls:    make([]*Poll, 0),
		votes:    make(map[voteKey]VoteRecord),
		creators: make(map[common.Address]struct{}),
		stats:    make(map[common.Address]*AccountStats),
		ledger:   ledger,
		journal:  j,
		scheme:   scheme,
		clock:    clock,
		events:   pubsub.New[Event](),
		log:      log.With("service", "poll-registry"),
	}
}

// ===== queries =====

func (r *Registry) Admin() common.Address {
	return r.admin
}

func (r *Registry) Address() common.Address {
	return r.address
}

func (r *Registry) Fee() *uint256.Int {
	return r.fee.Clone()
}

func (r *Registry) Scheme() ethsig.Scheme {
	return r.scheme
}

func (r *Registry) PollCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.polls))
}

func (r *Registry) GetPoll(pollId uint64) (Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.poll(pollId)
	if err != nil {
		return Poll{}, err
	}
	return p.clone(), nil
}

func (r *Registry) GetPollResults(pollId uint64) ([]uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.poll(pollId)
	if err != nil {
		return nil, err
	}
	return slices.Clone(p.Votes), nil
}

// GetAllPolls returns every poll in creation order.
func (r *Registry) GetAllPolls() []Poll {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Poll, len(r.polls))
	for i, p := range r.polls {
		out[i] = p.clone()
	}
	return out
}

func (r *Registry) IsCreator(account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isCreator(account)
}

// Creators lists the explicitly added creators. The admin is only included
// if it was added.
func (r *Registry) Creators() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.creators))
	for c := range r.creators {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b common.Address) int { return a.Cmp(b) })
	return out
}

// VoteOf returns the option account chose on pollId, if it voted.
func (r *Registry) VoteOf(pollId uint64, account common.Address) optional.Option[uint64] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.votes[voteKey{pollId, account}]; ok {
		return optional.Some(rec.OptionId)
	}
	return optional.None[uint64]()
}

// VoteRecords lists the accepted votes on pollId in acceptance order.
func (r *Registry) VoteRecords(pollId uint64) ([]VoteRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, err := r.poll(pollId); err != nil {
		return nil, err
	}
	out := make([]VoteRecord, 0)
	for k, rec := range r.votes {
		if k.pollId == pollId {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b VoteRecord) int { return cmp.Compare(a.Seq, b.Seq) })
	return out, nil
}

func (r *Registry) AccountStats(account common.Address) AccountStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := AccountStats{Account: account}
	if s, ok := r.stats[account]; ok {
		stats = *s
	}
	stats.IsCreator = r.isCreator(account)
	return stats
}

// Accounts lists every account that created, voted or relayed.
func (r *Registry) Accounts() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.stats))
	for a := range r.stats {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b common.Address) int { return a.Cmp(b) })
	return out
}

// Subscribe registers handler for events of accepted operations. The
// returned func removes it. Handlers run on the writing goroutine while
// later writers wait, so they must return promptly and never block on
// registry calls.
func (r *Registry) Subscribe(handler func(Event)) func() {
	return r.events.Subscribe(handler)
}

// ===== internal, callers hold mu =====

func (r *Registry) poll(pollId uint64) (*Poll, error) {
	if pollId >= uint64(len(r.polls)) {
		return nil, ErrPollNotFound
	}
	return r.polls[pollId], nil
}

func (r *Registry) isCreator(account common.Address) bool {
	if account == r.admin {
		return true
	}
	_, ok := r.creators[account]
	return ok
}

func (r *Registry) statsFor(account common.Address) *AccountStats {
	s, ok := r.stats[account]
	if !ok {
		s = &AccountStats{Account: account}
		r.stats[account] = s
	}
	return s
}

// unlockAndPublish releases mu and delivers evt. publishMu is taken before mu
// is released so events leave in the order their operations committed.
func (r *Registry) unlockAndPublish(evt Event) {
	r.publishMu.Lock()
	r.mu.Unlock()
	defer r.publishMu.Unlock()
	r.events.Publish(evt)
}
