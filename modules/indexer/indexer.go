package indexer

import (
	"context"
	"log/slog"
	"sync"

	a "poll-node/modules/aggregate"
	"poll-node/modules/db/polldb/creators"
	"poll-node/modules/db/polldb/polls"
	"poll-node/modules/db/polldb/votes"
	pollRegistry "poll-node/modules/poll-registry"

	"github.com/chebyrash/promise"
	"github.com/ethereum/go-ethereum/common"
)

// Source is the part of the registry the indexer reads.
type Source interface {
	Subscribe(handler func(pollRegistry.Event)) func()
	GetPoll(pollId uint64) (pollRegistry.Poll, error)
	GetAllPolls() []pollRegistry.Poll
	VoteRecords(pollId uint64) ([]pollRegistry.VoteRecord, error)
	Creators() []common.Address
}

// Indexer mirrors registry state into the polls, vote_records and
// poll_creators collections for external readers. Writes are idempotent, so
// a full resync at start and live events may overlap.
//
// The registry delivers events while holding its publish lock, so the
// subscriber only appends to an unbounded backlog and never waits on the
// store.
type Indexer struct {
	source   func() Source
	polls    polls.Polls
	votes    votes.VoteRecords
	creators creators.Creators
	log      *slog.Logger

	mu      sync.Mutex
	backlog []pollRegistry.Event
	wake    chan struct{}

	unsub  func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ a.Plugin = &Indexer{}

// source is resolved at Start, after the state engine has built the registry.
func New(source func() Source, p polls.Polls, v votes.VoteRecords, c creators.Creators, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		source:   source,
		polls:    p,
		votes:    v,
		creators: c,
		log:      log.With("service", "indexer"),
	}
}

func (ix *Indexer) Init() error {
	ix.wake = make(chan struct{}, 1)
	ix.ctx, ix.cancel = context.WithCancel(context.Background())
	return nil
}

func (ix *Indexer) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		src := ix.source()
		ix.unsub = src.Subscribe(ix.enqueue)

		if err := ix.Resync(ix.ctx); err != nil {
			reject(err)
			return
		}

		ix.wg.Add(1)
		go ix.run(src)
		resolve(nil)
	})
}

func (ix *Indexer) Stop() error {
	if ix.unsub != nil {
		ix.unsub()
	}
	if ix.cancel != nil {
		ix.cancel()
	}
	ix.wg.Wait()
	return nil
}

// Resync writes the full registry state.
func (ix *Indexer) Resync(ctx context.Context) error {
	src := ix.source()
	all := src.GetAllPolls()
	for _, p := range all {
		if err := ix.polls.SavePoll(ctx, pollRecord(p)); err != nil {
			return err
		}
		records, err := src.VoteRecords(p.Id)
		if err != nil {
			return err
		}
		for _, r := range records {
			if err := ix.votes.SaveVote(ctx, voteRecord(r)); err != nil {
				return err
			}
		}
	}
	for _, c := range src.Creators() {
		if err := ix.creators.AddCreator(ctx, creators.CreatorRecord{Account: c.Hex()}); err != nil {
			return err
		}
	}
	ix.log.Info("resync complete", "polls", len(all))
	return nil
}

// enqueue runs on the registry's publishing goroutine and must not block.
func (ix *Indexer) enqueue(e pollRegistry.Event) {
	ix.mu.Lock()
	ix.backlog = append(ix.backlog, e)
	ix.mu.Unlock()

	select {
	case ix.wake <- struct{}{}:
	default:
	}
}

// Pending is the number of events received but not yet written.
func (ix *Indexer) Pending() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.backlog)
}

func (ix *Indexer) drain() []pollRegistry.Event {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	batch := ix.backlog
	ix.backlog = nil
	return batch
}

func (ix *Indexer) run(src Source) {
	defer ix.wg.Done()
	for {
		select {
		case <-ix.ctx.Done():
			return
		case <-ix.wake:
		}
		for _, e := range ix.drain() {
			if ix.ctx.Err() != nil {
				return
			}
			if err := ix.handle(ix.ctx, src, e); err != nil {
				ix.log.Error("failed to index event", "seq", e.Meta().Seq, "err", err)
			}
		}
	}
}

func (ix *Indexer) handle(ctx context.Context, src Source, e pollRegistry.Event) error {
	switch evt := e.(type) {
	case pollRegistry.PollCreated:
		return ix.savePoll(ctx, src, evt.PollId)
	case pollRegistry.Voted:
		relayer := ""
		if evt.Relayer != (common.Address{}) {
			relayer = evt.Relayer.Hex()
		}
		err := ix.votes.SaveVote(ctx, votes.VoteRecord{
			PollId:    evt.PollId,
			Voter:     evt.Voter.Hex(),
			OptionId:  evt.OptionId,
			Relayer:   relayer,
			TxId:      evt.TxId,
			Timestamp: evt.Timestamp,
		})
		if err != nil {
			return err
		}
		return ix.savePoll(ctx, src, evt.PollId)
	case pollRegistry.CreatorAdded:
		return ix.creators.AddCreator(ctx, creators.CreatorRecord{
			Account:   evt.Account.Hex(),
			TxId:      evt.TxId,
			Timestamp: evt.Timestamp,
		})
	}
	return nil
}

// savePoll stores the registry's current copy, so tallies never drift from
// the source even if events are handled twice.
func (ix *Indexer) savePoll(ctx context.Context, src Source, pollId uint64) error {
	p, err := src.GetPoll(pollId)
	if err != nil {
		return err
	}
	return ix.polls.SavePoll(ctx, pollRecord(p))
}

func pollRecord(p pollRegistry.Poll) polls.PollRecord {
	return polls.PollRecord{
		Id:         p.Id,
		Question:   p.Question,
		Options:    p.Options,
		Votes:      p.Votes,
		TotalVotes: p.TotalVotes(),
		EndTime:    p.EndTime,
		Creator:    p.Creator.Hex(),
		CreatedAt:  p.CreatedAt,
	}
}

func voteRecord(r pollRegistry.VoteRecord) votes.VoteRecord {
	relayer := ""
	if r.Relayer != (common.Address{}) {
		relayer = r.Relayer.Hex()
	}
	return votes.VoteRecord{
		PollId:    r.PollId,
		Voter:     r.Voter.Hex(),
		OptionId:  r.OptionId,
		Relayer:   relayer,
		TxId:      r.TxId,
		Timestamp: r.Timestamp,
	}
}
