package leaderboard

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	agg "poll-node/modules/aggregate"
	pollCommon "poll-node/modules/common"
	pollRegistry "poll-node/modules/poll-registry"

	"github.com/chebyrash/promise"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/robfig/cron/v3"
)

// ===== types =====

type Balances interface {
	BalanceOf(account common.Address) *uint256.Int
}

type Accounts interface {
	Admin() common.Address
	Accounts() []common.Address
	AccountStats(account common.Address) pollRegistry.AccountStats
}

type Entry struct {
	Rank    int            `json:"rank"`
	Address common.Address `json:"address"`
	// Balance is in whole tokens, BalanceRaw in base units.
	Balance      string `json:"balance"`
	BalanceRaw   string `json:"balance_raw"`
	PollsCreated uint64 `json:"polls_created"`
	VotesCast    uint64 `json:"votes_cast"`
}

type leaderboardManager struct {
	conf     LeaderboardConfig
	cron     *cron.Cron
	stop     chan struct{}
	balances func() Balances
	accounts func() Accounts
	log      *slog.Logger

	mu    sync.RWMutex
	board []Entry
}

// ===== interface assertions =====

var _ agg.Plugin = &leaderboardManager{}

// ===== constructor =====

// balances and accounts are resolved on every run, after the state engine has
// built the ledger and registry.
func New(conf LeaderboardConfig, balances func() Balances, accounts func() Accounts, log *slog.Logger) *leaderboardManager {
	if log == nil {
		log = slog.Default()
	}
	return &leaderboardManager{
		cron:     cron.New(),
		conf:     conf,
		stop:     make(chan struct{}),
		balances: balances,
		accounts: accounts,
		log:      log.With("service", "leaderboard"),
		board:    make([]Entry, 0),
	}
}

// ===== implementing plugin interface =====

func (l *leaderboardManager) Init() error {
	return nil
}

func (l *leaderboardManager) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		// create a ctx that cancels when the stop chan is closed
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-l.stop
			cancel()
		}()

		l.task(ctx)

		_, err := l.cron.AddFunc(l.conf.Get().Schedule, func() {
			select {
			case <-l.stop:
				return
			default:
				l.task(ctx)
			}
		})
		if err != nil {
			reject(err)
			return
		}
		l.cron.Start()
		resolve(nil)
	})
}

func (l *leaderboardManager) Stop() error {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	<-l.cron.Stop().Done()
	return nil
}

// ===== leaderboard =====

func (l *leaderboardManager) task(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	board := l.Compute()
	l.mu.Lock()
	l.board = board
	l.mu.Unlock()
	l.log.Debug("leaderboard refreshed", "entries", len(board))
}

// Compute ranks every known account by token balance, largest first.
func (l *leaderboardManager) Compute() []Entry {
	balances := l.balances()
	accounts := l.accounts()

	known := append(accounts.Accounts(), accounts.Admin())
	slices.SortFunc(known, func(a, b common.Address) int { return a.Cmp(b) })
	known = slices.Compact(known)

	type ranked struct {
		addr common.Address
		bal  *uint256.Int
	}
	rows := make([]ranked, 0, len(known))
	for _, a := range known {
		rows = append(rows, ranked{a, balances.BalanceOf(a)})
	}
	slices.SortStableFunc(rows, func(a, b ranked) int {
		return b.bal.Cmp(a.bal)
	})

	size := l.conf.Get().Size
	if len(rows) > size {
		rows = rows[:size]
	}

	unit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(pollCommon.TOKEN_DECIMALS)))
	board := make([]Entry, len(rows))
	for i, r := range rows {
		stats := accounts.AccountStats(r.addr)
		board[i] = Entry{
			Rank:         i + 1,
			Address:      r.addr,
			Balance:      new(uint256.Int).Div(r.bal, unit).Dec(),
			BalanceRaw:   r.bal.Dec(),
			PollsCreated: stats.PollsCreated,
			VotesCast:    stats.VotesCast,
		}
	}
	return board
}

// Board returns the last computed leaderboard.
func (l *leaderboardManager) Board() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.board)
}
