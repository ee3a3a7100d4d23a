package stateEngine

import (
	"context"
	"fmt"
	"log/slog"

	"poll-node/lib/utils"
	a "poll-node/modules/aggregate"
	pollCommon "poll-node/modules/common"
	feeLedger "poll-node/modules/fee-ledger"
	"poll-node/modules/journal"
	pollRegistry "poll-node/modules/poll-registry"
	start_status "poll-node/modules/start-status"

	"github.com/chebyrash/promise"
)

// StateEngine rebuilds the token ledger and poll registry from the journal
// when the node starts. An empty journal gets the genesis mint.
type StateEngine struct {
	conf    pollCommon.NodeConfig
	journal journal.Journal
	clock   pollCommon.Clock
	log     *slog.Logger

	token    *feeLedger.PollToken
	registry *pollRegistry.Registry

	replayed uint64
	status   start_status.StartStatus
}

var _ a.Plugin = &StateEngine{}

func New(conf pollCommon.NodeConfig, j journal.Journal, clock pollCommon.Clock, log *slog.Logger) *StateEngine {
	if clock == nil {
		clock = pollCommon.SystemClock
	}
	if log == nil {
		log = slog.Default()
	}
	return &StateEngine{
		conf:    conf,
		journal: j,
		clock:   clock,
		log:     log.With("service", "state-engine"),
		status:  start_status.New(),
	}
}

func (se *StateEngine) Init() error {
	if err := se.init(); err != nil {
		se.status.TriggerStartFailure(err)
		return err
	}
	return nil
}

func (se *StateEngine) init() error {
	ctx := context.Background()

	scheme, err := se.conf.Scheme()
	if err != nil {
		return err
	}

	token := feeLedger.New(se.conf.TokenAddress(), se.journal, se.clock, se.log)
	registry := pollRegistry.New(
		se.conf.Admin(),
		se.conf.RegistryAddress(),
		token,
		se.journal,
		scheme,
		se.clock,
		se.log,
	)

	head, err := se.journal.Head(ctx)
	if err != nil {
		return fmt.Errorf("failed to read journal head: %w", err)
	}

	if head == 0 {
		se.log.Info("empty journal, minting genesis supply", "admin", se.conf.Admin(), "amount", pollCommon.GENESIS_SUPPLY.Dec())
		if err := token.Mint(ctx, se.conf.Admin(), pollCommon.GENESIS_SUPPLY); err != nil {
			return fmt.Errorf("genesis mint failed: %w", err)
		}
	} else {
		err = se.journal.Replay(ctx, 1, func(e journal.Entry) error {
			se.replayed++
			switch e.Type {
			case journal.TypeTokenMint, journal.TypeTokenApprove, journal.TypeTokenTransfer:
				return token.Apply(e)
			default:
				return registry.Replay(ctx, e)
			}
		})
		if err != nil {
			return fmt.Errorf("journal replay failed: %w", err)
		}
		se.log.Info("journal replayed", "entries", se.replayed, "polls", registry.PollCount())
	}

	se.token = token
	se.registry = registry
	return nil
}

func (se *StateEngine) Start() *promise.Promise[any] {
	se.status.TriggerStart()
	return utils.PromiseResolve[any](nil)
}

func (se *StateEngine) Stop() error {
	return nil
}

// PollRegistry is nil until Init.
func (se *StateEngine) PollRegistry() *pollRegistry.Registry {
	return se.registry
}

func (se *StateEngine) PollToken() *feeLedger.PollToken {
	return se.token
}

// Replayed is the number of journal entries applied during Init.
func (se *StateEngine) Replayed() uint64 {
	return se.replayed
}

func (se *StateEngine) Journal() journal.Journal {
	return se.journal
}

// Started resolves once the engine has replayed and started.
func (se *StateEngine) Started() *promise.Promise[any] {
	return se.status.Started()
}

func (se *StateEngine) Ready() bool {
	return se.status.Ready()
}
