package feeLedger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	pollCommon "poll-node/modules/common"
	"poll-node/modules/journal"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PollToken is an ERC20 shaped ledger held in memory. Every direct mutation
// is journaled before it is applied. Debits staged through a Session are
// journaled by whoever opened the session.
type PollToken struct {
	mu sync.Mutex

	address     common.Address
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	totalSupply *uint256.Int

	journal journal.Journal
	clock   pollCommon.Clock
	log     *slog.Logger
}

var _ Ledger = &PollToken{}

func New(address common.Address, j journal.Journal, clock pollCommon.Clock, log *slog.Logger) *PollToken {
	if clock == nil {
		clock = pollCommon.SystemClock
	}
	if log == nil {
		log = slog.Default()
	}
	return &PollToken{
		address:     address,
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		totalSupply: uint256.NewInt(0),
		journal:     j,
		clock:       clock,
		log:         log.With("service", "fee-ledger"),
	}
}

func (t *PollToken) Info() TokenInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TokenInfo{
		Name:        pollCommon.TOKEN_NAME,
		Symbol:      pollCommon.TOKEN_SYMBOL,
		Decimals:    pollCommon.TOKEN_DECIMALS,
		Address:     t.address,
		TotalSupply: t.totalSupply.Clone(),
	}
}

func (t *PollToken) Address() common.Address {
	return t.address
}

func (t *PollToken) TotalSupply() *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSupply.Clone()
}

func (t *PollToken) BalanceOf(account common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balanceOf(account)
}

func (t *PollToken) Allowance(owner common.Address, spender common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowance(owner, spender)
}

// Holders returns every account with a non-zero balance, largest first.
func (t *PollToken) Holders() []Holder {
	t.mu.Lock()
	holders := make([]Holder, 0, len(t.balances))
	for addr, bal := range t.balances {
		if bal.IsZero() {
			continue
		}
		holders = append(holders, Holder{addr, bal.Clone()})
	}
	t.mu.Unlock()

	slices.SortFunc(holders, func(a, b Holder) int {
		if c := b.Balance.Cmp(a.Balance); c != 0 {
			return c
		}
		return a.Address.Cmp(b.Address)
	})
	return holders
}

func (t *PollToken) Transfer(ctx context.Context, from common.Address, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkTransfer(from, to, amount); err != nil {
		return err
	}
	err := t.append(ctx, &journal.Entry{
		Type:   journal.TypeTokenTransfer,
		Caller: from.Hex(),
		To:     to.Hex(),
		Amount: amount.Dec(),
	})
	if err != nil {
		return err
	}
	t.move(from, to, amount)
	t.log.Debug("transfer", "from", from, "to", to, "amount", amount.Dec())
	return nil
}

// Approve sets spender's allowance over owner's balance, replacing any
// previous value.
func (t *PollToken) Approve(ctx context.Context, owner common.Address, spender common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount == nil {
		return ErrInvalidAmount
	}
	if spender == (common.Address{}) {
		return fmt.Errorf("%w: zero address spender", ErrInvalidReceiver)
	}
	err := t.append(ctx, &journal.Entry{
		Type:   journal.TypeTokenApprove,
		Caller: owner.Hex(),
		To:     spender.Hex(),
		Amount: amount.Dec(),
	})
	if err != nil {
		return err
	}
	t.setAllowance(owner, spender, amount)
	t.log.Debug("approve", "owner", owner, "spender", spender, "amount", amount.Dec())
	return nil
}

// Mint credits new supply to account. Only used for the genesis allocation.
func (t *PollToken) Mint(ctx context.Context, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount == nil {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidReceiver)
	}
	if _, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount); overflow {
		return fmt.Errorf("%w: supply overflow", ErrInvalidAmount)
	}
	err := t.append(ctx, &journal.Entry{
		Type:   journal.TypeTokenMint,
		Caller: t.address.Hex(),
		To:     to.Hex(),
		Amount: amount.Dec(),
	})
	if err != nil {
		return err
	}
	t.mint(to, amount)
	return nil
}

// TransferFrom debits owner and credits spender in one step. It is not
// journaled on its own; use a Session inside a journaled operation.
func (t *PollToken) TransferFrom(owner common.Address, spender common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkTransferFrom(owner, spender, amount); err != nil {
		return err
	}
	t.spendAllowance(owner, spender, amount)
	t.move(owner, spender, amount)
	return nil
}

// Apply replays a journaled token entry without journaling it again.
func (t *PollToken) Apply(entry journal.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	amount, err := uint256.FromDecimal(entry.Amount)
	if err != nil {
		return fmt.Errorf("%w: seq %d amount %q", ErrInvalidAmount, entry.Seq, entry.Amount)
	}
	caller := common.HexToAddress(entry.Caller)
	to := common.HexToAddress(entry.To)

	switch entry.Type {
	case journal.TypeTokenMint:
		t.mint(to, amount)
	case journal.TypeTokenApprove:
		t.setAllowance(caller, to, amount)
	case journal.TypeTokenTransfer:
		if err := t.checkTransfer(caller, to, amount); err != nil {
			return fmt.Errorf("seq %d: %w", entry.Seq, err)
		}
		t.move(caller, to, amount)
	default:
		return fmt.Errorf("%w: %s", journal.ErrUnknownType, entry.Type)
	}
	return nil
}

// ===== internal, callers hold mu =====

func (t *PollToken) append(ctx context.Context, entry *journal.Entry) error {
	if t.journal == nil {
		return nil
	}
	entry.Timestamp = t.clock.Now().Unix()
	if err := t.journal.Append(ctx, entry); err != nil {
		t.log.Error("failed to journal token operation", "type", entry.Type, "err", err)
		return err
	}
	return nil
}

func (t *PollToken) balanceOf(account common.Address) *uint256.Int {
	if bal, ok := t.balances[account]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (t *PollToken) allowance(owner common.Address, spender common.Address) *uint256.Int {
	if m, ok := t.allowances[owner]; ok {
		if v, ok := m[spender]; ok {
			return v.Clone()
		}
	}
	return uint256.NewInt(0)
}

func (t *PollToken) setAllowance(owner common.Address, spender common.Address, amount *uint256.Int) {
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = m
	}
	m[spender] = amount.Clone()
}

func (t *PollToken) spendAllowance(owner common.Address, spender common.Address, amount *uint256.Int) {
	current := t.allowance(owner, spender)
	if current.Eq(maxUint256) {
		return
	}
	t.setAllowance(owner, spender, new(uint256.Int).Sub(current, amount))
}

func (t *PollToken) setBalance(account common.Address, amount *uint256.Int) {
	t.balances[account] = amount.Clone()
}

func (t *PollToken) checkTransfer(from common.Address, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidReceiver)
	}
	if bal := t.balanceOf(from); bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), bal.Dec(), amount.Dec())
	}
	return nil
}

func (t *PollToken) checkTransferFrom(owner common.Address, spender common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if allowed := t.allowance(owner, spender); allowed.Lt(amount) {
		return fmt.Errorf("%w: %s allows %s %s, needs %s", ErrInsufficientAllowance, owner.Hex(), spender.Hex(), allowed.Dec(), amount.Dec())
	}
	return t.checkTransfer(owner, spender, amount)
}

func (t *PollToken) move(from common.Address, to common.Address, amount *uint256.Int) {
	t.setBalance(from, new(uint256.Int).Sub(t.balanceOf(from), amount))
	t.setBalance(to, new(uint256.Int).Add(t.balanceOf(to), amount))
}

func (t *PollToken) mint(to common.Address, amount *uint256.Int) {
	t.totalSupply = new(uint256.Int).Add(t.totalSupply, amount)
	t.setBalance(to, new(uint256.Int).Add(t.balanceOf(to), amount))
}

var maxUint256 = new(uint256.Int).SetAllOne()
