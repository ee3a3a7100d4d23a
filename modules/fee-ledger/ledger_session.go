package feeLedger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Session is a staged view over the token. It holds the token lock from
// NewSession until Done or Revert, so the balances it read cannot change
// underneath it. Writes land only on Done.
type Session struct {
	token *PollToken
	once  sync.Once

	balances   map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	closed     bool
}

var _ Ledger = &Session{}

func (t *PollToken) NewSession() *Session {
	t.mu.Lock()
	return &Session{
		token:      t,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

func (s *Session) BalanceOf(account common.Address) *uint256.Int {
	if bal, ok := s.balances[account]; ok {
		return bal.Clone()
	}
	return s.token.balanceOf(account)
}

func (s *Session) Allowance(owner common.Address, spender common.Address) *uint256.Int {
	if v, ok := s.allowances[allowanceKey{owner, spender}]; ok {
		return v.Clone()
	}
	return s.token.allowance(owner, spender)
}

func (s *Session) TransferFrom(owner common.Address, spender common.Address, amount *uint256.Int) error {
	if s.closed {
		return ErrSessionClosed
	}
	if amount == nil {
		return ErrInvalidAmount
	}
	allowed := s.Allowance(owner, spender)
	if allowed.Lt(amount) {
		return ErrInsufficientAllowance
	}
	bal := s.BalanceOf(owner)
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}

	if !allowed.Eq(maxUint256) {
		s.allowances[allowanceKey{owner, spender}] = new(uint256.Int).Sub(allowed, amount)
	}
	s.balances[owner] = new(uint256.Int).Sub(bal, amount)
	s.balances[spender] = new(uint256.Int).Add(s.BalanceOf(spender), amount)
	return nil
}

// Done applies the staged writes and releases the token.
func (s *Session) Done() {
	s.once.Do(func() {
		for k, v := range s.allowances {
			s.token.setAllowance(k.owner, k.spender, v)
		}
		for addr, bal := range s.balances {
			s.token.setBalance(addr, bal)
		}
		s.close()
	})
}

// Revert discards the staged writes and releases the token.
func (s *Session) Revert() {
	s.once.Do(s.close)
}

func (s *Session) close() {
	s.balances = nil
	s.allowances = nil
	s.closed = true
	s.token.mu.Unlock()
}

var _ LedgerSession = &Session{}
var _ SessionOpener = &PollToken{}

func (t *PollToken) OpenSession() LedgerSession {
	return t.NewSession()
}
