package feeLedger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidReceiver       = errors.New("invalid receiver")
	ErrSessionClosed         = errors.New("ledger session already closed")
)

// Ledger is the read and debit surface the poll registry consumes.
type Ledger interface {
	BalanceOf(account common.Address) *uint256.Int
	Allowance(owner common.Address, spender common.Address) *uint256.Int
	// TransferFrom moves amount from owner to spender, consuming spender's
	// allowance.
	TransferFrom(owner common.Address, spender common.Address, amount *uint256.Int) error
}

type Holder struct {
	Address common.Address `json:"address"`
	Balance *uint256.Int   `json:"balance"`
}

type TokenInfo struct {
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Decimals    uint8          `json:"decimals"`
	Address     common.Address `json:"address"`
	TotalSupply *uint256.Int   `json:"total_supply"`
}

// LedgerSession stages debits until Done or Revert.
type LedgerSession interface {
	Ledger
	Done()
	Revert()
}

type SessionOpener interface {
	OpenSession() LedgerSession
}
