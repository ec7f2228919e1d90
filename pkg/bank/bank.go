// Package bank is the native currency payment rail the marketplace settles
// against. It is an in-memory balance book with the failure modes the real
// rail exhibits: insufficient sender funds and receivers that cannot accept
// value.
package bank

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrReceiverRejected  = errors.New("receiver cannot accept native currency")
	ErrInvalidAmount     = errors.New("amount must be non-negative")
)

// Book tracks native currency balances in the smallest unit.
type Book struct {
	balances  map[common.Address]*big.Int
	rejecting map[common.Address]bool
}

// NewBook creates an empty balance book.
func NewBook() *Book {
	return &Book{
		balances:  make(map[common.Address]*big.Int),
		rejecting: make(map[common.Address]bool),
	}
}

// Credit adds funds to an account. Used to seed balances in wiring and tests.
func (b *Book) Credit(account common.Address, amount *big.Int) {
	b.balances[account] = new(big.Int).Add(b.balanceOf(account), amount)
}

// Balance returns the account's current balance.
func (b *Book) Balance(account common.Address) *big.Int {
	return new(big.Int).Set(b.balanceOf(account))
}

// Transfer moves amount from one account to another. A zero amount is a
// no-op. Fails without any effect when the sender lacks funds or the receiver
// is marked as rejecting.
func (b *Book) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if b.rejecting[to] {
		return ErrReceiverRejected
	}
	fromBal := b.balanceOf(from)
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	b.balances[from] = new(big.Int).Sub(fromBal, amount)
	b.balances[to] = new(big.Int).Add(b.balanceOf(to), amount)
	return nil
}

// SetRejecting marks an account as unable to receive native currency,
// mimicking a contract receiver that reverts on credit.
func (b *Book) SetRejecting(account common.Address, rejecting bool) {
	if rejecting {
		b.rejecting[account] = true
	} else {
		delete(b.rejecting, account)
	}
}

func (b *Book) balanceOf(account common.Address) *big.Int {
	if bal, ok := b.balances[account]; ok {
		return bal
	}
	return big.NewInt(0)
}

type bookSnapshot struct {
	balances  map[common.Address]*big.Int
	rejecting map[common.Address]bool
}

// Snapshot captures all balances for host-level rollback.
func (b *Book) Snapshot() any {
	snap := &bookSnapshot{
		balances:  make(map[common.Address]*big.Int, len(b.balances)),
		rejecting: make(map[common.Address]bool, len(b.rejecting)),
	}
	for acct, bal := range b.balances {
		snap.balances[acct] = new(big.Int).Set(bal)
	}
	for acct := range b.rejecting {
		snap.rejecting[acct] = true
	}
	return snap
}

// Restore rewinds the book to a previously captured snapshot.
func (b *Book) Restore(v any) {
	snap := v.(*bookSnapshot)
	b.balances = make(map[common.Address]*big.Int, len(snap.balances))
	for acct, bal := range snap.balances {
		b.balances[acct] = new(big.Int).Set(bal)
	}
	b.rejecting = make(map[common.Address]bool, len(snap.rejecting))
	for acct := range snap.rejecting {
		b.rejecting[acct] = true
	}
}
