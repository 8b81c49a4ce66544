// Package ledger tracks credits owed to provider addresses.
//
// Credits only accumulate; there are no withdrawals or settlement.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrInvalidCredit = errors.New("invalid ledger credit")

// Entry is one address balance.
type Entry struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// Ledger is an in-memory address -> credited amount map.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]float64
}

func New() *Ledger {
	return &Ledger{balances: make(map[string]float64)}
}

// Credit adds amount to address and returns the new balance.
func (l *Ledger) Credit(address string, amount float64) (float64, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, fmt.Errorf("%w: address is required", ErrInvalidCredit)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: negative amount %v", ErrInvalidCredit, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] += amount
	return l.balances[address], nil
}

// Restore sets a balance directly. It is used when loading persisted state and
// refuses to lower an existing balance.
func (l *Ledger) Restore(address string, amount float64) error {
	address = strings.TrimSpace(address)
	if address == "" || amount < 0 {
		return fmt.Errorf("%w: restore %q=%v", ErrInvalidCredit, address, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount > l.balances[address] {
		l.balances[address] = amount
	}
	return nil
}

func (l *Ledger) Balance(address string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[strings.TrimSpace(address)]
}

// Total sums every balance.
func (l *Ledger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, amount := range l.balances {
		total += amount
	}
	return total
}

// Entries returns balances sorted by address.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	out := make([]Entry, 0, len(l.balances))
	for address, amount := range l.balances {
		out = append(out, Entry{Address: address, Amount: amount})
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address < out[j].Address
	})
	return out
}
