package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/monolythium/wallet-cli/internal/node"
)

// DefaultGapLimit is the number of consecutive unused addresses that ends
// address discovery.
const DefaultGapLimit = 10

// SyncBuilder configures an account synchronization.
type SyncBuilder struct {
	account  *AccountHandle
	gapLimit uint32
}

// Sync starts building a synchronization of the account.
func (a *AccountHandle) Sync() *SyncBuilder {
	return &SyncBuilder{account: a, gapLimit: DefaultGapLimit}
}

// GapLimit overrides the address gap limit.
func (s *SyncBuilder) GapLimit(limit uint32) *SyncBuilder {
	if limit > 0 {
		s.gapLimit = limit
	}
	return s
}

// Synchronize runs a sync with the given gap limit; zero keeps the default.
func (a *AccountHandle) Synchronize(ctx context.Context, gapLimit uint32) (*SyncResult, error) {
	return a.Sync().GapLimit(gapLimit).Execute(ctx)
}

type pendingEvents struct {
	balances      []BalanceChangeEvent
	transactions  []TransactionEvent
	confirmations []ConfirmationChangeEvent
}

// Execute scans public and change addresses until gapLimit consecutive
// unused ones, records new messages and refreshes confirmation states.
// Events are published after the account has been saved.
func (s *SyncBuilder) Execute(ctx context.Context) (*SyncResult, error) {
	a := s.account
	m := a.manager

	mnemonic, err := m.secret()
	if err != nil {
		return nil, err
	}
	client, err := m.client(a.ClientOptions())
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	result := &SyncResult{AccountID: a.doc.ID}
	var events pendingEvents

	for _, internal := range []bool{false, true} {
		if err := s.scanChain(ctx, client, mnemonic, internal, result, &events); err != nil {
			a.mu.Unlock()
			return nil, err
		}
	}
	if err := s.refreshConfirmations(ctx, client, &events); err != nil {
		a.mu.Unlock()
		return nil, err
	}

	err = m.persist(a.doc)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	for _, ev := range events.balances {
		m.emitBalanceChange(ev)
	}
	for _, ev := range events.transactions {
		m.emitNewTransaction(ev)
	}
	for _, ev := range events.confirmations {
		m.emitConfirmationChange(ev)
	}

	m.logger.Debug("account synced", "account", result.AccountID,
		"addresses", len(result.Addresses), "messages", len(result.Messages))
	return result, nil
}

// scanChain must be called with the account lock held.
func (s *SyncBuilder) scanChain(ctx context.Context, client NodeClient, mnemonic string, internal bool, result *SyncResult, events *pendingEvents) error {
	a := s.account
	known := make(map[uint32]int)
	var maxKnown int64 = -1
	for i, addr := range a.doc.Addresses {
		if addr.Internal == internal {
			known[addr.KeyIndex] = i
			if int64(addr.KeyIndex) > maxKnown {
				maxKnown = int64(addr.KeyIndex)
			}
		}
	}

	var unused uint32
	for keyIndex := uint32(0); unused < s.gapLimit || int64(keyIndex) <= maxKnown; keyIndex++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pos, isKnown := known[keyIndex]
		var addr Address
		if isKnown {
			addr = a.doc.Addresses[pos]
		} else {
			derived, err := deriveAddress(mnemonic, a.doc.Index, internal, keyIndex)
			if err != nil {
				return err
			}
			addr = derived
		}

		balance, err := client.AddressBalance(ctx, addr.Bech32)
		if err != nil && !errors.Is(err, node.ErrNotFound) {
			return fmt.Errorf("failed to get balance of %s: %w", addr.Bech32, err)
		}
		records, err := client.AddressMessages(ctx, addr.Bech32)
		if err != nil && !errors.Is(err, node.ErrNotFound) {
			return fmt.Errorf("failed to get messages of %s: %w", addr.Bech32, err)
		}

		used := balance > 0 || len(records) > 0
		if used {
			unused = 0
		} else {
			unused++
		}

		if balance != addr.Balance {
			change := BalanceChange{}
			if balance < addr.Balance {
				change.Spent = addr.Balance - balance
			} else {
				change.Received = balance - addr.Balance
			}
			events.balances = append(events.balances, BalanceChangeEvent{
				AccountID:     a.doc.ID,
				Address:       addr.Bech32,
				BalanceChange: change,
			})
			addr.Balance = balance
		}

		switch {
		case isKnown:
			if a.doc.Addresses[pos] != addr {
				a.doc.Addresses[pos] = addr
				result.Addresses = append(result.Addresses, addr)
			}
		case used:
			a.doc.Addresses = append(a.doc.Addresses, addr)
			result.Addresses = append(result.Addresses, addr)
		}

		for _, rec := range records {
			s.recordMessage(rec, addr, result, events)
		}
	}
	return nil
}

func (s *SyncBuilder) recordMessage(rec node.MessageRecord, addr Address, result *SyncResult, events *pendingEvents) {
	a := s.account
	id, err := ParseMessageID(rec.ID)
	if err != nil {
		a.manager.logger.Warn("skipping message with malformed id", "id", rec.ID, "address", addr.Bech32)
		return
	}
	if a.messageIndexLocked(id) >= 0 {
		return
	}

	target := rec.Address
	if target == "" {
		target = addr.Bech32
	}
	msg := Message{
		ID:          id,
		Value:       rec.Value,
		Timestamp:   time.Unix(rec.Timestamp, 0).UTC(),
		Broadcasted: true,
		Incoming:    rec.Incoming,
		Address:     target,
	}
	a.doc.Messages = append(a.doc.Messages, msg)
	result.Messages = append(result.Messages, msg)
	events.transactions = append(events.transactions, TransactionEvent{AccountID: a.doc.ID, Message: msg})
}

// refreshConfirmations must be called with the account lock held.
func (s *SyncBuilder) refreshConfirmations(ctx context.Context, client NodeClient, events *pendingEvents) error {
	a := s.account
	for i := range a.doc.Messages {
		msg := &a.doc.Messages[i]
		if !msg.Broadcasted || !msg.Pending() {
			continue
		}
		meta, err := client.MessageMetadata(ctx, msg.ID.String())
		if errors.Is(err, node.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to get metadata of %s: %w", msg.ID, err)
		}
		if meta.Confirmed == nil {
			continue
		}
		if msg.Confirmed != nil && *msg.Confirmed == *meta.Confirmed {
			continue
		}
		confirmed := *meta.Confirmed
		msg.Confirmed = &confirmed
		events.confirmations = append(events.confirmations, ConfirmationChangeEvent{
			AccountID: a.doc.ID,
			Message:   *msg,
			Confirmed: confirmed,
		})
	}
	return nil
}
