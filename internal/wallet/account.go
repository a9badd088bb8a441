package wallet

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monolythium/wallet-cli/internal/walletgen"
)

// accountDoc is the persisted form of an account.
type accountDoc struct {
	ID            string        `json:"id"`
	Alias         string        `json:"alias"`
	Index         uint32        `json:"index"`
	SignerType    SignerType    `json:"signerType"`
	ClientOptions ClientOptions `json:"clientOptions"`
	CreatedAt     time.Time     `json:"createdAt"`
	Addresses     []Address     `json:"addresses"`
	Messages      []Message     `json:"messages"`
}

// AccountInitialiser builds a new account.
type AccountInitialiser struct {
	manager *Manager
	options ClientOptions
	signer  SignerType
	alias   string
}

// SignerType sets the key-custody backend.
func (b *AccountInitialiser) SignerType(signer SignerType) *AccountInitialiser {
	b.signer = signer
	return b
}

// Alias sets the account alias.
func (b *AccountInitialiser) Alias(alias string) *AccountInitialiser {
	b.alias = alias
	return b
}

// Initialise creates and persists the account together with its first address.
func (b *AccountInitialiser) Initialise(ctx context.Context) (*AccountHandle, error) {
	m := b.manager
	if b.signer != SignerKeystore {
		return nil, ErrSignerUnsupported
	}
	if len(b.options.Nodes) == 0 {
		return nil, fmt.Errorf("at least one node is required")
	}
	// Reject unusable node URLs before anything is persisted.
	client, err := m.client(b.options)
	if err != nil {
		return nil, err
	}
	if err := m.checkNetwork(ctx, client); err != nil {
		return nil, err
	}
	mnemonic, err := m.secret()
	if err != nil {
		return nil, err
	}

	index := m.accounts.nextIndex()
	alias := strings.TrimSpace(b.alias)
	if alias == "" {
		alias = fmt.Sprintf("Account %d", index+1)
	}
	if m.accounts.aliasTaken(alias, "") {
		return nil, fmt.Errorf("%w: %s", ErrAliasTaken, alias)
	}

	first, err := deriveAddress(mnemonic, index, false, 0)
	if err != nil {
		return nil, err
	}

	doc := accountDoc{
		ID:            uuid.NewString(),
		Alias:         alias,
		Index:         index,
		SignerType:    b.signer,
		ClientOptions: b.options,
		CreatedAt:     time.Now().UTC(),
		Addresses:     []Address{first},
	}
	if err := m.persist(doc); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	a := newAccountHandle(m, doc)
	m.accounts.add(a)
	m.logger.Info("account created", "id", doc.ID, "alias", alias, "index", index)
	return a, nil
}

func deriveAddress(mnemonic string, account uint32, internal bool, keyIndex uint32) (Address, error) {
	kp, err := walletgen.DeriveKeypair(mnemonic, account, internal, keyIndex)
	if err != nil {
		return Address{}, err
	}
	bech, err := kp.Bech32Address(walletgen.Bech32HRP)
	if err != nil {
		return Address{}, err
	}
	return Address{Bech32: bech, KeyIndex: keyIndex, Internal: internal}, nil
}

// AccountHandle is a shared, lock-protected reference to one account.
type AccountHandle struct {
	manager *Manager

	mu  sync.RWMutex
	doc accountDoc
}

func newAccountHandle(m *Manager, doc accountDoc) *AccountHandle {
	return &AccountHandle{manager: m, doc: doc}
}

// ID returns the account id.
func (a *AccountHandle) ID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doc.ID
}

// Alias returns the account alias.
func (a *AccountHandle) Alias() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doc.Alias
}

// Index returns the account index used in key derivation.
func (a *AccountHandle) Index() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doc.Index
}

// ClientOptions returns the account's node settings.
func (a *AccountHandle) ClientOptions() ClientOptions {
	a.mu.RLock()
	defer a.mu.RUnlock()
	opts := a.doc.ClientOptions
	opts.Nodes = append([]string(nil), opts.Nodes...)
	return opts
}

// SetAlias renames the account.
func (a *AccountHandle) SetAlias(ctx context.Context, alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return fmt.Errorf("alias can't be empty")
	}
	if a.manager.accounts.aliasTaken(alias, a.ID()) {
		return fmt.Errorf("%w: %s", ErrAliasTaken, alias)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.doc.Alias = alias
	return a.manager.persist(a.doc)
}

// SetClientOptions replaces the account's node settings.
func (a *AccountHandle) SetClientOptions(ctx context.Context, opts ClientOptions) error {
	if len(opts.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	client, err := a.manager.client(opts)
	if err != nil {
		return err
	}
	if err := a.manager.checkNetwork(ctx, client); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.doc.ClientOptions = opts
	return a.manager.persist(a.doc)
}

// Addresses returns the account's addresses, public ones first.
func (a *AccountHandle) Addresses() []Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := append([]Address(nil), a.doc.Addresses...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Internal != out[j].Internal {
			return !out[i].Internal
		}
		return out[i].KeyIndex < out[j].KeyIndex
	})
	return out
}

// GenerateAddress derives and stores the next public address.
func (a *AccountHandle) GenerateAddress(ctx context.Context) (Address, error) {
	mnemonic, err := a.manager.secret()
	if err != nil {
		return Address{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	addr, err := deriveAddress(mnemonic, a.doc.Index, false, a.nextKeyIndexLocked(false))
	if err != nil {
		return Address{}, err
	}
	a.doc.Addresses = append(a.doc.Addresses, addr)
	if err := a.manager.persist(a.doc); err != nil {
		return Address{}, err
	}
	return addr, nil
}

func (a *AccountHandle) nextKeyIndexLocked(internal bool) uint32 {
	var next uint32
	for _, addr := range a.doc.Addresses {
		if addr.Internal == internal && addr.KeyIndex >= next {
			next = addr.KeyIndex + 1
		}
	}
	return next
}

func (a *AccountHandle) reservedLocked() map[string]uint64 {
	reserved := make(map[string]uint64)
	for _, msg := range a.doc.Messages {
		if msg.Incoming || !msg.Broadcasted || !msg.Pending() {
			continue
		}
		for _, in := range msg.Inputs {
			reserved[in.Address] += in.Amount
		}
	}
	return reserved
}

// Balance computes the account balance from the last synchronization.
func (a *AccountHandle) Balance(ctx context.Context) (Balance, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var b Balance
	reserved := a.reservedLocked()
	for _, addr := range a.doc.Addresses {
		b.Total += addr.Balance
		b.Available += saturatingSub(addr.Balance, reserved[addr.Bech32])
	}
	for _, msg := range a.doc.Messages {
		if !msg.Broadcasted || !msg.Pending() || msg.Value == nil {
			continue
		}
		if msg.Incoming {
			b.Incoming += *msg.Value
		} else {
			b.Outgoing += *msg.Value
		}
	}
	return b, nil
}

// AddressAvailableBalance is the part of the address balance not locked by
// pending outgoing messages.
func (a *AccountHandle) AddressAvailableBalance(addr Address) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return saturatingSub(addr.Balance, a.reservedLocked()[addr.Bech32])
}

// ListMessages returns the messages matching filter, newest first.
func (a *AccountHandle) ListMessages(filter MessageType) []Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []Message
	for _, msg := range a.doc.Messages {
		if filter.Matches(msg) {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// GetMessage returns the message with the given id.
func (a *AccountHandle) GetMessage(id MessageID) (Message, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, msg := range a.doc.Messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return Message{}, false
}

func (a *AccountHandle) messageIndexLocked(id MessageID) int {
	for i, msg := range a.doc.Messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

func (a *AccountHandle) empty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.doc.Messages) > 0 {
		return false
	}
	for _, addr := range a.doc.Addresses {
		if addr.Balance > 0 {
			return false
		}
	}
	return true
}

func (a *AccountHandle) snapshot() accountDoc {
	a.mu.RLock()
	defer a.mu.RUnlock()
	doc := a.doc
	doc.Addresses = append([]Address(nil), a.doc.Addresses...)
	doc.Messages = append([]Message(nil), a.doc.Messages...)
	return doc
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
