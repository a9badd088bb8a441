package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/monolythium/wallet-cli/internal/node"
	"github.com/monolythium/wallet-cli/internal/store"
	"github.com/monolythium/wallet-cli/internal/walletgen"
)

const (
	// KeystoreFileName holds the sealed mnemonic inside the storage directory.
	KeystoreFileName = "wallet.keystore"
	// DatabaseDirName holds the account database inside the storage directory.
	DatabaseDirName = "db"
	// DefaultPasswordClearInterval is how long the keystore password stays in memory.
	DefaultPasswordClearInterval = 5 * time.Minute

	keystoreKindMnemonic = "mnemonic"
	keystoreKindBackup   = "backup"
)

// NodeClient is the subset of the node API the engine needs.
type NodeClient interface {
	AddressBalance(ctx context.Context, address string) (uint64, error)
	AddressMessages(ctx context.Context, address string) ([]node.MessageRecord, error)
	MessageMetadata(ctx context.Context, id string) (*node.MessageMetadata, error)
	Tips(ctx context.Context) ([]string, error)
	SubmitMessage(ctx context.Context, req *node.SubmitRequest) (string, error)
	Info(ctx context.Context) (*node.InfoResponse, error)
}

// NodeClientFactory builds a client for an account's options.
type NodeClientFactory func(opts ClientOptions) (NodeClient, error)

// HTTPClientFactory returns a factory producing node.Client instances.
func HTTPClientFactory(timeout time.Duration, rateLimit int, logger *slog.Logger) NodeClientFactory {
	return func(opts ClientOptions) (NodeClient, error) {
		return node.NewClient(node.Options{
			Nodes:     opts.Nodes,
			Timeout:   timeout,
			RateLimit: rateLimit,
			Logger:    logger,
		})
	}
}

// ManagerBuilder configures a Manager.
type ManagerBuilder struct {
	storagePath   string
	clearInterval time.Duration
	factory       NodeClientFactory
	logger        *slog.Logger
	scrypt        walletgen.ScryptParams
}

// NewManagerBuilder returns a builder with default settings.
func NewManagerBuilder() *ManagerBuilder {
	return &ManagerBuilder{
		clearInterval: DefaultPasswordClearInterval,
		scrypt:        walletgen.StandardScrypt,
	}
}

// WithStorage sets the storage directory.
func (b *ManagerBuilder) WithStorage(path string) *ManagerBuilder {
	b.storagePath = path
	return b
}

// WithPasswordClearInterval sets how long the password is kept; zero keeps it forever.
func (b *ManagerBuilder) WithPasswordClearInterval(d time.Duration) *ManagerBuilder {
	b.clearInterval = d
	return b
}

// WithNodeClientFactory overrides how accounts reach the ledger.
func (b *ManagerBuilder) WithNodeClientFactory(f NodeClientFactory) *ManagerBuilder {
	b.factory = f
	return b
}

// WithLogger sets the logger.
func (b *ManagerBuilder) WithLogger(logger *slog.Logger) *ManagerBuilder {
	b.logger = logger
	return b
}

// WithScrypt sets the key derivation cost of files the manager writes.
func (b *ManagerBuilder) WithScrypt(params walletgen.ScryptParams) *ManagerBuilder {
	b.scrypt = params
	return b
}

// Finish builds the manager. Nothing is written to storage until a password
// is set or a backup is imported.
func (b *ManagerBuilder) Finish(ctx context.Context) (*Manager, error) {
	if b.storagePath == "" {
		return nil, errors.New("storage path is required")
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	factory := b.factory
	if factory == nil {
		factory = HTTPClientFactory(0, 0, logger)
	}

	m := &Manager{
		storagePath:   b.storagePath,
		clearInterval: b.clearInterval,
		factory:       factory,
		logger:        logger,
		scrypt:        b.scrypt,
		clients:       make(map[string]NodeClient),
		accounts:      NewRegistry(),
		bus:           evbus.New(),
	}

	// An existing database is loaded eagerly so accounts can be listed.
	if _, err := os.Stat(m.databasePath()); err == nil {
		if err := m.openStore(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Manager owns the keystore, the account store and the account registry.
type Manager struct {
	storagePath   string
	clearInterval time.Duration
	factory       NodeClientFactory
	logger        *slog.Logger
	scrypt        walletgen.ScryptParams

	mu         sync.Mutex
	password   string
	unlocked   bool
	mnemonic   string
	clearTimer *time.Timer
	store      *store.Store

	clientsMu sync.Mutex
	clients   map[string]NodeClient

	accounts *Registry
	bus      evbus.Bus
}

// StoragePath returns the storage directory.
func (m *Manager) StoragePath() string {
	return m.storagePath
}

// KeystorePath returns the path of the sealed mnemonic.
func (m *Manager) KeystorePath() string {
	return filepath.Join(m.storagePath, KeystoreFileName)
}

func (m *Manager) databasePath() string {
	return filepath.Join(m.storagePath, DatabaseDirName)
}

// KeystoreExists reports whether a mnemonic has been stored.
func (m *Manager) KeystoreExists() bool {
	_, err := os.Stat(m.KeystorePath())
	return err == nil
}

// StorageExists reports whether the storage directory has been created.
func (m *Manager) StorageExists() bool {
	_, err := os.Stat(m.storagePath)
	return err == nil
}

// Accounts returns the in-memory account registry.
func (m *Manager) Accounts() *Registry {
	return m.accounts
}

// SetPassword unlocks the keystore. When a keystore exists the password must
// open it, otherwise ErrWrongPassword is returned.
func (m *Manager) SetPassword(ctx context.Context, password string) error {
	var mnemonic string
	if m.KeystoreExists() {
		box, err := walletgen.LoadSealedBox(m.KeystorePath())
		if err != nil {
			return err
		}
		plain, err := walletgen.Open(box, password)
		if err != nil {
			if errors.Is(err, walletgen.ErrDecrypt) {
				return ErrWrongPassword
			}
			return err
		}
		mnemonic = string(plain)
	}

	if err := os.MkdirAll(m.storagePath, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := m.openStore(); err != nil {
		return err
	}

	m.mu.Lock()
	m.password = password
	m.mnemonic = mnemonic
	m.unlocked = true
	m.armClearTimerLocked()
	m.mu.Unlock()

	m.logger.Debug("keystore unlocked", "storage", m.storagePath)
	return nil
}

func (m *Manager) armClearTimerLocked() {
	if m.clearTimer != nil {
		m.clearTimer.Stop()
		m.clearTimer = nil
	}
	if m.clearInterval <= 0 {
		return
	}
	m.clearTimer = time.AfterFunc(m.clearInterval, func() {
		m.mu.Lock()
		m.password = ""
		m.mnemonic = ""
		m.unlocked = false
		m.mu.Unlock()
		m.logger.Debug("keystore password cleared")
	})
}

// Unlocked reports whether the password is currently held.
func (m *Manager) Unlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlocked
}

func (m *Manager) secret() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return "", ErrNotUnlocked
	}
	if m.mnemonic == "" {
		return "", ErrMnemonicMissing
	}
	m.armClearTimerLocked()
	return m.mnemonic, nil
}

// StoreMnemonic seals a mnemonic into the keystore. A nil mnemonic generates
// a fresh 24-word one.
func (m *Manager) StoreMnemonic(ctx context.Context, signer SignerType, mnemonic *string) error {
	if signer != SignerKeystore {
		return ErrSignerUnsupported
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return ErrNotUnlocked
	}
	if m.mnemonic != "" {
		return ErrMnemonicExists
	}
	if _, err := os.Stat(m.KeystorePath()); err == nil {
		return ErrMnemonicExists
	}

	var phrase string
	if mnemonic == nil {
		generated, err := walletgen.GenerateMnemonic()
		if err != nil {
			return err
		}
		phrase = generated
	} else {
		phrase = walletgen.NormalizeMnemonic(*mnemonic)
		if err := walletgen.ValidateMnemonic(phrase); err != nil {
			return err
		}
	}

	box, err := walletgen.SealWithParams(keystoreKindMnemonic, []byte(phrase), m.password, m.scrypt)
	if err != nil {
		return err
	}
	if err := walletgen.SaveSealedBox(box, m.KeystorePath()); err != nil {
		return err
	}
	m.mnemonic = phrase
	m.logger.Info("mnemonic stored", "generated", mnemonic == nil)
	return nil
}

func (m *Manager) openStore() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		return nil
	}

	st, err := store.Open(store.Options{Dir: m.databasePath(), Logger: m.logger})
	if err != nil {
		return err
	}
	m.store = st

	return st.EachAccount(func(id string, data []byte) error {
		var doc accountDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to decode account %s: %w", id, err)
		}
		m.accounts.add(newAccountHandle(m, doc))
		return nil
	})
}

func (m *Manager) getStore() (*store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil, ErrNotUnlocked
	}
	return m.store, nil
}

func (m *Manager) persist(doc accountDoc) error {
	st, err := m.getStore()
	if err != nil {
		return err
	}
	return st.PutAccount(doc.ID, doc)
}

// client returns the node client for opts, building it on first use. Clients
// are shared by every account with the same node list.
func (m *Manager) client(opts ClientOptions) (NodeClient, error) {
	key := strings.Join(opts.Nodes, "\n")

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if c, ok := m.clients[key]; ok {
		return c, nil
	}
	c, err := m.factory(opts)
	if err != nil {
		return nil, err
	}
	m.clients[key] = c
	return c, nil
}

// checkNetwork asks the node which network it serves and rejects nodes of
// another network. An unreachable node is accepted so accounts can be
// created offline.
func (m *Manager) checkNetwork(ctx context.Context, client NodeClient) error {
	info, err := client.Info(ctx)
	if err != nil {
		m.logger.Warn("node info unavailable, network not verified", "error", err)
		return nil
	}
	if info.Bech32HRP != walletgen.Bech32HRP {
		return fmt.Errorf("%w: node uses %q, wallet uses %q", ErrNetworkMismatch, info.Bech32HRP, walletgen.Bech32HRP)
	}
	return nil
}

// CreateAccount starts building a new account reaching the ledger through opts.
func (m *Manager) CreateAccount(opts ClientOptions) *AccountInitialiser {
	return &AccountInitialiser{manager: m, options: opts, signer: SignerKeystore}
}

// GetAccount looks up an account by id or alias.
func (m *Manager) GetAccount(ctx context.Context, identifier string) (*AccountHandle, error) {
	if a, ok := m.accounts.Lookup(identifier); ok {
		return a, nil
	}
	return nil, ErrAccountNotFound
}

// GetAccounts returns every account ordered by index.
func (m *Manager) GetAccounts(ctx context.Context) ([]*AccountHandle, error) {
	return m.accounts.All(), nil
}

// RemoveAccount deletes an account that holds no funds and no history.
func (m *Manager) RemoveAccount(ctx context.Context, identifier string) error {
	a, err := m.GetAccount(ctx, identifier)
	if err != nil {
		return err
	}
	if !a.empty() {
		return ErrAccountNotEmpty
	}
	st, err := m.getStore()
	if err != nil {
		return err
	}
	if err := st.DeleteAccount(a.ID()); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	m.accounts.remove(a.ID())
	m.logger.Info("account removed", "id", a.ID(), "alias", a.Alias())
	return nil
}

// SyncAccounts synchronizes every account and returns their results.
func (m *Manager) SyncAccounts(ctx context.Context) ([]*SyncResult, error) {
	accounts := m.accounts.All()
	results := make([]*SyncResult, 0, len(accounts))
	for _, a := range accounts {
		res, err := a.Sync().Execute(ctx)
		if err != nil {
			return results, fmt.Errorf("failed to sync account %s: %w", a.Alias(), err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Close waits for pending event handlers and releases the store.
func (m *Manager) Close() error {
	m.bus.WaitAsync()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearTimer != nil {
		m.clearTimer.Stop()
		m.clearTimer = nil
	}
	m.password = ""
	m.mnemonic = ""
	m.unlocked = false
	if m.store != nil {
		err := m.store.Close()
		m.store = nil
		return err
	}
	return nil
}

// Registry is the in-memory index of loaded accounts.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*AccountHandle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{accounts: make(map[string]*AccountHandle)}
}

// Get returns the account with the given id.
func (r *Registry) Get(id string) (*AccountHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	return a, ok
}

// Lookup resolves an id or an alias.
func (r *Registry) Lookup(identifier string) (*AccountHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.accounts[identifier]; ok {
		return a, true
	}
	for _, a := range r.accounts {
		if a.Alias() == identifier {
			return a, true
		}
	}
	return nil, false
}

// All returns the accounts ordered by index.
func (r *Registry) All() []*AccountHandle {
	r.mu.RLock()
	out := make([]*AccountHandle, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

// Len returns the number of accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

func (r *Registry) add(a *AccountHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID()] = a
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
}

func (r *Registry) nextIndex() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var next uint32
	for _, a := range r.accounts {
		if idx := a.Index(); idx >= next {
			next = idx + 1
		}
	}
	return next
}

func (r *Registry) aliasTaken(alias, exceptID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, a := range r.accounts {
		if id != exceptID && a.Alias() == alias {
			return true
		}
	}
	return false
}
