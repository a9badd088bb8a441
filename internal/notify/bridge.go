package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/monolythium/wallet-cli/internal/wallet"
)

// DefaultQueueSize is the capacity of the bridge queue.
const DefaultQueueSize = 64

// Kind tags the fallback line of an event.
type Kind string

const (
	KindBalance      Kind = "BALANCE"
	KindTransaction  Kind = "TRANSACTION"
	KindConfirmation Kind = "CONFIRMATION"
	KindReattachment Kind = "REATTACHMENT"
)

// Subscriber registers the four event handlers. *wallet.Manager implements it.
type Subscriber interface {
	OnBalanceChange(func(wallet.BalanceChangeEvent)) error
	OnNewTransaction(func(wallet.TransactionEvent)) error
	OnConfirmationStateChange(func(wallet.ConfirmationChangeEvent)) error
	OnReattachment(func(wallet.TransactionEvent)) error
}

// AliasResolver returns the alias of a live account.
type AliasResolver func(accountID string) (string, bool)

// RegistryResolver resolves aliases through the wallet account registry.
func RegistryResolver(r *wallet.Registry) AliasResolver {
	return func(accountID string) (string, bool) {
		a, ok := r.Get(accountID)
		if !ok {
			return "", false
		}
		return a.Alias(), true
	}
}

// Options configures a Bridge.
type Options struct {
	Sink      Sink
	Resolve   AliasResolver
	Fallback  func(line string)
	QueueSize int
	Logger    *slog.Logger
}

type notification struct {
	kind      Kind
	accountID string
	body      func(alias string) string
}

// Bridge moves events off the engine's goroutines into a bounded queue that
// a single worker drains. Each event yields one notification attempt and,
// when that fails, one fallback line.
type Bridge struct {
	sink     Sink
	resolve  AliasResolver
	fallback func(string)
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan notification
	done   chan struct{}
}

// NewBridge creates a bridge and starts its worker.
func NewBridge(opts Options) *Bridge {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = DisabledSink{}
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = func(line string) { fmt.Println(line) }
	}

	b := &Bridge{
		sink:     sink,
		resolve:  opts.Resolve,
		fallback: fallback,
		logger:   logger,
		queue:    make(chan notification, size),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Register installs the four handlers on sub.
func (b *Bridge) Register(sub Subscriber) error {
	if err := sub.OnBalanceChange(func(ev wallet.BalanceChangeEvent) {
		b.enqueue(notification{kind: KindBalance, accountID: ev.AccountID, body: balanceBody(ev)})
	}); err != nil {
		return fmt.Errorf("failed to subscribe to balance changes: %w", err)
	}
	if err := sub.OnNewTransaction(func(ev wallet.TransactionEvent) {
		b.enqueue(notification{kind: KindTransaction, accountID: ev.AccountID, body: messageBody("New transaction", ev.Message)})
	}); err != nil {
		return fmt.Errorf("failed to subscribe to new transactions: %w", err)
	}
	if err := sub.OnConfirmationStateChange(func(ev wallet.ConfirmationChangeEvent) {
		prefix := "Transaction confirmed"
		if !ev.Confirmed {
			prefix = "Transaction unconfirmed"
		}
		b.enqueue(notification{kind: KindConfirmation, accountID: ev.AccountID, body: messageBody(prefix, ev.Message)})
	}); err != nil {
		return fmt.Errorf("failed to subscribe to confirmation changes: %w", err)
	}
	if err := sub.OnReattachment(func(ev wallet.TransactionEvent) {
		b.enqueue(notification{kind: KindReattachment, accountID: ev.AccountID, body: messageBody("Transaction reattached", ev.Message)})
	}); err != nil {
		return fmt.Errorf("failed to subscribe to reattachments: %w", err)
	}
	return nil
}

func balanceBody(ev wallet.BalanceChangeEvent) func(string) string {
	var text string
	if ev.BalanceChange.Spent > 0 {
		text = fmt.Sprintf("%d spent on address %s", ev.BalanceChange.Spent, ev.Address)
	} else {
		text = fmt.Sprintf("%d received on address %s", ev.BalanceChange.Received, ev.Address)
	}
	return func(alias string) string {
		return fmt.Sprintf("%s on `%s`", text, alias)
	}
}

func messageBody(prefix string, m wallet.Message) func(string) string {
	id := m.ID.String()
	return func(alias string) string {
		return fmt.Sprintf("%s: %s on `%s`", prefix, id, alias)
	}
}

// enqueue blocks while the queue is full. It runs on the event bus goroutine.
func (b *Bridge) enqueue(n notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.Warn("event received after shutdown", "kind", n.kind, "account", n.accountID)
		return
	}
	b.queue <- n
}

func (b *Bridge) run() {
	defer close(b.done)
	for n := range b.queue {
		b.deliver(n)
	}
}

func (b *Bridge) deliver(n notification) {
	alias, ok := "", false
	if b.resolve != nil {
		alias, ok = b.resolve(n.accountID)
	}
	if !ok {
		b.logger.Error("event for unknown account", "kind", n.kind, "account", n.accountID)
		return
	}

	body := n.body(alias)
	if err := b.sink.Notify(Title, body); err != nil {
		b.logger.Debug("desktop notification failed", "kind", n.kind, "error", err)
		b.fallback(fmt.Sprintf("[%s] %s", n.kind, body))
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	<-b.done
}
