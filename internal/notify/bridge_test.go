package notify

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monolythium/wallet-cli/internal/wallet"
)

type fakeSubscriber struct {
	balance      func(wallet.BalanceChangeEvent)
	transaction  func(wallet.TransactionEvent)
	confirmation func(wallet.ConfirmationChangeEvent)
	reattachment func(wallet.TransactionEvent)
}

func (f *fakeSubscriber) OnBalanceChange(h func(wallet.BalanceChangeEvent)) error {
	f.balance = h
	return nil
}

func (f *fakeSubscriber) OnNewTransaction(h func(wallet.TransactionEvent)) error {
	f.transaction = h
	return nil
}

func (f *fakeSubscriber) OnConfirmationStateChange(h func(wallet.ConfirmationChangeEvent)) error {
	f.confirmation = h
	return nil
}

func (f *fakeSubscriber) OnReattachment(h func(wallet.TransactionEvent)) error {
	f.reattachment = h
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (s *recordingSink) Notify(title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, title+"|"+body)
	return s.err
}

type lines struct {
	mu  sync.Mutex
	all []string
}

func (l *lines) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, s)
}

func aliceResolver(id string) (string, bool) {
	if id == "acc-1" {
		return "alice", true
	}
	return "", false
}

func newTestBridge(t *testing.T, sink Sink, out *lines) (*Bridge, *fakeSubscriber) {
	t.Helper()
	b := NewBridge(Options{Sink: sink, Resolve: aliceResolver, Fallback: out.add, QueueSize: 2})
	sub := &fakeSubscriber{}
	require.NoError(t, b.Register(sub))
	return b, sub
}

func TestBalanceFallbackLine(t *testing.T) {
	out := &lines{}
	b, sub := newTestBridge(t, DisabledSink{}, out)

	sub.balance(wallet.BalanceChangeEvent{
		AccountID:     "acc-1",
		Address:       "atoi1qqq",
		BalanceChange: wallet.BalanceChange{Received: 42},
	})
	b.Close()

	require.Len(t, out.all, 1)
	assert.Equal(t, "[BALANCE] 42 received on address atoi1qqq on `alice`", out.all[0])
}

func TestSpentTakesPrecedence(t *testing.T) {
	out := &lines{}
	b, sub := newTestBridge(t, DisabledSink{}, out)

	sub.balance(wallet.BalanceChangeEvent{
		AccountID:     "acc-1",
		Address:       "atoi1qqq",
		BalanceChange: wallet.BalanceChange{Spent: 7, Received: 3},
	})
	b.Close()

	require.Len(t, out.all, 1)
	assert.Equal(t, "[BALANCE] 7 spent on address atoi1qqq on `alice`", out.all[0])
}

func TestDesktopSuccessPrintsNothing(t *testing.T) {
	out := &lines{}
	sink := &recordingSink{}
	b, sub := newTestBridge(t, sink, out)

	id, err := wallet.ParseMessageID(strings.Repeat("cd", 32))
	require.NoError(t, err)
	sub.transaction(wallet.TransactionEvent{AccountID: "acc-1", Message: wallet.Message{ID: id}})
	sub.confirmation(wallet.ConfirmationChangeEvent{AccountID: "acc-1", Message: wallet.Message{ID: id}, Confirmed: true})
	sub.reattachment(wallet.TransactionEvent{AccountID: "acc-1", Message: wallet.Message{ID: id}})
	b.Close()

	assert.Empty(t, out.all)
	require.Len(t, sink.bodies, 3)
	assert.Equal(t, Title+"|New transaction: "+id.String()+" on `alice`", sink.bodies[0])
	assert.Equal(t, Title+"|Transaction confirmed: "+id.String()+" on `alice`", sink.bodies[1])
	assert.Equal(t, Title+"|Transaction reattached: "+id.String()+" on `alice`", sink.bodies[2])
}

func TestOneAttemptAndOneFallbackPerEvent(t *testing.T) {
	out := &lines{}
	sink := &recordingSink{err: errors.New("no daemon")}
	b, sub := newTestBridge(t, sink, out)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.balance(wallet.BalanceChangeEvent{AccountID: "acc-1", Address: "atoi1qqq", BalanceChange: wallet.BalanceChange{Received: 1}})
		}()
	}
	wg.Wait()
	b.Close()

	assert.Len(t, sink.bodies, 10)
	assert.Len(t, out.all, 10)
	for _, l := range out.all {
		assert.True(t, strings.HasPrefix(l, "[BALANCE] "))
	}
}

func TestUnknownAccountIsSkipped(t *testing.T) {
	out := &lines{}
	sink := &recordingSink{}
	b, sub := newTestBridge(t, sink, out)

	sub.balance(wallet.BalanceChangeEvent{AccountID: "ghost", BalanceChange: wallet.BalanceChange{Received: 1}})
	b.Close()

	assert.Empty(t, sink.bodies)
	assert.Empty(t, out.all)
}

func TestEventsAfterCloseAreIgnored(t *testing.T) {
	out := &lines{}
	b, sub := newTestBridge(t, DisabledSink{}, out)
	b.Close()

	assert.NotPanics(t, func() {
		sub.balance(wallet.BalanceChangeEvent{AccountID: "acc-1", BalanceChange: wallet.BalanceChange{Received: 1}})
	})
	b.Close()
	assert.Empty(t, out.all)
}
