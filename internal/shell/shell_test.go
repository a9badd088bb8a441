package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monolythium/wallet-cli/internal/output"
	"github.com/monolythium/wallet-cli/internal/wallet"
	"github.com/monolythium/wallet-cli/internal/walletgen"
)

type fakeAccount struct {
	alias     string
	opts      wallet.ClientOptions
	addresses []wallet.Address
	messages  []wallet.Message
	balance   wallet.Balance

	calls     []string
	gap       uint32
	transfers []wallet.Transfer
	replayErr error
}

func (f *fakeAccount) Alias() string { return f.alias }

func (f *fakeAccount) SetAlias(ctx context.Context, alias string) error {
	f.calls = append(f.calls, "set-alias")
	f.alias = alias
	return nil
}

func (f *fakeAccount) ClientOptions() wallet.ClientOptions { return f.opts }

func (f *fakeAccount) SetClientOptions(ctx context.Context, opts wallet.ClientOptions) error {
	f.calls = append(f.calls, "set-node")
	f.opts = opts
	return nil
}

func (f *fakeAccount) Addresses() []wallet.Address { return f.addresses }

func (f *fakeAccount) AddressAvailableBalance(addr wallet.Address) uint64 { return addr.Balance }

func (f *fakeAccount) GenerateAddress(ctx context.Context) (wallet.Address, error) {
	f.calls = append(f.calls, "address")
	addr := wallet.Address{Bech32: "atoi1generated", KeyIndex: uint32(len(f.addresses))}
	f.addresses = append(f.addresses, addr)
	return addr, nil
}

func (f *fakeAccount) Balance(ctx context.Context) (wallet.Balance, error) {
	f.calls = append(f.calls, "balance")
	return f.balance, nil
}

func (f *fakeAccount) ListMessages(filter wallet.MessageType) []wallet.Message {
	var out []wallet.Message
	for _, m := range f.messages {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAccount) GetMessage(id wallet.MessageID) (wallet.Message, bool) {
	for _, m := range f.messages {
		if m.ID == id {
			return m, true
		}
	}
	return wallet.Message{}, false
}

func (f *fakeAccount) Synchronize(ctx context.Context, gapLimit uint32) (*wallet.SyncResult, error) {
	f.calls = append(f.calls, "sync")
	f.gap = gapLimit
	return &wallet.SyncResult{}, nil
}

func (f *fakeAccount) Transfer(ctx context.Context, t wallet.Transfer) (wallet.Message, error) {
	f.calls = append(f.calls, "transfer")
	f.transfers = append(f.transfers, t)
	value := t.Amount
	return wallet.Message{ID: wallet.MessageID{1}, Value: &value, Broadcasted: true}, nil
}

func (f *fakeAccount) replay(name string, id wallet.MessageID) (wallet.Message, error) {
	f.calls = append(f.calls, name)
	if f.replayErr != nil {
		return wallet.Message{}, f.replayErr
	}
	return wallet.Message{ID: id, Broadcasted: true}, nil
}

func (f *fakeAccount) Promote(ctx context.Context, id wallet.MessageID) (wallet.Message, error) {
	return f.replay("promote", id)
}

func (f *fakeAccount) Retry(ctx context.Context, id wallet.MessageID) (wallet.Message, error) {
	return f.replay("retry", id)
}

func (f *fakeAccount) Reattach(ctx context.Context, id wallet.MessageID) (wallet.Message, error) {
	return f.replay("reattach", id)
}

type scriptedInput struct {
	lines  []string
	labels []string
}

func (s *scriptedInput) ReadLine(label string) (string, error) {
	s.labels = append(s.labels, label)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func run(t *testing.T, account *fakeAccount, lines ...string) (string, *scriptedInput) {
	t.Helper()
	var buf bytes.Buffer
	input := &scriptedInput{lines: lines}
	sh := New(Options{Printer: output.NewPrinter(&buf), Input: input})
	require.NoError(t, sh.Run(context.Background(), account))
	return buf.String(), input
}

func validAddress(t *testing.T) string {
	t.Helper()
	addr, err := walletgen.EncodeAddress(walletgen.Bech32HRP, bytes.Repeat([]byte{7}, walletgen.AddressLength))
	require.NoError(t, err)
	return addr
}

func TestParseCommands(t *testing.T) {
	cmd, err := Parse([]string{"transfer", "--address", "atoi1x", "--amount", "5"})
	require.NoError(t, err)
	assert.Equal(t, CmdTransfer, cmd.Kind)
	assert.Equal(t, "atoi1x", cmd.Address)
	assert.Equal(t, "5", cmd.Amount)

	cmd, err = Parse([]string{"retry", "--id", "abc"})
	require.NoError(t, err)
	assert.Equal(t, CmdReplay, cmd.Kind)
	assert.Equal(t, ReplayRetry, cmd.Action)
	assert.Equal(t, "abc", cmd.ID)

	cmd, err = Parse([]string{"sync"})
	require.NoError(t, err)
	assert.False(t, cmd.GapSet)

	cmd, err = Parse([]string{"sync", "--gap", "20"})
	require.NoError(t, err)
	assert.True(t, cmd.GapSet)
	assert.Equal(t, "20", cmd.Gap)

	cmd, err = Parse([]string{"--help"})
	require.NoError(t, err)
	assert.Equal(t, CmdHelp, cmd.Kind)
	assert.Contains(t, cmd.HelpText, "list-messages")
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := [][]string{
		{"bogus"},
		{"transfer", "--address", "atoi1x"},
		{"promote"},
		{"balance", "extra"},
		{"list-messages", "--type", "weird"},
		{"set-node", "--port", "1"},
	}
	for _, tokens := range cases {
		_, err := Parse(tokens)
		assert.Error(t, err, strings.Join(tokens, " "))
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	help := HelpText()
	for _, name := range []string{"list-messages", "list-addresses", "sync", "address", "balance",
		"transfer", "promote", "retry", "reattach", "set-node", "set-alias", "exit"} {
		assert.Contains(t, help, name)
	}
	assert.NotContains(t, help, "completion")
}

func TestRunPromptAndExit(t *testing.T) {
	account := &fakeAccount{alias: "savings"}
	out, input := run(t, account, "", "exit", "balance")

	assert.Equal(t, []string{Prompt("savings"), Prompt("savings")}, input.labels)
	assert.Empty(t, out)
	assert.Empty(t, account.calls)
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	account := &fakeAccount{alias: "a"}
	_, input := run(t, account)
	assert.Len(t, input.labels, 1)
}

func TestRunPrintsParseErrorsAndContinues(t *testing.T) {
	account := &fakeAccount{alias: "a", balance: wallet.Balance{Total: 10, Available: 7}}
	out, _ := run(t, account, "bogus", "balance")

	assert.Contains(t, out, `unknown command "bogus"`)
	assert.NotContains(t, out, "ERROR: unknown command")
	assert.Contains(t, out, "AccountBalance { total: 10, available: 7, incoming: 0, outgoing: 0 }")
}

func TestRunHelpAndClear(t *testing.T) {
	var cleared int
	var buf bytes.Buffer
	sh := New(Options{
		Printer: output.NewPrinter(&buf),
		Input:   &scriptedInput{lines: []string{"h", "clear"}},
		Clear: func(ctx context.Context) error {
			cleared++
			return nil
		},
	})
	require.NoError(t, sh.Run(context.Background(), &fakeAccount{alias: "a"}))

	assert.Equal(t, 1, cleared)
	assert.Contains(t, buf.String(), "set-alias")
}

func TestTransferZeroAmountNeverReachesEngine(t *testing.T) {
	account := &fakeAccount{alias: "a"}
	out, _ := run(t, account, "transfer --address "+validAddress(t)+" --amount 0")

	assert.Equal(t, "ERROR: amount can't be zero\n", out)
	assert.Empty(t, account.calls)
}

func TestTransferValidatesAddressBeforeAmount(t *testing.T) {
	account := &fakeAccount{alias: "a"}
	out, _ := run(t, account,
		"transfer --address nope --amount abc",
		"transfer --address "+validAddress(t)+" --amount abc",
	)

	assert.Equal(t, "ERROR: Address must be a bech32 string\nERROR: Amount must be a number\n", out)
	assert.Empty(t, account.calls)
}

func TestTransferPrintsMessage(t *testing.T) {
	account := &fakeAccount{alias: "a"}
	addr := validAddress(t)
	out, _ := run(t, account, "transfer --address "+addr+" --amount 250")

	require.Len(t, account.transfers, 1)
	assert.Equal(t, wallet.NewTransfer(addr, 250), account.transfers[0])
	assert.Contains(t, out, "--- Value: 250")
}

func TestListMessagesByID(t *testing.T) {
	id := strings.Repeat("ab", 32)
	parsed, err := wallet.ParseMessageID(id)
	require.NoError(t, err)
	account := &fakeAccount{alias: "a", messages: []wallet.Message{{ID: parsed, Broadcasted: true}}}

	out, _ := run(t, account,
		"list-messages --id xyz",
		"list-messages --id "+strings.Repeat("cd", 32),
		"list-messages --id "+id,
	)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "Message id must be a hex string of length 64", lines[0])
	assert.Equal(t, "Message not found", lines[1])
	assert.Equal(t, "MESSAGE "+id, lines[2])
	assert.NotContains(t, out, "ERROR")
}

func TestListMessagesFilters(t *testing.T) {
	value := uint64(5)
	account := &fakeAccount{alias: "a", messages: []wallet.Message{
		{ID: wallet.MessageID{1}, Incoming: true, Value: &value, Broadcasted: true},
		{ID: wallet.MessageID{2}, Broadcasted: false},
	}}

	out, _ := run(t, account, "list-messages --type failed")
	assert.Equal(t, 1, strings.Count(out, "MESSAGE "))
	assert.Contains(t, out, "MESSAGE "+wallet.MessageID{2}.String())

	out, _ = run(t, &fakeAccount{alias: "a"}, "list-messages", "list-addresses")
	assert.Equal(t, "No messages found\nNo addresses found\n", out)
}

func TestSyncGapLimit(t *testing.T) {
	account := &fakeAccount{alias: "a"}
	out, _ := run(t, account, "sync --gap 20", "sync --gap many", "sync")

	assert.Equal(t, "Syncing with gap limit 20\nERROR: Gap limit must be a number\n", out)
	assert.Equal(t, []string{"sync", "sync"}, account.calls)
	assert.Equal(t, uint32(0), account.gap)
}

func TestReplayCommands(t *testing.T) {
	id := strings.Repeat("0f", 32)
	account := &fakeAccount{alias: "a"}
	out, _ := run(t, account, "promote --id "+id, "retry --id "+id, "reattach --id "+id, "retry --id short")

	assert.Equal(t, []string{"promote", "retry", "reattach"}, account.calls)
	assert.Equal(t, 3, strings.Count(out, "MESSAGE "+id))
	assert.True(t, strings.HasSuffix(out, "Message id must be a hex string of length 64\n"))

	account.replayErr = wallet.ErrAlreadyConfirmed
	out, _ = run(t, account, "retry --id "+id)
	assert.Equal(t, "ERROR: "+wallet.ErrAlreadyConfirmed.Error()+"\n", out)
}

func TestSetNodeAndAlias(t *testing.T) {
	account := &fakeAccount{alias: "a", opts: wallet.ClientOptions{Nodes: []string{"http://old", "http://other"}, LocalPoW: false}}
	_, input := run(t, account, "set-node --node http://new:14265", "set-alias --alias renamed", "balance")

	assert.Equal(t, []string{"http://new:14265"}, account.opts.Nodes)
	assert.False(t, account.opts.LocalPoW)
	assert.Equal(t, "renamed", account.alias)
	// the prompt follows the new alias
	assert.Equal(t, Prompt("renamed"), input.labels[2])
}

func TestAddressCommand(t *testing.T) {
	account := &fakeAccount{alias: "a"}
	out, _ := run(t, account, "address")
	assert.Contains(t, out, "ADDRESS atoi1generated")
}

func TestRunReturnsReadErrors(t *testing.T) {
	sh := New(Options{Printer: output.NewPrinter(io.Discard), Input: failingInput{}})
	err := sh.Run(context.Background(), &fakeAccount{alias: "a"})
	assert.ErrorContains(t, err, "tty gone")
}

type failingInput struct{}

func (failingInput) ReadLine(string) (string, error) { return "", errors.New("tty gone") }
