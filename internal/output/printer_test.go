package output

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monolythium/wallet-cli/internal/wallet"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestErrorLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Error(errors.New("amount can't be zero"))
	p.Error(nil)

	assert.Equal(t, "ERROR: amount can't be zero\n", buf.String())
}

func TestFormatMessage(t *testing.T) {
	id, err := wallet.ParseMessageID(strings.Repeat("ab", 32))
	require.NoError(t, err)
	value := uint64(1000)
	confirmed := false

	msg := wallet.Message{
		ID:          id,
		Value:       &value,
		Timestamp:   time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Broadcasted: true,
		Confirmed:   &confirmed,
	}

	want := "MESSAGE " + strings.Repeat("ab", 32) + "\n" +
		"--- Value: 1000\n" +
		"--- Timestamp: 2024-03-01 12:30:00 UTC\n" +
		"--- Broadcasted: true, confirmed: false\n"
	assert.Equal(t, want, FormatMessage(msg))

	msg.Value = nil
	msg.Confirmed = nil
	out := FormatMessage(msg)
	assert.NotContains(t, out, "Value")
	assert.Contains(t, out, "confirmed: unknown")
}

func TestFormatAddress(t *testing.T) {
	addr := wallet.Address{Bech32: "atoi1qqq", Balance: 50, KeyIndex: 2, Internal: true}

	want := "ADDRESS atoi1qqq\n" +
		"Total balance: 50\n" +
		"--- Balance: 20\n" +
		"--- Index: 2\n" +
		"--- Change address: true\n"
	assert.Equal(t, want, FormatAddress(addr, 20))
}

func TestPrinterSwallowsWriteErrors(t *testing.T) {
	p := NewPrinter(failingWriter{})
	assert.NotPanics(t, func() {
		p.Error(errors.New("boom"))
		p.Line("hello")
		p.Balance(wallet.Balance{Total: 1})
	})
}

func TestPrinterLinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	addr := wallet.Address{Bech32: "atoi1qqq", Balance: 1}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); p.Address(addr, 1) }()
		go func() { defer wg.Done(); p.Line("[BALANCE] 1 received") }()
	}
	wg.Wait()

	block := FormatAddress(addr, 1)
	out := buf.String()
	assert.Equal(t, 20, strings.Count(out, block))
	assert.Equal(t, 20, strings.Count(out, "[BALANCE] 1 received\n"))
}
