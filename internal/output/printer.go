// Package output renders errors and wallet records for the terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/monolythium/wallet-cli/internal/wallet"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

// Printer writes whole records atomically so that lines from the event
// bridge never split a block printed by the prompt. Write errors are dropped.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter returns a printer writing to out, or stdout when out is nil.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out}
}

func (p *Printer) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.out, s)
}

// Writer exposes the underlying writer for components that print on their own.
func (p *Printer) Writer() io.Writer {
	return lockedWriter{p}
}

type lockedWriter struct{ p *Printer }

func (w lockedWriter) Write(b []byte) (int, error) {
	w.p.write(string(b))
	return len(b), nil
}

// Error prints "ERROR: <message>".
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	p.write("ERROR: " + err.Error() + "\n")
}

// Line prints one line of text.
func (p *Printer) Line(s string) {
	p.write(s + "\n")
}

// Linef formats and prints one line.
func (p *Printer) Linef(format string, args ...any) {
	p.write(fmt.Sprintf(format, args...) + "\n")
}

// Message prints a message block.
func (p *Printer) Message(m wallet.Message) {
	p.write(FormatMessage(m))
}

// Address prints an address block. available is the part of the balance
// not locked by pending transfers.
func (p *Printer) Address(a wallet.Address, available uint64) {
	p.write(FormatAddress(a, available))
}

// Balance prints the balance record.
func (p *Printer) Balance(b wallet.Balance) {
	p.write(b.String() + "\n")
}

// FormatMessage renders the message block.
func FormatMessage(m wallet.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MESSAGE %s\n", m.ID)
	if m.Value != nil {
		fmt.Fprintf(&b, "--- Value: %d\n", *m.Value)
	}
	fmt.Fprintf(&b, "--- Timestamp: %s\n", m.Timestamp.UTC().Format(timestampLayout))
	fmt.Fprintf(&b, "--- Broadcasted: %t, confirmed: %s\n", m.Broadcasted, confirmation(m.Confirmed))
	return b.String()
}

func confirmation(c *bool) string {
	if c == nil {
		return "unknown"
	}
	return fmt.Sprintf("%t", *c)
}

// FormatAddress renders the address block.
func FormatAddress(a wallet.Address, available uint64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ADDRESS %s\n", a.Bech32)
	fmt.Fprintf(&b, "Total balance: %d\n", a.Balance)
	fmt.Fprintf(&b, "--- Balance: %d\n", available)
	fmt.Fprintf(&b, "--- Index: %d\n", a.KeyIndex)
	fmt.Fprintf(&b, "--- Change address: %t\n", a.Internal)
	return b.String()
}
