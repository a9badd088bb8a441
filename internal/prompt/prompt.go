// Package prompt reads passwords and command lines from the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

const (
	PasswordPrompt = "What's the keystore password?"
	ConfirmPrompt  = "Confirm password"
	MismatchError  = "Password mismatch"
)

// Prompter reads from one input and writes prompts to one output.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
	secret func() (string, error)
}

// NewTerminal returns a prompter on stdin. Secrets are read without echo
// when stdin is a terminal.
func NewTerminal(out io.Writer) *Prompter {
	p := NewPrompter(os.Stdin, out)
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		p.secret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return string(b), nil
		}
	}
	return p
}

// NewPrompter returns a prompter reading lines from in. Secrets are read as
// plain lines.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{reader: bufio.NewReader(in), out: out}
	p.secret = p.readRaw
	return p
}

func (p *Prompter) readRaw() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadLine shows label and returns the trimmed line. io.EOF is returned when
// the input is exhausted.
func (p *Prompter) ReadLine(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.readRaw()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Secret shows label and reads a value without echo.
func (p *Prompter) Secret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	return p.secret()
}

// Password asks for the keystore password. With confirm set the password is
// entered twice until both entries match.
func (p *Prompter) Password(confirm bool) (string, error) {
	for {
		pw, err := p.Secret(PasswordPrompt)
		if err != nil {
			return "", err
		}
		if !confirm {
			return pw, nil
		}
		again, err := p.Secret(ConfirmPrompt)
		if err != nil {
			return "", err
		}
		if pw == again {
			return pw, nil
		}
		fmt.Fprintln(p.out, MismatchError)
	}
}
