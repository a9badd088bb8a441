package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/monolythium/wallet-cli/internal/output"
	"github.com/monolythium/wallet-cli/internal/wallet"
)

// Account is the part of an account handle the prompt drives.
type Account interface {
	Alias() string
	SetAlias(ctx context.Context, alias string) error
	ClientOptions() wallet.ClientOptions
	SetClientOptions(ctx context.Context, opts wallet.ClientOptions) error
	Addresses() []wallet.Address
	AddressAvailableBalance(addr wallet.Address) uint64
	GenerateAddress(ctx context.Context) (wallet.Address, error)
	Balance(ctx context.Context) (wallet.Balance, error)
	ListMessages(filter wallet.MessageType) []wallet.Message
	GetMessage(id wallet.MessageID) (wallet.Message, bool)
	Synchronize(ctx context.Context, gapLimit uint32) (*wallet.SyncResult, error)
	Transfer(ctx context.Context, t wallet.Transfer) (wallet.Message, error)
	Promote(ctx context.Context, id wallet.MessageID) (wallet.Message, error)
	Retry(ctx context.Context, id wallet.MessageID) (wallet.Message, error)
	Reattach(ctx context.Context, id wallet.MessageID) (wallet.Message, error)
}

var _ Account = (*wallet.AccountHandle)(nil)

// LineReader reads one line of user input after printing a label.
type LineReader interface {
	ReadLine(label string) (string, error)
}

// Options configures a Shell.
type Options struct {
	Printer *output.Printer
	Input   LineReader
	// Clear clears the terminal; nil disables the `clear` keyword
	Clear  func(ctx context.Context) error
	Logger *slog.Logger
}

// Shell runs the account prompt.
type Shell struct {
	printer *output.Printer
	input   LineReader
	clear   func(ctx context.Context) error
	logger  *slog.Logger
}

// New creates a Shell.
func New(opts Options) *Shell {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	printer := opts.Printer
	if printer == nil {
		printer = output.NewPrinter(nil)
	}
	return &Shell{
		printer: printer,
		input:   opts.Input,
		clear:   opts.Clear,
		logger:  logger,
	}
}

// Prompt is the label shown before each account command.
func Prompt(alias string) string {
	return fmt.Sprintf("Account `%s` command (h for help)", alias)
}

// Run reads commands until `exit` or end of input.
func (s *Shell) Run(ctx context.Context, account Account) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.input.ReadLine(Prompt(account.Alias()))
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		switch line {
		case "":
			continue
		case "h":
			s.printer.Line(HelpText())
			continue
		case "clear":
			if s.clear != nil {
				if err := s.clear(ctx); err != nil {
					s.printer.Error(err)
				}
			}
			continue
		}

		cmd, err := Parse(strings.Fields(line))
		if err != nil {
			s.printer.Line(err.Error())
			continue
		}

		switch cmd.Kind {
		case CmdExit:
			return nil
		case CmdHelp:
			s.printer.Line(cmd.HelpText)
			continue
		}

		if err := s.Dispatch(ctx, account, cmd); err != nil {
			s.logger.Debug("account command failed", "account", account.Alias(), "error", err)
			s.printer.Error(err)
		}
	}
}
