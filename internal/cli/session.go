package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/monolythium/wallet-cli/internal/config"
	"github.com/monolythium/wallet-cli/internal/logging"
	"github.com/monolythium/wallet-cli/internal/notify"
	osutil "github.com/monolythium/wallet-cli/internal/os"
	"github.com/monolythium/wallet-cli/internal/output"
	"github.com/monolythium/wallet-cli/internal/prompt"
	"github.com/monolythium/wallet-cli/internal/shell"
	"github.com/monolythium/wallet-cli/internal/tui"
	"github.com/monolythium/wallet-cli/internal/wallet"
	"github.com/monolythium/wallet-cli/internal/walletgen"
)

// WrongPasswordMessage is printed after a failed unlock attempt.
const WrongPasswordMessage = "Wrong password. Try again."

// PasswordReader collects passwords without echo.
type PasswordReader interface {
	Password(confirm bool) (string, error)
}

// Picker shows the account list and returns the chosen position.
type Picker func(aliases []string) (int, bool, error)

// SessionOptions configures a Session. Zero values select the terminal,
// desktop notifications and HTTP nodes.
type SessionOptions struct {
	Printer   *output.Printer
	Passwords PasswordReader
	Lines     shell.LineReader
	Picker    Picker
	Clear     func(ctx context.Context) error

	// Sink overrides the sink chosen from the configuration
	Sink              notify.Sink
	NodeClientFactory wallet.NodeClientFactory
	Scrypt            *walletgen.ScryptParams
	// LogWriter replaces the rotated log file
	LogWriter io.Writer
}

// Session runs one invocation of the wallet CLI.
type Session struct {
	printer   *output.Printer
	passwords PasswordReader
	lines     shell.LineReader
	picker    Picker
	clear     func(ctx context.Context) error
	sink      notify.Sink
	factory   wallet.NodeClientFactory
	scrypt    *walletgen.ScryptParams
	logWriter io.Writer

	logger *slog.Logger
}

// NewSession fills in the terminal defaults for unset options.
func NewSession(opts SessionOptions) *Session {
	printer := opts.Printer
	if printer == nil {
		printer = output.NewPrinter(nil)
	}

	s := &Session{
		printer:   printer,
		passwords: opts.Passwords,
		lines:     opts.Lines,
		picker:    opts.Picker,
		clear:     opts.Clear,
		sink:      opts.Sink,
		factory:   opts.NodeClientFactory,
		scrypt:    opts.Scrypt,
		logWriter: opts.LogWriter,
		logger:    slog.Default(),
	}

	if s.passwords == nil || s.lines == nil {
		terminal := prompt.NewTerminal(printer.Writer())
		if s.passwords == nil {
			s.passwords = terminal
		}
		if s.lines == nil {
			s.lines = terminal
		}
	}
	if s.picker == nil {
		s.picker = func(aliases []string) (int, bool, error) {
			return tui.Pick(aliases, nil, nil)
		}
	}
	if s.clear == nil {
		runner := osutil.DefaultRunner()
		s.clear = func(ctx context.Context) error {
			return runner.ClearScreen(ctx, printer.Writer())
		}
	}
	return s
}

// Run bootstraps the wallet and executes the invocation.
func (s *Session) Run(ctx context.Context, inv *Invocation) error {
	if inv == nil || inv.Handled {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if inv.Verbose {
		level = slog.LevelDebug
	}
	logger, logCloser := logging.New(logging.Options{
		StorageDir: cfg.DatabasePath,
		Level:      level,
		Writer:     s.logWriter,
	})
	defer logCloser.Close()
	s.logger = logger

	factory := s.factory
	if factory == nil {
		factory = wallet.HTTPClientFactory(cfg.NodeRequestTimeout, cfg.NodeRateLimit, logger)
	}
	builder := wallet.NewManagerBuilder().
		WithStorage(cfg.DatabasePath).
		WithPasswordClearInterval(0).
		WithNodeClientFactory(factory).
		WithLogger(logger)
	if s.scrypt != nil {
		builder = builder.WithScrypt(*s.scrypt)
	}
	manager, err := builder.Finish(ctx)
	if err != nil {
		return fmt.Errorf("failed to create account manager: %w", err)
	}
	// Captured before the first log record creates the directory.
	storageExisted := manager.StorageExists()

	sink := s.sink
	if sink == nil {
		if cfg.Notifications {
			sink = notify.DesktopSink{}
		} else {
			sink = notify.DisabledSink{}
		}
	}
	bridge := notify.NewBridge(notify.Options{
		Sink:      sink,
		Resolve:   notify.RegistryResolver(manager.Accounts()),
		Fallback:  s.printer.Line,
		QueueSize: cfg.EventQueueSize,
		Logger:    logger,
	})
	defer bridge.Close()
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Error("failed to close account manager", "error", err)
		}
	}()
	if err := bridge.Register(manager); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	logger.Info("session started",
		"storage", cfg.DatabasePath,
		"config", cfg.File,
		"command", inv.Command,
	)

	isImport := inv.Command == CmdImport
	keystoreExisted := manager.KeystoreExists()

	if !isImport {
		if err := s.unlock(ctx, manager, !storageExisted || !keystoreExisted); err != nil {
			return err
		}
	}

	mnemonicSet := false
	if inv.Command == CmdMnemonic {
		mnemonic := inv.Mnemonic
		if err := manager.StoreMnemonic(ctx, wallet.SignerKeystore, &mnemonic); err != nil {
			return fmt.Errorf("failed to store mnemonic: %w", err)
		}
		mnemonicSet = true
	}

	if !isImport && !keystoreExisted && !mnemonicSet {
		if err := manager.StoreMnemonic(ctx, wallet.SignerKeystore, nil); err != nil {
			return fmt.Errorf("failed to generate mnemonic: %w", err)
		}
		logger.Info("generated a new mnemonic", "keystore", manager.KeystorePath())
	}

	if inv.Command == CmdNone {
		return s.selectInteractively(ctx, manager)
	}
	return s.execute(ctx, manager, inv, cfg.DefaultNode)
}

// unlock asks for the password until the keystore opens.
func (s *Session) unlock(ctx context.Context, manager *wallet.Manager, confirm bool) error {
	for {
		password, err := s.passwords.Password(confirm)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		err = manager.SetPassword(ctx, password)
		if err == nil {
			return nil
		}
		if !errors.Is(err, wallet.ErrWrongPassword) {
			return err
		}
		s.logger.Warn("unlock failed")
		s.printer.Line(WrongPasswordMessage)
	}
}

func (s *Session) selectInteractively(ctx context.Context, manager *wallet.Manager) error {
	accounts, err := manager.GetAccounts(ctx)
	if err != nil {
		return err
	}
	switch len(accounts) {
	case 0:
		return nil
	case 1:
		return s.enter(ctx, accounts[0])
	}

	for {
		accounts, err := manager.GetAccounts(ctx)
		if err != nil {
			return err
		}
		aliases := make([]string, len(accounts))
		for i, a := range accounts {
			aliases[i] = a.Alias()
		}

		idx, ok, err := s.picker(aliases)
		if err != nil {
			return err
		}
		if !ok || idx < 0 || idx >= len(accounts) {
			return nil
		}
		if err := s.enter(ctx, accounts[idx]); err != nil {
			return err
		}
	}
}

func (s *Session) enter(ctx context.Context, account shell.Account) error {
	sh := shell.New(shell.Options{
		Printer: s.printer,
		Input:   s.lines,
		Clear:   s.clear,
		Logger:  s.logger,
	})
	return sh.Run(ctx, account)
}

func (s *Session) execute(ctx context.Context, manager *wallet.Manager, inv *Invocation, defaultNode string) error {
	switch inv.Command {
	case CmdMnemonic:
		return nil

	case CmdNew:
		nodes := inv.Nodes
		if len(nodes) == 0 {
			nodes = []string{defaultNode}
		}
		opts := wallet.NewClientOptions(nodes...)
		opts.LocalPoW = inv.PoW != PoWRemote

		initialiser := manager.CreateAccount(opts).SignerType(inv.Signer)
		if inv.Alias != "" {
			initialiser = initialiser.Alias(inv.Alias)
		}
		account, err := initialiser.Initialise(ctx)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		s.printer.Linef("Created account `%s`", account.Alias())
		return s.enter(ctx, account)

	case CmdAccount:
		account, err := manager.GetAccount(ctx, inv.Alias)
		if errors.Is(err, wallet.ErrAccountNotFound) {
			s.printer.Line("Account not found")
			return nil
		}
		if err != nil {
			return err
		}
		return s.enter(ctx, account)

	case CmdDelete:
		err := manager.RemoveAccount(ctx, inv.Alias)
		switch {
		case errors.Is(err, wallet.ErrAccountNotFound):
			s.printer.Line("Account not found")
			return nil
		case err != nil:
			return fmt.Errorf("failed to remove account: %w", err)
		}
		s.printer.Line("Account removed")
		return nil

	case CmdSync:
		results, err := manager.SyncAccounts(ctx)
		if err != nil {
			return err
		}
		s.printer.Linef("Synchronized %d accounts", len(results))
		return nil

	case CmdBackup:
		backupPassword, err := s.passwords.Password(true)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		path, err := manager.Backup(ctx, inv.Path, backupPassword)
		if err != nil {
			return fmt.Errorf("failed to back up wallet: %w", err)
		}
		s.printer.Linef("Backup stored at %s", path)
		return nil

	case CmdImport:
		backupPassword, err := s.passwords.Password(false)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if err := manager.ImportAccounts(ctx, inv.Path, backupPassword); err != nil {
			return fmt.Errorf("failed to import backup: %w", err)
		}
		s.printer.Line("Backup successfully imported")
		return nil

	default:
		return fmt.Errorf("unknown command %d", inv.Command)
	}
}
