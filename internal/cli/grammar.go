// Package cli parses the wallet command line and runs a wallet session.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monolythium/wallet-cli/internal/wallet"
)

// BinaryName is the name of the executable.
const BinaryName = "wallet-cli"

// Command identifies the top-level command of an invocation.
type Command int

const (
	cmdUnset Command = iota - 1
	CmdNone
	CmdMnemonic
	CmdNew
	CmdAccount
	CmdDelete
	CmdSync
	CmdBackup
	CmdImport
)

const (
	PoWLocal  = "local"
	PoWRemote = "remote"
)

// Invocation is a parsed command line.
type Invocation struct {
	Command  Command
	Mnemonic string
	Nodes    []string
	Signer   wallet.SignerType
	PoW      string
	Alias    string
	Path     string
	Verbose  bool
	// Handled is set when the parser already answered, e.g. --help or --version
	Handled bool
}

// ParseOptions configures Parse.
type ParseOptions struct {
	Version string
	Out     io.Writer
	Err     io.Writer
}

// Parse matches args against the top-level grammar. It has no side effects
// besides printing help, version or usage.
func Parse(args []string, opts ParseOptions) (*Invocation, error) {
	inv := &Invocation{Command: cmdUnset}
	root := newRootCommand(inv, opts.Version)
	if opts.Out != nil {
		root.SetOut(opts.Out)
	}
	if opts.Err != nil {
		root.SetErr(opts.Err)
	}
	root.SetArgs(append([]string{}, args...))

	if err := root.Execute(); err != nil {
		return nil, err
	}
	if inv.Command == cmdUnset {
		inv.Handled = true
	}
	return inv, nil
}

func newRootCommand(inv *Invocation, version string) *cobra.Command {
	if version == "" {
		version = "dev"
	}

	var signer string

	rootCmd := &cobra.Command{
		Use:   BinaryName,
		Short: "Wallet CLI - manage ledger accounts from the terminal",
		Long: `Wallet CLI keeps an encrypted mnemonic and a set of accounts in a local
storage directory (WALLET_DATABASE_PATH, default ./wallet-cli-database).

Pick an account interactively:
  wallet-cli

Or run a single command:
  wallet-cli new --node http://localhost:14265 --alias alice
  wallet-cli account alice
  wallet-cli backup --path ./backups`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CmdNone
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&inv.Verbose, "verbose", false, "Write debug records to the log file")

	mnemonicCmd := &cobra.Command{
		Use:   "mnemonic <words...>",
		Short: "Store an existing mnemonic instead of generating one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CmdMnemonic
			inv.Mnemonic = strings.Join(args, " ")
			return nil
		},
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create an account and open its prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := wallet.ParseSignerType(signer)
			if err != nil {
				return err
			}
			if inv.PoW != PoWLocal && inv.PoW != PoWRemote {
				return fmt.Errorf("invalid value %q for --pow: must be %s or %s", inv.PoW, PoWLocal, PoWRemote)
			}
			inv.Command = CmdNew
			inv.Signer = st
			return nil
		},
	}
	newCmd.Flags().StringArrayVar(&inv.Nodes, "node", nil, "Node URL (repeatable)")
	newCmd.Flags().StringVar(&signer, "type", string(wallet.SignerKeystore),
		fmt.Sprintf("Signer type (%s, %s, %s)", wallet.SignerKeystore, wallet.SignerHardwareSimulator, wallet.SignerHardwareDevice))
	newCmd.Flags().StringVar(&inv.PoW, "pow", PoWLocal, "Proof of work: local or remote")
	newCmd.Flags().StringVar(&inv.Alias, "alias", "", "Account alias")

	accountCmd := &cobra.Command{
		Use:   "account <alias>",
		Short: "Open the prompt of an existing account",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CmdAccount
			inv.Alias = strings.Join(args, " ")
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <alias>",
		Short: "Remove an account without funds or history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CmdDelete
			inv.Alias = strings.Join(args, " ")
			return nil
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CmdSync
			return nil
		},
	}

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Write an encrypted backup of the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CmdBackup
			return nil
		},
	}
	backupCmd.Flags().StringVar(&inv.Path, "path", "", "Backup file or directory")
	backupCmd.MarkFlagRequired("path")

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Restore the wallet from an encrypted backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CmdImport
			return nil
		},
	}
	importCmd.Flags().StringVar(&inv.Path, "path", "", "Backup file")
	importCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(mnemonicCmd, newCmd, accountCmd, deleteCmd, syncCmd, backupCmd, importCmd)
	return rootCmd
}
