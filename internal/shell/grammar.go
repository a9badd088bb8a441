// Package shell implements the interactive account prompt.
package shell

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Command identifies a parsed account command.
type Command int

const (
	CmdHelp Command = iota
	CmdListMessages
	CmdListAddresses
	CmdSync
	CmdAddress
	CmdBalance
	CmdTransfer
	CmdReplay
	CmdSetNode
	CmdSetAlias
	CmdExit
)

// ReplayAction selects the recovery operation of a replay command.
type ReplayAction int

const (
	ReplayPromote ReplayAction = iota
	ReplayRetry
	ReplayReattach
)

func (a ReplayAction) String() string {
	switch a {
	case ReplayPromote:
		return "promote"
	case ReplayRetry:
		return "retry"
	case ReplayReattach:
		return "reattach"
	default:
		return "unknown"
	}
}

var messageTypes = []string{"received", "sent", "failed", "unconfirmed", "value"}

// ParsedCommand is one matched line of the account grammar. Numeric and id
// arguments are kept as typed so that dispatch reports shape errors itself.
type ParsedCommand struct {
	Kind     Command
	ID       string
	Type     string
	Gap      string
	GapSet   bool
	Address  string
	Amount   string
	Action   ReplayAction
	Node     string
	Alias    string
	HelpText string
}

func newGrammar(parsed *ParsedCommand) *cobra.Command {
	root := &cobra.Command{
		Use:   "account",
		Short: "Account commands",
		Long: "Account commands.\n\n" +
			"Input is split on whitespace; quoted values and embedded spaces are not supported.\n" +
			"Type `h` for this help, `clear` to clear the screen, `exit` to leave the account.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	leaf := func(use, short string, kind Command) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				parsed.Kind = kind
				return nil
			},
		}
		root.AddCommand(c)
		return c
	}

	listMessages := leaf("list-messages", "List the account messages", CmdListMessages)
	listMessages.Flags().StringVar(&parsed.ID, "id", "", "Message id (64 hex characters)")
	listMessages.Flags().StringVar(&parsed.Type, "type", "", "Message type: "+strings.Join(messageTypes, ", "))
	listMessages.RunE = func(cmd *cobra.Command, args []string) error {
		if parsed.Type != "" && !contains(messageTypes, parsed.Type) {
			return fmt.Errorf("invalid value %q for --type: must be one of %s", parsed.Type, strings.Join(messageTypes, ", "))
		}
		parsed.Kind = CmdListMessages
		return nil
	}

	leaf("list-addresses", "List the account addresses", CmdListAddresses)

	syncCmd := leaf("sync", "Synchronize the account with the ledger", CmdSync)
	syncCmd.Flags().StringVar(&parsed.Gap, "gap", "", "Address gap limit")
	syncCmd.RunE = func(cmd *cobra.Command, args []string) error {
		parsed.Kind = CmdSync
		parsed.GapSet = cmd.Flags().Changed("gap")
		return nil
	}

	leaf("address", "Generate a new receiving address", CmdAddress)
	leaf("balance", "Print the account balance", CmdBalance)

	transfer := leaf("transfer", "Send funds to an address", CmdTransfer)
	transfer.Flags().StringVar(&parsed.Address, "address", "", "Bech32 destination address")
	transfer.Flags().StringVar(&parsed.Amount, "amount", "", "Amount to send")
	_ = transfer.MarkFlagRequired("address")
	_ = transfer.MarkFlagRequired("amount")

	for _, action := range []ReplayAction{ReplayPromote, ReplayRetry, ReplayReattach} {
		c := leaf(action.String(), strings.ToUpper(action.String()[:1])+action.String()[1:]+" a pending message", CmdReplay)
		c.Flags().StringVar(&parsed.ID, "id", "", "Message id (64 hex characters)")
		_ = c.MarkFlagRequired("id")
		c.RunE = func(cmd *cobra.Command, args []string) error {
			parsed.Kind = CmdReplay
			parsed.Action = action
			return nil
		}
	}

	setNode := leaf("set-node", "Use a single node for this account", CmdSetNode)
	setNode.Flags().StringVar(&parsed.Node, "node", "", "Node URL")
	_ = setNode.MarkFlagRequired("node")

	setAlias := leaf("set-alias", "Rename the account", CmdSetAlias)
	setAlias.Flags().StringVar(&parsed.Alias, "alias", "", "New alias")
	_ = setAlias.MarkFlagRequired("alias")

	leaf("exit", "Leave the account prompt", CmdExit)

	return root
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Parse matches whitespace-separated tokens against the account grammar.
// Requests for help yield a CmdHelp command carrying the rendered text.
func Parse(tokens []string) (*ParsedCommand, error) {
	parsed := &ParsedCommand{Kind: -1}
	root := newGrammar(parsed)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{}, tokens...))

	if err := root.Execute(); err != nil {
		return nil, err
	}
	if parsed.Kind < 0 {
		return &ParsedCommand{Kind: CmdHelp, HelpText: strings.TrimRight(out.String(), "\n")}, nil
	}
	return parsed, nil
}

// HelpText renders the grammar help.
func HelpText() string {
	root := newGrammar(&ParsedCommand{})
	var out bytes.Buffer
	root.SetOut(&out)
	_ = root.Help()
	return strings.TrimRight(out.String(), "\n")
}
