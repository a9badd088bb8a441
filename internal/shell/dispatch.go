package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/monolythium/wallet-cli/internal/wallet"
	"github.com/monolythium/wallet-cli/internal/walletgen"
)

var (
	errGapNotNumber    = errors.New("Gap limit must be a number")
	errAmountNotNumber = errors.New("Amount must be a number")
	errAddressNotBech  = errors.New("Address must be a bech32 string")
)

// Dispatch executes one parsed command against the account. Shape problems
// that only inform the user are printed; everything else is returned.
func (s *Shell) Dispatch(ctx context.Context, account Account, cmd *ParsedCommand) error {
	switch cmd.Kind {
	case CmdListMessages:
		return s.listMessages(account, cmd)
	case CmdListAddresses:
		return s.listAddresses(account)
	case CmdSync:
		return s.sync(ctx, account, cmd)
	case CmdAddress:
		addr, err := account.GenerateAddress(ctx)
		if err != nil {
			return err
		}
		s.printer.Address(addr, account.AddressAvailableBalance(addr))
		return nil
	case CmdBalance:
		balance, err := account.Balance(ctx)
		if err != nil {
			return err
		}
		s.printer.Balance(balance)
		return nil
	case CmdTransfer:
		return s.transfer(ctx, account, cmd)
	case CmdReplay:
		return s.replay(ctx, account, cmd)
	case CmdSetNode:
		opts := account.ClientOptions()
		opts.Nodes = []string{cmd.Node}
		return account.SetClientOptions(ctx, opts)
	case CmdSetAlias:
		return account.SetAlias(ctx, cmd.Alias)
	case CmdHelp:
		s.printer.Line(cmd.HelpText)
		return nil
	case CmdExit:
		return nil
	default:
		return fmt.Errorf("unknown command %d", cmd.Kind)
	}
}

func (s *Shell) listMessages(account Account, cmd *ParsedCommand) error {
	if cmd.ID != "" {
		id, err := wallet.ParseMessageID(cmd.ID)
		if err != nil {
			s.printer.Line(wallet.ErrInvalidMessageID.Error())
			return nil
		}
		msg, ok := account.GetMessage(id)
		if !ok {
			s.printer.Line(wallet.ErrMessageNotFound.Error())
			return nil
		}
		s.printer.Message(msg)
		return nil
	}

	filter := wallet.MessageTypeAll
	if cmd.Type != "" {
		t, err := wallet.ParseMessageType(cmd.Type)
		if err != nil {
			return err
		}
		filter = t
	}

	messages := account.ListMessages(filter)
	if len(messages) == 0 {
		s.printer.Line("No messages found")
		return nil
	}
	for _, m := range messages {
		s.printer.Message(m)
	}
	return nil
}

func (s *Shell) listAddresses(account Account) error {
	addresses := account.Addresses()
	if len(addresses) == 0 {
		s.printer.Line("No addresses found")
		return nil
	}
	for _, a := range addresses {
		s.printer.Address(a, account.AddressAvailableBalance(a))
	}
	return nil
}

func (s *Shell) sync(ctx context.Context, account Account, cmd *ParsedCommand) error {
	var gap uint32
	if cmd.GapSet {
		n, err := strconv.ParseUint(cmd.Gap, 10, 32)
		if err != nil {
			return errGapNotNumber
		}
		gap = uint32(n)
		s.printer.Linef("Syncing with gap limit %d", gap)
	}

	result, err := account.Synchronize(ctx, gap)
	if err != nil {
		return err
	}
	for _, a := range result.Addresses {
		s.printer.Address(a, account.AddressAvailableBalance(a))
	}
	for _, m := range result.Messages {
		s.printer.Message(m)
	}
	return nil
}

func (s *Shell) transfer(ctx context.Context, account Account, cmd *ParsedCommand) error {
	if _, err := walletgen.ParseAddress(cmd.Address, walletgen.Bech32HRP); err != nil {
		return errAddressNotBech
	}
	amount, err := strconv.ParseUint(cmd.Amount, 10, 64)
	if err != nil {
		return errAmountNotNumber
	}
	if amount == 0 {
		return wallet.ErrZeroAmount
	}

	msg, err := account.Transfer(ctx, wallet.NewTransfer(cmd.Address, amount))
	if err != nil {
		return err
	}
	s.printer.Message(msg)
	return nil
}

func (s *Shell) replay(ctx context.Context, account Account, cmd *ParsedCommand) error {
	id, err := wallet.ParseMessageID(cmd.ID)
	if err != nil {
		s.printer.Line(wallet.ErrInvalidMessageID.Error())
		return nil
	}

	var msg wallet.Message
	switch cmd.Action {
	case ReplayPromote:
		msg, err = account.Promote(ctx, id)
	case ReplayRetry:
		msg, err = account.Retry(ctx, id)
	case ReplayReattach:
		msg, err = account.Reattach(ctx, id)
	default:
		return fmt.Errorf("unknown replay action %d", cmd.Action)
	}
	if err != nil {
		return err
	}
	s.printer.Message(msg)
	return nil
}
