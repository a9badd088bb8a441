package wallet

import "errors"

var (
	ErrWrongPassword     = errors.New("wrong password")
	ErrNotUnlocked       = errors.New("keystore is locked: set the password first")
	ErrMnemonicExists    = errors.New("a mnemonic is already stored")
	ErrMnemonicMissing   = errors.New("no mnemonic stored")
	ErrSignerUnsupported = errors.New("signer type not supported by this build")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountNotEmpty   = errors.New("account has balance or message history")
	ErrAliasTaken        = errors.New("alias already in use")
	ErrStorageNotEmpty   = errors.New("storage already holds a keystore")
	ErrInvalidMessageID  = errors.New("Message id must be a hex string of length 64")
	ErrMessageNotFound   = errors.New("Message not found")
	ErrAlreadyConfirmed  = errors.New("message is already confirmed")
	ErrCannotReattach    = errors.New("only outgoing value messages can be reattached")
	ErrZeroAmount        = errors.New("amount can't be zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNetworkMismatch   = errors.New("node belongs to another network")
)
