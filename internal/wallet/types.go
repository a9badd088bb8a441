// Package wallet is the wallet engine: an account manager over an encrypted
// keystore, a badger account store and a set of ledger nodes.
package wallet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MessageIDLength is the number of hex characters of a message id.
const MessageIDLength = 64

// MessageID identifies a ledger message.
type MessageID [32]byte

// ParseMessageID parses a 64-character hex string.
func ParseMessageID(s string) (MessageID, error) {
	var id MessageID
	if len(s) != MessageIDLength {
		return id, ErrInvalidMessageID
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, ErrInvalidMessageID
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex form.
func (id MessageID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id MessageID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *MessageID) UnmarshalText(text []byte) error {
	parsed, err := ParseMessageID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Input is an address spent by an outgoing message.
type Input struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// Message is a ledger transaction attempt recorded by an account.
type Message struct {
	ID          MessageID       `json:"id"`
	Value       *uint64         `json:"value,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Broadcasted bool            `json:"broadcasted"`
	Confirmed   *bool           `json:"confirmed,omitempty"`
	Incoming    bool            `json:"incoming"`
	Address     string          `json:"address,omitempty"`
	Inputs      []Input         `json:"inputs,omitempty"`
	Parents     []string        `json:"parents,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Pending reports whether the message is not known to be confirmed.
func (m Message) Pending() bool {
	return m.Confirmed == nil || !*m.Confirmed
}

// MessageType filters ListMessages.
type MessageType int

const (
	MessageTypeAll MessageType = iota
	MessageTypeReceived
	MessageTypeSent
	MessageTypeFailed
	MessageTypeUnconfirmed
	MessageTypeValue
)

// ParseMessageType maps the user-facing filter names.
func ParseMessageType(s string) (MessageType, error) {
	switch s {
	case "", "all":
		return MessageTypeAll, nil
	case "received":
		return MessageTypeReceived, nil
	case "sent":
		return MessageTypeSent, nil
	case "failed":
		return MessageTypeFailed, nil
	case "unconfirmed":
		return MessageTypeUnconfirmed, nil
	case "value":
		return MessageTypeValue, nil
	default:
		return MessageTypeAll, fmt.Errorf("unknown message type %q: must be one of received, sent, failed, unconfirmed, value", s)
	}
}

// Matches reports whether m belongs to the filter.
func (t MessageType) Matches(m Message) bool {
	switch t {
	case MessageTypeReceived:
		return m.Incoming
	case MessageTypeSent:
		return !m.Incoming
	case MessageTypeFailed:
		return !m.Broadcasted
	case MessageTypeUnconfirmed:
		return m.Pending()
	case MessageTypeValue:
		return m.Value != nil && *m.Value > 0
	default:
		return true
	}
}

// Address is a receiving endpoint owned by an account.
type Address struct {
	Bech32   string `json:"address"`
	Balance  uint64 `json:"balance"`
	KeyIndex uint32 `json:"keyIndex"`
	Internal bool   `json:"internal"`
}

// Balance summarises an account's funds.
type Balance struct {
	Total     uint64
	Available uint64
	Incoming  uint64
	Outgoing  uint64
}

// String renders the balance record in one line.
func (b Balance) String() string {
	return fmt.Sprintf("AccountBalance { total: %d, available: %d, incoming: %d, outgoing: %d }",
		b.Total, b.Available, b.Incoming, b.Outgoing)
}

// SignerType selects the key-custody backend of an account.
type SignerType string

const (
	SignerKeystore          SignerType = "default-keystore"
	SignerHardwareSimulator SignerType = "hardware-simulator"
	SignerHardwareDevice    SignerType = "hardware-device"
)

// ParseSignerType accepts the enumerated signer names.
func ParseSignerType(s string) (SignerType, error) {
	switch SignerType(s) {
	case SignerKeystore, SignerHardwareSimulator, SignerHardwareDevice:
		return SignerType(s), nil
	default:
		return "", fmt.Errorf("unknown signer type %q: must be one of %s, %s, %s",
			s, SignerKeystore, SignerHardwareSimulator, SignerHardwareDevice)
	}
}

// ClientOptions configures how an account reaches the ledger.
type ClientOptions struct {
	Nodes    []string `json:"nodes"`
	LocalPoW bool     `json:"localPow"`
}

// NewClientOptions builds options for the given nodes with local proof of work.
func NewClientOptions(nodes ...string) ClientOptions {
	return ClientOptions{Nodes: append([]string(nil), nodes...), LocalPoW: true}
}

// String lists the nodes.
func (o ClientOptions) String() string {
	return strings.Join(o.Nodes, ",")
}

// Transfer describes a single-output value transfer.
type Transfer struct {
	Address string
	Amount  uint64
}

// NewTransfer builds a transfer of amount to a bech32 address.
func NewTransfer(address string, amount uint64) Transfer {
	return Transfer{Address: address, Amount: amount}
}

// SyncResult lists what a synchronization surfaced.
type SyncResult struct {
	AccountID string
	Addresses []Address
	Messages  []Message
}

// BalanceChange is the delta observed on one address.
type BalanceChange struct {
	Spent    uint64
	Received uint64
}

// BalanceChangeEvent is published when sync sees an address balance move.
type BalanceChangeEvent struct {
	AccountID     string
	Address       string
	BalanceChange BalanceChange
}

// TransactionEvent is published for new and reattached messages.
type TransactionEvent struct {
	AccountID string
	Message   Message
}

// ConfirmationChangeEvent is published when a message's inclusion state changes.
type ConfirmationChangeEvent struct {
	AccountID string
	Message   Message
	Confirmed bool
}
