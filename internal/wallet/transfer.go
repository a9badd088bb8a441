package wallet

import (
	"context"
	"encoding/binary"
	"errors"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/bits"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/monolythium/wallet-cli/internal/node"
	"github.com/monolythium/wallet-cli/internal/walletgen"
)

const (
	// LocalPoWDifficulty is the number of leading zero bits a locally mined
	// message hash must have when the node does not announce a minimum.
	LocalPoWDifficulty = 12
	// MaxPoWDifficulty caps the minimum announced by a node.
	MaxPoWDifficulty = 24

	maxParents = 8
)

// Output is a destination of a transaction.
type Output struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type transactionEssence struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

type unlockBlock struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type transactionPayload struct {
	Type    string             `json:"type"`
	Essence transactionEssence `json:"essence"`
	Unlocks []unlockBlock      `json:"unlocks"`
}

// Transfer sends t.Amount to t.Address. Inputs are spent whole and any
// remainder goes to a fresh change address. A message that was signed but
// could not be broadcast is kept as failed.
func (a *AccountHandle) Transfer(ctx context.Context, t Transfer) (Message, error) {
	if t.Amount == 0 {
		return Message{}, ErrZeroAmount
	}
	if _, err := walletgen.ParseAddress(t.Address, walletgen.Bech32HRP); err != nil {
		return Message{}, err
	}
	mnemonic, err := a.manager.secret()
	if err != nil {
		return Message{}, err
	}
	client, err := a.manager.client(a.ClientOptions())
	if err != nil {
		return Message{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	inputs, total, err := a.selectInputsLocked(t.Amount)
	if err != nil {
		return Message{}, err
	}

	essence := transactionEssence{
		Inputs:  inputs,
		Outputs: []Output{{Address: t.Address, Amount: t.Amount}},
	}
	if remainder := total - t.Amount; remainder > 0 {
		change, err := deriveAddress(mnemonic, a.doc.Index, true, a.nextKeyIndexLocked(true))
		if err != nil {
			return Message{}, err
		}
		a.doc.Addresses = append(a.doc.Addresses, change)
		essence.Outputs = append(essence.Outputs, Output{Address: change.Bech32, Amount: remainder})
	}

	payload, err := a.signLocked(mnemonic, essence)
	if err != nil {
		return Message{}, err
	}

	msg, submitErr := a.submitLocked(ctx, client, payload, nil)
	amount := t.Amount
	msg.Value = &amount
	msg.Address = t.Address
	msg.Inputs = inputs
	a.doc.Messages = append(a.doc.Messages, msg)

	if err := a.manager.persist(a.doc); err != nil {
		return Message{}, fmt.Errorf("failed to save account: %w", err)
	}
	if submitErr != nil {
		return Message{}, submitErr
	}

	a.manager.logger.Info("transfer sent", "account", a.doc.ID, "message", msg.ID.String(), "amount", amount)
	return msg, nil
}

// selectInputsLocked picks addresses with the largest available balance
// first until amount is covered.
func (a *AccountHandle) selectInputsLocked(amount uint64) ([]Input, uint64, error) {
	reserved := a.reservedLocked()
	candidates := make([]Input, 0, len(a.doc.Addresses))
	for _, addr := range a.doc.Addresses {
		if avail := saturatingSub(addr.Balance, reserved[addr.Bech32]); avail > 0 {
			candidates = append(candidates, Input{Address: addr.Bech32, Amount: avail})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Amount > candidates[j].Amount })

	var inputs []Input
	var total uint64
	for _, c := range candidates {
		if total >= amount {
			break
		}
		inputs = append(inputs, c)
		total += c.Amount
	}
	if total < amount {
		return nil, 0, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientFunds, total, amount)
	}
	return inputs, total, nil
}

func (a *AccountHandle) signLocked(mnemonic string, essence transactionEssence) (json.RawMessage, error) {
	essenceBytes, err := json.Marshal(essence)
	if err != nil {
		return nil, fmt.Errorf("failed to encode essence: %w", err)
	}
	digest := crypto.Keccak256(essenceBytes)

	byAddress := make(map[string]Address, len(a.doc.Addresses))
	for _, addr := range a.doc.Addresses {
		byAddress[addr.Bech32] = addr
	}

	unlocks := make([]unlockBlock, 0, len(essence.Inputs))
	for _, in := range essence.Inputs {
		addr, ok := byAddress[in.Address]
		if !ok {
			return nil, fmt.Errorf("input %s does not belong to the account", in.Address)
		}
		kp, err := walletgen.DeriveKeypair(mnemonic, a.doc.Index, addr.Internal, addr.KeyIndex)
		if err != nil {
			return nil, err
		}
		sig, err := kp.Sign(digest)
		if err != nil {
			return nil, err
		}
		unlocks = append(unlocks, unlockBlock{
			PublicKey: kp.PublicKeyHex(),
			Signature: hex.EncodeToString(sig),
		})
	}

	payload, err := json.Marshal(transactionPayload{Type: "transaction", Essence: essence, Unlocks: unlocks})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return payload, nil
}

// submitLocked attaches payload to fresh tips, mines or delegates the nonce and
// posts the message. When the node could not be reached the returned message
// has Broadcasted=false and a random local id, so repeated failures of the
// same payload stay distinct.
func (a *AccountHandle) submitLocked(ctx context.Context, client NodeClient, payload json.RawMessage, pinned []string) (Message, error) {
	msg := Message{
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	fail := func(err error) (Message, error) {
		msg.ID = localMessageID(pinned, payload)
		msg.Broadcasted = false
		return msg, err
	}

	tips, err := client.Tips(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to get tips: %w", err))
	}
	parents := append(append([]string(nil), pinned...), tips...)
	if len(parents) > maxParents {
		parents = parents[:maxParents]
	}
	msg.Parents = parents

	req := &node.SubmitRequest{Parents: parents, Payload: payload}
	if a.doc.ClientOptions.LocalPoW {
		difficulty, err := powDifficulty(ctx, client)
		if err != nil {
			return fail(err)
		}
		nonce, err := computeNonce(ctx, parents, payload, difficulty)
		if err != nil {
			return fail(err)
		}
		req.Nonce = nonce
		msg.ID = computeMessageID(parents, payload, nonce)
	} else {
		req.RemotePoW = true
		msg.ID = computeMessageID(parents, payload, 0)
	}

	raw, err := client.SubmitMessage(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("failed to submit message: %w", err))
	}
	id, err := ParseMessageID(raw)
	if err != nil {
		return fail(fmt.Errorf("node returned an invalid message id %q", raw))
	}
	msg.ID = id
	msg.Broadcasted = true
	return msg, nil
}

// powDifficulty returns the node's minimum PoW score, falling back to
// LocalPoWDifficulty when the node announces none.
func powDifficulty(ctx context.Context, client NodeClient) (int, error) {
	info, err := client.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get node info: %w", err)
	}
	switch d := int(info.MinPoWScore); {
	case d == 0:
		return LocalPoWDifficulty, nil
	case d > MaxPoWDifficulty:
		return MaxPoWDifficulty, nil
	default:
		return d, nil
	}
}

// localMessageID names a message the ledger never accepted.
func localMessageID(parents []string, payload []byte) MessageID {
	var id MessageID
	salt := uuid.New()
	copy(id[:], crypto.Keccak256(messagePreimage(parents, payload), salt[:]))
	return id
}

func messagePreimage(parents []string, payload []byte) []byte {
	return crypto.Keccak256([]byte(strings.Join(parents, "")), payload)
}

func computeMessageID(parents []string, payload []byte, nonce uint64) MessageID {
	var id MessageID
	buf := make([]byte, 40)
	copy(buf, messagePreimage(parents, payload))
	binary.LittleEndian.PutUint64(buf[32:], nonce)
	copy(id[:], crypto.Keccak256(buf))
	return id
}

// computeNonce searches for a nonce whose message hash has at least
// difficulty leading zero bits.
func computeNonce(ctx context.Context, parents []string, payload []byte, difficulty int) (uint64, error) {
	buf := make([]byte, 40)
	copy(buf, messagePreimage(parents, payload))
	for nonce := uint64(0); ; nonce++ {
		if nonce%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, fmt.Errorf("proof of work interrupted: %w", err)
			}
		}
		binary.LittleEndian.PutUint64(buf[32:], nonce)
		if leadingZeroBits(crypto.Keccak256(buf)) >= difficulty {
			return nonce, nil
		}
	}
}

func leadingZeroBits(h []byte) int {
	n := 0
	for _, b := range h {
		if b == 0 {
			n += 8
			continue
		}
		return n + bits.LeadingZeros8(b)
	}
	return n
}

// Reattach posts the payload of an unconfirmed outgoing message again on new tips.
func (a *AccountHandle) Reattach(ctx context.Context, id MessageID) (Message, error) {
	client, err := a.manager.client(a.ClientOptions())
	if err != nil {
		return Message{}, err
	}
	a.mu.Lock()
	msg, err := a.reattachLocked(ctx, client, id)
	a.mu.Unlock()
	if err != nil {
		return Message{}, err
	}
	a.manager.emitReattachment(TransactionEvent{AccountID: a.ID(), Message: msg})
	return msg, nil
}

func (a *AccountHandle) reattachLocked(ctx context.Context, client NodeClient, id MessageID) (Message, error) {
	idx := a.messageIndexLocked(id)
	if idx < 0 {
		return Message{}, ErrMessageNotFound
	}
	orig := a.doc.Messages[idx]
	if !orig.Pending() {
		return Message{}, ErrAlreadyConfirmed
	}
	if orig.Incoming || len(orig.Payload) == 0 {
		return Message{}, ErrCannotReattach
	}

	msg, err := a.submitLocked(ctx, client, orig.Payload, nil)
	if err != nil {
		return Message{}, err
	}
	msg.Value = orig.Value
	msg.Address = orig.Address
	msg.Inputs = orig.Inputs
	a.doc.Messages = append(a.doc.Messages, msg)
	if err := a.manager.persist(a.doc); err != nil {
		return Message{}, fmt.Errorf("failed to save account: %w", err)
	}
	return msg, nil
}

// Promote posts an empty message referencing id to raise its chance of confirmation.
func (a *AccountHandle) Promote(ctx context.Context, id MessageID) (Message, error) {
	client, err := a.manager.client(a.ClientOptions())
	if err != nil {
		return Message{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.promoteLocked(ctx, client, id)
}

func (a *AccountHandle) promoteLocked(ctx context.Context, client NodeClient, id MessageID) (Message, error) {
	idx := a.messageIndexLocked(id)
	if idx < 0 {
		return Message{}, ErrMessageNotFound
	}
	if !a.doc.Messages[idx].Pending() {
		return Message{}, ErrAlreadyConfirmed
	}

	msg, err := a.submitLocked(ctx, client, nil, []string{id.String()})
	if err != nil {
		return Message{}, err
	}
	a.doc.Messages = append(a.doc.Messages, msg)
	if err := a.manager.persist(a.doc); err != nil {
		return Message{}, fmt.Errorf("failed to save account: %w", err)
	}
	return msg, nil
}

// Retry promotes the message when the node says promotion helps and
// reattaches it otherwise. Messages the node does not know, including those
// that were never broadcast, are reattached.
func (a *AccountHandle) Retry(ctx context.Context, id MessageID) (Message, error) {
	client, err := a.manager.client(a.ClientOptions())
	if err != nil {
		return Message{}, err
	}

	a.mu.Lock()
	idx := a.messageIndexLocked(id)
	if idx < 0 {
		a.mu.Unlock()
		return Message{}, ErrMessageNotFound
	}

	meta := &node.MessageMetadata{}
	if a.doc.Messages[idx].Broadcasted {
		meta, err = client.MessageMetadata(ctx, id.String())
		switch {
		case errors.Is(err, node.ErrNotFound):
			meta = &node.MessageMetadata{}
		case err != nil:
			a.mu.Unlock()
			return Message{}, fmt.Errorf("failed to get metadata of %s: %w", id, err)
		}
	}
	if meta.Confirmed != nil && *meta.Confirmed {
		confirmed := true
		a.doc.Messages[idx].Confirmed = &confirmed
		err := a.manager.persist(a.doc)
		a.mu.Unlock()
		if err != nil {
			return Message{}, err
		}
		return Message{}, ErrAlreadyConfirmed
	}

	if !meta.ShouldPromote {
		msg, err := a.reattachLocked(ctx, client, id)
		a.mu.Unlock()
		if err != nil {
			return Message{}, err
		}
		a.manager.emitReattachment(TransactionEvent{AccountID: a.ID(), Message: msg})
		return msg, nil
	}

	msg, err := a.promoteLocked(ctx, client, id)
	a.mu.Unlock()
	return msg, err
}
