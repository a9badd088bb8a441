package walletgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits selects a 24-word mnemonic.
const MnemonicEntropyBits = 256

// ErrInvalidMnemonic is returned for phrases that fail the BIP-39 checksum or word list.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// GenerateMnemonic returns a fresh random 24-word mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// NormalizeMnemonic collapses whitespace and lowercases the phrase.
func NormalizeMnemonic(mnemonic string) string {
	return strings.ToLower(strings.Join(strings.Fields(mnemonic), " "))
}

// ValidateMnemonic checks word count, word list membership and checksum.
func ValidateMnemonic(mnemonic string) error {
	mnemonic = NormalizeMnemonic(mnemonic)
	if mnemonic == "" {
		return fmt.Errorf("%w: empty phrase", ErrInvalidMnemonic)
	}

	switch n := len(strings.Split(mnemonic, " ")); n {
	case 12, 15, 18, 21, 24:
	default:
		return fmt.Errorf("%w: %d words, want 12, 15, 18, 21 or 24", ErrInvalidMnemonic, n)
	}

	if !bip39.IsMnemonicValid(mnemonic) {
		return fmt.Errorf("%w: checksum or word list mismatch", ErrInvalidMnemonic)
	}

	return nil
}
