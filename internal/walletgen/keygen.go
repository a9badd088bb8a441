// Package walletgen provides the key material of the wallet: mnemonics, HD key
// derivation, bech32 addresses and password-sealed keystore files.
// Uses go-ethereum's crypto library for secp256k1 keys and hashing.
package walletgen

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// CoinType is the SLIP-44 coin type used in derivation paths.
const CoinType = 4218

// Keypair holds a derived private/public key pair.
// The private key is kept in memory and NEVER logged.
type Keypair struct {
	privateKey *ecdsa.PrivateKey
}

// DeriveKeypair derives the key at m/44'/4218'/account'/change/index from a mnemonic.
// change is 1 for internal (remainder) addresses and 0 for public ones.
func DeriveKeypair(mnemonic string, account uint32, internal bool, index uint32) (*Keypair, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("failed to derive seed: %w", err)
	}

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	var change uint32
	if internal {
		change = 1
	}

	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + CoinType,
		hdkeychain.HardenedKeyStart + account,
		change,
		index,
	}

	key := master
	for _, step := range path {
		key, err = key.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to extract private key: %w", err)
	}

	return &Keypair{privateKey: priv.ToECDSA()}, nil
}

// AddressBytes returns the 20-byte account address of the public key.
func (k *Keypair) AddressBytes() []byte {
	return crypto.PubkeyToAddress(k.privateKey.PublicKey).Bytes()
}

// Bech32Address returns the address encoded with the given human-readable part.
func (k *Keypair) Bech32Address(hrp string) (string, error) {
	return EncodeAddress(hrp, k.AddressBytes())
}

// PublicKeyHex returns the compressed public key as hex.
func (k *Keypair) PublicKeyHex() string {
	return fmt.Sprintf("%x", crypto.CompressPubkey(&k.privateKey.PublicKey))
}

// Sign produces a recoverable secp256k1 signature over a 32-byte digest.
func (k *Keypair) Sign(digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(digest, k.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// VerifySignature reports whether sig over digest was produced by the key behind address.
func VerifySignature(address, digest, sig []byte) bool {
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub).Bytes()
	if len(recovered) != len(address) {
		return false
	}
	for i := range recovered {
		if recovered[i] != address[i] {
			return false
		}
	}
	return true
}
