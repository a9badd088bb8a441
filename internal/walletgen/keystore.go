package walletgen

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

// ErrDecrypt is returned when a sealed box cannot be opened with the given password.
var ErrDecrypt = errors.New("incorrect password or corrupted keystore")

// SealedBox is a password-encrypted payload laid out like an Ethereum keystore v3 file.
// The wallet keystore (sealed mnemonic) and backups both use it.
type SealedBox struct {
	Version int      `json:"version"`
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Crypto  CryptoV3 `json:"crypto"`
}

// CryptoV3 holds the encrypted payload
type CryptoV3 struct {
	Cipher       string         `json:"cipher"`
	CipherText   string         `json:"ciphertext"`
	CipherParams CipherParamsV3 `json:"cipherparams"`
	KDF          string         `json:"kdf"`
	KDFParams    ScryptParamsV3 `json:"kdfparams"`
	MAC          string         `json:"mac"`
}

// CipherParamsV3 holds the AES-128-CTR IV
type CipherParamsV3 struct {
	IV string `json:"iv"`
}

// ScryptParamsV3 holds scrypt KDF parameters
type ScryptParamsV3 struct {
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	DKLen int    `json:"dklen"`
	Salt  string `json:"salt"`
}

// Default scrypt parameters (matches go-ethereum defaults)
const (
	ScryptN     = 262144 // 2^18
	ScryptR     = 8
	ScryptP     = 1
	ScryptDKLen = 32
)

// Light scrypt parameters (for testing or low-memory systems)
const (
	LightScryptN = 4096 // 2^12
	LightScryptR = 8
	LightScryptP = 6
)

// ScryptParams selects the cost of the key derivation.
type ScryptParams struct {
	N, R, P int
}

var (
	// StandardScrypt is used for files written to disk.
	StandardScrypt = ScryptParams{N: ScryptN, R: ScryptR, P: ScryptP}
	// LightScrypt trades strength for speed.
	LightScrypt = ScryptParams{N: LightScryptN, R: LightScryptR, P: LightScryptP}
)

// SealWithParams encrypts plaintext with AES-128-CTR under a scrypt-derived key.
// The MAC is keccak256(derivedKey[16:32] || ciphertext).
func SealWithParams(kind string, plaintext []byte, password string, params ScryptParams) (*SealedBox, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, ScryptDKLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	block, err := aes.NewCipher(derivedKey[:16])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, plaintext)

	mac := crypto.Keccak256(derivedKey[16:32], ciphertext)

	return &SealedBox{
		Version: 3,
		ID:      uuid.NewString(),
		Kind:    kind,
		Crypto: CryptoV3{
			Cipher:     "aes-128-ctr",
			CipherText: hex.EncodeToString(ciphertext),
			CipherParams: CipherParamsV3{
				IV: hex.EncodeToString(iv),
			},
			KDF: "scrypt",
			KDFParams: ScryptParamsV3{
				N:     params.N,
				R:     params.R,
				P:     params.P,
				DKLen: ScryptDKLen,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac),
		},
	}, nil
}

// Open decrypts a sealed box. A wrong password yields ErrDecrypt.
// WARNING: the returned bytes are secret material.
func Open(box *SealedBox, password string) ([]byte, error) {
	if box.Crypto.KDF != "scrypt" {
		return nil, errors.New("unsupported KDF: only scrypt is supported")
	}
	if box.Crypto.Cipher != "aes-128-ctr" {
		return nil, errors.New("unsupported cipher: only aes-128-ctr is supported")
	}

	salt, err := hex.DecodeString(box.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	ciphertext, err := hex.DecodeString(box.Crypto.CipherText)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}
	iv, err := hex.DecodeString(box.Crypto.CipherParams.IV)
	if err != nil {
		return nil, fmt.Errorf("invalid IV: %w", err)
	}
	storedMAC, err := hex.DecodeString(box.Crypto.MAC)
	if err != nil {
		return nil, fmt.Errorf("invalid MAC: %w", err)
	}

	kdf := box.Crypto.KDFParams
	derivedKey, err := scrypt.Key([]byte(password), salt, kdf.N, kdf.R, kdf.P, kdf.DKLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	calculatedMAC := crypto.Keccak256(derivedKey[16:32], ciphertext)
	if subtle.ConstantTimeCompare(storedMAC, calculatedMAC) != 1 {
		return nil, ErrDecrypt
	}

	block, err := aes.NewCipher(derivedKey[:16])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}

// SaveSealedBox writes a sealed box to path with owner-only permissions.
func SaveSealedBox(box *SealedBox, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(box, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keystore: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}

	return nil
}

// LoadSealedBox reads a sealed box from path without decrypting it.
func LoadSealedBox(path string) (*SealedBox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var box SealedBox
	if err := json.Unmarshal(data, &box); err != nil {
		return nil, fmt.Errorf("failed to parse keystore: %w", err)
	}

	if box.Version != 3 || box.Crypto.CipherText == "" {
		return nil, fmt.Errorf("invalid keystore format")
	}

	return &box, nil
}
