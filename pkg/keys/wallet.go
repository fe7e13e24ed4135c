// Package keys loads the wallet signing key and encrypts it for storage at rest.
//
// An encrypted key is a base64 string holding nonce || ciphertext || tag, sealed
// with AES-256-GCM under a key derived from the operator's master key.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

const (
	masterKeySize = 32
	walletKeySize = 32
	walletKeyInfo = "crowdfund-wallet-key"
)

// ErrNoWalletKey is returned when neither a plain nor an encrypted key is configured.
var ErrNoWalletKey = errors.New("no wallet key configured")

// Source describes where the wallet key comes from.
type Source struct {
	PrivateKey          string
	EncryptedPrivateKey string
	MasterKey           string // base64
}

// LoadWallet returns the signing key described by src. A plain key wins over
// an encrypted one.
func LoadWallet(src Source) (*ecdsa.PrivateKey, error) {
	if src.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(src.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return key, nil
	}
	if src.EncryptedPrivateKey == "" {
		return nil, ErrNoWalletKey
	}

	master, err := MasterKeyFromBase64(src.MasterKey)
	if err != nil {
		return nil, err
	}
	raw, err := DecryptPrivateKey(src.EncryptedPrivateKey, master)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create private key: %w", err)
	}
	return key, nil
}

// EncryptPrivateKey seals a 32 byte secp256k1 key under masterKey.
func EncryptPrivateKey(privateKey, masterKey []byte) (string, error) {
	if len(privateKey) != walletKeySize {
		return "", fmt.Errorf("private key must be %d bytes", walletKeySize)
	}
	gcm, err := newGCM(masterKey)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, privateKey, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptPrivateKey opens a key sealed by EncryptPrivateKey.
func DecryptPrivateKey(encrypted string, masterKey []byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted key: %w", err)
	}
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	plain, err := gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	if len(plain) != walletKeySize {
		return nil, fmt.Errorf("decrypted key has wrong size: got %d, want %d", len(plain), walletKeySize)
	}
	return plain, nil
}

// newGCM derives the AES key from the master key with HKDF so the master key
// is never used directly as a cipher key.
func newGCM(masterKey []byte) (cipher.AEAD, error) {
	if len(masterKey) != masterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes", masterKeySize)
	}
	aesKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(walletKeyInfo)), aesKey); err != nil {
		return nil, fmt.Errorf("failed to derive cipher key: %w", err)
	}
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// GenerateMasterKey returns a new random master key.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, masterKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// MasterKeyFromBase64 decodes a base64-encoded master key
func MasterKeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	if len(key) != masterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", masterKeySize, len(key))
	}
	return key, nil
}

// MasterKeyToBase64 encodes a master key as base64 for storage
func MasterKeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
