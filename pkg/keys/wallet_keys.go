// Package keys provides generation and encryption of custodial wallet
// signing keys. Each campaign wallet holds a secp256k1 key encrypted at rest
// with AES-256-GCM under a wallet-scoped key derived from the master key;
// plaintext keys only ever exist inside the relay's submission path.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

// WalletKey is a custodial wallet signing keypair
type WalletKey struct {
	Address    string
	PrivateKey []byte // 32-byte secp256k1 private key
}

// GenerateWalletKey creates a fresh secp256k1 keypair for a campaign wallet
func GenerateWalletKey() (*WalletKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 keypair: %w", err)
	}
	return &WalletKey{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}

// ECDSA converts the raw key bytes into a signer-usable private key
func (k *WalletKey) ECDSA() (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.ToECDSA(k.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}
	return privateKey, nil
}

// ParseMasterKey decodes the hex-encoded 32-byte master key from configuration
func ParseMasterKey(hexKey string) ([]byte, error) {
	masterKey, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes (AES-256), got %d", len(masterKey))
	}
	return masterKey, nil
}

// deriveWalletKey derives a wallet-scoped AES key from the master key using
// HKDF with SHA-256, keyed by the wallet address
func deriveWalletKey(masterKey []byte, walletAddress string) ([]byte, error) {
	info := []byte("campaign-wallet-" + walletAddress)
	hkdfReader := hkdf.New(sha256.New, masterKey, nil, info)

	derived := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, derived); err != nil {
		return nil, fmt.Errorf("failed to derive wallet key: %w", err)
	}
	return derived, nil
}

// EncryptPrivateKey encrypts a wallet private key using AES-256-GCM.
// Returns a base64-encoded string containing: nonce || ciphertext || tag
func EncryptPrivateKey(privateKey, masterKey []byte, walletAddress string) (string, error) {
	if len(masterKey) != 32 {
		return "", fmt.Errorf("master key must be 32 bytes (AES-256)")
	}
	if len(privateKey) != 32 {
		return "", fmt.Errorf("private key must be 32 bytes (secp256k1)")
	}

	aesKey, err := deriveWalletKey(masterKey, walletAddress)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, privateKey, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptPrivateKey decrypts an encrypted wallet private key.
// The encrypted string is base64-encoded containing: nonce || ciphertext || tag
func DecryptPrivateKey(encrypted string, masterKey []byte, walletAddress string) ([]byte, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes (AES-256)")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	aesKey, err := deriveWalletKey(masterKey, walletAddress)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	if len(plaintext) != 32 {
		return nil, fmt.Errorf("decrypted key has wrong size: got %d, want 32", len(plaintext))
	}
	return plaintext, nil
}
