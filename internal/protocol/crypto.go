// crypto.go - Hashing, encryption, and randomness collaborators for the
// private-payment protocol.
//
// Nullifier/commitment preimages use keccak256 over ABI-style packed
// encodings; amount payloads use AES-256-GCM under a scrypt-derived key.

package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/scrypt"
)

// ErrDecryptionFailed distinguishes a wrong secret or corrupted ciphertext
// from internal bugs.
var ErrDecryptionFailed = errors.New("protocol: decryption failed")

// scrypt cost parameters for the amount-encryption key derivation.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// Domain-separation salt for the amount-encryption KDF.
var kdfSalt = []byte("private-payment-amount-v1")

// hashPacked is the keyed-hash collaborator: keccak256 over the tight
// concatenation of the packed arguments.
func hashPacked(chunks ...[]byte) []byte {
	return ethcrypto.Keccak256(chunks...)
}

// hexEncode renders a hash value as 0x-prefixed hex.
func hexEncode(b []byte) string {
	return hexutil.Encode(b)
}

// hexDecode accepts hex with or without the 0x prefix.
func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// packAddress encodes a hex address as its 20-byte form.
func packAddress(addr string) []byte {
	return common.HexToAddress(addr).Bytes()
}

// packUint256 encodes an unsigned integer as 32 big-endian bytes.
func packUint256(x *big.Int) []byte {
	return common.LeftPadBytes(x.Bytes(), 32)
}

// hashSecret maps a secret string into the field and hashes it with MiMC.
// This is the witness-side fingerprint of the secret, never revealed raw.
func hashSecret(secret string) []byte {
	var el fr.Element
	el.SetBytes([]byte(secret))
	buf := el.Bytes()
	h := mimc.NewMiMC()
	h.Write(buf[:])
	return h.Sum(nil)
}

// RandomBytes generates n random bytes using crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("protocol: randomness source failed: %w", err)
	}
	return b, nil
}

func deriveKey(secret string) ([]byte, error) {
	return scrypt.Key([]byte(secret), kdfSalt, scryptN, scryptR, scryptP, scryptKeyLen)
}

// EncryptAmount encrypts a plaintext amount string under a password-derived
// key. Output is hex(nonce || ciphertext || tag).
func EncryptAmount(plaintext, secret string) (string, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return "", fmt.Errorf("protocol: key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("protocol: cipher init failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("protocol: cipher init failed: %w", err)
	}
	nonce, err := RandomBytes(gcm.NonceSize())
	if err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// DecryptAmount reverses EncryptAmount. A wrong secret or any corruption of
// the ciphertext fails with ErrDecryptionFailed.
func DecryptAmount(encHex, secret string) (string, error) {
	raw, err := hex.DecodeString(encHex)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", ErrDecryptionFailed)
	}
	key, err := deriveKey(secret)
	if err != nil {
		return "", fmt.Errorf("protocol: key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("protocol: cipher init failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("protocol: cipher init failed: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short: %w", ErrDecryptionFailed)
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("wrong secret or corrupted data: %w", ErrDecryptionFailed)
	}
	return string(plain), nil
}
