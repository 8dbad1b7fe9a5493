// Package vault seals arbitrary payloads under a passphrase-derived AES-256-GCM key.
//
// Sealed layout:
//
//	magic "MVLT" | version u8 | iterations u32 | salt[32] | nonce[12] | ciphertext+tag
//
// Everything before the ciphertext is authenticated as additional data.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Version is the current sealed format version.
	Version byte = 1
	// KeySize is the AES-256 key length.
	KeySize = 32
	// SaltSize is the PBKDF2 salt length.
	SaltSize = 32
	// NonceSize is the GCM nonce length.
	NonceSize = 12
	// DefaultIterations is the PBKDF2-SHA-256 work factor for new vaults.
	DefaultIterations = 600000

	headerSize = 4 + 1 + 4 + SaltSize + NonceSize
)

var magic = [4]byte{'M', 'V', 'L', 'T'}

var (
	// ErrDecrypt covers a wrong passphrase and a damaged payload alike.
	ErrDecrypt = errors.New("vault: unable to decrypt")
	// ErrEmptyPassphrase is returned when deriving from an empty passphrase.
	ErrEmptyPassphrase = errors.New("vault: passphrase required")
)

// ZeroBytes overwrites b with zeros.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Key is a derived sealing key together with the parameters it was derived with.
type Key struct {
	key        []byte
	salt       []byte
	iterations uint32
}

// NewKey derives a key from passphrase under a fresh random salt.
func NewKey(passphrase string, iterations int) (*Key, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return derive(passphrase, salt, iterations)
}

// KeyFor derives the key that sealed data, using the salt and work factor recorded in its header.
func KeyFor(passphrase string, data []byte) (*Key, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	return derive(passphrase, h.salt, int(h.iterations))
}

func derive(passphrase string, salt []byte, iterations int) (*Key, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	s := make([]byte, len(salt))
	copy(s, salt)
	return &Key{
		key:        pbkdf2.Key([]byte(passphrase), s, iterations, KeySize, sha256.New),
		salt:       s,
		iterations: uint32(iterations),
	}, nil
}

// Iterations returns the PBKDF2 work factor of the key.
func (k *Key) Iterations() int {
	return int(k.iterations)
}

// Equal compares two keys in constant time.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil || len(k.key) == 0 || len(other.key) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(k.key, other.key) == 1
}

// Destroy zeroes the key material. The key is unusable afterwards.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	ZeroBytes(k.key)
	k.key = nil
}

// Seal encrypts plaintext under a fresh nonce.
func (k *Key) Seal(plaintext []byte) ([]byte, error) {
	aead, err := k.aead()
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerSize, headerSize+len(plaintext)+aead.Overhead())
	copy(out[0:4], magic[:])
	out[4] = Version
	binary.BigEndian.PutUint32(out[5:9], k.iterations)
	copy(out[9:9+SaltSize], k.salt)
	nonce := out[9+SaltSize : headerSize]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(out, nonce, plaintext, out[:headerSize]), nil
}

// Open authenticates and decrypts data sealed by this key.
func (k *Key) Open(data []byte) ([]byte, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(h.salt, k.salt) != 1 || h.iterations != k.iterations {
		return nil, ErrDecrypt
	}
	aead, err := k.aead()
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, h.nonce, data[headerSize:], data[:headerSize])
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func (k *Key) aead() (cipher.AEAD, error) {
	if k == nil || len(k.key) != KeySize {
		return nil, errors.New("vault: key destroyed")
	}
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

type header struct {
	iterations uint32
	salt       []byte
	nonce      []byte
}

func parseHeader(data []byte) (header, error) {
	if len(data) < headerSize+16 {
		return header{}, ErrDecrypt
	}
	if [4]byte(data[0:4]) != magic || data[4] != Version {
		return header{}, ErrDecrypt
	}
	h := header{
		iterations: binary.BigEndian.Uint32(data[5:9]),
		salt:       data[9 : 9+SaltSize],
		nonce:      data[9+SaltSize : headerSize],
	}
	if h.iterations == 0 {
		return header{}, ErrDecrypt
	}
	return h, nil
}

// Unseal derives the key recorded in data's header and decrypts it.
// The caller owns the returned key and should Destroy it when done.
func Unseal(passphrase string, data []byte) ([]byte, *Key, error) {
	key, err := KeyFor(passphrase, data)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := key.Open(data)
	if err != nil {
		key.Destroy()
		return nil, nil, err
	}
	return plaintext, key, nil
}
