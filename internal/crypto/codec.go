// Package crypto seals the record file with a password.
//
// Keys are derived with Argon2id from the password and a random salt; data is
// sealed with XChaCha20-Poly1305 under a random nonce. Salt, nonce and KDF
// parameters travel in the envelope, so any envelope can be opened with only
// the password.
package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrIntegrity is returned when authentication fails, which in practice
	// means the password is wrong or the data was tampered with.
	ErrIntegrity = errors.New("crypto: message authentication failed")
	// ErrMalformed is returned for data that is not a jotter envelope.
	ErrMalformed = errors.New("crypto: malformed envelope")
	// ErrEmptyPassword is returned by New for an empty password.
	ErrEmptyPassword = errors.New("crypto: empty password")
)

const (
	version  = 1
	saltLen  = 16
	keyLen   = chacha20poly1305.KeySize
	nonceLen = chacha20poly1305.NonceSizeX

	// Upper bounds on envelope parameters, so a corrupted header cannot
	// make key derivation run for hours or exhaust memory.
	maxTime   = 64
	maxMemory = 1 << 20 // KiB
)

var magic = []byte("JOTR")

// header: magic | version | time u32 | memory u32 | threads u8 | salt | nonce
var headerLen = len(magic) + 1 + 4 + 4 + 1 + saltLen + nonceLen

// Params are the Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultParams follow the Argon2id recommendation from RFC 9106 (second choice).
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 4}

// Option configures a Codec.
type Option func(*Codec)

// WithParams overrides the KDF cost used for encryption.
func WithParams(p Params) Option {
	return func(c *Codec) { c.params = p }
}

// Codec encrypts and decrypts byte strings under one password.
type Codec struct {
	password []byte
	params   Params
}

// New returns a Codec for password.
func New(password string, opts ...Option) (*Codec, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	c := &Codec{password: []byte(password), params: DefaultParams}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encrypt seals plaintext into a new envelope.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: read salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: read nonce: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.deriveKey(salt, c.params))
	if err != nil {
		return nil, fmt.Errorf("crypto: init cipher: %w", err)
	}

	header := make([]byte, 0, headerLen)
	header = append(header, magic...)
	header = append(header, version)
	header = binary.BigEndian.AppendUint32(header, c.params.Time)
	header = binary.BigEndian.AppendUint32(header, c.params.Memory)
	header = append(header, c.params.Threads)
	header = append(header, salt...)
	header = append(header, nonce...)

	// The header is authenticated as additional data.
	return aead.Seal(header, nonce, plaintext, header), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (c *Codec) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < headerLen+chacha20poly1305.Overhead {
		return nil, ErrMalformed
	}
	if !bytes.Equal(ciphertext[:len(magic)], magic) || ciphertext[len(magic)] != version {
		return nil, ErrMalformed
	}

	off := len(magic) + 1
	p := Params{
		Time:    binary.BigEndian.Uint32(ciphertext[off:]),
		Memory:  binary.BigEndian.Uint32(ciphertext[off+4:]),
		Threads: ciphertext[off+8],
	}
	if p.Time == 0 || p.Time > maxTime || p.Threads == 0 ||
		p.Memory < 8*uint32(p.Threads) || p.Memory > maxMemory {
		return nil, ErrMalformed
	}
	off += 9
	salt := ciphertext[off : off+saltLen]
	off += saltLen
	nonce := ciphertext[off : off+nonceLen]

	aead, err := chacha20poly1305.NewX(c.deriveKey(salt, p))
	if err != nil {
		return nil, fmt.Errorf("crypto: init cipher: %w", err)
	}
	header := ciphertext[:headerLen]
	plaintext, err := aead.Open(nil, nonce, ciphertext[headerLen:], header)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

func (c *Codec) deriveKey(salt []byte, p Params) []byte {
	return argon2.IDKey(c.password, salt, p.Time, p.Memory, p.Threads, keyLen)
}
