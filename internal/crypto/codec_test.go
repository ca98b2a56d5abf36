package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var cheap = WithParams(Params{Time: 1, Memory: 64, Threads: 1})

func TestNew_EmptyPassword(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestRoundTrip(t *testing.T) {
	c, err := New("secret", cheap)
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("hello world"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "hello world")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(plain))
}

func TestRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		password := rapid.StringN(1, 40, -1).Draw(t, "password")
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		c, err := New(password, cheap)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		sealed, err := c.Encrypt(data)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		plain, err := c.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(plain, data) {
			t.Fatalf("round trip mismatch")
		}
	})
}

func TestWrongPassword_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		good := rapid.StringN(1, 20, -1).Draw(t, "good")
		bad := rapid.StringN(1, 20, -1).Filter(func(s string) bool { return s != good }).Draw(t, "bad")
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		enc, _ := New(good, cheap)
		dec, _ := New(bad, cheap)
		sealed, err := enc.Encrypt(data)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if _, err := dec.Decrypt(sealed); !errors.Is(err, ErrIntegrity) {
			t.Fatalf("Decrypt with wrong password: err = %v, want ErrIntegrity", err)
		}
	})
}

func TestEncrypt_FreshNonce(t *testing.T) {
	c, _ := New("secret", cheap)
	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "identical plaintexts must not produce identical envelopes")
}

func TestDecrypt_Malformed(t *testing.T) {
	c, _ := New("secret", cheap)

	_, err := c.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Decrypt(bytes.Repeat([]byte{'x'}, 200))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecrypt_TamperedHeader(t *testing.T) {
	c, _ := New("secret", cheap)
	sealed, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	// Flip one salt byte: key changes, authentication fails.
	sealed[len(magic)+10] ^= 0xff
	_, err = c.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrIntegrity)
}
