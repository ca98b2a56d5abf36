package ingress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFrame_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payloads := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 1, 512), 1, 8).Draw(t, "payloads")

		var buf bytes.Buffer
		for _, p := range payloads {
			if err := WriteFrame(&buf, p); err != nil {
				t.Fatal(err)
			}
		}
		for i, want := range payloads {
			got, err := ReadFrame(&buf, 0)
			if err != nil {
				t.Fatalf("frame %d: %v", i, err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("frame %d: got %x want %x", i, got, want)
			}
		}
		if _, err := ReadFrame(&buf, 0); !errors.Is(err, io.EOF) {
			t.Fatalf("expected clean EOF, got %v", err)
		}
	})
}

func TestWriteFrame_Prefix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	assert.Equal(t, "000000005hello", buf.String())
}

func TestWriteFrame_Empty(t *testing.T) {
	assert.ErrorIs(t, WriteFrame(io.Discard, nil), ErrBadLength)
}

func TestReadFrame_Faults(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  error
	}{
		{"short prefix", "0000", 0, ErrBadPrefix},
		{"non digit", "00000x005hello", 0, ErrBadPrefix},
		{"signed", "-00000005hello", 0, ErrBadPrefix},
		{"zero length", "000000000", 0, ErrBadLength},
		{"too big", "000000010abcdefghij", 5, ErrFrameTooBig},
		{"short payload", "000000010abc", 0, ErrShortPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(strings.NewReader(tt.input), tt.limit)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, io.EOF)
		})
	}
}

func TestReadFrame_LimitAllowsExact(t *testing.T) {
	got, err := ReadFrame(strings.NewReader("000000005hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
