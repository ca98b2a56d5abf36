// Package ingress accepts stream connections and splits them into
// length-prefixed frames.
//
// A frame is nine ASCII decimal digits holding the payload length, followed
// by exactly that many bytes. Frames are handed to a Handler on a single
// consumer goroutine; interpreting the payload is the Handler's job.
package ingress

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// PrefixLen is the width of the decimal length prefix.
const PrefixLen = 9

// MaxFrameLen is the largest length the prefix can express.
const MaxFrameLen = 999_999_999

var (
	ErrBadPrefix    = errors.New("ingress: malformed length prefix")
	ErrBadLength    = errors.New("ingress: non-positive frame length")
	ErrFrameTooBig  = errors.New("ingress: frame exceeds maximum payload")
	ErrShortPayload = errors.New("ingress: short payload")
)

// ReadFrame reads one frame from r. It returns io.EOF only when r ends
// cleanly before the first prefix byte; any other truncation is a fault.
// limit <= 0 means no limit beyond MaxFrameLen.
func ReadFrame(r io.Reader, limit int) ([]byte, error) {
	var prefix [PrefixLen]byte
	n, err := io.ReadFull(r, prefix[:])
	switch {
	case errors.Is(err, io.EOF) && n == 0:
		return nil, io.EOF
	case err != nil:
		return nil, fmt.Errorf("%w: read %d of %d bytes: %w", ErrBadPrefix, n, PrefixLen, err)
	}

	size, err := parsePrefix(prefix[:])
	if err != nil {
		return nil, err
	}
	if limit > 0 && size > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooBig, size, limit)
	}

	payload := make([]byte, size)
	if n, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: read %d of %d bytes: %w", ErrShortPayload, n, size, err)
	}
	return payload, nil
}

// WriteFrame writes payload to w with its length prefix.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrBadLength
	}
	if len(payload) > MaxFrameLen {
		return fmt.Errorf("%w: %d", ErrFrameTooBig, len(payload))
	}
	buf := make([]byte, 0, PrefixLen+len(payload))
	buf = fmt.Appendf(buf, "%0*d", PrefixLen, len(payload))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

func parsePrefix(b []byte) (int, error) {
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrBadPrefix, b)
		}
	}
	size, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPrefix, b)
	}
	if size <= 0 {
		return 0, ErrBadLength
	}
	return size, nil
}
