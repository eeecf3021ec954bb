package capture

import (
	"bytes"
	"fmt"
)

// Mode selects how two captures are compared.
type Mode string

const (
	// ModeChunks compares chunk by chunk: same chunk count, and each pair of
	// chunks has the same size and content. Output split differently by the
	// reads that produced it counts as a change.
	ModeChunks Mode = "chunks"
	// ModeBytes compares the flattened content only.
	ModeBytes Mode = "bytes"
)

// ParseMode converts a config or flag value to a Mode. An empty string
// selects ModeChunks.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeChunks:
		return ModeChunks, nil
	case ModeBytes:
		return ModeBytes, nil
	default:
		return "", fmt.Errorf("unknown compare mode %q (expected chunks or bytes)", s)
	}
}

// Equal compares a and b according to the mode.
func (m Mode) Equal(a, b *Buffer) bool {
	if m == ModeBytes {
		return EqualBytes(a, b)
	}
	return Equal(a, b)
}

// Equal reports whether a and b hold the same chunks: the same number of
// chunks, with identical size and content at every position. Two empty
// buffers are equal.
func Equal(a, b *Buffer) bool {
	if len(a.chunks) != len(b.chunks) {
		return false
	}
	for i, ca := range a.chunks {
		cb := b.chunks[i]
		if ca.size != cb.size {
			return false
		}
		if !bytes.Equal(ca.data[:ca.size], cb.data[:cb.size]) {
			return false
		}
	}
	return true
}

// EqualBytes reports whether a and b hold the same bytes, regardless of
// where chunk boundaries fall.
func EqualBytes(a, b *Buffer) bool {
	if a.Len() != b.Len() {
		return false
	}

	var ai, bi, aoff, boff int
	for ai < len(a.chunks) && bi < len(b.chunks) {
		ca, cb := a.chunks[ai], b.chunks[bi]
		pa, pb := ca.data[aoff:ca.size], cb.data[boff:cb.size]

		n := min(len(pa), len(pb))
		if !bytes.Equal(pa[:n], pb[:n]) {
			return false
		}
		aoff += n
		boff += n
		if aoff == ca.size {
			ai, aoff = ai+1, 0
		}
		if boff == cb.size {
			bi, boff = bi+1, 0
		}
	}
	return true
}
