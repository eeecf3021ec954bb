package capture

import (
	"bytes"
	"strings"
	"testing"
	"testing/iotest"
)

func filled(t *testing.T, s string) *Buffer {
	t.Helper()
	b := New()
	t.Cleanup(func() { b.Release() })
	if _, err := b.Write([]byte(s)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return b
}

func TestEqualIdentical(t *testing.T) {
	data := strings.Repeat("line of output\n", 200)
	a, b := filled(t, data), filled(t, data)

	if !Equal(a, b) {
		t.Error("expected identical buffers to be equal")
	}
}

func TestEqualEmpty(t *testing.T) {
	a, b := filled(t, ""), filled(t, "")
	if !Equal(a, b) {
		t.Error("expected two empty buffers to be equal")
	}
	if !EqualBytes(a, b) {
		t.Error("expected two empty buffers to be byte-equal")
	}
}

func TestEqualSingleByteDifference(t *testing.T) {
	data := []byte(strings.Repeat("a", 3*ChunkSize))
	for _, pos := range []int{0, ChunkSize - 1, ChunkSize, len(data) - 1} {
		changed := bytes.Clone(data)
		changed[pos] = 'b'

		a, b := filled(t, string(data)), filled(t, string(changed))
		if Equal(a, b) {
			t.Errorf("expected difference at byte %d to be detected", pos)
		}
		if EqualBytes(a, b) {
			t.Errorf("EqualBytes: expected difference at byte %d to be detected", pos)
		}
	}
}

func TestEqualNoPrefixMatch(t *testing.T) {
	a, b := filled(t, "hello"), filled(t, "hello world")
	if Equal(a, b) || Equal(b, a) {
		t.Error("expected prefix not to match")
	}
	if EqualBytes(a, b) {
		t.Error("EqualBytes: expected prefix not to match")
	}
}

func TestEqualTruncatedTail(t *testing.T) {
	data := strings.Repeat("x", ChunkSize+10)
	a, b := filled(t, data), filled(t, data[:len(data)-1])
	if Equal(a, b) {
		t.Error("expected truncated final chunk to differ")
	}
}

func TestEqualNoNormalisation(t *testing.T) {
	a, b := filled(t, "value\n"), filled(t, "value\n\n")
	if Equal(a, b) {
		t.Error("expected trailing newline difference to count")
	}
	a, b = filled(t, "value "), filled(t, "value")
	if Equal(a, b) {
		t.Error("expected trailing space difference to count")
	}
}

func TestEqualChunkBoundariesMatter(t *testing.T) {
	whole := New()
	defer whole.Release()
	whole.ReadFrom(strings.NewReader("abcd"))

	split := New()
	defer split.Release()
	split.ReadFrom(iotest.OneByteReader(strings.NewReader("abcd")))

	if whole.Chunks() == split.Chunks() {
		t.Fatalf("expected different chunking, both have %d chunks", whole.Chunks())
	}
	if Equal(whole, split) {
		t.Error("chunk comparison: expected different read boundaries to count as changed")
	}
	if !EqualBytes(whole, split) {
		t.Error("byte comparison: expected same content to be equal")
	}
}

func TestModeEqual(t *testing.T) {
	whole := New()
	defer whole.Release()
	whole.ReadFrom(strings.NewReader("abcd"))

	split := New()
	defer split.Release()
	split.ReadFrom(iotest.OneByteReader(strings.NewReader("abcd")))

	if ModeChunks.Equal(whole, split) {
		t.Error("ModeChunks: expected not equal")
	}
	if !ModeBytes.Equal(whole, split) {
		t.Error("ModeBytes: expected equal")
	}
}

func TestEqualBytesAcrossMisalignedChunks(t *testing.T) {
	data := strings.Repeat("0123456789", 400)

	a := New()
	defer a.Release()
	a.Write([]byte(data))

	b := New()
	defer b.Release()
	b.ReadFrom(iotest.HalfReader(strings.NewReader(data)))

	if !EqualBytes(a, b) {
		t.Error("expected equal content with different chunking to be byte-equal")
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"": ModeChunks, "chunks": ModeChunks, "bytes": ModeBytes}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil {
			t.Errorf("ParseMode(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseMode("lines"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
