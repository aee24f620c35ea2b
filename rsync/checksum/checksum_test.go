package checksum

import (
	"bytes"
	"testing"
)

func TestWeakRollMatchesRecompute(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i * 7 % 251)
	}
	const window = 64

	w := NewWeak(data[:window])
	for i := 0; i+window < len(data); i++ {
		w.Roll(data[i], data[i+window])
		want := NewWeak(data[i+1 : i+1+window])
		if w.Value() != want.Value() {
			t.Fatalf("at i=%d: rolled=%#x recomputed=%#x", i, w.Value(), want.Value())
		}
	}
}

func TestBucketHashFormula(t *testing.T) {
	cases := []struct {
		weak uint32
		want uint16
	}{
		{0x00000000, 0},
		{0x0000FFFF, 0xFFFF},
		{0xFFFF0000, 0xFFFF},
		{0xFFFFFFFF, 0xFFFE},
		{0x00010001, 2},
	}
	for _, c := range cases {
		if got := BucketHash(c.weak); got != c.want {
			t.Errorf("BucketHash(%#x) = %#x, want %#x", c.weak, got, c.want)
		}
	}
}

func TestChooseBlockLengthProperties(t *testing.T) {
	if got := ChooseBlockLength(0); got != 700 {
		t.Errorf("ChooseBlockLength(0) = %d, want 700", got)
	}
	if got := ChooseBlockLength(489999); got != 700 {
		t.Errorf("ChooseBlockLength(489999) = %d, want 700", got)
	}

	sizes := []int64{490000, 1_000_000, 10_000_000, 1 << 30, 1 << 40}
	prev := int32(0)
	for _, sz := range sizes {
		got := ChooseBlockLength(sz)
		if got < prev {
			t.Errorf("ChooseBlockLength not monotonic: size=%d got=%d < prev=%d", sz, got, prev)
		}
		if got%8 != 0 {
			t.Errorf("ChooseBlockLength(%d) = %d, not a multiple of 8", sz, got)
		}
		if got < 700 || got > 0x20000 {
			t.Errorf("ChooseBlockLength(%d) = %d, out of [700, 0x20000]", sz, got)
		}
		prev = got
	}
}

func TestBlockDigestLength(t *testing.T) {
	block := bytes.Repeat([]byte{0xAB}, 700)
	if got := len(BlockDigest(30, block, 42)); got != 16 {
		t.Errorf("protocol 30 digest length = %d, want 16", got)
	}
	if got := len(BlockDigest(29, block, 42)); got != 16 {
		t.Errorf("protocol 29 digest length = %d, want 16", got)
	}
}

func TestWholeFileDigestSeedingDiffersByProtocol(t *testing.T) {
	data := []byte("some file contents")

	h30 := NewWholeFileDigest(30, 7)
	h30.Write(data)
	sum30 := h30.Sum(nil)

	h29 := NewWholeFileDigest(29, 7)
	h29.Write(data)
	sum29 := h29.Sum(nil)

	if bytes.Equal(sum30, sum29) {
		t.Errorf("protocol 29 and 30 whole-file digests should differ (different seed handling and hash)")
	}
}

func TestBucketTableCandidates(t *testing.T) {
	blocks := []BlockHash{
		{Weak: 0x00010001, Strong: []byte{1, 2, 3, 4}},
		{Weak: 0x00020002, Strong: []byte{5, 6, 7, 8}},
	}
	table := NewBucketTable(blocks)
	cands := table.Candidates(0x00010001)
	if len(cands) != 1 || cands[0] != 0 {
		t.Fatalf("Candidates(0x00010001) = %v, want [0]", cands)
	}
	if got := table.Candidates(0xDEADBEEF); len(got) != 0 {
		t.Errorf("Candidates for unmatched weak = %v, want empty", got)
	}
}
