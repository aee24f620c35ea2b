package delta

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/gilbertchen/acrosync-library/rsync/wire"
)

type loopChannel struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	closed bool
}

func newLoopPair() (*loopChannel, *loopChannel) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &loopChannel{r: r1, w: w2}, &loopChannel{r: r2, w: w1}
}

func (c *loopChannel) Read(buf []byte) (int, error) {
	n, err := c.r.Read(buf)
	if err == io.EOF {
		c.closed = true
	}
	return n, err
}
func (c *loopChannel) Write(buf []byte) (int, error) { return c.w.Write(buf) }
func (c *loopChannel) Readable(d time.Duration) bool  { return true }
func (c *loopChannel) Writable(d time.Duration) bool  { return true }
func (c *loopChannel) Flush() error                   { return nil }
func (c *loopChannel) Closed() bool                   { return c.closed }
func (c *loopChannel) Close() error                    { c.w.Close(); return c.r.Close() }

func runDiffPatch(t *testing.T, protocol int, base, newContent []byte) []byte {
	t.Helper()
	a, b := newLoopPair()
	defer a.Close()
	defer b.Close()

	sw := wire.New(a, nil)
	sw.EnableBuffer()
	sw.EnableWriteMultiplex()
	sr := wire.New(b, nil)
	sr.EnableBuffer()

	const seed = uint32(12345)
	const md5Length = 16
	header, blocks := BuildChecksumHeader(protocol, seed, base, md5Length)

	done := make(chan error, 1)
	go func() {
		done <- Send(sw, protocol, seed, header, blocks, newContent)
	}()

	var out bytes.Buffer
	err := Receive(sr, protocol, seed, header, bytes.NewReader(base), &out)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	return out.Bytes()
}

func TestDiffPatchIdenticalFiles(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	for _, protocol := range []int{29, 30} {
		got := runDiffPatch(t, protocol, data, data)
		if !bytes.Equal(got, data) {
			t.Fatalf("protocol %d: identical-file round trip mismatch (got %d bytes, want %d)", protocol, len(got), len(data))
		}
	}
}

func TestDiffPatchAppendedTail(t *testing.T) {
	base := bytes.Repeat([]byte("0123456789"), 500)
	newContent := append(append([]byte{}, base...), []byte("extra tail data not present in base")...)
	for _, protocol := range []int{29, 30} {
		got := runDiffPatch(t, protocol, base, newContent)
		if !bytes.Equal(got, newContent) {
			t.Fatalf("protocol %d: appended-tail round trip mismatch", protocol)
		}
	}
}

func TestDiffPatchCompletelyDifferent(t *testing.T) {
	base := bytes.Repeat([]byte("A"), 5000)
	newContent := bytes.Repeat([]byte("Z"), 3000)
	for _, protocol := range []int{29, 30} {
		got := runDiffPatch(t, protocol, base, newContent)
		if !bytes.Equal(got, newContent) {
			t.Fatalf("protocol %d: disjoint-content round trip mismatch", protocol)
		}
	}
}

func TestDiffPatchEmptyBase(t *testing.T) {
	newContent := []byte("brand new file with no base to diff against")
	got := runDiffPatch(t, 30, nil, newContent)
	if !bytes.Equal(got, newContent) {
		t.Fatalf("empty-base round trip mismatch")
	}
}

func TestDiffPatchReorderedBlocks(t *testing.T) {
	blockA := bytes.Repeat([]byte("A"), 1000)
	blockB := bytes.Repeat([]byte("B"), 1000)
	base := append(append([]byte{}, blockA...), blockB...)
	newContent := append(append([]byte{}, blockB...), blockA...)
	got := runDiffPatch(t, 30, base, newContent)
	if !bytes.Equal(got, newContent) {
		t.Fatalf("reordered-block round trip mismatch")
	}
}
