package flist

import (
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

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

func roundTrip(t *testing.T, protocol int, entries []*Entry) []*Entry {
	t.Helper()
	a, b := newLoopPair()
	defer a.Close()
	defer b.Close()

	sw := wire.New(a, nil)
	sw.EnableBuffer()
	sw.EnableWriteMultiplex()
	sr := wire.New(b, nil)
	sr.EnableBuffer()

	cw := NewCodec(sw, protocol)
	cr := NewCodec(sr, protocol)

	done := make(chan error, 1)
	go func() {
		for i, e := range entries {
			if err := cw.SendEntry(e, i == 0, false); err != nil {
				done <- err
				return
			}
		}
		if err := cw.s.WriteUint8(0); err != nil {
			done <- err
			return
		}
		done <- cw.s.FlushWriteBuffer(0)
	}()

	var got []*Entry
	for {
		e, err := cr.ReceiveEntry()
		if err != nil {
			t.Fatalf("ReceiveEntry: %v", err)
		}
		if e == nil {
			break
		}
		got = append(got, e)
	}
	if err := <-done; err != nil {
		t.Fatalf("writer: %v", err)
	}
	return got
}

func TestCodecRoundTripProtocol30(t *testing.T) {
	entries := []*Entry{
		{Path: ".", Mode: IsDir, Time: 1000, Size: 0},
		{Path: "dir/", Mode: IsDir, Time: 1000, Size: 0},
		{Path: "dir/file.txt", Mode: IsFile | IsReadable | IsWritable, Time: 1000, Size: 4096},
		{Path: "dir/big.bin", Mode: IsFile | IsReadable, Time: 2000, Size: 1 << 34},
		{Path: "dir/link", Mode: IsFile | IsLink, Time: 2000, Size: 0, Symlink: "file.txt"},
	}
	got := roundTrip(t, 30, entries)
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if diff := cmp.Diff(e, got[i]); diff != "" {
			t.Errorf("entry %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestCodecRoundTripProtocol29(t *testing.T) {
	entries := []*Entry{
		{Path: ".", Mode: IsDir, Time: 1000, Size: 0},
		{Path: "a/b/c.txt", Mode: IsFile, Time: 1500, Size: 12345},
	}
	got := roundTrip(t, 29, entries)
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if diff := cmp.Diff(e.Path, got[i].Path); diff != "" {
			t.Errorf("entry %d Path mismatch (-want +got):\n%s", i, diff)
		}
		if diff := cmp.Diff(e.Size, got[i].Size); diff != "" {
			t.Errorf("entry %d Size mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestCodecSameNameCompression(t *testing.T) {
	entries := []*Entry{
		{Path: "a/b/file1.txt", Mode: IsFile, Time: 1000, Size: 1},
		{Path: "a/b/file2.txt", Mode: IsFile, Time: 1000, Size: 2},
	}
	got := roundTrip(t, 30, entries)
	if got[1].Path != "a/b/file2.txt" {
		t.Fatalf("SAME_NAME decode = %q, want %q", got[1].Path, "a/b/file2.txt")
	}
}
