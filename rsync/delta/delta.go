// Package delta implements the token-stream diff/reconstruction
// engine built on package checksum: Send scans a file against a
// remote block-checksum header and emits a token stream, Receive
// consumes that stream against a local base file to rebuild the
// target.
//
// Grounded on gokr-rsync's generator/sender block matching and the
// receiver's token loop, and on rsync_client.cpp's rolling-window scan
// (lines 1112-1260) for the literal/match decision sequence and the
// one-byte rolling-checksum update this package mirrors.
package delta

import (
	"bytes"
	"io"

	"github.com/gilbertchen/acrosync-library/rsync/checksum"
	"github.com/gilbertchen/acrosync-library/rsync/rsyncerr"
	"github.com/gilbertchen/acrosync-library/rsync/wire"
)

// ChecksumHeader is the per-file block-checksum summary exchanged
// before the token stream.
type ChecksumHeader struct {
	Count       int32
	BlockLength int32
	Md5Length   int32
	Remainder   int32
}

// ReadChecksumHeader reads a 4-tuple checksum header.
func ReadChecksumHeader(s *wire.Stream) (ChecksumHeader, error) {
	var h ChecksumHeader
	var err error
	if h.Count, err = s.ReadInt32(); err != nil {
		return h, err
	}
	if h.BlockLength, err = s.ReadInt32(); err != nil {
		return h, err
	}
	if h.Md5Length, err = s.ReadInt32(); err != nil {
		return h, err
	}
	if h.Remainder, err = s.ReadInt32(); err != nil {
		return h, err
	}
	return h, nil
}

// WriteChecksumHeader writes the 4-tuple checksum header.
func WriteChecksumHeader(s *wire.Stream, h ChecksumHeader) error {
	if err := s.WriteInt32(h.Count); err != nil {
		return err
	}
	if err := s.WriteInt32(h.BlockLength); err != nil {
		return err
	}
	if err := s.WriteInt32(h.Md5Length); err != nil {
		return err
	}
	return s.WriteInt32(h.Remainder)
}

// ReadBlockRecords reads h.Count (weak, strong[:h.Md5Length]) records.
func ReadBlockRecords(s *wire.Stream, h ChecksumHeader) ([]checksum.BlockHash, error) {
	out := make([]checksum.BlockHash, h.Count)
	for i := range out {
		w, err := s.ReadInt32()
		if err != nil {
			return nil, err
		}
		strong := make([]byte, h.Md5Length)
		if err := s.Read(strong); err != nil {
			return nil, err
		}
		out[i] = checksum.BlockHash{Weak: uint32(w), Strong: strong}
	}
	return out, nil
}

// WriteBlockRecords writes blocks in the same layout ReadBlockRecords
// expects.
func WriteBlockRecords(s *wire.Stream, blocks []checksum.BlockHash) error {
	for _, b := range blocks {
		if err := s.WriteInt32(int32(b.Weak)); err != nil {
			return err
		}
		if err := s.Write(b.Strong); err != nil {
			return err
		}
	}
	return nil
}

// BuildChecksumHeader computes the header and per-block weak/strong
// records for a base file's contents (the generator side of the
// exchange).
func BuildChecksumHeader(protocol int, seed uint32, data []byte, md5Length int) (ChecksumHeader, []checksum.BlockHash) {
	size := int64(len(data))
	blockLength := checksum.ChooseBlockLength(size)
	var blocks []checksum.BlockHash
	for off := int64(0); off < size; off += int64(blockLength) {
		end := off + int64(blockLength)
		if end > size {
			end = size
		}
		block := data[off:end]
		weak := checksum.NewWeak(block).Value()
		strong := checksum.BlockDigest(protocol, block, seed)[:md5Length]
		blocks = append(blocks, checksum.BlockHash{Weak: weak, Strong: strong})
	}
	remainder := int32(0)
	if size > 0 {
		remainder = int32(size % int64(blockLength))
		if remainder == 0 {
			remainder = blockLength
		}
	}
	h := ChecksumHeader{
		Count:       int32(len(blocks)),
		BlockLength: blockLength,
		Md5Length:   int32(md5Length),
		Remainder:   remainder,
	}
	return h, blocks
}

// Send scans data (the file being transferred) against header/records
// describing the peer's base file, writing the token stream followed
// by the zero terminator and then the whole-file digest.
func Send(s *wire.Stream, protocol int, seed uint32, header ChecksumHeader, records []checksum.BlockHash, data []byte) error {
	digest := checksum.NewWholeFileDigest(protocol, seed)
	digest.Write(data)

	if header.Count == 0 {
		if err := flushLiteral(s, data); err != nil {
			return err
		}
		if err := s.WriteInt32(0); err != nil {
			return err
		}
		return s.Write(digest.Sum(nil))
	}

	table := checksum.NewBucketTable(records)
	blockLength := int(header.BlockLength)
	n := len(data)
	litStart := 0
	pos := 0
	var weak checksum.Weak
	haveWeak := false

	for pos+blockLength <= n {
		if !haveWeak {
			weak = checksum.NewWeak(data[pos : pos+blockLength])
			haveWeak = true
		}
		val := weak.Value()
		match := -1
		for _, idx := range table.Candidates(val) {
			cand := table.Blocks[idx]
			if cand.Weak != val {
				continue
			}
			strong := checksum.BlockDigest(protocol, data[pos:pos+blockLength], seed)
			if bytes.HasPrefix(strong, cand.Strong) {
				match = idx
				break
			}
		}
		if match < 0 {
			if pos+blockLength < n {
				weak.Roll(data[pos], data[pos+blockLength])
			} else {
				haveWeak = false
			}
			pos++
			continue
		}
		if err := flushLiteral(s, data[litStart:pos]); err != nil {
			return err
		}
		if err := s.WriteInt32(int32(-(match + 1))); err != nil {
			return err
		}
		pos += blockLength
		litStart = pos
		haveWeak = false
	}

	tail := data[litStart:]
	if len(tail) > 0 && len(tail) == int(header.Remainder) {
		last := records[header.Count-1]
		strong := checksum.BlockDigest(protocol, tail, seed)
		if bytes.HasPrefix(strong, last.Strong) {
			if err := s.WriteInt32(-header.Count); err != nil {
				return err
			}
			litStart = n
		}
	}

	if err := flushLiteral(s, data[litStart:n]); err != nil {
		return err
	}
	if err := s.WriteInt32(0); err != nil {
		return err
	}
	return s.Write(digest.Sum(nil))
}

func flushLiteral(s *wire.Stream, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if err := s.WriteInt32(int32(len(chunk))); err != nil {
		return err
	}
	return s.Write(chunk)
}

// Receive consumes a token stream written by Send against base (read
// via ReaderAt for non-sequential seeks), writing the reconstructed
// file to dst and validating the trailing whole-file digest. Receive
// starts reading at the first token; it reads no iflags frame and no
// checksum header.
func Receive(s *wire.Stream, protocol int, seed uint32, header ChecksumHeader, base io.ReaderAt, dst io.Writer) error {
	digest := checksum.NewWholeFileDigest(protocol, seed)
	blockLength := int64(header.BlockLength)

	for {
		t, err := s.ReadInt32()
		if err != nil {
			return err
		}
		if t == 0 {
			break
		}
		if t > 0 {
			buf := make([]byte, t)
			if err := s.Read(buf); err != nil {
				return err
			}
			if _, err := dst.Write(buf); err != nil {
				return err
			}
			digest.Write(buf)
			continue
		}
		block := int64(-t - 1)
		if base == nil {
			return rsyncerr.New(rsyncerr.KindRemoteIOError, nil)
		}
		readLen := blockLength
		buf := make([]byte, readLen)
		n, err := base.ReadAt(buf, block*blockLength)
		if err != nil && err != io.EOF {
			return err
		}
		buf = buf[:n]
		if _, err := dst.Write(buf); err != nil {
			return err
		}
		digest.Write(buf)
	}

	remoteSum := make([]byte, len(digest.Sum(nil)))
	if err := s.Read(remoteSum); err != nil {
		return err
	}
	localSum := digest.Sum(nil)
	if !bytes.Equal(remoteSum[:len(localSum)], localSum) {
		return rsyncerr.New(rsyncerr.KindChecksumMismatch, nil)
	}
	return nil
}
