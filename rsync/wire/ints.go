package wire

import "github.com/gilbertchen/acrosync-library/rsync/rsyncerr"

// Fixed-width little-endian primitives. The wire format is always
// little-endian regardless of host byte order, so every conversion
// here is explicit byte-by-byte rather than a memory cast.

func (s *Stream) ReadUint8() (uint8, error) {
	var b [1]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *Stream) WriteUint8(v uint8) error {
	return s.Write([]byte{v})
}

func (s *Stream) ReadUint16() (uint16, error) {
	var b [2]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (s *Stream) WriteUint16(v uint16) error {
	return s.Write([]byte{byte(v), byte(v >> 8)})
}

func (s *Stream) ReadInt32() (int32, error) {
	var b [4]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24), nil
}

func (s *Stream) WriteInt32(v int32) error {
	u := uint32(v)
	return s.Write([]byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)})
}

func (s *Stream) ReadInt64() (int64, error) {
	var b [8]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	var u uint64
	for i := 7; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	return int64(u), nil
}

func (s *Stream) WriteInt64(v int64) error {
	u := uint64(v)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(u)
		u >>= 8
	}
	return s.Write(b)
}

// leadingOnes counts the leading 1-bits of b, saturated at 6 (that
// count is "ext", the number of extra bytes the varint encoding uses).
func leadingOnes(b uint8) int {
	n := 0
	for n < 6 && b&(0x80>>uint(n)) != 0 {
		n++
	}
	return n
}

// ReadVariableInt32 decodes rsync's variable-length 32-bit integer
// encoding. This is the minBytes=1 case of the general varlong scheme
// used by ReadVariableInt64, with an ext>4 cap specific to the 32-bit
// form.
func (s *Stream) ReadVariableInt32() (int32, error) {
	b0, err := s.ReadUint8()
	if err != nil {
		return 0, err
	}
	ext := leadingOnes(b0)
	if ext > 4 {
		return 0, rsyncerr.New(rsyncerr.KindFramingError, nil)
	}
	if ext == 0 {
		return int32(b0), nil
	}
	extra := make([]byte, ext)
	if err := s.Read(extra); err != nil {
		return 0, err
	}
	var v uint32
	for i := ext - 1; i >= 0; i-- {
		v = v<<8 | uint32(extra[i])
	}
	top := uint32(b0) & (0xFF >> uint(ext))
	v |= top << (8 * uint(ext))
	return int32(v), nil
}

// WriteVariableInt32 is the inverse of ReadVariableInt32: it picks the
// smallest ext in [0,4] such that the value's top bits fit in the
// leading byte's low (8-ext) bits alongside ext leading one-markers.
func (s *Stream) WriteVariableInt32(v int32) error {
	u := uint32(v)
	if u < 0x80 {
		return s.WriteUint8(uint8(u))
	}
	for ext := 1; ext <= 4; ext++ {
		top := u >> uint(8*ext)
		if ext == 4 || top < uint32(1)<<uint(7-ext) {
			buf := make([]byte, 1+ext)
			buf[0] = byte(0xFF<<uint(8-ext)) | byte(top)
			uu := u
			for i := 0; i < ext; i++ {
				buf[1+i] = byte(uu)
				uu >>= 8
			}
			return s.Write(buf)
		}
	}
	return rsyncerr.New(rsyncerr.KindFramingError, nil)
}

// ReadVariableInt64 decodes the variable-length 64-bit form: minBytes
// bytes are read first; the leading byte's run of 1-bits gives ext
// further trailing bytes. The full value is the leading byte's masked
// low bits, shifted above the minBytes-1+ext plain data bytes that
// follow it.
func (s *Stream) ReadVariableInt64(minBytes int) (int64, error) {
	prefix := make([]byte, minBytes)
	if err := s.Read(prefix); err != nil {
		return 0, err
	}
	ext := leadingOnes(prefix[0])
	if ext+minBytes > 9 {
		return 0, rsyncerr.New(rsyncerr.KindFramingError, nil)
	}
	extra := make([]byte, ext)
	if ext > 0 {
		if err := s.Read(extra); err != nil {
			return 0, err
		}
	}
	cnt := minBytes - 1 + ext
	data := make([]byte, cnt)
	copy(data, prefix[1:])
	copy(data[minBytes-1:], extra)

	var v uint64
	for i := cnt - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	var top uint64
	if ext == 0 {
		top = uint64(prefix[0])
	} else {
		top = uint64(prefix[0]) & (0xFF >> uint(ext))
	}
	v |= top << uint(8*cnt)
	return int64(v), nil
}

// WriteVariableInt64 is the inverse of ReadVariableInt64.
func (s *Stream) WriteVariableInt64(v int64, minBytes int) error {
	u := uint64(v)
	maxExt := 9 - minBytes
	for ext := 0; ext <= maxExt; ext++ {
		cnt := minBytes - 1 + ext
		top := u >> uint(8*cnt)
		limit := uint64(1) << 7
		if ext > 0 {
			limit = uint64(1) << uint(7-ext)
		}
		if ext == maxExt || top < limit {
			buf := make([]byte, 1+cnt)
			if ext == 0 {
				buf[0] = byte(top)
			} else {
				buf[0] = byte(0xFF<<uint(8-ext)) | byte(top)
			}
			uu := u
			for i := 0; i < cnt; i++ {
				buf[1+i] = byte(uu)
				uu >>= 8
			}
			return s.Write(buf)
		}
	}
	return rsyncerr.New(rsyncerr.KindFramingError, nil)
}
