package wire

const (
	ndxSentinelDone = 0x00
	ndxSentinelNeg  = 0xFF
	ndxSentinelExt  = 0xFE
	ndxExtAbsolute  = 0x80
	ndxExtDelta     = 0x00
)

// readMagnitudeDelta reads the small-delta-or-extended encoding that
// follows the sign discriminator, returning either a delta to add to
// the running counter or an absolute magnitude. A sentinel 0xFE
// triggers either a 2-byte delta or 4-byte absolute value, the high
// bit of the following byte distinguishing which.
func (s *Stream) readMagnitudeDelta(lead uint8) (delta int32, absolute bool, err error) {
	if lead != ndxSentinelExt {
		return int32(lead), false, nil
	}
	marker, err := s.ReadUint8()
	if err != nil {
		return 0, false, err
	}
	if marker&0x80 != 0 {
		v, err := s.ReadInt32()
		if err != nil {
			return 0, false, err
		}
		return v, true, nil
	}
	var b [2]byte
	if err := s.Read(b[:]); err != nil {
		return 0, false, err
	}
	return int32(int16(uint16(b[0]) | uint16(b[1])<<8)), false, nil
}

// ReadIndex decodes one index value. 0x00 terminates the stream
// (IndexDone); 0xFF selects the negative-index counter for this value.
func (s *Stream) ReadIndex() (int32, error) {
	lead, err := s.ReadUint8()
	if err != nil {
		return 0, err
	}
	if lead == ndxSentinelDone {
		return IndexDone, nil
	}
	neg := false
	if lead == ndxSentinelNeg {
		neg = true
		lead, err = s.ReadUint8()
		if err != nil {
			return 0, err
		}
	}
	delta, absolute, err := s.readMagnitudeDelta(lead)
	if err != nil {
		return 0, err
	}
	last := &s.readLastPos
	if neg {
		last = &s.readLastNeg
	}
	mag := delta
	if !absolute {
		mag = *last + delta
	}
	*last = mag
	if neg {
		return -mag, nil
	}
	return mag, nil
}

// WriteIndex is the inverse of ReadIndex.
func (s *Stream) WriteIndex(idx int32) error {
	if idx == IndexDone {
		return s.WriteUint8(ndxSentinelDone)
	}
	neg := idx < 0
	mag := idx
	if neg {
		mag = -idx
	}
	last := &s.writeLastPos
	if neg {
		last = &s.writeLastNeg
	}
	delta := mag - *last

	if neg {
		if err := s.WriteUint8(ndxSentinelNeg); err != nil {
			return err
		}
	}
	if delta >= 1 && delta <= 0xFD {
		*last = mag
		return s.WriteUint8(uint8(delta))
	}
	if err := s.WriteUint8(ndxSentinelExt); err != nil {
		return err
	}
	if delta >= -32768 && delta <= 32767 {
		if err := s.WriteUint8(ndxExtDelta); err != nil {
			return err
		}
		d := uint16(int16(delta))
		*last = mag
		return s.Write([]byte{byte(d), byte(d >> 8)})
	}
	if err := s.WriteUint8(ndxExtAbsolute | 0x01); err != nil {
		return err
	}
	*last = mag
	return s.WriteInt32(mag)
}
