package flist

import (
	"github.com/gilbertchen/acrosync-library/rsync/rsynclog"
	"github.com/gilbertchen/acrosync-library/rsync/wire"
)

// XFLAGS bit layout, matching the reference rsync's flist.c XMIT_*
// constants.
const (
	xmitTopDir         uint16 = 0x0001
	xmitSameMode       uint16 = 0x0002
	xmitExtendedFlags  uint16 = 0x0004
	xmitSameUID        uint16 = 0x0008
	xmitSameGID        uint16 = 0x0010
	xmitSameName       uint16 = 0x0020
	xmitLongName       uint16 = 0x0040
	xmitSameTime       uint16 = 0x0080
	xmitNoContentDir   uint16 = 0x0100
	xmitIOErrorEndlist uint16 = 0x0200
)

// Codec encodes/decodes the incremental file-list entry stream for one
// connection, tracking the previous entry's path/mode/time the wire
// format compresses against.
type Codec struct {
	s        *wire.Stream
	Protocol int // 29 or 30

	lastPath string
	lastMode uint32
	lastTime int64
	haveLast bool
}

// NewCodec builds a Codec for the given protocol version (29 or 30).
func NewCodec(s *wire.Stream, protocol int) *Codec {
	return &Codec{s: s, Protocol: protocol}
}

// SendEntry emits one file-list record. isTop marks the synthetic "."
// head entry; noDirContent requests the
// protocol≥30 empty-directory shorthand (or, under 29, a path
// truncated by one byte to omit the trailing "/").
func (c *Codec) SendEntry(e *Entry, isTop, noDirContent bool) error {
	path := e.Path
	dirShorthand := false
	if noDirContent && e.IsDirectory() {
		if c.Protocol >= 30 {
			dirShorthand = true
		} else if len(path) > 0 && path[len(path)-1] == '/' {
			path = path[:len(path)-1]
		}
	}

	var flags uint16 = xmitSameUID | xmitSameGID
	if c.haveLast && e.Time == c.lastTime {
		flags |= xmitSameTime
	}
	if c.haveLast && e.Mode == c.lastMode {
		flags |= xmitSameMode
	}

	commonLen := 0
	if c.haveLast {
		max := len(path)
		if len(c.lastPath) < max {
			max = len(c.lastPath)
		}
		if max > 255 {
			max = 255
		}
		for commonLen < max && path[commonLen] == c.lastPath[commonLen] {
			commonLen++
		}
	}
	if commonLen > 0 {
		flags |= xmitSameName
	}
	suffix := path[commonLen:]
	if len(suffix) > 255 {
		flags |= xmitLongName
	}
	if isTop {
		flags |= xmitTopDir
	}
	if dirShorthand {
		flags |= xmitNoContentDir
	}
	if flags&0xFF == 0 {
		// A zero low byte would be indistinguishable from the list
		// terminator; force TOP_DIR to keep XFLAGS non-zero.
		flags |= xmitTopDir
	}
	if flags&0xFF00 != 0 {
		flags |= xmitExtendedFlags
	}

	if flags&xmitExtendedFlags != 0 {
		if err := c.s.WriteUint16(flags); err != nil {
			return err
		}
	} else {
		if err := c.s.WriteUint8(uint8(flags)); err != nil {
			return err
		}
	}

	if flags&xmitSameName != 0 {
		if err := c.s.WriteUint8(uint8(commonLen)); err != nil {
			return err
		}
	}
	if flags&xmitLongName != 0 {
		if c.Protocol >= 30 {
			if err := c.s.WriteVariableInt32(int32(len(suffix))); err != nil {
				return err
			}
		} else if err := c.s.WriteInt32(int32(len(suffix))); err != nil {
			return err
		}
	} else if err := c.s.WriteUint8(uint8(len(suffix))); err != nil {
		return err
	}
	if err := c.s.Write([]byte(suffix)); err != nil {
		return err
	}

	if c.Protocol >= 30 {
		if err := c.s.WriteVariableInt64(e.Size, 3); err != nil {
			return err
		}
	} else if err := c.s.WriteInt64(e.Size); err != nil {
		return err
	}

	if flags&xmitSameTime == 0 {
		if c.Protocol >= 30 {
			if err := c.s.WriteVariableInt64(e.Time, 4); err != nil {
				return err
			}
		} else if err := c.s.WriteInt32(int32(e.Time)); err != nil {
			return err
		}
	}
	if flags&xmitSameMode == 0 {
		if err := c.s.WriteInt32(int32(e.Mode)); err != nil {
			return err
		}
	}
	if e.IsSymlink() {
		if c.Protocol >= 30 {
			if err := c.s.WriteVariableInt32(int32(len(e.Symlink))); err != nil {
				return err
			}
		} else if err := c.s.WriteInt32(int32(len(e.Symlink))); err != nil {
			return err
		}
		if err := c.s.Write([]byte(e.Symlink)); err != nil {
			return err
		}
	}

	c.lastPath = path
	c.lastMode = e.Mode
	c.lastTime = e.Time
	c.haveLast = true
	return nil
}

// ReceiveEntry decodes one record, or returns (nil, nil) at the
// XFLAGS==0 list terminator.
func (c *Codec) ReceiveEntry() (*Entry, error) {
	b0, err := c.s.ReadUint8()
	if err != nil {
		return nil, err
	}
	flags := uint16(b0)
	if flags&xmitExtendedFlags != 0 {
		b1, err := c.s.ReadUint8()
		if err != nil {
			return nil, err
		}
		flags |= uint16(b1) << 8
	}
	if flags == 0 {
		return nil, nil
	}
	if flags&xmitIOErrorEndlist != 0 {
		code, err := c.s.ReadInt32()
		if err != nil {
			return nil, err
		}
		rsynclog.Logf("RSYNC_FLIST", rsynclog.Info, "remote reported io error %d ending file list", code)
	}

	commonLen := 0
	if flags&xmitSameName != 0 {
		b, err := c.s.ReadUint8()
		if err != nil {
			return nil, err
		}
		commonLen = int(b)
	}
	var suffixLen int
	if flags&xmitLongName != 0 {
		if c.Protocol >= 30 {
			v, err := c.s.ReadVariableInt32()
			if err != nil {
				return nil, err
			}
			suffixLen = int(v)
		} else {
			v, err := c.s.ReadInt32()
			if err != nil {
				return nil, err
			}
			suffixLen = int(v)
		}
	} else {
		b, err := c.s.ReadUint8()
		if err != nil {
			return nil, err
		}
		suffixLen = int(b)
	}
	suffix := make([]byte, suffixLen)
	if err := c.s.Read(suffix); err != nil {
		return nil, err
	}
	path := c.lastPath[:commonLen] + string(suffix)

	var size int64
	if c.Protocol >= 30 {
		v, err := c.s.ReadVariableInt64(3)
		if err != nil {
			return nil, err
		}
		size = v
	} else {
		v, err := c.s.ReadInt64()
		if err != nil {
			return nil, err
		}
		size = v
	}

	t := c.lastTime
	if flags&xmitSameTime == 0 {
		if c.Protocol >= 30 {
			v, err := c.s.ReadVariableInt64(4)
			if err != nil {
				return nil, err
			}
			t = v
		} else {
			v, err := c.s.ReadInt32()
			if err != nil {
				return nil, err
			}
			t = int64(v)
		}
	}

	mode := c.lastMode
	if flags&xmitSameMode == 0 {
		v, err := c.s.ReadInt32()
		if err != nil {
			return nil, err
		}
		mode = uint32(v)
	}

	e := &Entry{Path: path, Size: size, Time: t, Mode: mode}
	if e.IsSymlink() {
		var linkLen int
		if c.Protocol >= 30 {
			v, err := c.s.ReadVariableInt32()
			if err != nil {
				return nil, err
			}
			linkLen = int(v)
		} else {
			v, err := c.s.ReadInt32()
			if err != nil {
				return nil, err
			}
			linkLen = int(v)
		}
		buf := make([]byte, linkLen)
		if err := c.s.Read(buf); err != nil {
			return nil, err
		}
		e.Symlink = string(buf)
	}
	if flags&xmitNoContentDir != 0 {
		e.Mode |= IsDir
		e.Path += "/"
	}

	c.lastPath = path
	c.lastMode = mode
	c.lastTime = t
	c.haveLast = true
	return e, nil
}
