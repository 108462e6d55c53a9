package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1

	flagStaleWhileRevalidate byte = 1 << 0

	headerLen = 4 + 1 + 1 + 8 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("swrcache: corrupt entry")
	magic4     = [...]byte{'S', 'W', 'R', 'C'}
)

// Entry is the framed form of a stored cache entry. Payload is the codec output.
type Entry struct {
	Gen                  uint64
	StoredAt             time.Time
	ExpiresAt            time.Time
	StaleWhileRevalidate bool
	Payload              []byte
}

// Encode frames e as:
//
//	magic(4) | ver(1) | flags(1) | gen(u64 be) | storedAt(i64 be, unix ns) |
//	expiresAt(i64 be, unix ns) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var flags byte
	if e.StaleWhileRevalidate {
		flags |= flagStaleWhileRevalidate
	}
	buf.WriteByte(flags)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], e.Gen)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.StoredAt.UnixNano()))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt.UnixNano()))
	buf.Write(u8[:])

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses a framed entry. Payload aliases b.
// Unknown flag bits, a short buffer or trailing bytes are all ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	flags := b[5]
	if flags&^flagStaleWhileRevalidate != 0 {
		return Entry{}, ErrCorrupt
	}

	off := 6
	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	stored := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	expires := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	if vlen < 0 || vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Gen:                  gen,
		StoredAt:             time.Unix(0, stored),
		ExpiresAt:            time.Unix(0, expires),
		StaleWhileRevalidate: flags&flagStaleWhileRevalidate != 0,
		Payload:              b[off:],
	}, nil
}
