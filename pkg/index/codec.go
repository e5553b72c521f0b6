package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"

	"github.com/odvcencio/twig/pkg/object"
)

// Encode serializes entries in index file layout, including the trailing
// checksum. Entries must be sorted and unique by path; flags are derived
// from the path.
func Encode(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(signature)
	writeU32(&buf, version)
	writeU32(&buf, uint32(len(entries)))

	for i, e := range entries {
		if e.Path == "" {
			return nil, fmt.Errorf("encode index: entry %d has an empty path", i)
		}
		if bytes.IndexByte([]byte(e.Path), 0) >= 0 {
			return nil, fmt.Errorf("encode index: path %q contains NUL", e.Path)
		}
		if i > 0 && entries[i-1].Path >= e.Path {
			return nil, fmt.Errorf("encode index: entries not sorted/unique at %q", e.Path)
		}
		raw, err := e.Hash.Raw()
		if err != nil {
			return nil, fmt.Errorf("encode index: %q: %w", e.Path, err)
		}

		for _, v := range []uint32{
			e.CTime.Sec, e.CTime.Nsec,
			e.MTime.Sec, e.MTime.Nsec,
			e.Dev, e.Ino, e.Mode, e.UID, e.GID, e.Size,
		} {
			writeU32(&buf, v)
		}
		buf.Write(raw[:])
		writeU16(&buf, FlagsFor(e.Path))
		buf.WriteString(e.Path)
		buf.Write(make([]byte, padding(len(e.Path))))
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

// padding returns the number of NUL bytes following a path of length n.
func padding(n int) int {
	return 8 - (fixedSize+n)%8
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

// cursor reads fixed-width fields from a buffer, tracking the offset. The
// first out-of-bounds read latches err and later reads return zero values.
type cursor struct {
	buf []byte
	off int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || len(c.buf)-c.off < n {
		c.err = fmt.Errorf("%w: truncated at offset %d (need %d bytes)", ErrCorruptIndex, c.off, n)
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (c *cursor) timestamp() Timestamp {
	return Timestamp{Sec: c.u32(), Nsec: c.u32()}
}

// Decode parses an index file produced by Encode.
func Decode(data []byte) ([]Entry, error) {
	if len(data) < headerSize+checksumSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrCorruptIndex, len(data))
	}
	body := data[:len(data)-checksumSize]
	sum := sha1.Sum(body)
	if !bytes.Equal(sum[:], data[len(body):]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptIndex)
	}

	c := &cursor{buf: body}
	if sig := c.take(4); string(sig) != signature {
		return nil, fmt.Errorf("%w: bad signature %q", ErrCorruptIndex, sig)
	}
	if v := c.u32(); v != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, v)
	}
	count := c.u32()

	// Every entry takes at least 64 bytes; reject absurd counts up front.
	if uint64(count)*(fixedSize+2) > uint64(len(body)) {
		return nil, fmt.Errorf("%w: entry count %d exceeds file size", ErrCorruptIndex, count)
	}

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := decodeEntry(c)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if n := len(entries); n > 0 && entries[n-1].Path >= e.Path {
			return nil, fmt.Errorf("%w: entry %q out of order", ErrCorruptIndex, e.Path)
		}
		entries = append(entries, e)
	}
	if c.off != len(body) {
		return nil, fmt.Errorf("%w: %d unexpected bytes after entries", ErrCorruptIndex, len(body)-c.off)
	}
	return entries, nil
}

func decodeEntry(c *cursor) (Entry, error) {
	var e Entry
	e.CTime = c.timestamp()
	e.MTime = c.timestamp()
	e.Dev = c.u32()
	e.Ino = c.u32()
	e.Mode = c.u32()
	e.UID = c.u32()
	e.GID = c.u32()
	e.Size = c.u32()
	raw := c.take(20)
	e.Flags = c.u16()
	if c.err != nil {
		return Entry{}, c.err
	}
	e.Hash, _ = object.HashFromRaw(raw)

	if e.Flags&^nameMask != 0 {
		return Entry{}, fmt.Errorf("%w: reserved flag bits set (%#04x)", ErrCorruptIndex, e.Flags)
	}

	nameLen := int(e.Flags & nameMask)
	if nameLen == nameMask {
		// Long name: the length did not fit, so scan to the terminating NUL.
		end := bytes.IndexByte(c.buf[c.off:], 0)
		if end < nameMask {
			return Entry{}, fmt.Errorf("%w: long path not terminated", ErrCorruptIndex)
		}
		nameLen = end
	}
	name := c.take(nameLen)
	pad := c.take(padding(nameLen))
	if c.err != nil {
		return Entry{}, c.err
	}
	if nameLen == 0 || bytes.IndexByte(name, 0) >= 0 {
		return Entry{}, fmt.Errorf("%w: invalid path %q", ErrCorruptIndex, name)
	}
	for _, b := range pad {
		if b != 0 {
			return Entry{}, fmt.Errorf("%w: non-zero padding after %q", ErrCorruptIndex, name)
		}
	}
	e.Path = string(name)
	return e, nil
}
