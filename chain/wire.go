package chain

import (
	"encoding/binary"
	"fmt"
)

// Little-endian fixed-width primitives and CompactSize varints, the same
// encoding discipline the wire protocol and transaction/block encodings use
// throughout this package.

func appendU16le(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

func appendU32le(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func appendU64le(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// appendCompactSize appends n using a Bitcoin-style CompactSize varint.
func appendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return appendU16le(dst, uint16(n))
	case n <= 0xffffffff:
		dst = append(dst, 0xfe)
		return appendU32le(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return appendU64le(dst, n)
	}
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) u8() (uint8, error) {
	if r.off+1 > len(r.b) {
		return 0, fmt.Errorf("chain: unexpected EOF (u8)")
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16le() (uint16, error) {
	if r.off+2 > len(r.b) {
		return 0, fmt.Errorf("chain: unexpected EOF (u16le)")
	}
	v := binary.LittleEndian.Uint16(r.b[r.off : r.off+2])
	r.off += 2
	return v, nil
}

func (r *reader) u32le() (uint32, error) {
	if r.off+4 > len(r.b) {
		return 0, fmt.Errorf("chain: unexpected EOF (u32le)")
	}
	v := binary.LittleEndian.Uint32(r.b[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *reader) u64le() (uint64, error) {
	if r.off+8 > len(r.b) {
		return 0, fmt.Errorf("chain: unexpected EOF (u64le)")
	}
	v := binary.LittleEndian.Uint64(r.b[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("chain: unexpected EOF (bytes)")
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *reader) compactSize() (uint64, error) {
	tag, err := r.u8()
	if err != nil {
		return 0, err
	}
	switch {
	case tag < 0xfd:
		return uint64(tag), nil
	case tag == 0xfd:
		v, err := r.u16le()
		return uint64(v), err
	case tag == 0xfe:
		v, err := r.u32le()
		return uint64(v), err
	default:
		return r.u64le()
	}
}
