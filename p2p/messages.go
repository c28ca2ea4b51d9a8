package p2p

import (
	"encoding/binary"
	"fmt"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
)

// Command names, one per wire-level request/response variant.
const (
	CmdGetAddr     = "GETADDR"
	CmdGetAddrResp = "GETADDR_R"
	CmdAdvertise   = "ADVERTISE"
	CmdGetBlocks   = "GETBLOCKS"
	CmdGetBlocksR  = "GETBLOCKS_R"
	CmdNewTxn      = "NEWTXN"
	CmdNewBlock    = "NEWBLOCK"
)

// AddrInfo is a peer's advertised network location.
type AddrInfo struct {
	IP   string
	Port uint16
}

func marshalAddrInfo(dst []byte, a AddrInfo) []byte {
	dst = appendString(dst, a.IP)
	var portBuf [2]byte
	binary.LittleEndian.PutUint16(portBuf[:], a.Port)
	return append(dst, portBuf[:]...)
}

func unmarshalAddrInfo(r *byteReader) (AddrInfo, error) {
	ip, err := r.string()
	if err != nil {
		return AddrInfo{}, err
	}
	portBytes, err := r.bytes(2)
	if err != nil {
		return AddrInfo{}, err
	}
	return AddrInfo{IP: ip, Port: binary.LittleEndian.Uint16(portBytes)}, nil
}

// GetAddrRequest is the GetAddr wire request.
type GetAddrRequest struct {
	ProtoVersion uint32
	AddrYou      AddrInfo
	ListenPort   uint16
	BestHeight   uint32
	BestHash     crypto.Hash256
}

func (m GetAddrRequest) Marshal() []byte {
	var b []byte
	b = appendU32(b, m.ProtoVersion)
	b = marshalAddrInfo(b, m.AddrYou)
	b = appendU16(b, m.ListenPort)
	b = appendU32(b, m.BestHeight)
	b = append(b, m.BestHash[:]...)
	return b
}

func UnmarshalGetAddrRequest(data []byte) (*GetAddrRequest, error) {
	r := &byteReader{b: data}
	var m GetAddrRequest
	var err error
	if m.ProtoVersion, err = r.u32(); err != nil {
		return nil, err
	}
	if m.AddrYou, err = unmarshalAddrInfo(r); err != nil {
		return nil, err
	}
	if m.ListenPort, err = r.u16(); err != nil {
		return nil, err
	}
	if m.BestHeight, err = r.u32(); err != nil {
		return nil, err
	}
	if err := r.hash(&m.BestHash); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAddrResponse is the GetAddr wire reply.
type GetAddrResponse struct {
	ProtoVersion uint32
	ObservedAddr AddrInfo
	BestHeight   uint32
	BestHash     crypto.Hash256
	Neighbors    []AddrInfo
}

func (m GetAddrResponse) Marshal() []byte {
	var b []byte
	b = appendU32(b, m.ProtoVersion)
	b = marshalAddrInfo(b, m.ObservedAddr)
	b = appendU32(b, m.BestHeight)
	b = append(b, m.BestHash[:]...)
	b = appendU32(b, uint32(len(m.Neighbors)))
	for _, n := range m.Neighbors {
		b = marshalAddrInfo(b, n)
	}
	return b
}

func UnmarshalGetAddrResponse(data []byte) (*GetAddrResponse, error) {
	r := &byteReader{b: data}
	var m GetAddrResponse
	var err error
	if m.ProtoVersion, err = r.u32(); err != nil {
		return nil, err
	}
	if m.ObservedAddr, err = unmarshalAddrInfo(r); err != nil {
		return nil, err
	}
	if m.BestHeight, err = r.u32(); err != nil {
		return nil, err
	}
	if err := r.hash(&m.BestHash); err != nil {
		return nil, err
	}
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.Neighbors = make([]AddrInfo, n)
	for i := range m.Neighbors {
		if m.Neighbors[i], err = unmarshalAddrInfo(r); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// AdvertiseRequest carries only the sender's own address.
type AdvertiseRequest struct {
	AddrOfSender AddrInfo
}

func (m AdvertiseRequest) Marshal() []byte {
	return marshalAddrInfo(nil, m.AddrOfSender)
}

func UnmarshalAdvertiseRequest(data []byte) (*AdvertiseRequest, error) {
	r := &byteReader{b: data}
	addr, err := unmarshalAddrInfo(r)
	if err != nil {
		return nil, err
	}
	return &AdvertiseRequest{AddrOfSender: addr}, nil
}

// GetBlocksRequest means "starting just after MyHash, give me blocks up to
// and including YourHash".
type GetBlocksRequest struct {
	YourHash crypto.Hash256
	MyHash   crypto.Hash256
}

func (m GetBlocksRequest) Marshal() []byte {
	b := append([]byte(nil), m.YourHash[:]...)
	return append(b, m.MyHash[:]...)
}

func UnmarshalGetBlocksRequest(data []byte) (*GetBlocksRequest, error) {
	r := &byteReader{b: data}
	var m GetBlocksRequest
	if err := r.hash(&m.YourHash); err != nil {
		return nil, err
	}
	if err := r.hash(&m.MyHash); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetBlocksOutcome discriminates the reply variants GetBlocks can send.
type GetBlocksOutcome uint8

const (
	GetBlocksOK GetBlocksOutcome = iota
	GetBlocksUnknownHash
	GetBlocksDisconnectedChains
	GetBlocksBadChainIndex
	GetBlocksBadHashes
)

// GetBlocksResponse is the GetBlocks wire reply. Only Blocks is populated
// when Outcome == GetBlocksOK; UnknownHash carries the offending hash.
type GetBlocksResponse struct {
	Outcome     GetBlocksOutcome
	UnknownHash crypto.Hash256
	Blocks      []chain.Block
}

func (m GetBlocksResponse) Marshal() []byte {
	b := []byte{byte(m.Outcome)}
	switch m.Outcome {
	case GetBlocksUnknownHash:
		b = append(b, m.UnknownHash[:]...)
	case GetBlocksOK:
		b = appendU32(b, uint32(len(m.Blocks)))
		for i := range m.Blocks {
			blockBytes := chain.MarshalBlock(&m.Blocks[i])
			b = appendU32(b, uint32(len(blockBytes)))
			b = append(b, blockBytes...)
		}
	}
	return b
}

func UnmarshalGetBlocksResponse(data []byte) (*GetBlocksResponse, error) {
	r := &byteReader{b: data}
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	m := &GetBlocksResponse{Outcome: GetBlocksOutcome(tag)}
	switch m.Outcome {
	case GetBlocksUnknownHash:
		if err := r.hash(&m.UnknownHash); err != nil {
			return nil, err
		}
	case GetBlocksOK:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		m.Blocks = make([]chain.Block, n)
		for i := range m.Blocks {
			blen, err := r.u32()
			if err != nil {
				return nil, err
			}
			raw, err := r.bytes(int(blen))
			if err != nil {
				return nil, err
			}
			block, err := chain.UnmarshalBlock(raw)
			if err != nil {
				return nil, err
			}
			m.Blocks[i] = *block
		}
	}
	return m, nil
}

// NewTxnRequest relays a freshly-seen transaction.
type NewTxnRequest struct {
	Txn chain.Tx
}

func (m NewTxnRequest) Marshal() []byte {
	return chain.MarshalTx(&m.Txn)
}

func UnmarshalNewTxnRequest(data []byte) (*NewTxnRequest, error) {
	tx, _, err := chain.UnmarshalTx(data)
	if err != nil {
		return nil, err
	}
	return &NewTxnRequest{Txn: *tx}, nil
}

// NewBlockRequest relays a freshly-mined or freshly-seen block.
type NewBlockRequest struct {
	Block chain.Block
}

func (m NewBlockRequest) Marshal() []byte {
	return chain.MarshalBlock(&m.Block)
}

func UnmarshalNewBlockRequest(data []byte) (*NewBlockRequest, error) {
	block, err := chain.UnmarshalBlock(data)
	if err != nil {
		return nil, err
	}
	return &NewBlockRequest{Block: *block}, nil
}

// byteReader and the little-endian helpers below mirror chain's wire
// encoding discipline (manual little-endian primitives, offset-tracking
// reader) so the two packages' on-wire framing reads the same way.

type byteReader struct {
	b   []byte
	off int
}

func (r *byteReader) u8() (uint8, error) {
	if r.off+1 > len(r.b) {
		return 0, fmt.Errorf("p2p: unexpected EOF")
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

func (r *byteReader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *byteReader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("p2p: unexpected EOF")
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *byteReader) hash(out *crypto.Hash256) error {
	b, err := r.bytes(32)
	if err != nil {
		return err
	}
	copy(out[:], b)
	return nil
}

func (r *byteReader) string() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func appendU16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

func appendU32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func appendString(dst []byte, s string) []byte {
	dst = appendU32(dst, uint32(len(s)))
	return append(dst, s...)
}
