package chain

import (
	"github.com/Dezzmeister/tsengcoin/crypto"
)

// BlockHeader carries everything needed to verify proof-of-work and chain
// linkage, plus the finished Hash.
type BlockHeader struct {
	Version          uint32
	PrevHash         crypto.Hash256
	MerkleRoot       crypto.Hash256
	Timestamp        uint64 // unix seconds
	DifficultyTarget crypto.Hash256
	Nonce            [32]byte
	Hash             crypto.Hash256
}

// Block is a header plus its transactions; Transactions[0] is always the
// coinbase.
type Block struct {
	Header       BlockHeader
	Transactions []Tx
}

// marshalRawHeader encodes every header field except Hash: the bytes that
// get hashed to produce it.
func marshalRawHeader(h BlockHeader) []byte {
	var b []byte
	b = appendU32le(b, h.Version)
	b = append(b, h.PrevHash[:]...)
	b = append(b, h.MerkleRoot[:]...)
	b = appendU64le(b, h.Timestamp)
	b = append(b, h.DifficultyTarget[:]...)
	b = append(b, h.Nonce[:]...)
	return b
}

// HashHeader computes header.Hash = SHA256(raw_header).
func HashHeader(h BlockHeader) crypto.Hash256 {
	return crypto.Sha256(marshalRawHeader(h))
}

// MarshalBlockHeader encodes a header including its hash.
func MarshalBlockHeader(h BlockHeader) []byte {
	return append(marshalRawHeader(h), h.Hash[:]...)
}

func unmarshalBlockHeader(r *reader) (BlockHeader, error) {
	var h BlockHeader
	var err error

	h.Version, err = r.u32le()
	if err != nil {
		return h, err
	}
	if err := readHash(r, &h.PrevHash); err != nil {
		return h, err
	}
	if err := readHash(r, &h.MerkleRoot); err != nil {
		return h, err
	}
	h.Timestamp, err = r.u64le()
	if err != nil {
		return h, err
	}
	if err := readHash(r, &h.DifficultyTarget); err != nil {
		return h, err
	}
	nonceBytes, err := r.bytes(32)
	if err != nil {
		return h, err
	}
	copy(h.Nonce[:], nonceBytes)
	if err := readHash(r, &h.Hash); err != nil {
		return h, err
	}
	return h, nil
}

func readHash(r *reader, out *crypto.Hash256) error {
	b, err := r.bytes(32)
	if err != nil {
		return err
	}
	copy(out[:], b)
	return nil
}

// MarshalBlock encodes a full block for storage or wire transmission.
func MarshalBlock(b *Block) []byte {
	out := MarshalBlockHeader(b.Header)
	out = appendCompactSize(out, uint64(len(b.Transactions)))
	for i := range b.Transactions {
		out = append(out, MarshalTx(&b.Transactions[i])...)
	}
	return out
}

// UnmarshalBlock decodes a block previously produced by MarshalBlock.
func UnmarshalBlock(data []byte) (*Block, error) {
	r := &reader{b: data}
	header, err := unmarshalBlockHeader(r)
	if err != nil {
		return nil, err
	}
	numTxns, err := r.compactSize()
	if err != nil {
		return nil, err
	}
	txns := make([]Tx, numTxns)
	for i := range txns {
		tx, err := unmarshalTx(r)
		if err != nil {
			return nil, err
		}
		txns[i] = *tx
	}
	return &Block{Header: header, Transactions: txns}, nil
}

// Size returns the serialized size of b in bytes.
func (b *Block) Size() int {
	return len(MarshalBlock(b))
}

// GetTxn returns the transaction in the block with the given hash, if any.
func (b *Block) GetTxn(hash crypto.Hash256) (*Tx, bool) {
	for i := range b.Transactions {
		if b.Transactions[i].Hash == hash {
			return &b.Transactions[i], true
		}
	}
	return nil, false
}

// NetworkTxns returns every transaction in the block except the coinbase.
func (b *Block) NetworkTxns() []Tx {
	if len(b.Transactions) <= 1 {
		return nil
	}
	return b.Transactions[1:]
}

// MakeMerkleRoot builds the Merkle root over a block's transaction hashes:
// bottom-up, duplicating the last hash at any odd-sized level, with a
// single transaction's hash passing straight through.
func MakeMerkleRoot(txns []Tx) crypto.Hash256 {
	hashes := make([]crypto.Hash256, len(txns))
	for i := range txns {
		hashes[i] = txns[i].Hash
	}
	return MakeMerkleRootFromHashes(hashes)
}

// MakeMerkleRootFromHashes is the hash-only variant of MakeMerkleRoot.
func MakeMerkleRootFromHashes(hashes []crypto.Hash256) crypto.Hash256 {
	if len(hashes) == 0 {
		return crypto.Hash256{}
	}
	level := append([]crypto.Hash256(nil), hashes...)
	for len(level) > 1 {
		level = merkleRound(level)
	}
	return level[0]
}

func merkleRound(level []crypto.Hash256) []crypto.Hash256 {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	out := make([]crypto.Hash256, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		buf := make([]byte, 0, 64)
		buf = append(buf, level[i][:]...)
		buf = append(buf, level[i+1][:]...)
		out = append(out, crypto.Sha256(buf))
	}
	return out
}
