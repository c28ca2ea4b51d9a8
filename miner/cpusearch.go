package miner

import (
	"github.com/Dezzmeister/tsengcoin/chain"
)

// CPUSearch is the trivial HashSearch backend: it tries sequential nonces
// starting from zero and continuing across calls, computing SHA-256(header) directly on this
// process's CPU. A GPU/OpenCL backend would implement the same interface
// against a compiled kernel instead.
type CPUSearch struct {
	next uint64
}

// Search tries batchSize consecutive nonces (as 32-byte big-endian counters
// seeded from s.next) looking for one where the header hash beats target.
func (s *CPUSearch) Search(header chain.BlockHeader, batchSize uint64) (Winner, bool, error) {
	for i := uint64(0); i < batchSize; i++ {
		var nonce [32]byte
		putUint64BE(nonce[24:], s.next+i)

		header.Nonce = nonce
		hash := chain.HashHeader(header)
		if hash.Less(header.DifficultyTarget) {
			s.next += i + 1
			return Winner{Nonce: nonce, Hash: hash}, true, nil
		}
	}
	s.next += batchSize
	return Winner{}, false, nil
}

func putUint64BE(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

var _ HashSearch = (*CPUSearch)(nil)
