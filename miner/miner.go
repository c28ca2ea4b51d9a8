// Package miner assembles candidate blocks from the mempool and hands them
// off to a hash-search backend, reacting to a small control channel of
// MinerMessage events in the meantime.
package miner

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
)

// ResetInterval forces regeneration of the candidate block regardless of
// control-channel activity.
const ResetInterval = 30 * time.Minute

// MessageKind discriminates MinerMessage variants.
type MessageKind int

const (
	// NewTransactions signals an opportunity to fold fresh txns into the
	// candidate block. Count is how many arrived.
	NewTransactions MessageKind = iota
	// NewBlock signals a competitor found a block; abandon current work.
	NewBlock
	// NewDifficulty signals a difficulty retarget.
	NewDifficulty
)

// MinerMessage is the single control-channel message type the miner loop
// consumes.
type MinerMessage struct {
	Kind MessageKind

	Count uint32 // NewTransactions

	BlockHash      crypto.Hash256 // NewBlock
	PendingChanged bool           // NewBlock

	Target crypto.Hash256 // NewDifficulty
}

// Candidate is a block assembled but not yet hashed: everything but the
// winning nonce and header hash.
type Candidate struct {
	Header       chain.BlockHeader // Nonce and Hash are zero
	Transactions []chain.Tx
}

// coinbaseEstimate is a conservative upper bound on a coinbase
// transaction's serialized size, used to leave room for it in the block
// size budget before the actual fee total (and thus amount) is known.
const coinbaseEstimate = 256

// MakeRawBlock assembles a candidate: a first-fit subset of pending
// (insertion order, no knapsack optimization) that fits within
// MaxBlockSize-coinbaseEstimate, a coinbase paying BlockReward+fees to
// miner with a random 32-byte extra-nonce, and a merkle root over the
// result. The header's Nonce and Hash are left zero for the backend to
// fill in.
func MakeRawBlock(prevHash crypto.Hash256, difficulty crypto.Hash256, pending []chain.Tx, feeOf func(*chain.Tx) uint64, miner crypto.Hash160) (*Candidate, error) {
	budget := chain.MaxBlockSize - coinbaseEstimate
	selected := make([]chain.Tx, 0, len(pending))
	size := 0
	var fees uint64

	for i := range pending {
		tx := pending[i]
		txSize := tx.Size()
		if size+txSize > budget {
			continue
		}
		size += txSize
		selected = append(selected, tx)
		fees += feeOf(&tx)
	}

	var extraNonce [32]byte
	if _, err := rand.Read(extraNonce[:]); err != nil {
		return nil, fmt.Errorf("miner: failed to generate extra-nonce: %w", err)
	}
	coinbase := chain.MakeCoinbaseTx(miner, "", fees, extraNonce)

	txns := append([]chain.Tx{*coinbase}, selected...)

	header := chain.BlockHeader{
		Version:          1,
		PrevHash:         prevHash,
		MerkleRoot:       chain.MakeMerkleRoot(txns),
		Timestamp:        uint64(time.Now().Unix()),
		DifficultyTarget: difficulty,
	}

	return &Candidate{Header: header, Transactions: txns}, nil
}

// Winner is what the hash-search backend reports once it finds a nonce
// satisfying the candidate's difficulty target.
type Winner struct {
	Nonce [32]byte
	Hash  crypto.Hash256
}

// FinishBlock assembles the full header (with the backend's nonce and
// hash) and block from a candidate and its winner.
func FinishBlock(c *Candidate, w Winner) chain.Block {
	header := c.Header
	header.Nonce = w.Nonce
	header.Hash = w.Hash
	return chain.Block{Header: header, Transactions: c.Transactions}
}
