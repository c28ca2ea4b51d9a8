package chain

import (
	"fmt"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// Outpoint identifies a single spendable output: the transaction that
// created it and the output's index within that transaction.
type Outpoint struct {
	TxHash    crypto.Hash256
	OutputIdx uint32
}

// UtxoEntry tracks one transaction's still-unspent outputs. Block is nil
// while the transaction is only pending (not yet confirmed in a block).
type UtxoEntry struct {
	Block             *crypto.Hash256
	Txn               crypto.Hash256
	LiveOutputIndices map[uint32]bool
}

// UTXOIndex maps a producing transaction's hash to its liveness entry,
// which groups the indices of that transaction's still-unspent outputs. An
// entry is removed once its last live output is spent.
type UTXOIndex struct {
	entries map[crypto.Hash256]*UtxoEntry
}

func NewUTXOIndex() *UTXOIndex {
	return &UTXOIndex{entries: make(map[crypto.Hash256]*UtxoEntry)}
}

// Lookup resolves op to its producing output via txLookup (a confirmed- or
// pending-pool resolver), returning ok=false if op is missing or spent.
func (u *UTXOIndex) Lookup(op Outpoint, txLookup func(crypto.Hash256) (*Tx, bool)) (*TxOutput, bool) {
	entry, ok := u.entries[op.TxHash]
	if !ok || !entry.LiveOutputIndices[op.OutputIdx] {
		return nil, false
	}
	tx, ok := txLookup(op.TxHash)
	if !ok || int(op.OutputIdx) >= len(tx.Outputs) {
		return nil, false
	}
	return &tx.Outputs[op.OutputIdx], true
}

// Entry returns the raw liveness entry for a transaction hash, if tracked.
func (u *UTXOIndex) Entry(txHash crypto.Hash256) (*UtxoEntry, bool) {
	e, ok := u.entries[txHash]
	return e, ok
}

// IsLive reports whether op is currently a live, unspent output.
func (u *UTXOIndex) IsLive(op Outpoint) bool {
	entry, ok := u.entries[op.TxHash]
	if !ok {
		return false
	}
	return entry.LiveOutputIndices[op.OutputIdx]
}

// ApplyUnconfirmed spends tx's inputs and creates a new pending entry for
// its outputs. Coinbase inputs (OutputIdx == CoinbaseOutputIdx) are not
// looked up — the coinbase produces outputs without spending anything.
func (u *UTXOIndex) ApplyUnconfirmed(tx *Tx) {
	for _, in := range tx.Inputs {
		if in.OutputIdx == CoinbaseOutputIdx {
			continue
		}
		entry, ok := u.entries[in.PrevTxn]
		if !ok {
			continue
		}
		delete(entry.LiveOutputIndices, in.OutputIdx)
		if len(entry.LiveOutputIndices) == 0 {
			delete(u.entries, in.PrevTxn)
		}
	}

	live := make(map[uint32]bool, len(tx.Outputs))
	for i := range tx.Outputs {
		live[uint32(i)] = true
	}
	u.entries[tx.Hash] = &UtxoEntry{
		Block:             nil,
		Txn:               tx.Hash,
		LiveOutputIndices: live,
	}
}

// Confirm promotes every entry still marked pending (Block == nil) to
// blockHash. Called once, immediately after the block is accepted.
func (u *UTXOIndex) Confirm(blockHash crypto.Hash256) {
	h := blockHash
	for _, entry := range u.entries {
		if entry.Block == nil {
			entry.Block = &h
		}
	}
}

// RebuildFromPrefix discards the index and replays ApplyUnconfirmed then
// Confirm for every transaction of every block in blocks, in order,
// starting from genesis. Used whenever a reorg or block-validation attempt
// needs to recompute the index from a known-good prefix.
func (u *UTXOIndex) RebuildFromPrefix(blocks []Block) {
	u.entries = make(map[crypto.Hash256]*UtxoEntry)
	for i := range blocks {
		b := &blocks[i]
		for j := range b.Transactions {
			u.ApplyUnconfirmed(&b.Transactions[j])
		}
		u.Confirm(b.Header.Hash)
	}
}

// Clone returns a deep copy, used to stash the index aside before a
// speculative mutation (e.g. block validation) that might need to be
// rolled back.
func (u *UTXOIndex) Clone() *UTXOIndex {
	out := NewUTXOIndex()
	for k, v := range u.entries {
		live := make(map[uint32]bool, len(v.LiveOutputIndices))
		for idx := range v.LiveOutputIndices {
			live[idx] = true
		}
		var block *crypto.Hash256
		if v.Block != nil {
			h := *v.Block
			block = &h
		}
		out.entries[k] = &UtxoEntry{Block: block, Txn: v.Txn, LiveOutputIndices: live}
	}
	return out
}

// Owner recognizes P2PKH ownership by the lock script's exact textual form.
func Owner(out *TxOutput) (crypto.Hash160, bool) {
	return P2PKHAddress(out.LockScript.Code)
}

// ErrInsufficientFunds is returned by CollectChange when the address's
// known UTXOs can't cover the requested amount.
var ErrInsufficientFunds = fmt.Errorf("chain: insufficient funds")

// SpendableOutput pairs an outpoint with the output it refers to, for
// UTXOs recognized as owned by some address.
type SpendableOutput struct {
	Outpoint Outpoint
	Output   TxOutput
}

// CollectChange walks owned, live UTXOs for addr in the order of the
// transaction hashes given in order, accumulating until the running total is >= required. It performs
// no greedy optimization: ordering is deterministic and independent of
// amounts. txLookup must resolve a transaction hash (confirmed or pending)
// to its Tx.
func (u *UTXOIndex) CollectChange(addr crypto.Hash160, required uint64, order []crypto.Hash256, txLookup func(crypto.Hash256) (*Tx, bool)) ([]SpendableOutput, uint64, error) {
	var picked []SpendableOutput
	var total uint64

	for _, txHash := range order {
		entry, ok := u.entries[txHash]
		if !ok {
			continue
		}
		tx, ok := txLookup(txHash)
		if !ok {
			continue
		}
		for idx := range tx.Outputs {
			if !entry.LiveOutputIndices[uint32(idx)] {
				continue
			}
			out := tx.Outputs[idx]
			owner, ok := Owner(&out)
			if !ok || owner != addr {
				continue
			}
			picked = append(picked, SpendableOutput{
				Outpoint: Outpoint{TxHash: txHash, OutputIdx: uint32(idx)},
				Output:   out,
			})
			total += out.Amount
			if total >= required {
				return picked, total, nil
			}
		}
	}

	return nil, 0, ErrInsufficientFunds
}

// Balance sums the amounts of every live, owned UTXO for addr.
func (u *UTXOIndex) Balance(addr crypto.Hash160, txLookup func(crypto.Hash256) (*Tx, bool)) uint64 {
	var total uint64
	for txHash, entry := range u.entries {
		tx, ok := txLookup(txHash)
		if !ok {
			continue
		}
		for idx := range tx.Outputs {
			if !entry.LiveOutputIndices[uint32(idx)] {
				continue
			}
			owner, ok := Owner(&tx.Outputs[idx])
			if ok && owner == addr {
				total += tx.Outputs[idx].Amount
			}
		}
	}
	return total
}
