package validate

import (
	"time"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
)

// BlockOutcome classifies a validated block.
type BlockOutcome int

const (
	// NotOrphan means the block was accepted (appended to main or a fork)
	// and every side effect (UTXO confirmation, mempool reconciliation)
	// has already happened.
	NotOrphan BlockOutcome = iota
	// IsOrphan means the block's parent isn't known yet; it was stashed in
	// the chain store's orphan pool and nothing else was mutated.
	IsOrphan
)

// BlockTimestampTolerance bounds how far a block's timestamp may drift from
// validator wall-clock time in either direction.
const BlockTimestampTolerance = 2 * time.Hour

// ValidateBlock runs the full, mutating block-acceptance pipeline against
// block. On success (NotOrphan) the block has been appended to store, the
// UTXO index confirmed, and pending/orphans reconciled. On any failure the
// pre-call UTXO index and pending list are restored unchanged.
//
// pending is the mempool's pending-transaction list; orphans is its
// transaction-orphan pool (distinct from the chain store's block-orphan
// pool). Both are mutated in place.
func ValidateBlock(
	store *chain.ChainStore,
	pending *[]chain.Tx,
	orphans map[crypto.Hash256]chain.Tx,
	block chain.Block,
	now time.Time,
) (BlockOutcome, error) {
	if block.Size() > chain.MaxBlockSize {
		return 0, blockErr(BlockTooLarge)
	}
	if len(block.Transactions) == 0 {
		return 0, blockErr(EmptyBlock)
	}

	chainIdx, pos, found := store.FindParent(block.Header.PrevHash)
	if !found {
		store.Orphans[block.Header.Hash] = block
		return IsOrphan, nil
	}

	if block.Header.DifficultyTarget != store.CurrentDifficulty() {
		return 0, blockErr(IncorrectDifficulty)
	}
	if !block.Header.Hash.Less(block.Header.DifficultyTarget) {
		return 0, blockErr(FailedProofOfWork)
	}
	if block.Header.Hash != chain.HashHeader(block.Header) {
		return 0, blockErr(InvalidHeaderHash)
	}
	age := now.Unix() - int64(block.Header.Timestamp)
	if age > int64(BlockTimestampTolerance.Seconds()) || -age > int64(BlockTimestampTolerance.Seconds()) {
		return 0, blockErr(OldBlock)
	}

	// Step 7: rebuild the UTXO index from the prefix up to and including the
	// parent, discarding any pending-txn contributions. Stash the current
	// index so a mid-pipeline failure can restore it exactly.
	stashedUtxos := store.Utxos
	store.Utxos = stashedUtxos.Clone()
	store.Utxos.RebuildFromPrefix(store.PrefixUpTo(chainIdx, pos))

	// Step 8: stash pending aside, start a fresh one scoped to this block.
	stashedPending := append([]chain.Tx(nil), *pending...)
	*pending = nil

	restore := func() {
		store.Utxos = stashedUtxos
		*pending = stashedPending
	}

	coinbase := block.Transactions[0]
	store.Utxos.ApplyUnconfirmed(&coinbase)

	promoted := make(map[crypto.Hash256]bool)
	var fees uint64

	resolve := func(hash crypto.Hash256) (*chain.Tx, bool) {
		for i := range *pending {
			if (*pending)[i].Hash == hash {
				return &(*pending)[i], true
			}
		}
		if loc, ok := store.FindTxn(hash); ok {
			return loc.Txn, true
		}
		return nil, false
	}
	confirmationsOf := func(hash crypto.Hash256) (int, bool) {
		loc, ok := store.FindTxn(hash)
		if !ok {
			return 0, false
		}
		return loc.Confirmations, true
	}

	for i := 1; i < len(block.Transactions); i++ {
		txn := block.Transactions[i]

		outcome, err := ValidateTxn(&txn, store.Utxos, resolve, confirmationsOf)
		if err != nil {
			restore()
			return 0, blockTxnErr(err, txn.Hash)
		}
		if outcome == TxnOrphan {
			restore()
			return 0, blockOrphanTxnErr(txn.Hash)
		}

		promoted[txn.Hash] = true
		*pending = append(*pending, txn)
		store.Utxos.ApplyUnconfirmed(&txn)

		inputSum, outputSum := uint64(0), uint64(0)
		for _, out := range txn.Outputs {
			outputSum += out.Amount
		}
		for _, in := range txn.Inputs {
			if prevOut, ok := store.Utxos.Lookup(chain.Outpoint{TxHash: in.PrevTxn, OutputIdx: in.OutputIdx}, resolve); ok {
				inputSum += prevOut.Amount
			} else if loc, ok := store.FindTxn(in.PrevTxn); ok && int(in.OutputIdx) < len(loc.Txn.Outputs) {
				inputSum += loc.Txn.Outputs[in.OutputIdx].Amount
			}
		}
		fees += inputSum - outputSum
	}

	// Step 11: coinbase-specific checks.
	if len(coinbase.Inputs) != 1 || coinbase.Inputs[0].PrevTxn != crypto.ZeroHash256 ||
		coinbase.Inputs[0].OutputIdx != chain.CoinbaseOutputIdx || len(coinbase.Outputs) != 1 {
		restore()
		return 0, blockErr(InvalidCoinbase)
	}
	expected := uint64(chain.BlockReward) + fees
	if coinbase.Outputs[0].Amount != expected {
		restore()
		return 0, blockCoinbaseAmountErr(expected, coinbase.Outputs[0].Amount)
	}
	if coinbase.Hash != chain.HashTx(&coinbase) {
		restore()
		return 0, blockErr(InvalidCoinbase)
	}

	// Step 12: merkle root.
	if chain.MakeMerkleRoot(block.Transactions) != block.Header.MerkleRoot {
		restore()
		return 0, blockErr(InvalidMerkleRoot)
	}

	// Step 13: restore stashed pending minus promoted txns, drop promoted
	// ones from the orphan pool, append the block, confirm its UTXOs.
	var survivors []chain.Tx
	for _, tx := range stashedPending {
		if !promoted[tx.Hash] {
			survivors = append(survivors, tx)
		}
	}
	for hash := range promoted {
		delete(orphans, hash)
	}

	store.AddBlock(block)
	store.Utxos.Confirm(block.Header.Hash)

	// Re-validate each surviving pending txn against the now-confirmed
	// chain state and re-admit (with UTXO mutation) whatever still holds.
	for _, tx := range survivors {
		tx := tx
		outcome, err := ValidateTxn(&tx, store.Utxos, resolve, confirmationsOf)
		if err != nil {
			continue
		}
		if outcome == TxnOrphan {
			orphans[tx.Hash] = tx
			continue
		}
		*pending = append(*pending, tx)
		store.Utxos.ApplyUnconfirmed(&tx)
	}

	return NotOrphan, nil
}
