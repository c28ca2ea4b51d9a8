// Package mempool reconciles the pending-transaction and orphan pools
// against the chain store: promoting orphans once their parents appear,
// dropping anything a reorg has invalidated, and replaying displaced
// transactions back in after a chain reorganization.
package mempool

import (
	"time"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
	"github.com/Dezzmeister/tsengcoin/validate"
)

// Pool holds the transactions and blocks not yet confirmed into the main
// chain: pending transactions, orphan transactions (missing a parent
// output), and — via the chain store — orphan blocks (missing a parent
// block). All three are reconciled together so their invariants hold for
// any observer.
type Pool struct {
	Pending    []chain.Tx
	TxnOrphans map[crypto.Hash256]chain.Tx
}

func New() *Pool {
	return &Pool{
		TxnOrphans: make(map[crypto.Hash256]chain.Tx),
	}
}

// resolve looks up a transaction hash against pending, then the chain.
func (p *Pool) resolve(store *chain.ChainStore) validate.Resolver {
	return func(hash crypto.Hash256) (*chain.Tx, bool) {
		for i := range p.Pending {
			if p.Pending[i].Hash == hash {
				return &p.Pending[i], true
			}
		}
		if loc, ok := store.FindTxn(hash); ok {
			return loc.Txn, true
		}
		return nil, false
	}
}

// confirmationsOf reports how many confirmations a confirmed transaction
// has, used to enforce coinbase maturity.
func confirmationsOf(store *chain.ChainStore) validate.ConfirmationsFunc {
	return func(hash crypto.Hash256) (int, bool) {
		loc, ok := store.FindTxn(hash)
		if !ok {
			return 0, false
		}
		return loc.Confirmations, true
	}
}

// SubmitTxn validates a freshly-received transaction (not part of a block)
// and, if valid, appends it to pending and applies its UTXO mutation. If
// orphaned, it's recorded in the orphan pool for later promotion.
func (p *Pool) SubmitTxn(store *chain.ChainStore, tx chain.Tx) (validate.Outcome, error) {
	if p.contains(tx.Hash) {
		return validate.Valid, nil
	}

	outcome, err := validate.ValidateTxn(&tx, store.Utxos, p.resolve(store), confirmationsOf(store))
	if err != nil {
		return 0, err
	}
	switch outcome {
	case validate.Valid:
		p.Pending = append(p.Pending, tx)
		store.Utxos.ApplyUnconfirmed(&tx)
	case validate.TxnOrphan:
		p.TxnOrphans[tx.Hash] = tx
	}
	return outcome, nil
}

// contains reports whether hash is already known as pending or orphaned.
func (p *Pool) contains(hash crypto.Hash256) bool {
	for i := range p.Pending {
		if p.Pending[i].Hash == hash {
			return true
		}
	}
	_, ok := p.TxnOrphans[hash]
	return ok
}

// SubmitBlock runs full block validation and, on success, reconciles the
// resulting mempool state (the validator itself mutates p.Pending and
// p.TxnOrphans as part of its pipeline).
func (p *Pool) SubmitBlock(store *chain.ChainStore, block chain.Block, now time.Time) (validate.BlockOutcome, error) {
	outcome, err := validate.ValidateBlock(store, &p.Pending, p.TxnOrphans, block, now)
	if err != nil {
		return 0, err
	}
	if outcome == validate.NotOrphan {
		p.CheckPendingAndOrphans(store)
		p.CheckBlockOrphans(store, now)
	}
	return outcome, nil
}

// ReconcilePending re-validates every pending transaction against the
// current UTXO index and re-applies its mutation, dropping anything no
// longer valid and moving anything now-orphaned into the orphan pool. This
// is needed after the UTXO index has been rebuilt out from under pending
// (e.g. by ReplayDisplaced), since pending no longer has live UTXO entries.
func (p *Pool) ReconcilePending(store *chain.ChainStore) {
	stashed := p.Pending
	p.Pending = nil
	for _, tx := range stashed {
		tx := tx
		outcome, err := validate.ValidateTxn(&tx, store.Utxos, p.resolve(store), confirmationsOf(store))
		if err != nil {
			continue
		}
		switch outcome {
		case validate.Valid:
			p.Pending = append(p.Pending, tx)
			store.Utxos.ApplyUnconfirmed(&tx)
		case validate.TxnOrphan:
			p.TxnOrphans[tx.Hash] = tx
		}
	}
}

// CheckPendingAndOrphans repeatedly re-validates every orphaned transaction
// against the current chain+pending+UTXO state, promoting any that now
// resolve to Valid, until a full pass makes no promotions.
func (p *Pool) CheckPendingAndOrphans(store *chain.ChainStore) {
	for {
		promotedAny := false
		for hash, tx := range p.TxnOrphans {
			tx := tx
			outcome, err := validate.ValidateTxn(&tx, store.Utxos, p.resolve(store), confirmationsOf(store))
			if err != nil {
				delete(p.TxnOrphans, hash)
				continue
			}
			if outcome == validate.Valid {
				delete(p.TxnOrphans, hash)
				p.Pending = append(p.Pending, tx)
				store.Utxos.ApplyUnconfirmed(&tx)
				promotedAny = true
			}
		}
		if !promotedAny {
			return
		}
	}
}

// CheckBlockOrphans re-runs block validation for every orphaned block. A
// block that resolves to NotOrphan has been fully applied (including its
// own mempool reconciliation) and is dropped from the orphan pool; one
// still IsOrphan is kept; one that errors is dropped without being logged.
func (p *Pool) CheckBlockOrphans(store *chain.ChainStore, now time.Time) {
	for {
		progressed := false
		for hash, block := range store.Orphans {
			delete(store.Orphans, hash)
			outcome, err := validate.ValidateBlock(store, &p.Pending, p.TxnOrphans, block, now)
			if err != nil {
				continue
			}
			if outcome == validate.NotOrphan {
				progressed = true
				p.CheckPendingAndOrphans(store)
			} else {
				store.Orphans[hash] = block
			}
		}
		if !progressed {
			return
		}
	}
}

// ReplayDisplaced re-queues the non-coinbase transactions of blocks evicted
// from main by a reorg, rebuilds the UTXO index from the new main chain,
// and re-checks pending/orphans to drop anything no longer valid.
func (p *Pool) ReplayDisplaced(store *chain.ChainStore, displaced []chain.Block) {
	for i := range displaced {
		for _, tx := range displaced[i].NetworkTxns() {
			p.Pending = append(p.Pending, tx)
		}
	}
	store.Utxos.RebuildFromPrefix(store.Main)
	p.ReconcilePending(store)
	p.CheckPendingAndOrphans(store)
}
