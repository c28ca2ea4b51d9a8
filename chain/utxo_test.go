package chain

import (
	"testing"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

func txLookupOver(txns ...*Tx) func(crypto.Hash256) (*Tx, bool) {
	return func(h crypto.Hash256) (*Tx, bool) {
		for _, tx := range txns {
			if tx.Hash == h {
				return tx, true
			}
		}
		return nil, false
	}
}

func TestUTXOIndexApplyAndSpend(t *testing.T) {
	addr := crypto.Hash160{7}
	var extraNonce [32]byte
	coinbase := MakeCoinbaseTx(addr, "", 0, extraNonce)

	idx := NewUTXOIndex()
	idx.ApplyUnconfirmed(coinbase)

	op := Outpoint{TxHash: coinbase.Hash, OutputIdx: 0}
	if !idx.IsLive(op) {
		t.Fatal("expected coinbase output to be live")
	}

	spend := &Tx{
		Version: 1,
		Inputs:  []TxInput{{PrevTxn: coinbase.Hash, OutputIdx: 0}},
		Outputs: []TxOutput{{Amount: 1000, LockScript: MakeP2PKHLock(crypto.Hash160{9})}},
	}
	spend.Hash = HashTx(spend)
	idx.ApplyUnconfirmed(spend)

	if idx.IsLive(op) {
		t.Fatal("expected spent coinbase output to no longer be live")
	}
	if !idx.IsLive(Outpoint{TxHash: spend.Hash, OutputIdx: 0}) {
		t.Fatal("expected spend's own output to be live")
	}
}

func TestUTXOIndexConfirmAndRebuild(t *testing.T) {
	addr := crypto.Hash160{1}
	var nonce [32]byte
	coinbase := MakeCoinbaseTx(addr, "", 0, nonce)

	idx := NewUTXOIndex()
	idx.ApplyUnconfirmed(coinbase)
	entry, ok := idx.Entry(coinbase.Hash)
	if !ok || entry.Block != nil {
		t.Fatal("expected a pending (unconfirmed) entry before Confirm")
	}

	blockHash := crypto.Hash256{0xaa}
	idx.Confirm(blockHash)
	entry, ok = idx.Entry(coinbase.Hash)
	if !ok || entry.Block == nil || *entry.Block != blockHash {
		t.Fatal("expected entry to be confirmed into blockHash")
	}

	block := Block{Header: BlockHeader{Hash: blockHash}, Transactions: []Tx{*coinbase}}
	idx.RebuildFromPrefix([]Block{block})
	entry, ok = idx.Entry(coinbase.Hash)
	if !ok || entry.Block == nil || *entry.Block != blockHash {
		t.Fatal("expected rebuild from prefix to reproduce the same confirmed state")
	}
}

func TestUTXOIndexCloneIsIndependent(t *testing.T) {
	addr := crypto.Hash160{3}
	var nonce [32]byte
	coinbase := MakeCoinbaseTx(addr, "", 0, nonce)

	idx := NewUTXOIndex()
	idx.ApplyUnconfirmed(coinbase)
	clone := idx.Clone()

	spend := &Tx{
		Version: 1,
		Inputs:  []TxInput{{PrevTxn: coinbase.Hash, OutputIdx: 0}},
		Outputs: []TxOutput{{Amount: 1, LockScript: MakeP2PKHLock(crypto.Hash160{4})}},
	}
	spend.Hash = HashTx(spend)
	idx.ApplyUnconfirmed(spend)

	if !clone.IsLive(Outpoint{TxHash: coinbase.Hash, OutputIdx: 0}) {
		t.Fatal("mutating the original index should not affect the clone")
	}
}

func TestCollectChangeInsertionOrderNoGreedyOptimization(t *testing.T) {
	addr := crypto.Hash160{5}
	mk := func(amount uint64, extra byte) *Tx {
		var nonce [32]byte
		nonce[0] = extra
		tx := MakeCoinbaseTx(addr, "", 0, nonce)
		tx.Outputs[0].Amount = amount
		tx.Hash = HashTx(tx)
		return tx
	}

	small := mk(10, 1)
	big := mk(1000, 2)

	idx := NewUTXOIndex()
	idx.ApplyUnconfirmed(small)
	idx.ApplyUnconfirmed(big)

	order := []crypto.Hash256{small.Hash, big.Hash}
	picked, total, err := idx.CollectChange(addr, 15, order, txLookupOver(small, big))
	if err != nil {
		t.Fatalf("CollectChange: %v", err)
	}
	// Insertion order means both small and big get picked (small alone is
	// insufficient), not just big, which alone would cover the amount.
	if len(picked) != 2 || total != 1010 {
		t.Fatalf("expected both UTXOs picked in order (got %d, total %d)", len(picked), total)
	}
}

func TestCollectChangeInsufficientFunds(t *testing.T) {
	addr := crypto.Hash160{6}
	var nonce [32]byte
	tx := MakeCoinbaseTx(addr, "", 0, nonce)
	tx.Outputs[0].Amount = 5

	idx := NewUTXOIndex()
	idx.ApplyUnconfirmed(tx)

	_, _, err := idx.CollectChange(addr, 100, []crypto.Hash256{tx.Hash}, txLookupOver(tx))
	if err != ErrInsufficientFunds {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestBalanceSumsOwnedLiveOutputs(t *testing.T) {
	addr := crypto.Hash160{8}
	var nonce [32]byte
	tx := MakeCoinbaseTx(addr, "", 250, nonce)

	idx := NewUTXOIndex()
	idx.ApplyUnconfirmed(tx)

	got := idx.Balance(addr, txLookupOver(tx))
	if got != tx.Outputs[0].Amount {
		t.Fatalf("got %d, want %d", got, tx.Outputs[0].Amount)
	}
}
