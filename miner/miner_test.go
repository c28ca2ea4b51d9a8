package miner

import (
	"testing"
	"time"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
)

func TestMakeRawBlockFirstFitBudgetAndFees(t *testing.T) {
	miner := crypto.Hash160{1}
	difficulty := crypto.Hash256{0xff}
	prevHash := crypto.Hash256{2}

	var fees []uint64
	makeTx := func(meta string) chain.Tx {
		tx := chain.Tx{
			Version: 1,
			Inputs:  []chain.TxInput{{PrevTxn: crypto.Hash256{9}, OutputIdx: 0}},
			Outputs: []chain.TxOutput{{Amount: 1, LockScript: chain.MakeP2PKHLock(crypto.Hash160{3})}},
			Meta:    meta,
		}
		tx.Hash = chain.HashTx(&tx)
		return tx
	}

	tx1 := makeTx("a")
	tx2 := makeTx("b")
	pending := []chain.Tx{tx1, tx2}
	fees = []uint64{10, 20}

	feeOf := func(tx *chain.Tx) uint64 {
		for i, p := range pending {
			if p.Hash == tx.Hash {
				return fees[i]
			}
		}
		return 0
	}

	candidate, err := MakeRawBlock(prevHash, difficulty, pending, feeOf, miner)
	if err != nil {
		t.Fatalf("MakeRawBlock: %v", err)
	}
	if len(candidate.Transactions) != 3 {
		t.Fatalf("expected coinbase + 2 txns, got %d", len(candidate.Transactions))
	}
	coinbase := candidate.Transactions[0]
	if !coinbase.IsCoinbase() {
		t.Fatal("expected first transaction to be the coinbase")
	}
	wantAmount := uint64(chain.BlockReward + 10 + 20)
	if coinbase.Outputs[0].Amount != wantAmount {
		t.Fatalf("coinbase amount = %d, want %d", coinbase.Outputs[0].Amount, wantAmount)
	}
	if candidate.Header.PrevHash != prevHash {
		t.Fatal("expected candidate header to chain off prevHash")
	}
	if candidate.Header.MerkleRoot != chain.MakeMerkleRoot(candidate.Transactions) {
		t.Fatal("expected merkle root over the assembled transaction set")
	}
}

func TestFinishBlockAppliesWinningNonce(t *testing.T) {
	candidate := &Candidate{
		Header:       chain.BlockHeader{Version: 1},
		Transactions: nil,
	}
	winner := Winner{Nonce: [32]byte{1, 2, 3}, Hash: crypto.Hash256{9}}
	block := FinishBlock(candidate, winner)
	if block.Header.Nonce != winner.Nonce {
		t.Fatal("expected winning nonce applied to header")
	}
	if block.Header.Hash != winner.Hash {
		t.Fatal("expected winning hash applied to header")
	}
}

func TestCPUSearchFindsWinnerUnderEasyTarget(t *testing.T) {
	var easy crypto.Hash256
	for i := range easy {
		easy[i] = 0xff
	}
	header := chain.BlockHeader{
		Version:          1,
		Timestamp:        uint64(time.Now().Unix()),
		DifficultyTarget: easy,
	}

	search := &CPUSearch{}
	winner, found, err := search.Search(header, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected a winning nonce under an easy target within a small batch")
	}
	if !winner.Hash.Less(easy) {
		t.Fatal("expected winning hash to satisfy the difficulty target")
	}
}

func TestCPUSearchExhaustsBatchUnderImpossibleTarget(t *testing.T) {
	var impossible crypto.Hash256 // all-zero: nothing hashes below it
	header := chain.BlockHeader{Version: 1, DifficultyTarget: impossible}

	search := &CPUSearch{}
	_, found, err := search.Search(header, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected no winner possible against an all-zero target")
	}
}
