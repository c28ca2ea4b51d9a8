package chain

import (
	"math/big"
	"testing"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// chainBlock builds a minimal block linked to parent, with a distinguishing
// coinbase meta so its hash is unique. Difficulty targets are left at a
// constant value since these tests exercise chain-store bookkeeping, not
// proof-of-work.
func chainBlock(parent crypto.Hash256, tag string, target crypto.Hash256) Block {
	var nonce [32]byte
	coinbase := MakeCoinbaseTx(crypto.Hash160{1}, tag, 0, nonce)
	header := BlockHeader{
		Version:          1,
		PrevHash:         parent,
		MerkleRoot:       coinbase.Hash,
		Timestamp:        1,
		DifficultyTarget: target,
	}
	header.Hash = HashHeader(header)
	return Block{Header: header, Transactions: []Tx{*coinbase}}
}

func lightTarget(n byte) crypto.Hash256 {
	var t crypto.Hash256
	t[0] = n
	return t
}

func TestAddBlockExtendsMain(t *testing.T) {
	cs := NewChainStore()
	b1 := chainBlock(cs.Tip().Header.Hash, "b1", lightTarget(1))
	if ok := cs.AddBlock(b1); !ok {
		t.Fatal("expected block extending main tip to be accepted")
	}
	if cs.Height() != 1 {
		t.Fatalf("height = %d, want 1", cs.Height())
	}
	if cs.Tip().Header.Hash != b1.Header.Hash {
		t.Fatal("expected tip to be the newly added block")
	}
}

func TestAddBlockOrphanWhenParentUnknown(t *testing.T) {
	cs := NewChainStore()
	unknownParent := crypto.Hash256{0xff}
	orphan := chainBlock(unknownParent, "orphan", lightTarget(1))
	if ok := cs.AddBlock(orphan); !ok {
		t.Fatal("expected orphan to be accepted into the orphan pool")
	}
	if _, ok := cs.Orphans[orphan.Header.Hash]; !ok {
		t.Fatal("expected orphan to be tracked")
	}
	if cs.Height() != 0 {
		t.Fatal("orphan must not extend main")
	}
}

func TestAddBlockStartsForkFromInteriorMainBlock(t *testing.T) {
	cs := NewChainStore()
	b1 := chainBlock(cs.Tip().Header.Hash, "b1", lightTarget(1))
	cs.AddBlock(b1)
	b2 := chainBlock(b1.Header.Hash, "b2", lightTarget(1))
	cs.AddBlock(b2)

	// A competing block built on b1, not on the tip b2: should start a fork.
	fork := chainBlock(b1.Header.Hash, "fork", lightTarget(1))
	if ok := cs.AddBlock(fork); !ok {
		t.Fatal("expected fork off an interior main block to be accepted")
	}
	if len(cs.Forks) != 1 {
		t.Fatalf("expected exactly one fork, got %d", len(cs.Forks))
	}
	if cs.Forks[0].ForkPoint != 1 {
		t.Fatalf("fork point = %d, want 1", cs.Forks[0].ForkPoint)
	}
}

func TestAddBlockRejectsForkOfFork(t *testing.T) {
	cs := NewChainStore()
	genesisHash := cs.Tip().Header.Hash
	b1 := chainBlock(genesisHash, "b1", lightTarget(1))
	cs.AddBlock(b1)
	fork1 := chainBlock(genesisHash, "fork1", lightTarget(1))
	cs.AddBlock(fork1)
	fork1b := chainBlock(fork1.Header.Hash, "fork1b", lightTarget(1))
	cs.AddBlock(fork1b)

	// fork1 is now interior to the fork, so a block on it forks the fork.
	forkOfFork := chainBlock(fork1.Header.Hash, "fork2", lightTarget(1))
	if ok := cs.AddBlock(forkOfFork); ok {
		t.Fatal("expected a fork of a fork to be rejected, per the resolved Open Question")
	}
}

func TestResolveForksReorgsToLighterWeightFork(t *testing.T) {
	// Lower DifficultyTarget bytes mean a harder (more-work) block in this
	// module's weight accounting convention: BestChain picks the chain with
	// the MINIMUM cumulative target sum.
	cs := NewChainStore()
	genesisHash := cs.Tip().Header.Hash

	mainB1 := chainBlock(genesisHash, "main1", lightTarget(10))
	cs.AddBlock(mainB1)

	forkB1 := chainBlock(genesisHash, "fork1", lightTarget(1))
	cs.AddBlock(forkB1)
	forkB2 := chainBlock(forkB1.Header.Hash, "fork2", lightTarget(1))
	cs.AddBlock(forkB2)

	_, chainIdx, ambiguous := cs.BestChain()
	if ambiguous {
		t.Fatal("did not expect an ambiguous tie")
	}
	if chainIdx != 1 {
		t.Fatalf("expected fork (idx 1) to win on lower cumulative weight, got %d", chainIdx)
	}

	displaced := cs.ResolveForks()
	if len(displaced) != 1 || displaced[0].Header.Hash != mainB1.Header.Hash {
		t.Fatalf("expected main's sole block displaced, got %d blocks", len(displaced))
	}
	if cs.Height() != 2 {
		t.Fatalf("height after reorg = %d, want 2", cs.Height())
	}
	if cs.Tip().Header.Hash != forkB2.Header.Hash {
		t.Fatal("expected main to now end at the former fork's tip")
	}
	if len(cs.Forks) != 0 {
		t.Fatal("expected forks to be cleared after a reorg")
	}
}

func TestFindTxnReportsConfirmations(t *testing.T) {
	cs := NewChainStore()
	b1 := chainBlock(cs.Tip().Header.Hash, "b1", lightTarget(1))
	cs.AddBlock(b1)
	b2 := chainBlock(b1.Header.Hash, "b2", lightTarget(1))
	cs.AddBlock(b2)

	loc, ok := cs.FindTxn(b1.Transactions[0].Hash)
	if !ok {
		t.Fatal("expected to find b1's coinbase")
	}
	if loc.Confirmations != 1 {
		t.Fatalf("confirmations = %d, want 1", loc.Confirmations)
	}

	loc, ok = cs.FindTxn(b2.Transactions[0].Hash)
	if !ok {
		t.Fatal("expected to find b2's coinbase")
	}
	if loc.Confirmations != 0 {
		t.Fatalf("confirmations = %d, want 0", loc.Confirmations)
	}
}

func TestGetBlockRangeAcrossForkPoint(t *testing.T) {
	cs := NewChainStore()
	genesisHash := cs.Tip().Header.Hash
	b1 := chainBlock(genesisHash, "b1", lightTarget(1))
	cs.AddBlock(b1)
	b2 := chainBlock(b1.Header.Hash, "b2", lightTarget(1))
	cs.AddBlock(b2)
	fork1 := chainBlock(b1.Header.Hash, "fork1", lightTarget(1))
	cs.AddBlock(fork1)

	blocks := cs.GetBlockRange(1, 1, 2)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Header.Hash != b1.Header.Hash || blocks[1].Header.Hash != fork1.Header.Hash {
		t.Fatal("expected range to splice main prefix onto the fork's own blocks")
	}
}

func TestShouldRetargetBoundary(t *testing.T) {
	if ShouldRetarget(0) {
		t.Fatal("genesis height must not trigger a retarget")
	}
	if !ShouldRetarget(NumBlocksRetarget) {
		t.Fatalf("height %d should trigger a retarget", NumBlocksRetarget)
	}
	if ShouldRetarget(NumBlocksRetarget - 1) {
		t.Fatalf("height %d should not trigger a retarget", NumBlocksRetarget-1)
	}
}

func TestRetargetDifficultyClampsToQuarterAndQuadruple(t *testing.T) {
	old := lightTarget(10)
	expected := NumBlocksRetarget * TargetBlockInterval

	tooFast := RetargetDifficulty(old, expected/100)
	quarter := divTarget(old, 4)
	if tooFast != quarter {
		t.Fatalf("expected clamp to 1/4 target on a much-faster-than-expected interval, got %x want %x", tooFast, quarter)
	}

	tooSlow := RetargetDifficulty(old, expected*100)
	quadruple := mulTarget(old, 4)
	if tooSlow != quadruple {
		t.Fatalf("expected clamp to 4x target on a much-slower-than-expected interval, got %x want %x", tooSlow, quadruple)
	}
}

func divTarget(h crypto.Hash256, n int64) crypto.Hash256 {
	v := new(big.Int).Div(new(big.Int).SetBytes(h[:]), big.NewInt(n))
	return bigToHash(v)
}

func mulTarget(h crypto.Hash256, n int64) crypto.Hash256 {
	v := new(big.Int).Mul(new(big.Int).SetBytes(h[:]), big.NewInt(n))
	return bigToHash(v)
}

func bigToHash(v *big.Int) crypto.Hash256 {
	var out crypto.Hash256
	b := v.Bytes()
	copy(out[32-len(b):], b)
	return out
}
