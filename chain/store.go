package chain

import (
	"math/big"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// ForkChain is a chain of blocks branching off main at ForkPoint (the
// height, in main, of the block the fork's first block builds on).
type ForkChain struct {
	ForkPoint int
	Blocks    []Block
}

// ChainStore holds the main chain, any live forks, the orphan block pool,
// and the UTXO index derived from main. All of its methods assume the
// caller already holds whatever lock guards concurrent access.
type ChainStore struct {
	Main    []Block
	Forks   []ForkChain
	Orphans map[crypto.Hash256]Block
	Utxos   *UTXOIndex
}

// NewChainStore returns a store seeded with the genesis block, with the
// genesis coinbase already applied and confirmed into the UTXO index.
func NewChainStore() *ChainStore {
	genesis := GenesisBlock()
	utxos := NewUTXOIndex()
	utxos.ApplyUnconfirmed(&genesis.Transactions[0])
	utxos.Confirm(genesis.Header.Hash)

	return &ChainStore{
		Main:    []Block{*genesis},
		Forks:   nil,
		Orphans: make(map[crypto.Hash256]Block),
		Utxos:   utxos,
	}
}

// CurrentDifficulty returns the difficulty target new blocks must match:
// the tip's own target, retargeted if the tip sits on a retarget boundary.
func (cs *ChainStore) CurrentDifficulty() crypto.Hash256 {
	return cs.currentDifficulty()
}

// Tip returns the most recently accepted block of main.
func (cs *ChainStore) Tip() *Block {
	return &cs.Main[len(cs.Main)-1]
}

// Height returns the zero-based height of main's tip (genesis is height 0).
func (cs *ChainStore) Height() int {
	return len(cs.Main) - 1
}

func weightSum(blocks []Block) *big.Int {
	total := new(big.Int)
	for i := range blocks {
		total.Add(total, new(big.Int).SetBytes(blocks[i].Header.DifficultyTarget[:]))
	}
	return total
}

// BestChain computes which chain currently represents the most work.
// chainIndex 0 denotes main, 1..=N denotes the Nth fork (1-indexed). height
// is the winning chain's tip height (absolute, from genesis). ambiguous is
// true when at least two chains tie for the minimum cumulative weight.
//
// Weight is computed from the earliest fork point onward: the shared
// prefix every chain has in common contributes equally to all of them and
// is excluded so the comparison isolates the work actually in contention.
func (cs *ChainStore) BestChain() (height int, chainIndex int, ambiguous bool) {
	if len(cs.Forks) == 0 {
		return len(cs.Main) - 1, 0, false
	}

	earliest := cs.Forks[0].ForkPoint
	for _, f := range cs.Forks[1:] {
		if f.ForkPoint < earliest {
			earliest = f.ForkPoint
		}
	}

	type candidate struct {
		idx    int
		height int
		weight *big.Int
	}

	candidates := []candidate{
		{idx: 0, height: len(cs.Main) - 1, weight: weightSum(cs.Main[earliest+1:])},
	}

	for i, fork := range cs.Forks {
		w := new(big.Int)
		if fork.ForkPoint > earliest {
			w.Add(w, weightSum(cs.Main[earliest+1:fork.ForkPoint+1]))
		}
		w.Add(w, weightSum(fork.Blocks))
		candidates = append(candidates, candidate{
			idx:    i + 1,
			height: fork.ForkPoint + len(fork.Blocks),
			weight: w,
		})
	}

	best := candidates[0]
	tie := false
	for _, c := range candidates[1:] {
		switch c.weight.Cmp(best.weight) {
		case -1:
			best = c
			tie = false
		case 0:
			tie = true
		}
	}

	return best.height, best.idx, tie
}

// findParent locates the block with hash prevHash, reporting which chain it
// terminates (0 = main, 1..=N = fork) and its position within that chain.
func (cs *ChainStore) findParent(prevHash crypto.Hash256) (chainIdx int, pos int, found bool) {
	for i := len(cs.Main) - 1; i >= 0; i-- {
		if cs.Main[i].Header.Hash == prevHash {
			return 0, i, true
		}
	}
	for fi, fork := range cs.Forks {
		for i := len(fork.Blocks) - 1; i >= 0; i-- {
			if fork.Blocks[i].Header.Hash == prevHash {
				return fi + 1, i, true
			}
		}
	}
	return 0, 0, false
}

// FindParent exposes findParent so validators outside this package can
// locate a candidate block's parent without duplicating the search.
func (cs *ChainStore) FindParent(prevHash crypto.Hash256) (chainIdx int, pos int, found bool) {
	return cs.findParent(prevHash)
}

// PrefixUpTo returns the blocks from genesis up to and including the block
// at (chainIdx, pos) — main[0:pos+1] if chainIdx is 0, or main up to the
// fork point followed by the fork's own blocks up to pos otherwise.
func (cs *ChainStore) PrefixUpTo(chainIdx int, pos int) []Block {
	if chainIdx == 0 {
		return append([]Block(nil), cs.Main[:pos+1]...)
	}
	fork := cs.Forks[chainIdx-1]
	out := append([]Block(nil), cs.Main[:fork.ForkPoint+1]...)
	out = append(out, fork.Blocks[:pos+1]...)
	return out
}

// AddBlock appends block to whichever chain its parent terminates, starting
// a new fork if the parent is interior to main. A parent interior to an
// existing fork (a fork of a fork) is unsupported; AddBlock reports ok=false
// and the caller should drop the block rather than error.
func (cs *ChainStore) AddBlock(block Block) (ok bool) {
	prevHash := block.Header.PrevHash
	chainIdx, pos, found := cs.findParent(prevHash)
	if !found {
		cs.Orphans[block.Header.Hash] = block
		return true
	}

	switch {
	case chainIdx == 0 && pos == len(cs.Main)-1:
		cs.Main = append(cs.Main, block)
		return true
	case chainIdx > 0 && pos == len(cs.Forks[chainIdx-1].Blocks)-1:
		fork := &cs.Forks[chainIdx-1]
		fork.Blocks = append(fork.Blocks, block)
		return true
	case chainIdx == 0:
		cs.Forks = append(cs.Forks, ForkChain{
			ForkPoint: pos,
			Blocks:    []Block{block},
		})
		return true
	default:
		// Parent interior to a fork: a fork of a fork. Not supported.
		return false
	}
}

// GetBlockRange returns blocks [from, to] (inclusive, absolute heights from
// genesis) of the given chain. chain 0 is main; chain>0 walks main up to
// that fork's branch point and then crosses onto the fork.
func (cs *ChainStore) GetBlockRange(chain int, from int, to int) []Block {
	if chain == 0 {
		return sliceRange(cs.Main, from, to)
	}
	if chain < 1 || chain > len(cs.Forks) {
		return nil
	}
	fork := cs.Forks[chain-1]

	var out []Block
	if from <= fork.ForkPoint {
		out = append(out, sliceRange(cs.Main, from, min(to, fork.ForkPoint))...)
	}
	if to > fork.ForkPoint {
		forkFrom := from - fork.ForkPoint - 1
		if forkFrom < 0 {
			forkFrom = 0
		}
		forkTo := to - fork.ForkPoint - 1
		out = append(out, sliceRange(fork.Blocks, forkFrom, forkTo)...)
	}
	return out
}

func sliceRange(blocks []Block, from, to int) []Block {
	if from < 0 {
		from = 0
	}
	if to >= len(blocks) {
		to = len(blocks) - 1
	}
	if from > to || from >= len(blocks) {
		return nil
	}
	return append([]Block(nil), blocks[from:to+1]...)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// TxnLocation describes where a transaction was found by FindTxn.
type TxnLocation struct {
	Block         *Block
	Txn           *Tx
	ChainIdx      int
	Confirmations int
}

// FindTxn searches main (newest block first), then each fork, for a
// transaction with the given hash.
func (cs *ChainStore) FindTxn(hash crypto.Hash256) (*TxnLocation, bool) {
	for i := len(cs.Main) - 1; i >= 0; i-- {
		if tx, ok := cs.Main[i].GetTxn(hash); ok {
			return &TxnLocation{
				Block:         &cs.Main[i],
				Txn:           tx,
				ChainIdx:      0,
				Confirmations: len(cs.Main) - 1 - i,
			}, true
		}
	}
	for fi, fork := range cs.Forks {
		for i := len(fork.Blocks) - 1; i >= 0; i-- {
			if tx, ok := fork.Blocks[i].GetTxn(hash); ok {
				return &TxnLocation{
					Block:         &cs.Forks[fi].Blocks[i],
					Txn:           tx,
					ChainIdx:      fi + 1,
					Confirmations: len(fork.Blocks) - 1 - i,
				}, true
			}
		}
	}
	return nil, false
}

// ResolveForks reorganizes main onto the best chain if it is unambiguously
// a fork, returning every block displaced from main in the process (their
// non-coinbase transactions must be re-queued into the mempool by the
// caller). If main is already best, fork blocks are simply discarded and
// returned — they carry no new information once a better chain hasn't
// overtaken them, but their txns still deserve another shot at relaying.
func (cs *ChainStore) ResolveForks() []Block {
	if len(cs.Forks) == 0 {
		return nil
	}

	_, chainIdx, ambiguous := cs.BestChain()
	if ambiguous || chainIdx == 0 {
		var displaced []Block
		for _, fork := range cs.Forks {
			displaced = append(displaced, fork.Blocks...)
		}
		cs.Forks = nil
		return displaced
	}

	winner := cs.Forks[chainIdx-1]
	var displaced []Block
	displaced = append(displaced, cs.Main[winner.ForkPoint+1:]...)
	for i, fork := range cs.Forks {
		if i == chainIdx-1 {
			continue
		}
		displaced = append(displaced, fork.Blocks...)
	}

	cs.Main = append(cs.Main[:winner.ForkPoint+1], winner.Blocks...)
	cs.Forks = nil
	return displaced
}
