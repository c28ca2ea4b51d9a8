// Package node wires the chain store, mempool, peer table and miner
// channel together behind a single coarse mutex, and implements the
// p2p.Backend and miner.Backend interfaces those packages call into.
package node

import (
	"sync"
	"time"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
	"github.com/Dezzmeister/tsengcoin/mempool"
	"github.com/Dezzmeister/tsengcoin/miner"
	"github.com/Dezzmeister/tsengcoin/p2p"
	"github.com/Dezzmeister/tsengcoin/validate"
)

// State is the node's entire shared world: the chain store (which embeds
// the UTXO index), the mempool, the peer table, and the miner control
// channel. Every mutation goes through mu; I/O happens strictly outside
// it — handlers acquire, mutate, snapshot whatever must be sent, release,
// then do network I/O.
type State struct {
	mu sync.Mutex

	Chain   *chain.ChainStore
	Mempool *mempool.Pool
	Peers   *p2p.Table

	MinerAddr crypto.Hash160
	MinerCtrl chan miner.MinerMessage

	Self p2p.AddrInfo
}

// New creates a fresh node State seeded with the genesis block.
func New(self p2p.AddrInfo, minerAddr crypto.Hash160) *State {
	return &State{
		Chain:     chain.NewChainStore(),
		Mempool:   mempool.New(),
		Peers:     p2p.NewTable(self),
		MinerAddr: minerAddr,
		MinerCtrl: make(chan miner.MinerMessage, 16),
		Self:      self,
	}
}

// notifyMiner is a non-blocking send: a full control channel means the
// miner hasn't drained its last tick yet, and another queued message of
// the same general shape doesn't change what it'll do next.
func (s *State) notifyMiner(msg miner.MinerMessage) {
	select {
	case s.MinerCtrl <- msg:
	default:
	}
}

// LocalBest implements p2p.Backend and miner.Backend's shared notion of
// "how far along is this node".
func (s *State) LocalBest() (height uint32, hash crypto.Hash256) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(s.Chain.Height()), s.Chain.Tip().Header.Hash
}

// Table implements p2p.Backend.
func (s *State) Table() *p2p.Table {
	return s.Peers
}

// ResolveGetBlocks implements p2p.Backend: answers a GetBlocks request by
// locating both anchors and returning blocks strictly after MyHash up to
// and including YourHash.
func (s *State) ResolveGetBlocks(yourHash, myHash crypto.Hash256) p2p.GetBlocksResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	myChainIdx, myPos, myOK := s.Chain.FindParent(myHash)
	if !myOK {
		return p2p.GetBlocksResponse{Outcome: p2p.GetBlocksUnknownHash, UnknownHash: myHash}
	}
	yourChainIdx, yourPos, yourOK := s.Chain.FindParent(yourHash)
	if !yourOK {
		return p2p.GetBlocksResponse{Outcome: p2p.GetBlocksUnknownHash, UnknownHash: yourHash}
	}

	myHeight := s.absoluteHeight(myChainIdx, myPos)
	yourHeight := s.absoluteHeight(yourChainIdx, yourPos)

	// Pick whichever chain is the common linear path between the two
	// anchors: same chain, or one anchor is main and an ancestor of the
	// other anchor's fork branch point.
	var chainIdx int
	switch {
	case myChainIdx == yourChainIdx:
		chainIdx = myChainIdx
	case myChainIdx == 0 && yourChainIdx != 0 && myHeight <= s.Chain.Forks[yourChainIdx-1].ForkPoint:
		chainIdx = yourChainIdx
	case yourChainIdx == 0 && myChainIdx != 0 && yourHeight <= s.Chain.Forks[myChainIdx-1].ForkPoint:
		chainIdx = myChainIdx
	default:
		return p2p.GetBlocksResponse{Outcome: p2p.GetBlocksDisconnectedChains}
	}

	from, to := myHeight+1, yourHeight
	if from > to {
		return p2p.GetBlocksResponse{Outcome: p2p.GetBlocksBadChainIndex}
	}

	blocks := s.Chain.GetBlockRange(chainIdx, from, to)
	if blocks == nil {
		return p2p.GetBlocksResponse{Outcome: p2p.GetBlocksBadHashes}
	}
	return p2p.GetBlocksResponse{Outcome: p2p.GetBlocksOK, Blocks: blocks}
}

// absoluteHeight converts a (chainIdx, pos) pair from FindParent — where
// pos is relative to that chain's own block slice — into a height measured
// from genesis.
func (s *State) absoluteHeight(chainIdx, pos int) int {
	if chainIdx == 0 {
		return pos
	}
	return s.Chain.Forks[chainIdx-1].ForkPoint + 1 + pos
}

// SubmitTxn implements p2p.Backend.
func (s *State) SubmitTxn(tx chain.Tx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.Mempool.TxnOrphans[tx.Hash]; known {
		return false
	}
	for i := range s.Mempool.Pending {
		if s.Mempool.Pending[i].Hash == tx.Hash {
			return false
		}
	}

	outcome, err := s.Mempool.SubmitTxn(s.Chain, tx)
	if err != nil {
		return false
	}
	s.notifyMiner(miner.MinerMessage{Kind: miner.NewTransactions, Count: 1})
	return outcome == validate.Valid // orphans are accepted locally but not relayed
}

// SubmitBlock implements p2p.Backend and miner.Backend.
func (s *State) SubmitBlock(block chain.Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, err := s.Mempool.SubmitBlock(s.Chain, block, time.Now())
	if err != nil {
		return false
	}
	if outcome != validate.NotOrphan {
		return false
	}

	displaced := s.Chain.ResolveForks()
	if len(displaced) > 0 {
		s.Mempool.ReplayDisplaced(s.Chain, displaced)
	}

	s.notifyMiner(miner.MinerMessage{Kind: miner.NewBlock, BlockHash: block.Header.Hash, PendingChanged: len(displaced) > 0})
	if chain.ShouldRetarget(s.Chain.Height()) {
		s.notifyMiner(miner.MinerMessage{Kind: miner.NewDifficulty, Target: s.Chain.CurrentDifficulty()})
	}
	return true
}

// Snapshot implements miner.Backend.
func (s *State) Snapshot() (prevHash, difficulty crypto.Hash256, pending []chain.Tx, feeOf func(*chain.Tx) uint64, minerAddr crypto.Hash160) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pendingCopy := append([]chain.Tx(nil), s.Mempool.Pending...)
	utxos := s.Chain.Utxos

	fee := func(tx *chain.Tx) uint64 {
		var inputSum, outputSum uint64
		for _, out := range tx.Outputs {
			outputSum += out.Amount
		}
		for _, in := range tx.Inputs {
			if out, ok := utxos.Lookup(chain.Outpoint{TxHash: in.PrevTxn, OutputIdx: in.OutputIdx}, func(h crypto.Hash256) (*chain.Tx, bool) {
				for i := range pendingCopy {
					if pendingCopy[i].Hash == h {
						return &pendingCopy[i], true
					}
				}
				if loc, ok := s.Chain.FindTxn(h); ok {
					return loc.Txn, true
				}
				return nil, false
			}); ok {
				inputSum += out.Amount
			}
		}
		return inputSum - outputSum
	}

	return s.Chain.Tip().Header.Hash, s.Chain.CurrentDifficulty(), pendingCopy, fee, s.MinerAddr
}
