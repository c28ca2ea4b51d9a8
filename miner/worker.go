package miner

import (
	"log"
	"time"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
)

// Backend is everything the miner loop needs from the rest of the node. A
// Backend method call is one atomic unit of work against shared state; the
// miner never holds any lock across a HashSearch call.
type Backend interface {
	// Snapshot returns everything needed to assemble a new candidate.
	Snapshot() (prevHash, difficulty crypto.Hash256, pending []chain.Tx, feeOf func(*chain.Tx) uint64, minerAddr crypto.Hash160)
	// SubmitBlock runs full validation (and, on success, reorg) for a
	// block this node just mined. ok reports acceptance. The accepted block
	// is not relayed to peers: nothing in the miner loop broadcasts it.
	SubmitBlock(block chain.Block) (ok bool)
}

// HashSearch is the cooperating process (GPU kernel or CPU inner loop) that
// searches nonces for one that drives SHA-256(header) below target. It
// returns ok=false if the batch exhausted without a winner.
type HashSearch interface {
	Search(header chain.BlockHeader, batchSize uint64) (winner Winner, ok bool, err error)
}

// BatchSize is how many nonces a single HashSearch.Search call covers
// before the miner loop polls its control channel again.
const BatchSize = 1_000_000

// Run is the miner's outer control loop: assemble a candidate, search it in
// batches, and react to control-channel messages between batches. It
// blocks until ctrl is closed.
func Run(backend Backend, search HashSearch, ctrl <-chan MinerMessage) {
	for {
		candidate := assemble(backend)
		if candidate == nil {
			if !sleepOrStop(ctrl, time.Second) {
				return
			}
			continue
		}

		if !mine(backend, search, candidate, ctrl) {
			return
		}
	}
}

// assemble snapshots state and builds one candidate block.
func assemble(backend Backend) *Candidate {
	prevHash, difficulty, pending, feeOf, minerAddr := backend.Snapshot()
	candidate, err := MakeRawBlock(prevHash, difficulty, pending, feeOf, minerAddr)
	if err != nil {
		log.Printf("miner: failed to assemble candidate: %v", err)
		return nil
	}
	return candidate
}

// mine searches candidate in batches, resetting whenever a control message
// demands it or ResetInterval elapses. Returns false if the caller should
// stop (ctrl closed).
func mine(backend Backend, search HashSearch, candidate *Candidate, ctrl <-chan MinerMessage) bool {
	deadline := time.Now().Add(ResetInterval)

	for {
		select {
		case msg, open := <-ctrl:
			if !open {
				return false
			}
			switch msg.Kind {
			case NewBlock, NewTransactions, NewDifficulty:
				// Any of these invalidates the in-progress candidate.
				return true
			}
		default:
		}

		if time.Now().After(deadline) {
			return true
		}

		winner, ok, err := search.Search(candidate.Header, BatchSize)
		if err != nil {
			log.Printf("miner: hash search error: %v", err)
			return true
		}
		if !ok {
			continue
		}

		block := FinishBlock(candidate, winner)
		if !backend.SubmitBlock(block) {
			log.Printf("miner: mined block %x rejected on submission", block.Header.Hash[:])
		}
		return true
	}
}

func sleepOrStop(ctrl <-chan MinerMessage, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case _, open := <-ctrl:
		return open
	case <-timer.C:
		return true
	}
}
