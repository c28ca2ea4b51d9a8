package node

import (
	"fmt"
	"log"
	"net"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
	"github.com/Dezzmeister/tsengcoin/miner"
	"github.com/Dezzmeister/tsengcoin/p2p"
)

// Config is everything a node needs to start serving, mining and (if a seed
// is given) joining an existing network.
type Config struct {
	Self      p2p.AddrInfo
	MinerAddr crypto.Hash160
	Seed      *p2p.AddrInfo // nil to start a fresh network
	Mine      bool
}

// Run constructs a State, bootstraps against Seed if one is given, starts
// the miner loop if requested, and blocks serving connections until ln
// errors out.
func Run(cfg Config, ln net.Listener) error {
	state := New(cfg.Self, cfg.MinerAddr)

	if cfg.Seed != nil {
		err := p2p.Bootstrap(
			cfg.Self,
			*cfg.Seed,
			state.Peers,
			state.LocalBest,
			func(blocks []chain.Block) (crypto.Hash256, error) {
				return applyBootstrapBlocks(state, blocks)
			},
			state.stepBack,
		)
		if err != nil {
			log.Printf("node: bootstrap against %s:%d failed: %v", cfg.Seed.IP, cfg.Seed.Port, err)
		}
	}

	if cfg.Mine {
		go miner.Run(state, &miner.CPUSearch{}, state.MinerCtrl)
	}

	server := &p2p.Server{Backend: state, ListenPort: cfg.Self.Port}
	return server.Serve(ln)
}

// applyBootstrapBlocks feeds a downloaded batch through the same
// submit-and-reorg path a relayed block takes, in order, stopping at the
// first rejection. It returns the new local tip hash.
func applyBootstrapBlocks(state *State, blocks []chain.Block) (crypto.Hash256, error) {
	for i := range blocks {
		if !state.SubmitBlock(blocks[i]) {
			return crypto.Hash256{}, fmt.Errorf("node: bootstrap block %x rejected", blocks[i].Header.Hash[:])
		}
	}
	_, tip := state.LocalBest()
	return tip, nil
}

// stepBack resolves hash to its parent's hash on main, used by Bootstrap to
// retreat past a hash the peer doesn't recognize.
func (s *State) stepBack(hash crypto.Hash256) (crypto.Hash256, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.Chain.Main) - 1; i >= 0; i-- {
		if s.Chain.Main[i].Header.Hash == hash {
			if i == 0 {
				return crypto.Hash256{}, false
			}
			return s.Chain.Main[i-1].Header.Hash, true
		}
	}
	return crypto.Hash256{}, false
}
