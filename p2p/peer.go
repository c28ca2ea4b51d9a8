package p2p

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// MaxNeighbors bounds how many peers a node actively keeps.
const MaxNeighbors = 8

// MaxGetAddrs bounds how many candidates find_new_friends probes per round.
const MaxGetAddrs = 3

// PeerInfo is everything the peer table tracks about one neighbor.
type PeerInfo struct {
	Addr       AddrInfo
	BestHeight uint32
	BestHash   crypto.Hash256
}

func (a AddrInfo) key() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

// Table is the peer table: current neighbors plus the larger "known"
// address pool that peer selection draws from. All access must go through
// its methods, which take the table's own lock — callers must still copy
// out whatever they hand to network I/O before releasing any outer lock,
// per the concurrency model's snapshot-then-release discipline.
type Table struct {
	mu    sync.Mutex
	self  AddrInfo
	peers map[string]PeerInfo
	known map[string]AddrInfo
}

func NewTable(self AddrInfo) *Table {
	return &Table{
		self:  self,
		peers: make(map[string]PeerInfo),
		known: make(map[string]AddrInfo),
	}
}

// Snapshot returns a copy of the current peer list, safe to use after the
// table's lock is released.
func (t *Table) Snapshot() []PeerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PeerInfo, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// AddPeer installs or updates a peer entry, unless it is self. Updating an
// existing peer is always allowed; installing a new one is refused once the
// table already holds MaxNeighbors, per spec.md §3's Peers <= MAX_NEIGHBORS
// invariant.
func (t *Table) AddPeer(info PeerInfo) {
	if info.Addr.key() == t.self.key() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := info.Addr.key()
	if _, exists := t.peers[key]; !exists && len(t.peers) >= MaxNeighbors {
		return
	}
	t.peers[key] = info
}

// RemovePeer drops a peer, e.g. after it fails a broadcast or RPC.
func (t *Table) RemovePeer(addr AddrInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, addr.key())
}

// MergeKnown folds addrs into the known pool, skipping self.
func (t *Table) MergeKnown(addrs []AddrInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range addrs {
		if a.key() == t.self.key() {
			continue
		}
		t.known[a.key()] = a
	}
}

// HasPeer reports whether addr is already a peer.
func (t *Table) HasPeer(addr AddrInfo) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.peers[addr.key()]
	return ok
}

// GetAddrFunc performs the GetAddr RPC against a candidate address,
// returning its self-reported best height/hash and neighbor list.
type GetAddrFunc func(addr AddrInfo) (*GetAddrResponse, error)

// FindNewFriends is find_new_friends: merge current peers into known,
// shuffle known, probe up to MaxGetAddrs candidates concurrently with
// GetAddr, install responders as peers (absorbing their neighbors into
// known), and drop non-responders from known.
func (t *Table) FindNewFriends(doGetAddr GetAddrFunc) {
	t.mu.Lock()
	for _, p := range t.peers {
		t.known[p.Addr.key()] = p.Addr
	}
	delete(t.known, t.self.key())

	candidates := make([]AddrInfo, 0, len(t.known))
	for _, a := range t.known {
		candidates = append(candidates, a)
	}
	t.mu.Unlock()

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > MaxGetAddrs {
		candidates = candidates[:MaxGetAddrs]
	}

	var wg sync.WaitGroup
	type result struct {
		addr AddrInfo
		resp *GetAddrResponse
		err  error
	}
	results := make(chan result, len(candidates))

	for _, addr := range candidates {
		wg.Add(1)
		go func(addr AddrInfo) {
			defer wg.Done()
			resp, err := doGetAddr(addr)
			results <- result{addr: addr, resp: resp, err: err}
		}(addr)
	}
	wg.Wait()
	close(results)

	t.mu.Lock()
	defer t.mu.Unlock()
	for r := range results {
		if r.err != nil {
			delete(t.known, r.addr.key())
			continue
		}
		key := r.addr.key()
		if _, exists := t.peers[key]; !exists && len(t.peers) >= MaxNeighbors {
			continue
		}
		t.peers[key] = PeerInfo{
			Addr:       r.addr,
			BestHeight: r.resp.BestHeight,
			BestHash:   r.resp.BestHash,
		}
		for _, n := range r.resp.Neighbors {
			if n.key() != t.self.key() {
				t.known[n.key()] = n
			}
		}
	}
}

// BroadcastFunc delivers a one-way message to a single peer.
type BroadcastFunc func(addr AddrInfo) error

// Broadcast fans a one-way message out to every current peer in parallel
// and prunes any that fail. Callers must not hold any outer lock while
// calling this — it performs network I/O.
func (t *Table) Broadcast(send BroadcastFunc) {
	peers := t.Snapshot()

	var wg sync.WaitGroup
	failed := make(chan AddrInfo, len(peers))
	for _, p := range peers {
		wg.Add(1)
		go func(p PeerInfo) {
			defer wg.Done()
			if err := send(p.Addr); err != nil {
				failed <- p.Addr
			}
		}(p)
	}
	wg.Wait()
	close(failed)

	t.mu.Lock()
	defer t.mu.Unlock()
	for addr := range failed {
		delete(t.peers, addr.key())
	}
}
