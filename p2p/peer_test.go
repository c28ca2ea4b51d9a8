package p2p

import (
	"fmt"
	"testing"
)

func addrN(n int) AddrInfo {
	return AddrInfo{IP: fmt.Sprintf("10.0.0.%d", n), Port: 9000}
}

func TestFindNewFriendsInstallsRespondersAsPeers(t *testing.T) {
	self := addrN(1)
	table := NewTable(self)
	table.MergeKnown([]AddrInfo{addrN(2), addrN(3), addrN(4), addrN(5)})

	table.FindNewFriends(func(addr AddrInfo) (*GetAddrResponse, error) {
		if addr == addrN(4) {
			return nil, fmt.Errorf("unreachable")
		}
		return &GetAddrResponse{BestHeight: 10, Neighbors: []AddrInfo{addrN(6)}}, nil
	})

	if table.HasPeer(addrN(4)) {
		t.Fatal("expected unreachable candidate to not become a peer")
	}
	if len(table.Snapshot()) > MaxGetAddrs {
		t.Fatalf("expected at most MaxGetAddrs peers installed, got %d", len(table.Snapshot()))
	}
	if len(table.Snapshot()) == 0 {
		t.Fatal("expected at least one responder installed as a peer")
	}
}

func TestFindNewFriendsCapsCandidateCount(t *testing.T) {
	self := addrN(0)
	table := NewTable(self)
	var known []AddrInfo
	for i := 1; i <= 20; i++ {
		known = append(known, addrN(i))
	}
	table.MergeKnown(known)

	probed := 0
	table.FindNewFriends(func(addr AddrInfo) (*GetAddrResponse, error) {
		probed++
		return &GetAddrResponse{}, nil
	})

	if probed != MaxGetAddrs {
		t.Fatalf("probed %d candidates, want %d", probed, MaxGetAddrs)
	}
}

func TestBroadcastPrunesFailedPeers(t *testing.T) {
	self := addrN(0)
	table := NewTable(self)
	table.AddPeer(PeerInfo{Addr: addrN(1)})
	table.AddPeer(PeerInfo{Addr: addrN(2)})

	table.Broadcast(func(addr AddrInfo) error {
		if addr == addrN(2) {
			return fmt.Errorf("connection refused")
		}
		return nil
	})

	if !table.HasPeer(addrN(1)) {
		t.Fatal("expected successfully-sent peer to remain")
	}
	if table.HasPeer(addrN(2)) {
		t.Fatal("expected failed peer to be pruned")
	}
}

func TestAddPeerIgnoresSelf(t *testing.T) {
	self := addrN(1)
	table := NewTable(self)
	table.AddPeer(PeerInfo{Addr: self})
	if table.HasPeer(self) {
		t.Fatal("expected self to never be added as a peer")
	}
}
