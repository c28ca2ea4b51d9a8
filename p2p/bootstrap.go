package p2p

import (
	"fmt"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
)

// MaxGetBlocksBacksteps bounds how many times bootstrap steps my_hash back
// one block after an UnknownHash reply before giving up on a peer.
const MaxGetBlocksBacksteps = 3

// Bootstrap runs the four-step join sequence: GetAddr the seed, GetAddr
// every peer it returns, download blocks from whichever peer claims the
// highest chain, then Advertise self to everyone. applyBlocks is called
// with each downloaded batch, in order, and must return the new local tip
// hash (or an error if the batch didn't apply). stepBack resolves a block
// hash to its parent's hash, used to retreat my_hash by one block after an
// UnknownHash reply.
func Bootstrap(
	self AddrInfo,
	seed AddrInfo,
	table *Table,
	localBest func() (uint32, crypto.Hash256),
	applyBlocks func([]chain.Block) (crypto.Hash256, error),
	stepBack func(crypto.Hash256) (crypto.Hash256, bool),
) error {
	height, hash := localBest()

	seedResp, err := SendGetAddr(seed, GetAddrRequest{
		ProtoVersion: ProtoVersion,
		AddrYou:      self,
		ListenPort:   self.Port,
		BestHeight:   height,
		BestHash:     hash,
	})
	if err != nil {
		return fmt.Errorf("p2p: bootstrap: seed unreachable: %w", err)
	}
	table.AddPeer(PeerInfo{Addr: seed, BestHeight: seedResp.BestHeight, BestHash: seedResp.BestHash})
	table.MergeKnown(seedResp.Neighbors)

	var best PeerInfo
	haveBest := false
	for _, addr := range seedResp.Neighbors {
		height, hash := localBest()
		resp, err := SendGetAddr(addr, GetAddrRequest{
			ProtoVersion: ProtoVersion,
			AddrYou:      self,
			ListenPort:   self.Port,
			BestHeight:   height,
			BestHash:     hash,
		})
		if err != nil {
			continue
		}
		info := PeerInfo{Addr: addr, BestHeight: resp.BestHeight, BestHash: resp.BestHash}
		table.AddPeer(info)
		if !haveBest || info.BestHeight > best.BestHeight {
			best, haveBest = info, true
		}
	}
	if !haveBest || seedResp.BestHeight > best.BestHeight {
		best = PeerInfo{Addr: seed, BestHeight: seedResp.BestHeight, BestHash: seedResp.BestHash}
	}

	_, myHash := localBest()
	attempts := 0
	for {
		resp, err := SendGetBlocks(best.Addr, GetBlocksRequest{YourHash: best.BestHash, MyHash: myHash})
		if err != nil {
			break
		}
		switch resp.Outcome {
		case GetBlocksOK:
			newTip, err := applyBlocks(resp.Blocks)
			if err != nil {
				break
			}
			myHash = newTip
		case GetBlocksUnknownHash:
			attempts++
			if attempts > MaxGetBlocksBacksteps {
				break
			}
			prev, ok := stepBack(myHash)
			if !ok {
				break
			}
			myHash = prev
			continue
		}
		break
	}

	table.Broadcast(func(addr AddrInfo) error {
		return SendAdvertise(addr, AdvertiseRequest{AddrOfSender: self})
	})

	return nil
}
