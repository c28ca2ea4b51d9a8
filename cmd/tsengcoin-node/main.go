// Command tsengcoin-node runs a single full node: chain store, mempool,
// p2p listener and (optionally) a CPU miner, wired together by the node
// package. Flag parsing here is deliberately thin; it exists to give the
// node package somewhere to run from, not as a configuration layer.
package main

import (
	"flag"
	"log"
	"net"

	"github.com/Dezzmeister/tsengcoin/crypto"
	"github.com/Dezzmeister/tsengcoin/node"
	"github.com/Dezzmeister/tsengcoin/p2p"
)

func main() {
	var (
		listenAddr = flag.String("listen", "0.0.0.0:8333", "address to accept peer connections on")
		advertise  = flag.String("advertise", "127.0.0.1:8333", "address other peers should use to reach this node")
		seedAddr   = flag.String("seed", "", "address of an existing node to bootstrap from (empty starts a new network)")
		minerAddr  = flag.String("miner-address", "", "address to pay block rewards to (required with -mine)")
		mine       = flag.Bool("mine", false, "run the CPU miner loop")
	)
	flag.Parse()

	self, err := p2p.ParseAddr(*advertise)
	if err != nil {
		log.Fatalf("tsengcoin-node: bad -advertise address: %v", err)
	}

	var reward crypto.Hash160
	if *mine {
		if *minerAddr == "" {
			log.Fatalf("tsengcoin-node: -mine requires -miner-address")
		}
		reward, err = crypto.AddressFromBase58Check(*minerAddr)
		if err != nil {
			log.Fatalf("tsengcoin-node: bad -miner-address: %v", err)
		}
	}

	cfg := node.Config{
		Self:      self,
		MinerAddr: reward,
		Mine:      *mine,
	}
	if *seedAddr != "" {
		seed, err := p2p.ParseAddr(*seedAddr)
		if err != nil {
			log.Fatalf("tsengcoin-node: bad -seed address: %v", err)
		}
		cfg.Seed = &seed
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalf("tsengcoin-node: listen on %s: %v", *listenAddr, err)
	}
	log.Printf("tsengcoin-node: listening on %s, advertising as %s:%d", *listenAddr, self.IP, self.Port)

	if err := node.Run(cfg, ln); err != nil {
		log.Fatalf("tsengcoin-node: serve: %v", err)
	}
}
