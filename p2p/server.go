package p2p

import (
	"log"
	"math/rand"
	"net"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
)

// Backend is everything the RPC handlers need from the rest of the node.
// Implementations own whatever locking the concurrency model requires;
// handlers call these as a single logical unit of work, then do I/O
// strictly afterward.
type Backend interface {
	LocalBest() (height uint32, hash crypto.Hash256)
	Table() *Table
	// ResolveGetBlocks answers a GetBlocks request against the local chain.
	ResolveGetBlocks(yourHash, myHash crypto.Hash256) GetBlocksResponse
	// SubmitTxn validates and, if accepted, admits a transaction; the
	// handler relays it when ok is true. ok is false if it should be
	// dropped silently (already known, orphaned or invalid).
	SubmitTxn(tx chain.Tx) (ok bool)
	// SubmitBlock validates and, if accepted, runs reorg; the handler
	// relays it when ok is true. ok is false if it should be dropped
	// silently.
	SubmitBlock(block chain.Block) (ok bool)
}

// Server accepts inbound connections and serves one request per connection.
type Server struct {
	Backend    Backend
	ListenPort uint16
}

// Serve runs the accept loop, spawning one goroutine per connection, until
// Accept fails; it then returns that error.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	env, err := ReadEnvelope(conn)
	if err != nil {
		return
	}

	sourceIP, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	switch env.Command {
	case CmdGetAddr:
		s.handleGetAddr(conn, sourceIP, env.Payload)
	case CmdAdvertise:
		s.handleAdvertise(env.Payload)
	case CmdGetBlocks:
		s.handleGetBlocks(conn, env.Payload)
	case CmdNewTxn:
		s.handleNewTxn(env.Payload)
	case CmdNewBlock:
		s.handleNewBlock(env.Payload)
	default:
		log.Printf("p2p: unknown command %q from %s", env.Command, sourceIP)
	}
}

func (s *Server) handleGetAddr(conn net.Conn, sourceIP string, payload []byte) {
	req, err := UnmarshalGetAddrRequest(payload)
	if err != nil {
		return
	}

	table := s.Backend.Table()
	callerAddr := AddrInfo{IP: sourceIP, Port: req.ListenPort}
	height, hash := s.Backend.LocalBest()

	neighbors := make([]AddrInfo, 0)
	for _, p := range table.Snapshot() {
		neighbors = append(neighbors, p.Addr)
	}

	table.AddPeer(PeerInfo{Addr: callerAddr, BestHeight: req.BestHeight, BestHash: req.BestHash})

	resp := GetAddrResponse{
		ProtoVersion: ProtoVersion,
		ObservedAddr: callerAddr,
		BestHeight:   height,
		BestHash:     hash,
		Neighbors:    neighbors,
	}
	_ = WriteEnvelope(conn, CmdGetAddrResp, resp.Marshal())
}

func (s *Server) handleAdvertise(payload []byte) {
	req, err := UnmarshalAdvertiseRequest(payload)
	if err != nil {
		return
	}
	table := s.Backend.Table()
	if table.HasPeer(req.AddrOfSender) {
		return
	}
	table.MergeKnown([]AddrInfo{req.AddrOfSender})

	table.Broadcast(func(addr AddrInfo) error {
		return SendAdvertise(addr, *req)
	})

	if rand.Intn(2) == 0 {
		table.FindNewFriends(func(addr AddrInfo) (*GetAddrResponse, error) {
			height, hash := s.Backend.LocalBest()
			return SendGetAddr(addr, GetAddrRequest{
				ProtoVersion: ProtoVersion,
				ListenPort:   0,
				BestHeight:   height,
				BestHash:     hash,
			})
		})
	}
}

func (s *Server) handleGetBlocks(conn net.Conn, payload []byte) {
	req, err := UnmarshalGetBlocksRequest(payload)
	if err != nil {
		return
	}
	resp := s.Backend.ResolveGetBlocks(req.YourHash, req.MyHash)
	_ = WriteEnvelope(conn, CmdGetBlocksR, resp.Marshal())
}

func (s *Server) handleNewTxn(payload []byte) {
	req, err := UnmarshalNewTxnRequest(payload)
	if err != nil {
		return
	}
	if !s.Backend.SubmitTxn(req.Txn) {
		return
	}
	s.Backend.Table().Broadcast(func(addr AddrInfo) error {
		return SendNewTxn(addr, *req)
	})
}

func (s *Server) handleNewBlock(payload []byte) {
	req, err := UnmarshalNewBlockRequest(payload)
	if err != nil {
		return
	}
	if !s.Backend.SubmitBlock(req.Block) {
		return
	}
	s.Backend.Table().Broadcast(func(addr AddrInfo) error {
		return SendNewBlock(addr, *req)
	})
}

// ParseAddr splits a "host:port" string into an AddrInfo.
func ParseAddr(s string) (AddrInfo, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return AddrInfo{}, err
	}
	var port uint16
	for _, c := range portStr {
		if c < '0' || c > '9' {
			return AddrInfo{}, &net.AddrError{Err: "invalid port", Addr: s}
		}
		port = port*10 + uint16(c-'0')
	}
	return AddrInfo{IP: host, Port: port}, nil
}
