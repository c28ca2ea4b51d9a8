package chain

import (
	"encoding/hex"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// genesisMinerAddress is the base58check address "2LuJkN1xDRRM2R2h2H4qnSspy4qmwoZfor",
// decoded once at init time.
var genesisMinerAddress = mustDecodeGenesisAddress("2LuJkN1xDRRM2R2h2H4qnSspy4qmwoZfor")

func mustDecodeGenesisAddress(s string) crypto.Hash160 {
	addr, err := crypto.AddressFromBase58Check(s)
	if err != nil {
		panic("chain: bad genesis miner address: " + err.Error())
	}
	return addr
}

// GenesisTarget is the fixed proof-of-work target of the genesis block:
// 0x0000000f followed by 28 zero bytes.
var GenesisTarget = mustDecodeHash256("0000000f00000000000000000000000000000000000000000000000000000000")

// genesisNonce is the nonce that makes the genesis header hash to
// GenesisHash.
var genesisNonce = mustDecodeNonce("0487ec8e16f44da6d0d17e6e9c2bdc097c1eda445879a7df3d96a06b4acd0aa2")

// GenesisHash is the published hash of the genesis block.
var GenesisHash = mustDecodeHash256("0000000c9785be4989caa7cf9b7dca9161bbe8334f692fbf277fce1e23f9df2a")

func mustDecodeHash256(s string) crypto.Hash256 {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		panic("chain: bad genesis hex constant: " + s)
	}
	var h crypto.Hash256
	copy(h[:], b)
	return h
}

func mustDecodeNonce(s string) [32]byte {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		panic("chain: bad genesis nonce constant: " + s)
	}
	var n [32]byte
	copy(n[:], b)
	return n
}

// GenesisExtraNonce is the coinbase extra-nonce used by the genesis block:
// 32 bytes of 0x69.
var GenesisExtraNonce = func() [32]byte {
	var n [32]byte
	for i := range n {
		n[i] = 0x69
	}
	return n
}()

// GenesisBlock constructs the hardcoded genesis block. Its hash is fixed and
// reproducible: constructing it from these constants must yield GenesisHash.
func GenesisBlock() *Block {
	coinbase := MakeCoinbaseTx(genesisMinerAddress, "genesis block", 0, GenesisExtraNonce)
	txns := []Tx{*coinbase}

	header := BlockHeader{
		Version:          1,
		PrevHash:         crypto.ZeroHash256,
		MerkleRoot:       MakeMerkleRoot(txns),
		Timestamp:        1669939462,
		DifficultyTarget: GenesisTarget,
		Nonce:            genesisNonce,
	}
	header.Hash = HashHeader(header)

	return &Block{
		Header:       header,
		Transactions: txns,
	}
}
