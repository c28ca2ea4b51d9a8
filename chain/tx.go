// Package chain holds the core data model — transactions, blocks, the UTXO
// index and the chain store/fork manager — shared by the validators, the
// mempool, the peer-to-peer layer and the miner.
package chain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

const (
	// BlockReward is paid to the miner of each block, on top of fees.
	BlockReward = 1000
	// MinTxnFee is the smallest fee (input sum - output sum) a relayable
	// transaction may pay.
	MinTxnFee = 1
	// MaxTxnAmount bounds any single output, and the sum of a transaction's
	// outputs or inputs.
	MaxTxnAmount = 1_000_000_000
	// MaxBlockSize is the maximum serialized size of a block, in bytes.
	MaxBlockSize = 16384
	// MaxMetaLength bounds a transaction's free-form metadata field.
	MaxMetaLength = 1024

	// CoinbaseOutputIdx is the sentinel output index used by coinbase inputs.
	CoinbaseOutputIdx = 0xFFFFFFFF
)

// ScriptType identifies the scripting language a Script is written in.
// TsengScript is the only kind the core understands.
type ScriptType uint8

const ScriptTypeTsengScript ScriptType = 0

// Script is a lock or unlock script: whitespace-separated TsengScript source.
type Script struct {
	Code string
	Type ScriptType
}

// TxOutput pays Amount to whoever can satisfy LockScript.
type TxOutput struct {
	Amount     uint64
	LockScript Script
}

// TxInput spends output OutputIdx of transaction PrevTxn. Coinbase inputs use
// the all-zero PrevTxn and CoinbaseOutputIdx; their UnlockScript carries an
// extra-nonce to keep otherwise-identical coinbases from colliding.
type TxInput struct {
	PrevTxn      crypto.Hash256
	OutputIdx    uint32
	UnlockScript Script
}

// Tx is a transaction: some inputs being spent, some outputs being created,
// free-form metadata, and a hash binding all of the above together.
type Tx struct {
	Version uint32
	Inputs  []TxInput
	Outputs []TxOutput
	Meta    string
	Hash    crypto.Hash256
}

// IsCoinbase reports whether tx has the single sentinel input that marks a
// block-reward transaction.
func (tx *Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 1 &&
		tx.Inputs[0].PrevTxn == crypto.ZeroHash256 &&
		tx.Inputs[0].OutputIdx == CoinbaseOutputIdx
}

func marshalScript(dst []byte, s Script) []byte {
	dst = appendCompactSize(dst, uint64(len(s.Code)))
	dst = append(dst, s.Code...)
	dst = append(dst, byte(s.Type))
	return dst
}

func unmarshalScript(r *reader) (Script, error) {
	n, err := r.compactSize()
	if err != nil {
		return Script{}, err
	}
	codeBytes, err := r.bytes(int(n))
	if err != nil {
		return Script{}, err
	}
	typeByte, err := r.u8()
	if err != nil {
		return Script{}, err
	}
	return Script{Code: string(codeBytes), Type: ScriptType(typeByte)}, nil
}

// marshalUnhashedTx encodes version+inputs+outputs+meta, i.e. everything
// that feeds tx.Hash = SHA256(unhashed).
func marshalUnhashedTx(tx *Tx) []byte {
	var b []byte
	b = appendU32le(b, tx.Version)

	b = appendCompactSize(b, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		b = append(b, in.PrevTxn[:]...)
		b = appendU32le(b, in.OutputIdx)
		b = marshalScript(b, in.UnlockScript)
	}

	b = appendCompactSize(b, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		b = appendU64le(b, out.Amount)
		b = marshalScript(b, out.LockScript)
	}

	b = appendCompactSize(b, uint64(len(tx.Meta)))
	b = append(b, tx.Meta...)
	return b
}

// marshalUnsignedTx encodes version+outputs+meta only. This is the byte
// sequence loaded onto the script stack (and signed by senders) because
// inputs cannot be signed: the unlocking script for an input is itself part
// of that input.
func marshalUnsignedTx(tx *Tx) []byte {
	var b []byte
	b = appendU32le(b, tx.Version)

	b = appendCompactSize(b, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		b = appendU64le(b, out.Amount)
		b = marshalScript(b, out.LockScript)
	}

	b = appendCompactSize(b, uint64(len(tx.Meta)))
	b = append(b, tx.Meta...)
	return b
}

// HashTx computes the canonical hash of a transaction: SHA256 of its
// unhashed form (version, inputs, outputs, meta).
func HashTx(tx *Tx) crypto.Hash256 {
	return crypto.Sha256(marshalUnhashedTx(tx))
}

// SigningData returns the exact bytes that CHECKSIG expects preloaded on the
// stack, and that a sender signs to authorize spending an output.
func SigningData(tx *Tx) []byte {
	return marshalUnsignedTx(tx)
}

// MarshalTx encodes a full transaction, including its hash, for storage or
// wire transmission.
func MarshalTx(tx *Tx) []byte {
	b := marshalUnhashedTx(tx)
	return append(b, tx.Hash[:]...)
}

// UnmarshalTx decodes a transaction previously produced by MarshalTx and
// reports the number of bytes consumed.
func UnmarshalTx(data []byte) (*Tx, int, error) {
	r := &reader{b: data}
	tx, err := unmarshalTx(r)
	if err != nil {
		return nil, 0, err
	}
	return tx, r.off, nil
}

func unmarshalTx(r *reader) (*Tx, error) {
	var tx Tx
	var err error

	tx.Version, err = r.u32le()
	if err != nil {
		return nil, err
	}

	numIn, err := r.compactSize()
	if err != nil {
		return nil, err
	}
	tx.Inputs = make([]TxInput, numIn)
	for i := range tx.Inputs {
		prevHashBytes, err := r.bytes(32)
		if err != nil {
			return nil, err
		}
		var prevHash crypto.Hash256
		copy(prevHash[:], prevHashBytes)

		outputIdx, err := r.u32le()
		if err != nil {
			return nil, err
		}
		unlock, err := unmarshalScript(r)
		if err != nil {
			return nil, err
		}
		tx.Inputs[i] = TxInput{PrevTxn: prevHash, OutputIdx: outputIdx, UnlockScript: unlock}
	}

	numOut, err := r.compactSize()
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]TxOutput, numOut)
	for i := range tx.Outputs {
		amount, err := r.u64le()
		if err != nil {
			return nil, err
		}
		lock, err := unmarshalScript(r)
		if err != nil {
			return nil, err
		}
		tx.Outputs[i] = TxOutput{Amount: amount, LockScript: lock}
	}

	metaLen, err := r.compactSize()
	if err != nil {
		return nil, err
	}
	metaBytes, err := r.bytes(int(metaLen))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(metaBytes) {
		return nil, fmt.Errorf("chain: meta field is not valid UTF-8")
	}
	tx.Meta = string(metaBytes)

	hashBytes, err := r.bytes(32)
	if err != nil {
		return nil, err
	}
	copy(tx.Hash[:], hashBytes)

	return &tx, nil
}

// Size returns the serialized size of tx in bytes.
func (tx *Tx) Size() int {
	return len(MarshalTx(tx))
}

// MakeP2PKHLock builds the canonical pay-to-public-key-hash locking script
// for addr: `DUP HASH160 <addr> REQUIRE_EQUAL CHECKSIG`.
func MakeP2PKHLock(addr crypto.Hash160) Script {
	return Script{
		Code: fmt.Sprintf("DUP HASH160 %x REQUIRE_EQUAL CHECKSIG", addr[:]),
		Type: ScriptTypeTsengScript,
	}
}

// MakeP2PKHUnlock builds the unlocking script `<sig> <pubkey>` for a P2PKH
// output.
func MakeP2PKHUnlock(sig []byte, pubkey []byte) Script {
	return Script{
		Code: fmt.Sprintf("%x %x", sig, pubkey),
		Type: ScriptTypeTsengScript,
	}
}

// MakeCoinbaseTx builds the reward transaction for a mined block: a single
// sentinel input carrying extraNonce (so two miners paying themselves at the
// same instant don't collide on hash), and a single P2PKH output of
// BlockReward+fees to winner.
func MakeCoinbaseTx(winner crypto.Hash160, meta string, fees uint64, extraNonce [32]byte) *Tx {
	tx := &Tx{
		Version: 1,
		Inputs: []TxInput{
			{
				PrevTxn:   crypto.ZeroHash256,
				OutputIdx: CoinbaseOutputIdx,
				UnlockScript: Script{
					Code: fmt.Sprintf("%x", extraNonce[:]),
					Type: ScriptTypeTsengScript,
				},
			},
		},
		Outputs: []TxOutput{
			{
				Amount:     BlockReward + fees,
				LockScript: MakeP2PKHLock(winner),
			},
		},
		Meta: meta,
	}
	tx.Hash = HashTx(tx)
	return tx
}

// P2PKHAddress extracts the destination address from a P2PKH lock script,
// or ok=false if code is not in that exact textual form.
func P2PKHAddress(code string) (addr crypto.Hash160, ok bool) {
	fields := strings.Fields(code)
	if len(fields) != 5 {
		return addr, false
	}
	if fields[0] != "DUP" || fields[1] != "HASH160" || fields[3] != "REQUIRE_EQUAL" || fields[4] != "CHECKSIG" {
		return addr, false
	}
	if len(fields[2]) != 40 {
		return addr, false
	}
	raw, err := hex.DecodeString(fields[2])
	if err != nil || len(raw) != 20 {
		return addr, false
	}
	copy(addr[:], raw)
	return addr, true
}
