// Package validate implements the pure transaction validator and the
// mutating block validator: the rules that decide whether a transaction or
// block is accepted, an orphan awaiting a missing parent, or rejected.
package validate

import (
	"fmt"

	"github.com/Dezzmeister/tsengcoin/crypto"
	"github.com/Dezzmeister/tsengcoin/script"
)

// TxnErrorCode enumerates the ways a transaction can fail validation.
type TxnErrorCode string

const (
	EmptyInputs      TxnErrorCode = "EMPTY_INPUTS"
	EmptyOutputs     TxnErrorCode = "EMPTY_OUTPUTS"
	TxnTooLarge      TxnErrorCode = "TXN_TOO_LARGE"
	OutOfRange       TxnErrorCode = "OUT_OF_RANGE"
	IsCoinbase       TxnErrorCode = "IS_COINBASE"
	InvalidUTXOIndex TxnErrorCode = "INVALID_UTXO_INDEX"
	ScriptError      TxnErrorCode = "SCRIPT"
	BadUnlockScript  TxnErrorCode = "BAD_UNLOCK_SCRIPT"
	Overspend        TxnErrorCode = "OVERSPEND"
	LowFee           TxnErrorCode = "LOW_FEE"
	DoubleSpend      TxnErrorCode = "DOUBLE_SPEND"
	InvalidHash      TxnErrorCode = "INVALID_HASH"
	ZeroOutput       TxnErrorCode = "ZERO_OUTPUT"
	ImmatureCoinbase TxnErrorCode = "IMMATURE_COINBASE"
)

// TxnError is returned when transaction validation rejects outright (as
// opposed to classifying the transaction as an orphan).
type TxnError struct {
	Code  TxnErrorCode
	Inner error // set when Code == ScriptError
}

func (e *TxnError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Inner)
	}
	return string(e.Code)
}

func (e *TxnError) Unwrap() error { return e.Inner }

func txnErr(code TxnErrorCode) error {
	return &TxnError{Code: code}
}

func txnScriptErr(inner error) error {
	return &TxnError{Code: ScriptError, Inner: inner}
}

// BlockErrorCode enumerates the ways a block can fail validation.
type BlockErrorCode string

const (
	IncorrectDifficulty   BlockErrorCode = "INCORRECT_DIFFICULTY"
	FailedProofOfWork     BlockErrorCode = "FAILED_PROOF_OF_WORK"
	InvalidHeaderHash     BlockErrorCode = "INVALID_HEADER_HASH"
	OldBlock              BlockErrorCode = "OLD_BLOCK"
	BlockTooLarge         BlockErrorCode = "BLOCK_TOO_LARGE"
	EmptyBlock            BlockErrorCode = "EMPTY_BLOCK"
	TxnErrorInBlock       BlockErrorCode = "TXN_ERROR"
	OrphanTxnInBlock      BlockErrorCode = "ORPHAN_TXN"
	InvalidCoinbase       BlockErrorCode = "INVALID_COINBASE"
	InvalidCoinbaseAmount BlockErrorCode = "INVALID_COINBASE_AMOUNT"
	InvalidMerkleRoot     BlockErrorCode = "INVALID_MERKLE_ROOT"
)

// BlockError is returned when block validation rejects outright (as opposed
// to classifying the block as an orphan).
type BlockError struct {
	Code     BlockErrorCode
	Inner    error          // set when Code == TxnErrorInBlock
	TxnHash  crypto.Hash256 // set when Code == TxnErrorInBlock or OrphanTxnInBlock
	Expected uint64         // set when Code == InvalidCoinbaseAmount
	Actual   uint64         // set when Code == InvalidCoinbaseAmount
}

func (e *BlockError) Error() string {
	switch e.Code {
	case TxnErrorInBlock:
		return fmt.Sprintf("%s: txn %x: %v", e.Code, e.TxnHash[:], e.Inner)
	case OrphanTxnInBlock:
		return fmt.Sprintf("%s: txn %x", e.Code, e.TxnHash[:])
	case InvalidCoinbaseAmount:
		return fmt.Sprintf("%s: expected %d, got %d", e.Code, e.Expected, e.Actual)
	default:
		return string(e.Code)
	}
}

func (e *BlockError) Unwrap() error { return e.Inner }

func blockErr(code BlockErrorCode) error {
	return &BlockError{Code: code}
}

func blockTxnErr(inner error, txnHash crypto.Hash256) error {
	return &BlockError{Code: TxnErrorInBlock, Inner: inner, TxnHash: txnHash}
}

func blockOrphanTxnErr(txnHash crypto.Hash256) error {
	return &BlockError{Code: OrphanTxnInBlock, TxnHash: txnHash}
}

func blockCoinbaseAmountErr(expected, actual uint64) error {
	return &BlockError{Code: InvalidCoinbaseAmount, Expected: expected, Actual: actual}
}

// scriptErrKind reports whether err is a script evaluation error, purely so
// callers can decide whether to wrap it as a TxnError ScriptError.
func scriptErrKind(err error) (*script.Error, bool) {
	se, ok := err.(*script.Error)
	return se, ok
}
