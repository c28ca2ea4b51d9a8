package validate

import (
	"testing"

	"github.com/Dezzmeister/tsengcoin/chain"
	"github.com/Dezzmeister/tsengcoin/crypto"
)

// fixture builds a coinbase transaction paying addr, confirms it into a
// fresh UTXO index, and returns a resolver/confirmations pair that reports
// it as fully matured — the baseline every txn-validation test starts from.
type fixture struct {
	priv      *ecdsaKey
	addr      crypto.Hash160
	coinbase  *chain.Tx
	utxos     *chain.UTXOIndex
	resolve   Resolver
	confirmed ConfirmationsFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key := newECDSAKey(t)
	addr := crypto.AddressOf(key.pubBytes)

	var nonce [32]byte
	coinbase := chain.MakeCoinbaseTx(addr, "", 0, nonce)

	utxos := chain.NewUTXOIndex()
	utxos.ApplyUnconfirmed(coinbase)
	blockHash := crypto.Hash256{1}
	utxos.Confirm(blockHash)

	resolve := func(h crypto.Hash256) (*chain.Tx, bool) {
		if h == coinbase.Hash {
			return coinbase, true
		}
		return nil, false
	}
	confirmed := func(h crypto.Hash256) (int, bool) {
		if h == coinbase.Hash {
			return CoinbaseMaturity, true
		}
		return 0, false
	}

	return &fixture{priv: key, addr: addr, coinbase: coinbase, utxos: utxos, resolve: resolve, confirmed: confirmed}
}

// spend builds a txn spending the fixture's coinbase output with a single
// output of amount to dest, signed by the fixture's key. fee is not used:
// the fee is whatever the coinbase output leaves over amount.
func (f *fixture) spend(t *testing.T, dest crypto.Hash160, amount, fee uint64) *chain.Tx {
	t.Helper()
	tx := &chain.Tx{
		Version: 1,
		Inputs:  []chain.TxInput{{PrevTxn: f.coinbase.Hash, OutputIdx: 0}},
		Outputs: []chain.TxOutput{{Amount: amount, LockScript: chain.MakeP2PKHLock(dest)}},
	}
	tx.Hash = chain.HashTx(tx)
	sig := f.priv.sign(t, chain.SigningData(tx))
	tx.Inputs[0].UnlockScript = chain.MakeP2PKHUnlock(sig, f.priv.pubBytes)
	_ = fee // amount already accounts for the intended fee via coinbase.Outputs[0].Amount - amount
	return tx
}

func TestValidateTxnAcceptsWellFormedSpend(t *testing.T) {
	f := newFixture(t)
	dest := crypto.Hash160{9}
	tx := f.spend(t, dest, f.coinbase.Outputs[0].Amount-1, 1)

	outcome, err := ValidateTxn(tx, f.utxos, f.resolve, f.confirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != Valid {
		t.Fatalf("got outcome %v, want Valid", outcome)
	}
}

func TestValidateTxnRejectsEmptyInputs(t *testing.T) {
	f := newFixture(t)
	tx := &chain.Tx{Outputs: []chain.TxOutput{{Amount: 1, LockScript: chain.MakeP2PKHLock(f.addr)}}}
	tx.Hash = chain.HashTx(tx)
	_, err := ValidateTxn(tx, f.utxos, f.resolve, f.confirmed)
	requireCode(t, err, EmptyInputs)
}

func TestValidateTxnRejectsEmptyOutputs(t *testing.T) {
	f := newFixture(t)
	tx := &chain.Tx{Inputs: []chain.TxInput{{PrevTxn: f.coinbase.Hash, OutputIdx: 0}}}
	tx.Hash = chain.HashTx(tx)
	_, err := ValidateTxn(tx, f.utxos, f.resolve, f.confirmed)
	requireCode(t, err, EmptyOutputs)
}

func TestValidateTxnRejectsZeroOutput(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, crypto.Hash160{9}, f.coinbase.Outputs[0].Amount-1, 1)
	tx.Outputs[0].Amount = 0
	tx.Hash = chain.HashTx(tx)
	// Re-sign since hash changed.
	sig := f.priv.sign(t, chain.SigningData(tx))
	tx.Inputs[0].UnlockScript = chain.MakeP2PKHUnlock(sig, f.priv.pubBytes)

	_, err := ValidateTxn(tx, f.utxos, f.resolve, f.confirmed)
	requireCode(t, err, ZeroOutput)
}

func TestValidateTxnDetectsDoubleSpend(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, crypto.Hash160{9}, f.coinbase.Outputs[0].Amount-1, 1)
	// Spend it once so the UTXO entry is no longer live.
	f.utxos.ApplyUnconfirmed(tx)

	again := f.spend(t, crypto.Hash160{3}, f.coinbase.Outputs[0].Amount-2, 2)
	_, err := ValidateTxn(again, f.utxos, f.resolve, f.confirmed)
	requireCode(t, err, DoubleSpend)
}

func TestValidateTxnReturnsOrphanForUnknownInput(t *testing.T) {
	f := newFixture(t)
	unknown := crypto.Hash256{0xee}
	tx := &chain.Tx{
		Inputs:  []chain.TxInput{{PrevTxn: unknown, OutputIdx: 0}},
		Outputs: []chain.TxOutput{{Amount: 1, LockScript: chain.MakeP2PKHLock(f.addr)}},
	}
	tx.Hash = chain.HashTx(tx)
	outcome, err := ValidateTxn(tx, f.utxos, f.resolve, f.confirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != TxnOrphan {
		t.Fatalf("got %v, want TxnOrphan", outcome)
	}
}

func TestValidateTxnRejectsOverspend(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, crypto.Hash160{9}, f.coinbase.Outputs[0].Amount+1, 0)
	_, err := ValidateTxn(tx, f.utxos, f.resolve, f.confirmed)
	requireCode(t, err, Overspend)
}

func TestValidateTxnRejectsLowFee(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, crypto.Hash160{9}, f.coinbase.Outputs[0].Amount, 0)
	_, err := ValidateTxn(tx, f.utxos, f.resolve, f.confirmed)
	requireCode(t, err, LowFee)
}

func TestValidateTxnRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	tx := f.spend(t, crypto.Hash160{9}, f.coinbase.Outputs[0].Amount-1, 1)
	other := newECDSAKey(t)
	wrongSig := other.sign(t, chain.SigningData(tx))
	tx.Inputs[0].UnlockScript = chain.MakeP2PKHUnlock(wrongSig, f.priv.pubBytes)

	_, err := ValidateTxn(tx, f.utxos, f.resolve, f.confirmed)
	requireCode(t, err, BadUnlockScript)
}

func TestValidateTxnRejectsImmatureCoinbase(t *testing.T) {
	f := newFixture(t)
	immature := func(h crypto.Hash256) (int, bool) {
		if h == f.coinbase.Hash {
			return CoinbaseMaturity - 2, true
		}
		return 0, false
	}
	tx := f.spend(t, crypto.Hash160{9}, f.coinbase.Outputs[0].Amount-1, 1)
	_, err := ValidateTxn(tx, f.utxos, f.resolve, immature)
	requireCode(t, err, ImmatureCoinbase)
}

func requireCode(t *testing.T, err error, want TxnErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, got nil", want)
	}
	terr, ok := err.(*TxnError)
	if !ok {
		t.Fatalf("expected *TxnError, got %T (%v)", err, err)
	}
	if terr.Code != want {
		t.Fatalf("got code %s, want %s", terr.Code, want)
	}
}
