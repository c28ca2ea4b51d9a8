package mempool

import (
	"crypto/ecdsa"
	"testing"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// testKey wraps a generated keypair for building signed test transactions.
type testKey struct {
	priv     *ecdsa.PrivateKey
	pubBytes []byte
}

func newTestKey(t *testing.T) *testKey {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return &testKey{priv: priv, pubBytes: crypto.MarshalPublicKey(&priv.PublicKey)}
}

func (k *testKey) sign(t *testing.T, data []byte) []byte {
	t.Helper()
	sig, err := crypto.Sign(k.priv, data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return sig
}
