package validate

import (
	"crypto/ecdsa"
	"testing"

	"github.com/Dezzmeister/tsengcoin/crypto"
)

// ecdsaKey wraps a generated keypair for building signed test transactions.
type ecdsaKey struct {
	priv     *ecdsa.PrivateKey
	pubBytes []byte
}

func newECDSAKey(t *testing.T) *ecdsaKey {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return &ecdsaKey{priv: priv, pubBytes: crypto.MarshalPublicKey(&priv.PublicKey)}
}

func (k *ecdsaKey) sign(t *testing.T, data []byte) []byte {
	t.Helper()
	sig, err := crypto.Sign(k.priv, data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return sig
}
