package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

// Curve is the P-256 curve used for every signing key in the network.
func Curve() elliptic.Curve {
	return elliptic.P256()
}

// GenerateKey creates a new ECDSA P-256 keypair.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(Curve(), rand.Reader)
}

// MarshalPublicKey encodes a public key as an uncompressed EC point, the form
// that CHECKSIG expects to find pushed onto the script stack.
func MarshalPublicKey(pub *ecdsa.PublicKey) []byte {
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// ParsePublicKey decodes an uncompressed EC point back into a public key.
func ParsePublicKey(data []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.Unmarshal(Curve(), data)
	if x == nil {
		return nil, errors.New("crypto: invalid public key encoding")
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}, nil
}

// Sign produces an ASN.1 DER-encoded ECDSA signature over SHA-256(data).
func Sign(priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return ecdsa.SignASN1(rand.Reader, priv, digest[:])
}

// Verify checks an ASN.1 DER-encoded ECDSA signature over SHA-256(data).
func Verify(pub *ecdsa.PublicKey, data []byte, sig []byte) bool {
	digest := sha256.Sum256(data)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}
