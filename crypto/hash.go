// Package crypto wraps the hashing, signing and address-encoding primitives
// used throughout the node: SHA-256 block/transaction identities, RIPEMD-160
// address hashing, ECDSA P-256 signatures and base58check encoding.
package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //lint:ignore SA1019 matches the address scheme this node was designed against
)

// Hash256 is a 32-byte SHA-256 digest used for block and transaction identity.
type Hash256 [32]byte

// Hash160 is a 20-byte RIPEMD-160(SHA-256(x)) digest, used for addresses.
type Hash160 [20]byte

// ZeroHash256 is the all-zero hash used as the coinbase's sentinel prev-txn.
var ZeroHash256 = Hash256{}

func (h Hash256) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, h[:])
	return out
}

// Less reports whether h, read as a big-endian integer, is strictly less than other.
// Used to check proof-of-work: header.hash < difficulty_target.
func (h Hash256) Less(other Hash256) bool {
	for i := 0; i < 32; i++ {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// Sha256 computes the SHA-256 digest of data.
func Sha256(data []byte) Hash256 {
	return Hash256(sha256.Sum256(data))
}

// Ripemd160 computes the RIPEMD-160 digest of data.
func Ripemd160(data []byte) Hash160 {
	h := ripemd160.New()
	h.Write(data)
	var out Hash160
	copy(out[:], h.Sum(nil))
	return out
}

// AddressOf derives a wallet address from a raw public key: RIPEMD-160(SHA-256(pubkey)).
func AddressOf(pubkeyBytes []byte) Hash160 {
	sha := Sha256(pubkeyBytes)
	return Ripemd160(sha[:])
}
