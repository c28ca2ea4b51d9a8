package crypto

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// AddressVersion is the base58check version byte for wallet addresses.
// Bitcoin reserves 0x00 for addresses and 0x05 for P2SH; this network takes
// 0x03 so that addresses render starting with "2".
const AddressVersion byte = 0x03

// GenericVersion and EncryptedRequestVersion are reserved base58check prefixes
// for formats outside the core (generic payloads, encrypted chain requests).
const (
	GenericVersion          byte = 0x01
	EncryptedRequestVersion byte = 0x07
)

var (
	ErrBadChecksum = errors.New("crypto: bad base58check checksum")
	ErrBadBase58   = errors.New("crypto: invalid base58 string")
	ErrBadVersion  = errors.New("crypto: unexpected base58check version byte")
)

// Base58CheckEncode encodes payload with the given version byte.
func Base58CheckEncode(payload []byte, version byte) string {
	return base58.CheckEncode(payload, version)
}

// Base58CheckDecode decodes s and verifies it carries the expected version byte.
func Base58CheckDecode(s string, expectedVersion byte) ([]byte, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		if errors.Is(err, base58.ErrChecksum) {
			return nil, ErrBadChecksum
		}
		return nil, ErrBadBase58
	}
	if version != expectedVersion {
		return nil, ErrBadVersion
	}
	return payload, nil
}

// AddressToBase58Check renders a 20-byte address as base58check with AddressVersion.
func AddressToBase58Check(addr Hash160) string {
	return Base58CheckEncode(addr[:], AddressVersion)
}

// AddressFromBase58Check parses a base58check-encoded address, left-zero-padding
// short payloads back out to 20 bytes (leading zero bytes are dropped by base58).
func AddressFromBase58Check(s string) (Hash160, error) {
	var out Hash160
	payload, err := Base58CheckDecode(s, AddressVersion)
	if err != nil {
		return out, err
	}
	if len(payload) > 20 {
		return out, ErrBadBase58
	}
	copy(out[20-len(payload):], payload)
	return out, nil
}
