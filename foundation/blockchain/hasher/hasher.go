// Package hasher provides the content addressing used to identify blocks and
// to check the proof of work puzzle.
package hasher

import (
	"crypto/sha256"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fxamacker/cbor/v2"
)

// ZeroHash represents a hash code of zeros. It is used as the previous hash
// of the genesis block.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// encoder produces the deterministic encoding defined by RFC 8949 so every
// node serializes the same value into the same bytes.
var encoder cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encoder = em
}

// =============================================================================

// Serialize returns the canonical byte representation of the value. This is
// the representation used for hashing and signing.
func Serialize(value any) ([]byte, error) {
	return encoder.Marshal(value)
}

// Sum returns the hex encoded SHA-256 digest of the data.
func Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// Hash returns a unique string for the value. If the value can't be
// serialized the zero hash is returned, which never solves a puzzle and
// never matches a stored block hash.
func Hash(value any) string {
	data, err := Serialize(value)
	if err != nil {
		return ZeroHash
	}

	return Sum(data)
}

// IsSolved checks the hash to make sure it complies with the POW rules. We
// need to match a difficulty number of leading 0's. A difficulty of zero
// turns the puzzle off.
func IsSolved(difficulty uint16, hash string) bool {
	hash = strings.TrimPrefix(hash, "0x")

	if len(hash) != 2*sha256.Size {
		return false
	}

	if int(difficulty) > len(hash) {
		return false
	}

	for i := 0; i < int(difficulty); i++ {
		if hash[i] != '0' {
			return false
		}
	}

	return true
}
