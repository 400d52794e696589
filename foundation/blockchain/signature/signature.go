// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/hasher"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a signature can't be produced or
// doesn't verify against the expected public key.
var ErrInvalidSignature = errors.New("invalid signature")

// stampPrefix is embedded into every digest that is signed. This will make
// it clear that the signature comes from this blockchain and can't be
// replayed as a signature for some other system.
const stampPrefix = "\x19Edublock Signed Message:\n32"

// =============================================================================

// GenerateKey produces a new private key. The public key is carried inside
// the private key value.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// PublicKeyHex returns the hex representation of the compressed public key.
// This is the identity used for senders and recipients on the blockchain.
func PublicKeyHex(pk ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.CompressPubkey(&pk))
}

// ParsePublicKey converts the hex representation of a compressed public key
// back into a public key.
func ParsePublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	data, err := hexutil.Decode(publicKey)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}

	if len(data) != 33 {
		return nil, fmt.Errorf("public key must be 33 bytes, got %d", len(data))
	}

	return crypto.DecompressPubkey(data)
}

// Sign uses the specified private key to sign the data.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Check the signature verifies with the public key tied to the
	// private key before it leaves this function.
	pub := crypto.CompressPubkey(&privateKey.PublicKey)
	if !crypto.VerifySignature(pub, data, sig[:crypto.RecoveryIDOffset]) {
		return "", ErrInvalidSignature
	}

	return hexutil.Encode(sig), nil
}

// Verify checks the signature was produced over the value by the private key
// associated with the specified public key. Any problem decoding the inputs
// or checking the signature is reported as false.
func Verify(value any, publicKey string, sig string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	pub, err := hexutil.Decode(publicKey)
	if err != nil || len(pub) != 33 {
		return false
	}

	sigBytes, err := hexutil.Decode(sig)
	if err != nil || len(sigBytes) != crypto.SignatureLength {
		return false
	}

	data, err := stamp(value)
	if err != nil {
		return false
	}

	return crypto.VerifySignature(pub, data, sigBytes[:crypto.RecoveryIDOffset])
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the stamp prefix embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Serialize the data in its canonical form.
	v, err := hasher.Serialize(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array. This will provide
	// a data length consistency with all data.
	txHash := crypto.Keccak256(v)

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the data.
	data := crypto.Keccak256([]byte(stampPrefix), txHash)

	return data, nil
}
