// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup for the public keys of the known accounts.
package nameservice

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of public keys for name lookup.
type NameService struct {
	names map[string]string
	keys  map[string]string
}

// New constructs a name service with the key files found under root.
func New(root string) (*NameService, error) {
	ns := NameService{
		names: make(map[string]string),
		keys:  make(map[string]string),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		name := strings.TrimSuffix(filepath.Base(fileName), ".ecdsa")
		ns.add(name, privateKey)

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// add records the name for the public key of the private key.
func (ns *NameService) add(name string, privateKey *ecdsa.PrivateKey) {
	publicKey := signature.PublicKeyHex(privateKey.PublicKey)
	ns.names[publicKey] = name
	ns.keys[name] = publicKey
}

// Lookup returns the name for the specified public key. The public key is
// returned when no name is known.
func (ns *NameService) Lookup(publicKey string) string {
	name, exists := ns.names[publicKey]
	if !exists {
		return publicKey
	}
	return name
}

// PublicKey returns the public key for the specified name.
func (ns *NameService) PublicKey(name string) (string, bool) {
	publicKey, exists := ns.keys[name]
	return publicKey, exists
}

// Copy returns a copy of the map of public keys and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.names))
	for publicKey, name := range ns.names {
		cpy[publicKey] = name
	}
	return cpy
}
