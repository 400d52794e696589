// Package storage defines the contract for keeping the chain durable and
// the helpers nodes use to replay and rewrite it.
package storage

import (
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
)

// Storage represents the behavior required to be implemented by any package
// providing support for reading and writing blocks.
type Storage interface {
	Write(block database.Block) error
	ReadAll() ([]database.Block, error)
	Reset() error
	Close() error
}

// Replay loads every stored block and applies them to the chain after the
// genesis block. The stored genesis block must match the chain's genesis.
func Replay(strg Storage, chain *database.Chain) (int, error) {
	blocks, err := strg.ReadAll()
	if err != nil {
		return 0, err
	}

	if len(blocks) == 0 {
		return 0, strg.Write(chain.Genesis())
	}

	if blocks[0].Hash != chain.Genesis().Hash {
		return 0, fmt.Errorf("%w: stored genesis %s, exp %s", database.ErrGenesisCorrupted, blocks[0].Hash, chain.Genesis().Hash)
	}

	for _, block := range blocks[1:] {
		if err := chain.TryAppend(block); err != nil {
			return 0, fmt.Errorf("replaying block %d: %w", block.Header.Number, err)
		}
	}

	return len(blocks) - 1, nil
}

// Rewrite replaces everything in storage with the specified blocks.
func Rewrite(strg Storage, blocks []database.Block) error {
	if err := strg.Reset(); err != nil {
		return err
	}

	for _, block := range blocks {
		if err := strg.Write(block); err != nil {
			return err
		}
	}

	return nil
}
