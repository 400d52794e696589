// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/genesis"
	"github.com/ardanlabs/edublock/foundation/blockchain/storage"
)

// Verify replays the stored blocks into a fresh chain which validates every
// block from genesis.
func Verify(gen genesis.Genesis, strg storage.Storage) error {
	chain, err := database.NewChain(database.ChainConfig{Genesis: gen})
	if err != nil {
		return err
	}

	// Replay writes the genesis block into an empty store.
	blocks, err := strg.ReadAll()
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return errors.New("no blocks stored")
	}

	replayed, err := storage.Replay(strg, chain)
	if err != nil {
		return err
	}

	tip := chain.Tip()
	fmt.Printf("Replayed: %d\n", replayed)
	fmt.Printf("Length  : %d\n", chain.Length())
	fmt.Printf("Tip     : %d %s\n", tip.Header.Number, tip.Hash)

	return nil
}
