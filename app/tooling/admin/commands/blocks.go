package commands

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ardanlabs/edublock/foundation/blockchain/storage"
)

// Blocks prints the stored blocks between the optional from and to numbers.
func Blocks(args []string, strg storage.Storage) error {
	blocks, err := strg.ReadAll()
	if err != nil {
		return err
	}

	from := uint64(0)
	to := uint64(math.MaxUint64)
	if len(args) > 2 {
		if from, err = strconv.ParseUint(args[2], 10, 64); err != nil {
			return fmt.Errorf("parsing from: %w", err)
		}
	}
	if len(args) > 3 {
		if to, err = strconv.ParseUint(args[3], 10, 64); err != nil {
			return fmt.Errorf("parsing to: %w", err)
		}
	}

	for _, blk := range blocks {
		if blk.Header.Number < from || blk.Header.Number > to {
			continue
		}

		fmt.Printf("Block %d  Hash: %s  Prev: %s  Nonce: %d\n", blk.Header.Number, blk.Hash, blk.Header.PrevBlockHash, blk.Header.Nonce)
		for _, tx := range blk.Trans {
			fmt.Printf("    %s\n", tx)
		}
	}

	return nil
}
