// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// MaxDifficulty is the number of hex digits in a block hash. A difficulty
// above it could never be solved.
const MaxDifficulty = 64

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time `json:"date"`            // Fixed time stamped into the genesis block.
	ChainID       uint16    `json:"chain_id"`        // The chain id represents an unique id for this running instance.
	TransPerBlock uint16    `json:"trans_per_block"` // The maximum number of transactions that can be in a block.
	Difficulty    uint16    `json:"difficulty"`      // How difficult it needs to be to solve the work problem, 0 turns it off.
}

// Default returns the genesis settings used when no genesis file exists.
func Default() Genesis {
	return Genesis{
		Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 10,
		Difficulty:    4,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. If the file doesn't exist the
// default genesis is returned.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if genesis.TransPerBlock == 0 {
		return Genesis{}, errors.New("trans_per_block must be greater than zero")
	}

	if genesis.Difficulty > MaxDifficulty {
		return Genesis{}, fmt.Errorf("difficulty must be at most %d, got %d", MaxDifficulty, genesis.Difficulty)
	}

	return genesis, nil
}
