package database

import (
	"fmt"
	"sync"

	"github.com/ardanlabs/edublock/foundation/blockchain/genesis"
)

// ChainConfig represents the configuration required to construct a chain.
type ChainConfig struct {
	Genesis   genesis.Genesis
	EvHandler EventHandler
}

// Chain maintains the ordered sequence of blocks starting with genesis. All
// writes are serialized and readers always receive copies, so a reader never
// observes a partially applied change.
type Chain struct {
	mu         sync.RWMutex
	genesis    Block
	difficulty uint16
	blocks     []Block
	evHandler  EventHandler
}

// NewChain constructs a chain holding only the genesis block. An error
// wrapping ErrGenesisCorrupted means the chain can't be trusted and the
// caller must stop.
func NewChain(cfg ChainConfig) (*Chain, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	gb := NewGenesisBlock(cfg.Genesis.Date)
	if err := gb.validateGenesis(); err != nil {
		return nil, err
	}

	ev("database: NewChain: genesis[%s]: difficulty[%d]", gb.Hash, cfg.Genesis.Difficulty)

	c := Chain{
		genesis:    gb,
		difficulty: cfg.Genesis.Difficulty,
		blocks:     []Block{gb},
		evHandler:  ev,
	}

	return &c, nil
}

// Genesis returns a copy of the genesis block.
func (c *Chain) Genesis() Block {
	return c.genesis.clone()
}

// Difficulty returns the number of leading zeros required by every block
// after genesis.
func (c *Chain) Difficulty() uint16 {
	return c.difficulty
}

// Length returns the number of blocks in the chain, including genesis.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.blocks)
}

// Tip returns a copy of the latest block in the chain.
func (c *Chain) Tip() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blocks[len(c.blocks)-1].clone()
}

// Blocks returns a copy of the entire chain.
func (c *Chain) Blocks() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return cloneBlocks(c.blocks)
}

// Block returns a copy of the block at the specified number.
func (c *Chain) Block(number uint64) (Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if number >= uint64(len(c.blocks)) {
		return Block{}, fmt.Errorf("block %d does not exist, length %d", number, len(c.blocks))
	}

	return c.blocks[number].clone(), nil
}

// Range returns a copy of the blocks between from and to inclusive. The
// range is trimmed to the blocks that exist.
func (c *Chain) Range(from uint64, to uint64) []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	last := uint64(len(c.blocks) - 1)
	if to > last {
		to = last
	}

	if from > to {
		return nil
	}

	return cloneBlocks(c.blocks[from : to+1])
}

// HasTx reports whether a transaction with the specified signature is
// already part of a block.
func (c *Chain) HasTx(sig string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, block := range c.blocks {
		for _, tx := range block.Trans {
			if tx.Signature == sig {
				return true
			}
		}
	}

	return false
}

// TryAppend validates the block against the current tip and if that passes,
// the block becomes the new tip. On failure the chain is left unchanged.
func (c *Chain) TryAppend(block Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tip := c.blocks[len(c.blocks)-1]

	c.evHandler("database: TryAppend: started: tip[%d]: blk[%d]", tip.Header.Number, block.Header.Number)

	if err := block.Validate(tip, c.difficulty, c.evHandler); err != nil {
		c.evHandler("database: TryAppend: REJECTED: blk[%d]: %s", block.Header.Number, err)
		return err
	}

	c.blocks = append(c.blocks, block.clone())

	c.evHandler("database: TryAppend: completed: tip[%d]: hash[%s]", block.Header.Number, block.Hash)

	return nil
}

// Validate performs a full walk of the chain validating every block against
// its parent.
func (c *Chain) Validate() error {
	return ValidateBlocks(c.Blocks(), c.genesis, c.difficulty, c.evHandler)
}

// ReplaceWith swaps the chain for the candidate if the candidate is a valid
// chain that is strictly longer. Equal length candidates never replace the
// current chain.
func (c *Chain) ReplaceWith(candidate []Block) error {
	c.evHandler("database: ReplaceWith: started: candidate[%d]", len(candidate))

	// Checking the length first keeps a node from spending time validating
	// chains it would never accept.
	if length := c.Length(); len(candidate) <= length {
		return fmt.Errorf("%w: candidate length %d, local length %d", ErrStaleChain, len(candidate), length)
	}

	if err := ValidateBlocks(candidate, c.genesis, c.difficulty, c.evHandler); err != nil {
		c.evHandler("database: ReplaceWith: REJECTED: %s", err)
		return err
	}

	blocks := cloneBlocks(candidate)

	c.mu.Lock()
	defer c.mu.Unlock()

	// The chain could have been extended while the candidate was validated.
	if len(blocks) <= len(c.blocks) {
		return fmt.Errorf("%w: candidate length %d, local length %d", ErrStaleChain, len(blocks), len(c.blocks))
	}

	c.blocks = blocks

	c.evHandler("database: ReplaceWith: completed: tip[%d]: hash[%s]", blocks[len(blocks)-1].Header.Number, blocks[len(blocks)-1].Hash)

	return nil
}

// =============================================================================

// ValidateBlocks walks the set of blocks from genesis, validating every
// adjacent pair. The first block must be the specified genesis block.
func ValidateBlocks(blocks []Block, genesis Block, difficulty uint16, ev EventHandler) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: chain holds no blocks", ErrChainLinkMismatch)
	}

	first := blocks[0]
	if hash := first.CalculateHash(); first.Hash != hash {
		return fmt.Errorf("%w: genesis stored hash %s, calculated %s", ErrHashMismatch, first.Hash, hash)
	}

	if first.Hash != genesis.Hash {
		return fmt.Errorf("%w: genesis hash %s, exp %s", ErrChainLinkMismatch, first.Hash, genesis.Hash)
	}

	for i := 1; i < len(blocks); i++ {
		if err := blocks[i].Validate(blocks[i-1], difficulty, ev); err != nil {
			return err
		}
	}

	return nil
}

// cloneBlocks copies the set of blocks.
func cloneBlocks(blocks []Block) []Block {
	cpy := make([]Block, len(blocks))
	for i, b := range blocks {
		cpy[i] = b.clone()
	}
	return cpy
}
