package database

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/hasher"
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64 `json:"number"`          // Block number in the chain, genesis is 0.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64 `json:"timestamp"`       // Time the block was created in unix milliseconds.
	Nonce         uint64 `json:"nonce"`           // Value identified to solve the hash solution.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader `json:"header"`
	Trans  []SignedTx  `json:"trans"`
	Hash   string      `json:"hash"`
	Stamp  string      `json:"stamp,omitempty"` // Authority signature over number and hash, not part of the hash.
}

// NewBlock constructs a block for the specified position in the chain and
// computes its hash. The block has not been mined.
func NewBlock(number uint64, prevBlockHash string, trans []SignedTx) Block {
	b := Block{
		Header: BlockHeader{
			Number:        number,
			PrevBlockHash: prevBlockHash,
			TimeStamp:     uint64(time.Now().UTC().UnixMilli()),
		},
		Trans: cloneTrans(trans),
	}
	b.Hash = b.CalculateHash()

	return b
}

// NewGenesisBlock constructs the fixed first block of every chain. The
// block only depends on the provided date so every node builds the same one.
func NewGenesisBlock(date time.Time) Block {
	b := Block{
		Header: BlockHeader{
			Number:        0,
			PrevBlockHash: hasher.ZeroHash,
			TimeStamp:     uint64(date.UTC().UnixMilli()),
		},
	}
	b.Hash = b.CalculateHash()

	return b
}

// CalculateHash returns the hash over the header and the transactions. The
// stored hash is not part of the calculation.
func (b Block) CalculateHash() string {
	content := struct {
		Header BlockHeader
		Trans  []SignedTx
	}{
		Header: b.Header,
		Trans:  b.Trans,
	}

	// A block decoded from the wire may carry an empty slice where the
	// original had none.
	if len(content.Trans) == 0 {
		content.Trans = nil
	}

	return hasher.Hash(content)
}

// POWArgs are the arguments required to run a proof of work.
type POWArgs struct {
	PrevBlock  Block
	Trans      []SignedTx
	Difficulty uint16
	EvHandler  EventHandler
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	nb := NewBlock(args.PrevBlock.Header.Number+1, args.PrevBlock.Hash, args.Trans)

	return nb.Mine(ctx, args.Difficulty, args.EvHandler)
}

// Mine does the work of mining to find a valid hash for the block. A copy of
// the block with the discovered nonce and hash is returned. The search stops
// when the context is cancelled.
func (b Block) Mine(ctx context.Context, difficulty uint16, ev EventHandler) (Block, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	ev("database: Mine: MINING: started: blk[%d]", b.Header.Number)
	defer ev("database: Mine: MINING: completed: blk[%d]", b.Header.Number)

	// Log the transactions that are a part of this potential block.
	for _, tx := range b.Trans {
		ev("database: Mine: MINING: tx[%s]", tx)
	}

	// Choose a random starting point for the nonce. After this, the nonce
	// will be incremented by 1 until a solution is found by us or another node.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return Block{}, err
	}
	b.Header.Nonce = nBig.Uint64()

	// Loop until we or another node finds a solution for the next block.
	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: Mine: MINING: attempts[%d]", attempts)
		}

		// Did we get cancelled trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: Mine: MINING: CANCELLED")
			return Block{}, ctx.Err()
		}

		// Hash the block and check if we have solved the puzzle.
		hash := b.CalculateHash()
		if !hasher.IsSolved(difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		b.Hash = hash

		ev("database: Mine: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: Mine: MINING: attempts[%d]", attempts)

		return b, nil
	}
}

// Validate takes a block and validates it to be included after the
// previous block. Each failure wraps the error that classifies it.
func (b Block) Validate(prev Block, difficulty uint16, ev EventHandler) error {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	ev("database: Validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := prev.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("%w: block %d is not the next number, exp %d", ErrChainLinkMismatch, b.Header.Number, nextNumber)
	}

	ev("database: Validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != prev.Hash {
		return fmt.Errorf("%w: block %d parent hash doesn't match our known parent, got %s, exp %s", ErrChainLinkMismatch, b.Header.Number, b.Header.PrevBlockHash, prev.Hash)
	}

	ev("database: Validate: blk[%d]: check: block hash matches the content", b.Header.Number)

	if hash := b.CalculateHash(); b.Hash != hash {
		return fmt.Errorf("%w: block %d stored hash %s, calculated %s", ErrHashMismatch, b.Header.Number, b.Hash, hash)
	}

	ev("database: Validate: blk[%d]: check: transactions are signed", b.Header.Number)

	for i, tx := range b.Trans {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("block %d tx[%d]: %w", b.Header.Number, i, err)
		}
	}

	ev("database: Validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	if !hasher.IsSolved(difficulty, b.Hash) {
		return fmt.Errorf("%w: block %d hash %s does not solve difficulty %d", ErrInsufficientWork, b.Header.Number, b.Hash, difficulty)
	}

	return nil
}

// validateGenesis performs the self-check of a genesis block.
func (b Block) validateGenesis() error {
	if b.Header.Number != 0 {
		return fmt.Errorf("%w: genesis number is %d", ErrGenesisCorrupted, b.Header.Number)
	}

	if b.Header.PrevBlockHash != hasher.ZeroHash {
		return fmt.Errorf("%w: genesis previous hash is %s", ErrGenesisCorrupted, b.Header.PrevBlockHash)
	}

	if len(b.Trans) != 0 {
		return fmt.Errorf("%w: genesis holds %d transactions", ErrGenesisCorrupted, len(b.Trans))
	}

	if hash := b.CalculateHash(); b.Hash != hash {
		return fmt.Errorf("%w: genesis stored hash %s, calculated %s", ErrGenesisCorrupted, b.Hash, hash)
	}

	return nil
}

// clone returns a copy of the block that shares no memory with the original.
func (b Block) clone() Block {
	b.Trans = cloneTrans(b.Trans)
	return b
}

// cloneTrans copies the set of transactions.
func cloneTrans(trans []SignedTx) []SignedTx {
	if trans == nil {
		return nil
	}

	cpy := make([]SignedTx, len(trans))
	copy(cpy, trans)
	return cpy
}
