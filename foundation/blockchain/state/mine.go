package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/metrics"
	"github.com/ardanlabs/edublock/foundation/blockchain/validator"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. How the block is committed depends on
// the mode of the node.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Are there enough transactions in the pool.
	if s.mempool.Count() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		PrevBlock:  s.chain.Tip(),
		Trans:      s.mempool.PickBest(int(s.genesis.TransPerBlock)),
		Difficulty: s.chain.Difficulty(),
		EvHandler:  database.EventHandler(s.evHandler),
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: commit block: mode[%s]", s.mode)

	switch s.mode {
	case ModeAuthority:
		err = s.commitAuthority(ctx, block)
	case ModeCentralized:
		err = s.commitCentralized(ctx, block)
	default:
		err = s.commitLocal(block)
	}

	if err != nil {
		metrics.AddRejected(database.Reason(err))
		return database.Block{}, err
	}

	metrics.AddBlockMined()

	return block, nil
}

// =============================================================================

// commitLocal appends the block to the local chain.
func (s *State) commitLocal(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The chain could have been replaced while mining.
	if err := s.chain.TryAppend(block); err != nil {
		return err
	}

	return s.updateLocalState(block)
}

// commitAuthority hands the block to the authority running in this node.
func (s *State) commitAuthority(ctx context.Context, block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.authority.Submit(ctx, block)
	if err != nil {
		return err
	}

	if !res.Accepted {
		return fmt.Errorf("block %d rejected: %s", block.Header.Number, res.Reason)
	}

	return nil
}

// commitCentralized submits the block to the remote authority. When the
// authority accepts the block it extends the local copy of the canonical
// chain.
func (s *State) commitCentralized(ctx context.Context, block database.Block) error {
	res, err := s.submitter.Submit(ctx, block)
	if err != nil {
		return err
	}

	if !res.Accepted {
		return fmt.Errorf("block %d rejected by authority: %s", block.Header.Number, res.Reason)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.authorityPublicKey(ctx)
	if err != nil {
		return err
	}

	if !validator.VerifyStamp(block, res.Stamp, key) {
		return fmt.Errorf("%w: block %d accepted without a valid authority stamp", database.ErrSignatureInvalid, block.Header.Number)
	}
	block.Stamp = res.Stamp

	s.evHandler("state: commitCentralized: accepted: blk[%d]: stamp[%s]", block.Header.Number, res.Stamp)

	// The local copy can fall behind the authority. Catch up from the
	// canonical chain in that case.
	if err := s.chain.TryAppend(block); err != nil {
		s.evHandler("state: commitCentralized: local copy behind: %s", err)
		return s.syncAuthority(ctx)
	}

	return s.updateLocalState(block)
}

// updateLocalState stores the appended block and removes its transactions
// from the mempool. The caller must hold the state lock.
func (s *State) updateLocalState(block database.Block) error {
	s.evHandler("state: updateLocalState: write to storage: blk[%d]", block.Header.Number)

	if err := s.storage.Write(block); err != nil {
		return fmt.Errorf("storing block %d: %w", block.Header.Number, err)
	}

	removed := s.mempool.Prune([]database.Block{block})
	s.evHandler("state: updateLocalState: removed from mempool: txs[%d]", removed)

	metrics.AddBlockAppended()
	metrics.SetChainLength(s.chain.Length())
	metrics.SetMempoolSize(s.mempool.Count())

	return nil
}
