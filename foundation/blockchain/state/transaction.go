package state

import (
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/mempool"
	"github.com/ardanlabs/edublock/foundation/blockchain/metrics"
)

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion
// in the next block and shares it with the known peers.
func (s *State) UpsertWalletTransaction(tx database.SignedTx) error {
	if err := s.upsertTransaction(tx); err != nil {
		return err
	}

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}

// UpsertNodeTransaction accepts a transaction shared by a peer for inclusion.
func (s *State) UpsertNodeTransaction(tx database.SignedTx) error {
	if err := s.upsertTransaction(tx); err != nil {
		return err
	}

	s.Worker.SignalStartMining()

	return nil
}

// =============================================================================

// upsertTransaction validates the transaction and adds it to the mempool.
// The commit check and the insert happen under the state lock so a block
// committed in between can't leave a mined transaction in the mempool.
func (s *State) upsertTransaction(tx database.SignedTx) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chain.HasTx(tx.Signature) {
		return fmt.Errorf("%w: transaction already committed", mempool.ErrExists)
	}

	n, err := s.mempool.Upsert(tx)
	if err != nil {
		return err
	}

	s.evHandler("state: upsertTransaction: tx[%s]: mempool[%d]", tx, n)
	metrics.SetMempoolSize(n)

	return nil
}
