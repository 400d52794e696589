package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/consensus"
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/metrics"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
	"github.com/ardanlabs/edublock/foundation/blockchain/storage"
)

// ErrWrongMode is returned when an operation is not supported by the mode
// the node is running in.
var ErrWrongMode = errors.New("operation not supported in this mode")

// ProcessPeerChain takes a chain received from a peer and applies the
// longest valid chain rule to it.
func (s *State) ProcessPeerChain(msg consensus.ChainMessage) error {
	s.evHandler("state: ProcessPeerChain: started: sender[%s]", msg.SenderID)
	defer s.evHandler("state: ProcessPeerChain: completed: sender[%s]", msg.SenderID)

	if s.mode != ModeConsensus {
		return fmt.Errorf("%w: peer chains in %s mode", ErrWrongMode, s.mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.ReceiveChain(msg); err != nil {
		metrics.AddRejected(database.Reason(err))
		return err
	}

	return nil
}

// ProcessPeerTip records the tip claimed by a peer and reports whether the
// peer's chain should be pulled.
func (s *State) ProcessPeerTip(msg consensus.TipMessage) bool {
	if s.mode != ModeConsensus {
		return false
	}

	return s.engine.ReceiveTip(msg)
}

// SyncPeer pulls the chain of the specified peer and processes it.
func (s *State) SyncPeer(ctx context.Context, pr peer.Peer) error {
	if s.network == nil {
		return errNoNetwork
	}

	blocks, err := s.network.PullChain(ctx, pr)
	if err != nil {
		return fmt.Errorf("pulling chain from %s: %w", pr, err)
	}

	return s.ProcessPeerChain(consensus.ChainMessage{SenderID: pr.Host, Chain: blocks})
}

// Announce sends the local chain to every known peer without waiting on
// the sends. Failed sends are reported through the event handler.
func (s *State) Announce(ctx context.Context) {
	if s.mode != ModeConsensus {
		return
	}

	s.engine.Announce(ctx)
}

// AnnounceTip sends the local tip to every known peer without waiting on
// the sends.
func (s *State) AnnounceTip(ctx context.Context) {
	if s.mode != ModeConsensus {
		return
	}

	s.engine.AnnounceTip(ctx)
}

// =============================================================================

// onReplace is called by the consensus engine after the local chain was
// replaced. The state lock is held by the caller.
func (s *State) onReplace(old []database.Block, new []database.Block) {
	s.evHandler("state: onReplace: old[%d]: new[%d]", len(old), len(new))

	// If a mining operation is running it needs to stop immediately since
	// it is mining on top of a tip that is no longer part of the chain.
	done := s.Worker.SignalCancelMining()
	defer done()

	if err := storage.Rewrite(s.storage, new); err != nil {
		s.evHandler("state: onReplace: ERROR: rewriting storage: %s", err)
	}

	s.mempool.Prune(new)

	// Transactions that only lived in the blocks that were dropped need to
	// be mined again.
	for _, tx := range orphans(old, new) {
		if _, err := s.mempool.Upsert(tx); err == nil {
			s.evHandler("state: onReplace: requeued tx[%s]", tx)
		}
	}

	metrics.AddChainReplaced()
	metrics.SetChainLength(len(new))
	metrics.SetMempoolSize(s.mempool.Count())

	if s.mempool.Count() > 0 {
		s.Worker.SignalStartMining()
	}
}

// orphans returns the transactions in the old blocks that are not part of
// the new blocks.
func orphans(old []database.Block, new []database.Block) []database.SignedTx {
	committed := make(map[string]struct{})
	for _, block := range new {
		for _, tx := range block.Trans {
			committed[tx.Signature] = struct{}{}
		}
	}

	var txs []database.SignedTx
	for _, block := range old {
		for _, tx := range block.Trans {
			if _, exists := committed[tx.Signature]; !exists {
				txs = append(txs, tx)
			}
		}
	}

	return txs
}
