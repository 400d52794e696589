// Package consensus implements the longest valid chain agreement protocol
// nodes use to converge on a single chain without a trusted arbiter.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
	"github.com/hashicorp/go-multierror"
)

// ChainMessage carries the full chain of the sending node.
type ChainMessage struct {
	SenderID string           `json:"sender_id" validate:"required"`
	Chain    []database.Block `json:"chain" validate:"required,min=1"`
}

// TipMessage carries only the tip of the sending node. A receiver that finds
// the claim interesting pulls the full chain afterwards.
type TipMessage struct {
	SenderID string `json:"sender_id" validate:"required"`
	TipHash  string `json:"tip_hash" validate:"required"`
	Length   int    `json:"length" validate:"required,min=1"`
}

// PeerView is what a peer last claimed about its chain. It is never
// persisted.
type PeerView struct {
	TipHash string    `json:"tip_hash"`
	Length  int       `json:"length"`
	Updated time.Time `json:"updated"`
}

// Network represents the transport the engine uses to reach its peers.
// Delivery is not guaranteed.
type Network interface {
	Peers() []peer.Peer
	SendChain(ctx context.Context, to peer.Peer, msg ChainMessage) error
	SendTip(ctx context.Context, to peer.Peer, msg TipMessage) error
	PullChain(ctx context.Context, from peer.Peer) ([]database.Block, error)
}

// =============================================================================

// Config represents the configuration required to construct an engine.
type Config struct {
	ID        string
	Chain     *database.Chain
	Network   Network
	OnReplace func(old []database.Block, new []database.Block)
	EvHandler database.EventHandler
}

// Engine applies the fork choice rule for a single node. Every receipt is
// handled independently, so message order and duplicates don't matter.
type Engine struct {
	id        string
	chain     *database.Chain
	network   Network
	onReplace func(old []database.Block, new []database.Block)
	evHandler database.EventHandler

	mu    sync.RWMutex
	views map[string]PeerView
}

// New constructs an engine for the specified chain.
func New(cfg Config) (*Engine, error) {
	if cfg.ID == "" {
		return nil, errors.New("engine id must be provided")
	}

	if cfg.Chain == nil {
		return nil, errors.New("chain must be provided")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	e := Engine{
		id:        cfg.ID,
		chain:     cfg.Chain,
		network:   cfg.Network,
		onReplace: cfg.OnReplace,
		evHandler: ev,
		views:     make(map[string]PeerView),
	}

	return &e, nil
}

// ID returns the identity this engine uses when sending messages.
func (e *Engine) ID() string {
	return e.id
}

// LocalChain returns a copy of the chain this engine is guarding.
func (e *Engine) LocalChain() []database.Block {
	return e.chain.Blocks()
}

// Views returns a copy of the last known claims of every peer.
func (e *Engine) Views() map[string]PeerView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	views := make(map[string]PeerView, len(e.views))
	for id, view := range e.views {
		views[id] = view
	}

	return views
}

// ReceiveChain records the sender's claim and replaces the local chain when
// the candidate is valid and strictly longer. An invalid or shorter chain is
// discarded and the error says why. The sender is not penalized.
func (e *Engine) ReceiveChain(msg ChainMessage) error {
	e.evHandler("consensus: ReceiveChain: started: sender[%s]: length[%d]", msg.SenderID, len(msg.Chain))
	defer e.evHandler("consensus: ReceiveChain: completed: sender[%s]", msg.SenderID)

	if len(msg.Chain) == 0 {
		return fmt.Errorf("%w: sender %s sent an empty chain", database.ErrChainLinkMismatch, msg.SenderID)
	}

	tip := msg.Chain[len(msg.Chain)-1]
	e.record(msg.SenderID, tip.Hash, len(msg.Chain))

	old := e.chain.Blocks()

	if err := e.chain.ReplaceWith(msg.Chain); err != nil {
		e.evHandler("consensus: ReceiveChain: DISCARDED: sender[%s]: %s", msg.SenderID, err)
		return err
	}

	e.evHandler("consensus: ReceiveChain: REPLACED: sender[%s]: tip[%d]: hash[%s]", msg.SenderID, tip.Header.Number, tip.Hash)

	if e.onReplace != nil {
		e.onReplace(old, e.chain.Blocks())
	}

	return nil
}

// ReceiveTip records the sender's claim and reports whether the sender
// claims a strictly longer chain. The caller decides when to pull the chain
// so the receiving path never waits on the network.
func (e *Engine) ReceiveTip(msg TipMessage) bool {
	e.record(msg.SenderID, msg.TipHash, msg.Length)

	length := e.chain.Length()
	pull := msg.Length > length

	e.evHandler("consensus: ReceiveTip: sender[%s]: length[%d]: local[%d]: pull[%v]", msg.SenderID, msg.Length, length, pull)

	return pull
}

// Sync pulls the full chain from the specified peer and applies the fork
// choice rule to it.
func (e *Engine) Sync(ctx context.Context, from peer.Peer) error {
	e.evHandler("consensus: Sync: started: peer[%s]", from)
	defer e.evHandler("consensus: Sync: completed: peer[%s]", from)

	if e.network == nil {
		return errors.New("no network configured")
	}

	blocks, err := e.network.PullChain(ctx, from)
	if err != nil {
		return fmt.Errorf("pulling chain from %s: %w", from, err)
	}

	return e.ReceiveChain(ChainMessage{SenderID: from.Host, Chain: blocks})
}

// Announce sends the full local chain to every known peer concurrently.
// The call returns once the sends are dispatched. The aggregated failures
// are delivered on the returned channel after every send finished and are
// for logging only.
func (e *Engine) Announce(ctx context.Context) <-chan error {
	msg := ChainMessage{
		SenderID: e.id,
		Chain:    e.chain.Blocks(),
	}

	return e.broadcast(ctx, "Announce", func(ctx context.Context, to peer.Peer) error {
		return e.network.SendChain(ctx, to, msg)
	})
}

// AnnounceTip sends the local tip hash and length to every known peer
// concurrently. Like Announce it never waits on the network.
func (e *Engine) AnnounceTip(ctx context.Context) <-chan error {
	tip := e.chain.Tip()

	msg := TipMessage{
		SenderID: e.id,
		TipHash:  tip.Hash,
		Length:   int(tip.Header.Number) + 1,
	}

	return e.broadcast(ctx, "AnnounceTip", func(ctx context.Context, to peer.Peer) error {
		return e.network.SendTip(ctx, to, msg)
	})
}

// =============================================================================

// broadcast runs the send function against every known peer in its own
// goroutine. The channel is buffered so nobody is required to receive from
// it.
func (e *Engine) broadcast(ctx context.Context, op string, send func(ctx context.Context, to peer.Peer) error) <-chan error {
	result := make(chan error, 1)

	if e.network == nil {
		result <- nil
		close(result)
		return result
	}

	peers := e.network.Peers()

	e.evHandler("consensus: %s: started: peers[%d]", op, len(peers))

	go func() {
		defer close(result)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			merr *multierror.Error
		)

		wg.Add(len(peers))
		for _, to := range peers {
			go func(to peer.Peer) {
				defer wg.Done()

				if err := send(ctx, to); err != nil {
					e.evHandler("consensus: %s: WARNING: peer[%s]: %s", op, to, err)

					mu.Lock()
					merr = multierror.Append(merr, fmt.Errorf("%s: %w", to, err))
					mu.Unlock()
				}
			}(to)
		}
		wg.Wait()

		e.evHandler("consensus: %s: completed", op)

		result <- merr.ErrorOrNil()
	}()

	return result
}

// record keeps the latest claim of the specified peer.
func (e *Engine) record(senderID string, tipHash string, length int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.views[senderID] = PeerView{
		TipHash: tipHash,
		Length:  length,
		Updated: time.Now().UTC(),
	}
}
