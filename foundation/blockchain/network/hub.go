package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ardanlabs/edublock/foundation/blockchain/consensus"
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
)

// ErrUnreachable is returned when a node can't be reached through the hub.
var ErrUnreachable = errors.New("peer unreachable")

// Receiver represents the behavior a node provides to the hub.
type Receiver interface {
	ReceiveChain(msg consensus.ChainMessage) error
	ReceiveTip(msg consensus.TipMessage) bool
	Sync(ctx context.Context, from peer.Peer) error
	LocalChain() []database.Block
}

// Hub connects nodes running in the same process. Messages are delivered
// immediately and links between nodes can be cut to simulate a partition.
type Hub struct {
	mu    sync.RWMutex
	nodes map[string]Receiver
	cut   map[[2]string]bool
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		nodes: make(map[string]Receiver),
		cut:   make(map[[2]string]bool),
	}
}

// Join registers the receiver under the specified id.
func (h *Hub) Join(id string, r Receiver) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nodes[id] = r
}

// Endpoint returns the consensus.Network the specified node uses to reach
// the other nodes in the hub.
func (h *Hub) Endpoint(id string) *Endpoint {
	return &Endpoint{hub: h, id: id}
}

// Partition cuts the link between the two nodes in both directions.
func (h *Hub) Partition(a string, b string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cut[link(a, b)] = true
}

// Heal restores every link.
func (h *Hub) Heal() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cut = make(map[[2]string]bool)
}

// receiver locates the node for delivery from the specified node.
func (h *Hub) receiver(from string, to string) (Receiver, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.cut[link(from, to)] {
		return nil, fmt.Errorf("%w: link %s to %s is cut", ErrUnreachable, from, to)
	}

	r, exists := h.nodes[to]
	if !exists {
		return nil, fmt.Errorf("%w: %s is not registered", ErrUnreachable, to)
	}

	return r, nil
}

// link returns the key for the link between two nodes.
func link(a string, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// =============================================================================

// Endpoint implements the consensus.Network interface for a single node
// of the hub.
type Endpoint struct {
	hub *Hub
	id  string
}

// Peers returns every other node registered in the hub.
func (ep *Endpoint) Peers() []peer.Peer {
	ep.hub.mu.RLock()
	defer ep.hub.mu.RUnlock()

	var peers []peer.Peer
	for id := range ep.hub.nodes {
		if id != ep.id {
			peers = append(peers, peer.New(id))
		}
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Host < peers[j].Host
	})

	return peers
}

// SendChain delivers the chain to the specified node.
func (ep *Endpoint) SendChain(ctx context.Context, to peer.Peer, msg consensus.ChainMessage) error {
	r, err := ep.hub.receiver(ep.id, to.Host)
	if err != nil {
		return err
	}

	// A discarded chain is the receiver's decision, not a delivery failure.
	_ = r.ReceiveChain(msg)

	return nil
}

// SendTip delivers the tip claim to the specified node, which pulls the
// chain back if the claim is longer than its own.
func (ep *Endpoint) SendTip(ctx context.Context, to peer.Peer, msg consensus.TipMessage) error {
	r, err := ep.hub.receiver(ep.id, to.Host)
	if err != nil {
		return err
	}

	if r.ReceiveTip(msg) {
		return r.Sync(ctx, peer.New(msg.SenderID))
	}

	return nil
}

// PullChain returns the chain of the specified node.
func (ep *Endpoint) PullChain(ctx context.Context, from peer.Peer) ([]database.Block, error) {
	r, err := ep.hub.receiver(ep.id, from.Host)
	if err != nil {
		return nil, err
	}

	return r.LocalChain(), nil
}
