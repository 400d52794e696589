package state

import (
	"context"
	"errors"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
)

// errNoNetwork is returned when the node was started without a network.
var errNoNetwork = errors.New("no network configured")

// NetRequestPeerStatus asks the peer for its status including the peers
// it knows about.
func (s *State) NetRequestPeerStatus(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr)

	if s.network == nil {
		return peer.PeerStatus{}, errNoNetwork
	}

	return s.network.RequestPeerStatus(ctx, pr)
}

// NetRequestAddPeer lets the peer know this node is available.
func (s *State) NetRequestAddPeer(ctx context.Context, pr peer.Peer) error {
	if s.network == nil {
		return errNoNetwork
	}

	return s.network.RequestAddPeer(ctx, pr)
}

// NetSendTxToPeers shares a new transaction with the known peers.
func (s *State) NetSendTxToPeers(ctx context.Context, tx database.SignedTx) {
	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	if s.network == nil {
		return
	}

	// CORE NOTE: Bitcoin does not send the full transaction immediately to save
	// on bandwidth. This node just sends the full transaction.
	for _, pr := range s.RetrieveKnownPeers() {
		if err := s.network.SendTx(ctx, pr, tx); err != nil {
			s.evHandler("state: NetSendTxToPeers: WARNING: %s: %s", pr, err)
		}
	}
}
