package worker

import (
	"context"

	"github.com/ardanlabs/edublock/foundation/blockchain/state"
)

// Sync updates the peer list and pulls longer chains from the peers. In
// the centralized mode the local copy of the canonical chain is updated.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	ctx := context.Background()

	switch w.state.RetrieveMode() {
	case state.ModeCentralized:
		if err := w.state.SyncAuthority(ctx); err != nil {
			w.evHandler("worker: sync: SyncAuthority: ERROR: %s", err)
		}
		return

	case state.ModeAuthority:
		return
	}

	for _, pr := range w.state.RetrieveKnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(ctx, pr)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		// If this peer has a longer chain, pull it and apply it.
		if peerStatus.Length > w.state.RetrieveLength() {
			w.evHandler("worker: sync: SyncPeer: %s: length[%d]", pr.Host, peerStatus.Length)

			if err := w.state.SyncPeer(ctx, pr); err != nil {
				w.evHandler("worker: sync: SyncPeer: %s: ERROR %s", pr.Host, err)
			}
		}
	}
}
