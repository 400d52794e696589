// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ardanlabs/edublock/business/web/errs"
	"github.com/ardanlabs/edublock/foundation/blockchain/consensus"
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
	"github.com/ardanlabs/edublock/foundation/blockchain/state"
	"github.com/ardanlabs/edublock/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Status returns the current status of the node along with the last claim
// every peer made about its chain.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		peer.PeerStatus
		Host  string                        `json:"host"`
		Mode  string                        `json:"mode"`
		Views map[string]consensus.PeerView `json:"views"`
	}{
		PeerStatus: h.State.RetrievePeerStatus(),
		Host:       h.State.RetrieveHost(),
		Mode:       h.State.RetrieveMode(),
		Views:      h.State.RetrievePeerViews(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Chain returns the full chain so a peer can pull it.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveChain(), http.StatusOK)
}

// ProcessChain receives a chain from a peer and applies the longest valid
// chain rule in the background. The sender gets no verdict, a discarded
// chain is only logged.
func (h Handlers) ProcessChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var msg consensus.ChainMessage
	if err := web.Decode(r, &msg); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if mode := h.State.RetrieveMode(); mode != state.ModeConsensus {
		return errs.FromBlockchain(fmt.Errorf("%w: peer chains in %s mode", state.ErrWrongMode, mode))
	}

	traceID := web.GetTraceID(ctx)
	go func() {
		if err := h.State.ProcessPeerChain(msg); err != nil {
			h.Log.Infow("process peer chain", "traceid", traceID, "sender", msg.SenderID, "length", len(msg.Chain), "discarded", err)
		}
	}()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// ProcessTip receives the tip claimed by a peer. When the peer claims a
// longer chain the chain is pulled in the background.
func (h Handlers) ProcessTip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var msg consensus.TipMessage
	if err := web.Decode(r, &msg); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if h.State.ProcessPeerTip(msg) {
		traceID := web.GetTraceID(ctx)
		go func() {
			if err := h.State.SyncPeer(context.Background(), peer.New(msg.SenderID)); err != nil {
				h.Log.Infow("sync peer", "traceid", traceID, "sender", msg.SenderID, "ERROR", err)
			}
		}()
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// AddPeer records a peer that announced itself.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var pr peer.Peer
	if err := web.Decode(r, &pr); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if !h.State.AddKnownPeer(pr) {
		h.Log.Infow("add peer", "traceid", web.GetTraceID(ctx), "host", pr.Host, "status", "already known")
	}

	return web.Respond(ctx, w, nil, http.StatusOK)
}

// SubmitNodeTransaction adds a transaction shared by a peer to the mempool.
func (h Handlers) SubmitNodeTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("add node tran", "traceid", web.GetTraceID(ctx), "tx", signedTx)
	if err := h.State.UpsertNodeTransaction(signedTx); err != nil {
		return errs.FromBlockchain(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "added",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitBlock hands a block mined by a centralized node to the authority
// running in this node. A rejection is a decision, not a failure.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var block database.Block
	if err := web.Decode(r, &block); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	res, err := h.State.SubmitBlock(ctx, block)
	if err != nil {
		return errs.FromBlockchain(err)
	}

	h.Log.Infow("submit block", "traceid", web.GetTraceID(ctx), "blk", block.Header.Number, "accepted", res.Accepted, "reason", res.Reason)

	return web.Respond(ctx, w, res, http.StatusOK)
}

// AuthorityKey returns the public key the authority running in this node
// stamps accepted blocks with.
func (h Handlers) AuthorityKey(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	key := h.State.AuthorityKey()
	if key == "" {
		return errs.FromBlockchain(fmt.Errorf("%w: authority key in %s mode", state.ErrWrongMode, h.State.RetrieveMode()))
	}

	resp := struct {
		PublicKey string `json:"public_key"`
	}{
		PublicKey: key,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
