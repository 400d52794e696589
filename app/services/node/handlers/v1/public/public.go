// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/edublock/business/web/errs"
	"github.com/ardanlabs/edublock/foundation/blockchain/state"
	"github.com/ardanlabs/edublock/foundation/events"
	"github.com/ardanlabs/edublock/foundation/nameservice"
	"github.com/ardanlabs/edublock/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// The trace id is unique per request so it identifies this client.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitWalletTransaction adds a new user transaction to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var st submitTx
	if err := web.Decode(r, &st); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	signedTx := st.toSignedTx()

	h.Log.Infow("add user tran", "traceid", web.GetTraceID(ctx), "tx", signedTx, "from", h.NS.Lookup(signedTx.From), "to", h.NS.Lookup(signedTx.To))
	if err := h.State.UpsertWalletTransaction(signedTx); err != nil {
		return errs.FromBlockchain(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Genesis any   `json:"genesis"`
		Block   block `json:"block"`
	}{
		Genesis: h.State.RetrieveGenesis(),
		Block:   toBlock(h.NS, h.State.RetrieveGenesisBlock()),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Chain returns the full chain held by the node.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toBlocks(h.NS, h.State.RetrieveChain()), http.StatusOK)
}

// Tip returns the latest block in the chain.
func (h Handlers) Tip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toBlock(h.NS, h.State.RetrieveLatestBlock()), http.StatusOK)
}

// BlocksByNumber returns the blocks between the from and to numbers. The
// value "latest" can be used for the to number.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = fmt.Sprintf("%d", h.State.RetrieveLatestBlock().Header.Number)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = fmt.Sprintf("%d", h.State.RetrieveLatestBlock().Header.Number)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(errors.New("from is greater than to"), http.StatusBadRequest)
	}

	blocks := h.State.RetrieveBlocks(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, toBlocks(h.NS, blocks), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions. The set can be
// filtered to the transactions that involve a specific account.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	acct := web.Param(r, "account")

	mempool := h.State.RetrieveMempool()

	trans := make([]tx, 0, len(mempool))
	for _, signedTx := range mempool {
		if acct != "" && acct != signedTx.From && acct != signedTx.To {
			continue
		}

		trans = append(trans, toTx(h.NS, signedTx))
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}
