// Package network provides the transports nodes use to reach each other.
package network

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/consensus"
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
)

// baseURL is the root of the private node api.
const baseURL = "http://%s/v1/node"

// HTTPConfig represents the configuration required for the HTTP transport.
type HTTPConfig struct {
	Host       string
	KnownPeers *peer.PeerSet
	Timeout    time.Duration
	EvHandler  database.EventHandler
}

// HTTP implements the consensus.Network interface on top of the private
// node api.
type HTTP struct {
	host       string
	knownPeers *peer.PeerSet
	client     *http.Client
	evHandler  database.EventHandler
}

// NewHTTP constructs a transport that talks to the known peers.
func NewHTTP(cfg HTTPConfig) *HTTP {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	return &HTTP{
		host:       cfg.Host,
		knownPeers: knownPeers,
		client:     &http.Client{Timeout: timeout},
		evHandler:  ev,
	}
}

// Host returns the host of the node using this transport.
func (h *HTTP) Host() string {
	return h.host
}

// Peers returns the known peers excluding this node.
func (h *HTTP) Peers() []peer.Peer {
	return h.knownPeers.Copy(h.host)
}

// SendChain sends the full chain to the specified peer.
func (h *HTTP) SendChain(ctx context.Context, to peer.Peer, msg consensus.ChainMessage) error {
	h.evHandler("network: SendChain: peer[%s]: length[%d]", to, len(msg.Chain))

	url := fmt.Sprintf("%s/chain", fmt.Sprintf(baseURL, to.Host))
	return Send(ctx, h.client, http.MethodPost, url, msg, nil)
}

// SendTip sends the tip claim to the specified peer.
func (h *HTTP) SendTip(ctx context.Context, to peer.Peer, msg consensus.TipMessage) error {
	h.evHandler("network: SendTip: peer[%s]: length[%d]", to, msg.Length)

	url := fmt.Sprintf("%s/tip", fmt.Sprintf(baseURL, to.Host))
	return Send(ctx, h.client, http.MethodPost, url, msg, nil)
}

// PullChain retrieves the full chain of the specified peer.
func (h *HTTP) PullChain(ctx context.Context, from peer.Peer) ([]database.Block, error) {
	h.evHandler("network: PullChain: peer[%s]", from)

	url := fmt.Sprintf("%s/chain", fmt.Sprintf(baseURL, from.Host))

	var blocks []database.Block
	if err := Send(ctx, h.client, http.MethodGet, url, nil, &blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

// RequestPeerStatus asks the specified peer for its status which includes
// the peers it knows about.
func (h *HTTP) RequestPeerStatus(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error) {
	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.PeerStatus
	if err := Send(ctx, h.client, http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	h.evHandler("network: RequestPeerStatus: peer[%s]: length[%d]: peers[%v]", pr, ps.Length, ps.KnownPeers)

	return ps, nil
}

// RequestAddPeer lets the specified peer know this node is available.
func (h *HTTP) RequestAddPeer(ctx context.Context, pr peer.Peer) error {
	url := fmt.Sprintf("%s/peers", fmt.Sprintf(baseURL, pr.Host))
	return Send(ctx, h.client, http.MethodPost, url, peer.New(h.host), nil)
}

// SendTx shares a transaction with the specified peer.
func (h *HTTP) SendTx(ctx context.Context, to peer.Peer, tx database.SignedTx) error {
	url := fmt.Sprintf("%s/tx/submit", fmt.Sprintf(baseURL, to.Host))
	return Send(ctx, h.client, http.MethodPost, url, tx, nil)
}
