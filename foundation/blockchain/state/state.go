// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ardanlabs/edublock/foundation/blockchain/consensus"
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/genesis"
	"github.com/ardanlabs/edublock/foundation/blockchain/mempool"
	"github.com/ardanlabs/edublock/foundation/blockchain/metrics"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
	"github.com/ardanlabs/edublock/foundation/blockchain/storage"
	"github.com/ardanlabs/edublock/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/edublock/foundation/blockchain/validator"
)

// Set of modes a node can run in.
const (
	ModeConsensus   = "consensus"   // Peers agree on the longest valid chain.
	ModeCentralized = "centralized" // Mined blocks are submitted to the authority.
	ModeAuthority   = "authority"   // This node is the authority.
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and transaction sharing.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx database.SignedTx)
}

// PeerNetwork represents the transport the node uses to reach its peers.
type PeerNetwork interface {
	consensus.Network
	RequestPeerStatus(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error)
	RequestAddPeer(ctx context.Context, pr peer.Peer) error
	SendTx(ctx context.Context, to peer.Peer, tx database.SignedTx) error
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Mode         string
	Host         string
	Genesis      genesis.Genesis
	Storage      storage.Storage
	KnownPeers   *peer.PeerSet
	Network      PeerNetwork
	Authority    validator.Canonical
	AuthorityKey *ecdsa.PrivateKey

	// AuthorityPublicKey pins the key stamps are verified against in
	// centralized mode. When empty the key is asked from the authority.
	AuthorityPublicKey string

	EvHandler EventHandler
}

// State manages the blockchain database.
type State struct {
	mode      string
	host      string
	evHandler EventHandler

	// Serializes every change to the chain and what is stored for it.
	mu sync.Mutex

	genesis    genesis.Genesis
	knownPeers *peer.PeerSet
	chain      *database.Chain
	mempool    *mempool.Mempool
	storage    storage.Storage
	network    PeerNetwork
	engine     *consensus.Engine
	authority  *validator.Authority
	submitter  validator.Canonical
	stampKey   string

	Worker Worker
}

// New constructs a new blockchain for data management. The chain stored
// in the storage is replayed and validated before the node is usable.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeConsensus
	}

	switch mode {
	case ModeConsensus, ModeAuthority:
	case ModeCentralized:
		if cfg.Authority == nil {
			return nil, fmt.Errorf("mode %s requires an authority", mode)
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	// Construct the chain which starts with the genesis block. A genesis
	// block that fails its self-check stops the node.
	chain, err := database.NewChain(database.ChainConfig{
		Genesis:   cfg.Genesis,
		EvHandler: database.EventHandler(ev),
	})
	if err != nil {
		return nil, err
	}

	var stampKey string
	if mode == ModeCentralized && cfg.AuthorityPublicKey != "" {
		pub, err := signature.ParsePublicKey(cfg.AuthorityPublicKey)
		if err != nil {
			return nil, fmt.Errorf("authority public key: %w", err)
		}
		stampKey = signature.PublicKeyHex(*pub)
	}

	strg := cfg.Storage
	if strg == nil {
		strg = memory.New()
	}

	// Load all existing blocks from storage into memory for processing. This
	// won't work in a system like Ethereum.
	replayed, err := storage.Replay(strg, chain)
	if err != nil {
		return nil, fmt.Errorf("replaying storage: %w", err)
	}
	ev("state: New: replayed blocks[%d]", replayed)

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	s := State{
		mode:       mode,
		host:       cfg.Host,
		evHandler:  ev,
		genesis:    cfg.Genesis,
		knownPeers: knownPeers,
		chain:      chain,
		mempool:    mempool.New(),
		storage:    strg,
		network:    cfg.Network,
		submitter:  cfg.Authority,
		stampKey:   stampKey,
		Worker:     nopWorker{},
	}

	var network consensus.Network
	if cfg.Network != nil {
		network = cfg.Network
	}

	s.engine, err = consensus.New(consensus.Config{
		ID:        cfg.Host,
		Chain:     chain,
		Network:   network,
		OnReplace: s.onReplace,
		EvHandler: database.EventHandler(ev),
	})
	if err != nil {
		return nil, err
	}

	if mode == ModeAuthority {
		s.authority, err = validator.NewAuthority(validator.AuthorityConfig{
			Chain:      chain,
			PrivateKey: cfg.AuthorityKey,
			OnAccept:   s.onAccept,
			EvHandler:  database.EventHandler(ev),
		})
		if err != nil {
			return nil, err
		}
	}

	metrics.SetChainLength(chain.Length())

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &s, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	// Make sure the storage is properly closed.
	return s.storage.Close()
}

// =============================================================================

// nopWorker is used until a worker registers itself.
type nopWorker struct{}

func (nopWorker) Shutdown() {}
func (nopWorker) Sync() {}
func (nopWorker) SignalStartMining() {}
func (nopWorker) SignalShareTx(tx database.SignedTx) {}

func (nopWorker) SignalCancelMining() (done func()) {
	return func() {}
}
