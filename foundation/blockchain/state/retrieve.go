package state

import (
	"github.com/ardanlabs/edublock/foundation/blockchain/consensus"
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/genesis"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
)

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveMode returns the mode the node is running in.
func (s *State) RetrieveMode() string {
	return s.mode
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveGenesisBlock returns a copy of the genesis block.
func (s *State) RetrieveGenesisBlock() database.Block {
	return s.chain.Genesis()
}

// RetrieveChain returns a copy of the entire chain.
func (s *State) RetrieveChain() []database.Block {
	return s.chain.Blocks()
}

// RetrieveLatestBlock returns a copy of the current tip.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.chain.Tip()
}

// RetrieveLength returns the number of blocks in the chain.
func (s *State) RetrieveLength() int {
	return s.chain.Length()
}

// RetrieveBlocks returns the blocks between from and to inclusive.
func (s *State) RetrieveBlocks(from uint64, to uint64) []database.Block {
	return s.chain.Range(from, to)
}

// RetrieveMempool returns a copy of the mempool.
func (s *State) RetrieveMempool() []database.SignedTx {
	return s.mempool.PickBest(-1)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// RetrievePeerViews returns the last chain claims of the known peers.
func (s *State) RetrievePeerViews() map[string]consensus.PeerView {
	return s.engine.Views()
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer provides the ability to add a new peer to
// the known peer list.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	if peer.Match(s.host) {
		return false
	}

	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer provides the ability to remove a peer from
// the known peer list.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}

// RetrievePeerStatus returns the status this node reports to its peers.
func (s *State) RetrievePeerStatus() peer.PeerStatus {
	tip := s.chain.Tip()

	return peer.PeerStatus{
		LatestBlockHash: tip.Hash,
		Length:          int(tip.Header.Number) + 1,
		KnownPeers:      s.knownPeers.Copy(""),
	}
}
