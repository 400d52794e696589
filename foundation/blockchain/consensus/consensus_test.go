package consensus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/consensus"
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/genesis"
	"github.com/ardanlabs/edublock/foundation/blockchain/network"
	"github.com/ardanlabs/edublock/foundation/blockchain/peer"
	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kennedyKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	pavelKey   = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
)

var gen = genesis.Genesis{
	Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	ChainID:       1,
	TransPerBlock: 10,
	Difficulty:    1,
}

type node struct {
	id       string
	chain    *database.Chain
	engine   *consensus.Engine
	replaced int
}

func newNode(t *testing.T, hub *network.Hub, id string) *node {
	t.Helper()

	chain, err := database.NewChain(database.ChainConfig{Genesis: gen})
	require.NoError(t, err)

	n := node{id: id, chain: chain}

	engine, err := consensus.New(consensus.Config{
		ID:      id,
		Chain:   chain,
		Network: hub.Endpoint(id),
		OnReplace: func(old []database.Block, new []database.Block) {
			n.replaced++
		},
	})
	require.NoError(t, err)

	n.engine = engine
	hub.Join(id, engine)

	return &n
}

// mine extends the node's chain by one block holding a transfer of the
// specified amount.
func (n *node) mine(t *testing.T, amount int64) database.Block {
	t.Helper()

	from, err := crypto.HexToECDSA(kennedyKey)
	require.NoError(t, err)
	to, err := crypto.HexToECDSA(pavelKey)
	require.NoError(t, err)

	tx, err := database.NewTx(signature.PublicKeyHex(from.PublicKey), signature.PublicKeyHex(to.PublicKey), amount)
	require.NoError(t, err)
	stx, err := tx.Sign(from)
	require.NoError(t, err)

	block, err := database.POW(context.Background(), database.POWArgs{
		PrevBlock:  n.chain.Tip(),
		Trans:      []database.SignedTx{stx},
		Difficulty: gen.Difficulty,
	})
	require.NoError(t, err)

	require.NoError(t, n.chain.TryAppend(block))

	return block
}

func (n *node) tip() string {
	return n.chain.Tip().Hash
}

// =============================================================================

func TestReceiveChainLonger(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")

	b.mine(t, 10)
	b.mine(t, 20)

	err := a.engine.ReceiveChain(consensus.ChainMessage{SenderID: "b", Chain: b.chain.Blocks()})
	require.NoError(t, err)

	assert.Equal(t, 3, a.chain.Length())
	assert.Equal(t, b.tip(), a.tip())
	assert.Equal(t, 1, a.replaced)

	view, exists := a.engine.Views()["b"]
	require.True(t, exists)
	assert.Equal(t, 3, view.Length)
	assert.Equal(t, b.tip(), view.TipHash)
}

func TestReceiveChainInvalid(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")

	for i := 1; i <= 4; i++ {
		a.mine(t, int64(i))
	}
	for i := 1; i <= 5; i++ {
		b.mine(t, int64(i*100))
	}

	candidate := b.chain.Blocks()
	candidate[3].Header.PrevBlockHash = candidate[1].Hash

	before := a.chain.Blocks()

	err := a.engine.ReceiveChain(consensus.ChainMessage{SenderID: "b", Chain: candidate})
	require.Error(t, err)
	assert.True(t, database.IsValidation(err))

	assert.Equal(t, before, a.chain.Blocks())
	assert.Equal(t, 0, a.replaced)
}

func TestReceiveChainTieKeepsIncumbent(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")

	a.mine(t, 10)
	b.mine(t, 20)

	tip := a.tip()

	err := a.engine.ReceiveChain(consensus.ChainMessage{SenderID: "b", Chain: b.chain.Blocks()})
	require.ErrorIs(t, err, database.ErrStaleChain)
	assert.Equal(t, tip, a.tip())
}

func TestReceiveChainIdempotent(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")

	b.mine(t, 10)
	msg := consensus.ChainMessage{SenderID: "b", Chain: b.chain.Blocks()}

	require.NoError(t, a.engine.ReceiveChain(msg))
	first := a.chain.Blocks()

	require.ErrorIs(t, a.engine.ReceiveChain(msg), database.ErrStaleChain)
	assert.Equal(t, first, a.chain.Blocks())
	assert.Equal(t, 1, a.replaced)
}

func TestReceiveChainEmpty(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")

	err := a.engine.ReceiveChain(consensus.ChainMessage{SenderID: "b"})
	require.ErrorIs(t, err, database.ErrChainLinkMismatch)
	assert.Equal(t, 1, a.chain.Length())
}

func TestReceiveTip(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")

	a.mine(t, 10)

	tt := []struct {
		name   string
		length int
		pull   bool
	}{
		{name: "shorter", length: 1, pull: false},
		{name: "equal", length: 2, pull: false},
		{name: "longer", length: 3, pull: true},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			pull := a.engine.ReceiveTip(consensus.TipMessage{SenderID: "b", TipHash: "0x01", Length: tst.length})
			assert.Equal(t, tst.pull, pull)
			assert.Equal(t, tst.length, a.engine.Views()["b"].Length)
		})
	}
}

// =============================================================================

func TestTwoMinerFork(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")
	c := newNode(t, hub, "c")

	ctx := context.Background()

	// Everyone agrees on the first block.
	a.mine(t, 1)
	require.NoError(t, <-a.engine.Announce(ctx))
	require.Equal(t, a.tip(), b.tip())
	require.Equal(t, a.tip(), c.tip())

	// Both miners find a competing block at the same index.
	x := a.mine(t, 2)
	y := b.mine(t, 3)
	require.Equal(t, x.Header.Number, y.Header.Number)
	require.NotEqual(t, x.Hash, y.Hash)

	require.NoError(t, <-a.engine.Announce(ctx))
	require.NoError(t, <-b.engine.Announce(ctx))

	// The miners are tied so each keeps its own block. The third node kept
	// the first one it saw.
	assert.Equal(t, x.Hash, a.tip())
	assert.Equal(t, y.Hash, b.tip())
	assert.Equal(t, x.Hash, c.tip())

	// The miner on top of y extends first and everyone converges on it.
	z := b.mine(t, 4)
	require.NoError(t, <-b.engine.Announce(ctx))

	for _, n := range []*node{a, b, c} {
		assert.Equal(t, z.Hash, n.tip(), "node %s", n.id)
		assert.Equal(t, 4, n.chain.Length(), "node %s", n.id)
		require.NoError(t, n.chain.Validate())
	}
}

func TestPermanentTie(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")

	ctx := context.Background()

	x := a.mine(t, 2)
	y := b.mine(t, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, <-a.engine.Announce(ctx))
		require.NoError(t, <-b.engine.Announce(ctx))
		require.NoError(t, <-a.engine.AnnounceTip(ctx))
		require.NoError(t, <-b.engine.AnnounceTip(ctx))
	}

	assert.Equal(t, x.Hash, a.tip())
	assert.Equal(t, y.Hash, b.tip())
}

func TestAnnounceTipPullsChain(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")

	a.mine(t, 1)
	a.mine(t, 2)

	require.NoError(t, <-a.engine.AnnounceTip(context.Background()))

	assert.Equal(t, a.tip(), b.tip())
	assert.Equal(t, 1, b.replaced)
}

func TestPartition(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")
	c := newNode(t, hub, "c")

	ctx := context.Background()

	hub.Partition("a", "b")
	a.mine(t, 1)

	err := <-a.engine.Announce(ctx)
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 1)
	assert.ErrorIs(t, merr.Errors[0], network.ErrUnreachable)

	assert.Equal(t, 1, b.chain.Length())
	assert.Equal(t, a.tip(), c.tip())

	hub.Heal()
	require.NoError(t, <-a.engine.Announce(ctx))
	assert.Equal(t, a.tip(), b.tip())
}

// stalledNetwork holds every send until it is released.
type stalledNetwork struct {
	release chan struct{}
}

func (sn stalledNetwork) Peers() []peer.Peer {
	return []peer.Peer{peer.New("slow1"), peer.New("slow2")}
}

func (sn stalledNetwork) SendChain(ctx context.Context, to peer.Peer, msg consensus.ChainMessage) error {
	<-sn.release
	return nil
}

func (sn stalledNetwork) SendTip(ctx context.Context, to peer.Peer, msg consensus.TipMessage) error {
	<-sn.release
	return errors.New("tip refused")
}

func (sn stalledNetwork) PullChain(ctx context.Context, from peer.Peer) ([]database.Block, error) {
	return nil, errors.New("not supported")
}

func TestAnnounceDoesNotWait(t *testing.T) {
	chain, err := database.NewChain(database.ChainConfig{Genesis: gen})
	require.NoError(t, err)

	sn := stalledNetwork{release: make(chan struct{})}

	engine, err := consensus.New(consensus.Config{ID: "a", Chain: chain, Network: sn})
	require.NoError(t, err)

	returned := make(chan struct{})
	var chainResult, tipResult <-chan error

	go func() {
		chainResult = engine.Announce(context.Background())
		tipResult = engine.AnnounceTip(context.Background())
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("announcing waited on the peers")
	}

	select {
	case <-chainResult:
		t.Fatal("result delivered before the sends finished")
	default:
	}

	close(sn.release)

	require.NoError(t, <-chainResult)

	err = <-tipResult
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
}

func TestSync(t *testing.T) {
	hub := network.NewHub()
	a := newNode(t, hub, "a")
	b := newNode(t, hub, "b")

	b.mine(t, 1)

	require.NoError(t, a.engine.Sync(context.Background(), peer.New("b")))
	assert.Equal(t, b.tip(), a.tip())

	hub.Partition("a", "b")
	require.ErrorIs(t, a.engine.Sync(context.Background(), peer.New("b")), network.ErrUnreachable)
}
