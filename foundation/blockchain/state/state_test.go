package state_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/consensus"
	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/genesis"
	"github.com/ardanlabs/edublock/foundation/blockchain/mempool"
	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
	"github.com/ardanlabs/edublock/foundation/blockchain/state"
	"github.com/ardanlabs/edublock/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/edublock/foundation/blockchain/validator"
	"github.com/ethereum/go-ethereum/crypto"
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
	TransPerBlock: 2,
	Difficulty:    1,
}

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func newState(t *testing.T, cfg state.Config) *state.State {
	t.Helper()

	cfg.Genesis = gen
	if cfg.Host == "" {
		cfg.Host = "node1:9080"
	}
	cfg.EvHandler = func(v string, args ...any) {
		t.Log(fmt.Sprintf(v, args...))
	}

	st, err := state.New(cfg)
	ifErrFailNow(t, err)

	return st
}

func signedTx(t *testing.T, amount int64) database.SignedTx {
	t.Helper()

	from, err := crypto.HexToECDSA(kennedyKey)
	ifErrFailNow(t, err)
	to, err := crypto.HexToECDSA(pavelKey)
	ifErrFailNow(t, err)

	tx, err := database.NewTx(signature.PublicKeyHex(from.PublicKey), signature.PublicKeyHex(to.PublicKey), amount)
	ifErrFailNow(t, err)

	stx, err := tx.Sign(from)
	ifErrFailNow(t, err)

	return stx
}

// =============================================================================

func Test_MineNewBlock(t *testing.T) {
	strg := memory.New()
	st := newState(t, state.Config{Storage: strg})

	_, err := st.MineNewBlock(context.Background())
	require.ErrorIs(t, err, state.ErrNoTransactions)

	for _, amount := range []int64{10, 20, 30} {
		ifErrFailNow(t, st.UpsertWalletTransaction(signedTx(t, amount)))
	}

	block, err := st.MineNewBlock(context.Background())
	ifErrFailNow(t, err)

	// The block is limited by the transactions per block setting.
	assert.Len(t, block.Trans, 2)
	assert.Equal(t, 2, st.RetrieveLength())
	assert.Equal(t, block.Hash, st.RetrieveLatestBlock().Hash)
	assert.Equal(t, 1, st.QueryMempoolLength())
	assert.Equal(t, int64(30), st.RetrieveMempool()[0].Amount)

	stored, err := strg.ReadAll()
	ifErrFailNow(t, err)
	assert.Len(t, stored, 2)

	status := st.RetrievePeerStatus()
	assert.Equal(t, 2, status.Length)
	assert.Equal(t, block.Hash, status.LatestBlockHash)
}

func Test_UpsertTransaction(t *testing.T) {
	st := newState(t, state.Config{})

	tx := signedTx(t, 10)
	ifErrFailNow(t, st.UpsertNodeTransaction(tx))

	err := st.UpsertNodeTransaction(tx)
	require.ErrorIs(t, err, mempool.ErrExists)

	bad := tx
	bad.Amount = 11
	require.ErrorIs(t, st.UpsertWalletTransaction(bad), database.ErrSignatureInvalid)

	_, err = st.MineNewBlock(context.Background())
	ifErrFailNow(t, err)

	// A transaction can't be mined twice.
	require.ErrorIs(t, st.UpsertWalletTransaction(tx), mempool.ErrExists)
}

func Test_Restart(t *testing.T) {
	strg := memory.New()

	st := newState(t, state.Config{Storage: strg})
	ifErrFailNow(t, st.UpsertWalletTransaction(signedTx(t, 10)))
	block, err := st.MineNewBlock(context.Background())
	ifErrFailNow(t, err)

	restarted := newState(t, state.Config{Storage: strg})
	assert.Equal(t, 2, restarted.RetrieveLength())
	assert.Equal(t, block.Hash, restarted.RetrieveLatestBlock().Hash)
}

func Test_ProcessPeerChain(t *testing.T) {
	a := newState(t, state.Config{Host: "a"})
	b := newState(t, state.Config{Host: "b"})

	orphan := signedTx(t, 1)
	ifErrFailNow(t, a.UpsertWalletTransaction(orphan))
	_, err := a.MineNewBlock(context.Background())
	ifErrFailNow(t, err)

	for _, amount := range []int64{2, 3} {
		ifErrFailNow(t, b.UpsertWalletTransaction(signedTx(t, amount)))
		_, err := b.MineNewBlock(context.Background())
		ifErrFailNow(t, err)
	}

	ifErrFailNow(t, a.ProcessPeerChain(consensus.ChainMessage{SenderID: "b", Chain: b.RetrieveChain()}))

	assert.Equal(t, b.RetrieveLatestBlock().Hash, a.RetrieveLatestBlock().Hash)
	assert.Equal(t, 3, a.RetrievePeerViews()["b"].Length)

	// The transaction in the dropped block is mined again.
	pool := a.RetrieveMempool()
	require.Len(t, pool, 1)
	assert.Equal(t, orphan.Signature, pool[0].Signature)

	// Receiving the same chain again changes nothing.
	require.ErrorIs(t, a.ProcessPeerChain(consensus.ChainMessage{SenderID: "b", Chain: b.RetrieveChain()}), database.ErrStaleChain)

	assert.True(t, b.ProcessPeerTip(consensus.TipMessage{SenderID: "c", TipHash: "0x01", Length: 4}))
	assert.False(t, b.ProcessPeerTip(consensus.TipMessage{SenderID: "c", TipHash: "0x01", Length: 3}))
}

// =============================================================================

// remoteAuthority gives a centralized node access to an authority node as
// if it was reached over the network.
type remoteAuthority struct {
	st  *state.State
	err error

	// Optional overrides of what the authority answers with.
	stamp string
	chain []database.Block
}

func (ra remoteAuthority) Submit(ctx context.Context, block database.Block) (validator.Result, error) {
	if ra.err != nil {
		return validator.Result{}, ra.err
	}
	res, err := ra.st.SubmitBlock(ctx, block)
	if err == nil && ra.stamp != "" {
		res.Stamp = ra.stamp
	}
	return res, err
}

func (ra remoteAuthority) Chain(ctx context.Context) ([]database.Block, error) {
	if ra.err != nil {
		return nil, ra.err
	}
	if ra.chain != nil {
		return ra.chain, nil
	}
	return ra.st.RetrieveChain(), nil
}

func (ra remoteAuthority) PublicKey(ctx context.Context) (string, error) {
	if ra.err != nil {
		return "", ra.err
	}
	return ra.st.AuthorityKey(), nil
}

func Test_Centralized(t *testing.T) {
	key, err := crypto.HexToECDSA(kennedyKey)
	ifErrFailNow(t, err)

	authority := newState(t, state.Config{Mode: state.ModeAuthority, Host: "authority", AuthorityKey: key})
	assert.Equal(t, signature.PublicKeyHex(key.PublicKey), authority.AuthorityKey())

	node1 := newState(t, state.Config{Mode: state.ModeCentralized, Host: "node1", Authority: remoteAuthority{st: authority}})
	node2 := newState(t, state.Config{Mode: state.ModeCentralized, Host: "node2", Authority: remoteAuthority{st: authority}})

	ifErrFailNow(t, node1.UpsertWalletTransaction(signedTx(t, 10)))
	block, err := node1.MineNewBlock(context.Background())
	ifErrFailNow(t, err)

	assert.Equal(t, block.Hash, authority.RetrieveLatestBlock().Hash)
	assert.Equal(t, block.Hash, node1.RetrieveLatestBlock().Hash)

	// The second node mined on a stale tip and the authority refuses it.
	ifErrFailNow(t, node2.UpsertWalletTransaction(signedTx(t, 20)))
	_, err = node2.MineNewBlock(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, authority.RetrieveLength())

	// After catching up the second node can extend the canonical chain.
	ifErrFailNow(t, node2.SyncAuthority(context.Background()))
	assert.Equal(t, block.Hash, node2.RetrieveLatestBlock().Hash)

	_, err = node2.MineNewBlock(context.Background())
	ifErrFailNow(t, err)
	assert.Equal(t, 3, authority.RetrieveLength())

	// Every block carries the authority stamp on every node.
	for _, st := range []*state.State{authority, node2} {
		require.NoError(t, validator.VerifyChain(st.RetrieveChain(), authority.AuthorityKey()))
	}

	// Peer chains are not part of the centralized mode.
	require.ErrorIs(t, node1.ProcessPeerChain(consensus.ChainMessage{SenderID: "x", Chain: node2.RetrieveChain()}), state.ErrWrongMode)
}

func Test_CentralizedStamps(t *testing.T) {
	key, err := crypto.HexToECDSA(kennedyKey)
	ifErrFailNow(t, err)
	other, err := crypto.HexToECDSA(pavelKey)
	ifErrFailNow(t, err)

	// newAuthority returns an authority that already accepted one block of
	// its own.
	newAuthority := func(t *testing.T) *state.State {
		authority := newState(t, state.Config{Mode: state.ModeAuthority, Host: "authority", AuthorityKey: key})
		ifErrFailNow(t, authority.UpsertWalletTransaction(signedTx(t, 1)))
		_, err := authority.MineNewBlock(context.Background())
		ifErrFailNow(t, err)
		return authority
	}

	t.Run("forged stamp", func(t *testing.T) {
		authority := newAuthority(t)
		node := newState(t, state.Config{
			Mode:      state.ModeCentralized,
			Authority: remoteAuthority{st: authority, stamp: "0x" + strings.Repeat("ab", 65)},
		})
		ifErrFailNow(t, node.SyncAuthority(context.Background()))

		ifErrFailNow(t, node.UpsertWalletTransaction(signedTx(t, 10)))

		_, err := node.MineNewBlock(context.Background())
		require.ErrorIs(t, err, database.ErrSignatureInvalid)
		assert.Equal(t, 2, node.RetrieveLength())
		assert.Equal(t, 1, node.QueryMempoolLength())
	})

	t.Run("pinned key mismatch", func(t *testing.T) {
		authority := newAuthority(t)
		node := newState(t, state.Config{
			Mode:               state.ModeCentralized,
			Authority:          remoteAuthority{st: authority},
			AuthorityPublicKey: signature.PublicKeyHex(other.PublicKey),
		})

		// The canonical chain is stamped by a different key.
		require.ErrorIs(t, node.SyncAuthority(context.Background()), database.ErrSignatureInvalid)
		assert.Equal(t, 1, node.RetrieveLength())
	})

	t.Run("unstamped chain", func(t *testing.T) {
		authority := newAuthority(t)

		unstamped := authority.RetrieveChain()
		for i := range unstamped {
			unstamped[i].Stamp = ""
		}

		node := newState(t, state.Config{
			Mode:               state.ModeCentralized,
			Authority:          remoteAuthority{st: authority, chain: unstamped},
			AuthorityPublicKey: authority.AuthorityKey(),
		})

		require.ErrorIs(t, node.SyncAuthority(context.Background()), database.ErrSignatureInvalid)
		assert.Equal(t, 1, node.RetrieveLength())
	})

	t.Run("stamped chain", func(t *testing.T) {
		authority := newAuthority(t)
		node := newState(t, state.Config{
			Mode:      state.ModeCentralized,
			Authority: remoteAuthority{st: authority},
		})

		ifErrFailNow(t, node.SyncAuthority(context.Background()))
		assert.Equal(t, 2, node.RetrieveLength())

		ifErrFailNow(t, node.UpsertWalletTransaction(signedTx(t, 20)))
		block, err := node.MineNewBlock(context.Background())
		ifErrFailNow(t, err)

		assert.Equal(t, block.Hash, node.RetrieveLatestBlock().Hash)
		assert.NotEmpty(t, node.RetrieveLatestBlock().Stamp)
		require.NoError(t, validator.VerifyChain(node.RetrieveChain(), authority.AuthorityKey()))
	})
}

func Test_AuthorityUnavailable(t *testing.T) {
	node := newState(t, state.Config{
		Mode:      state.ModeCentralized,
		Authority: remoteAuthority{err: fmt.Errorf("%w: connection refused", database.ErrAuthorityUnavailable)},
	})

	ifErrFailNow(t, node.UpsertWalletTransaction(signedTx(t, 10)))

	_, err := node.MineNewBlock(context.Background())
	require.ErrorIs(t, err, database.ErrAuthorityUnavailable)
	assert.Equal(t, 1, node.RetrieveLength())
	assert.Equal(t, 1, node.QueryMempoolLength())
}

func Test_NewFailures(t *testing.T) {
	_, err := state.New(state.Config{Mode: "bogus", Genesis: gen})
	require.Error(t, err)

	_, err = state.New(state.Config{Mode: state.ModeCentralized, Genesis: gen})
	require.Error(t, err)

	_, err = state.New(state.Config{Mode: state.ModeAuthority, Genesis: gen})
	require.Error(t, err)

	_, err = state.New(state.Config{Mode: state.ModeCentralized, Genesis: gen, Authority: remoteAuthority{}, AuthorityPublicKey: "0x1234"})
	require.Error(t, err)
}

func Test_UpsertWhileMining(t *testing.T) {
	st := newState(t, state.Config{})

	txs := make([]database.SignedTx, 6)
	for i := range txs {
		txs[i] = signedTx(t, int64(100+i))
		ifErrFailNow(t, st.UpsertWalletTransaction(txs[i]))
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for st.QueryMempoolLength() > 0 {
			st.MineNewBlock(context.Background())
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			for _, tx := range txs {
				st.UpsertNodeTransaction(tx)
			}
		}
	}()

	wg.Wait()

	// A transaction that made it into a block never returns to the mempool.
	assert.Equal(t, 0, st.QueryMempoolLength())

	seen := make(map[string]int)
	for _, block := range st.RetrieveChain() {
		for _, tx := range block.Trans {
			seen[tx.Signature]++
		}
	}

	require.Len(t, seen, len(txs))
	for _, tx := range txs {
		assert.Equal(t, 1, seen[tx.Signature])
	}
}
