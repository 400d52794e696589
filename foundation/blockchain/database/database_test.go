package database_test

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/genesis"
	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const (
	kennedyKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	pavelKey   = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
)

// testGenesis uses a low difficulty so blocks can be mined quickly.
func testGenesis() genesis.Genesis {
	return genesis.Genesis{
		Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 10,
		Difficulty:    1,
	}
}

func loadKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	require.NoError(t, err)

	return pk
}

func newChain(t *testing.T) *database.Chain {
	t.Helper()

	chain, err := database.NewChain(database.ChainConfig{Genesis: testGenesis()})
	require.NoError(t, err)

	return chain
}

func signedTx(t *testing.T, amount int64) database.SignedTx {
	t.Helper()

	from := loadKey(t, kennedyKey)
	to := loadKey(t, pavelKey)

	tx, err := database.NewTx(signature.PublicKeyHex(from.PublicKey), signature.PublicKeyHex(to.PublicKey), amount)
	require.NoError(t, err)

	stx, err := tx.Sign(from)
	require.NoError(t, err)

	return stx
}

func mineNext(t *testing.T, prev database.Block, trans ...database.SignedTx) database.Block {
	t.Helper()

	block, err := database.POW(context.Background(), database.POWArgs{
		PrevBlock:  prev,
		Trans:      trans,
		Difficulty: testGenesis().Difficulty,
	})
	require.NoError(t, err)

	return block
}

// buildBlocks returns a valid chain of the specified length starting with
// the test genesis block.
func buildBlocks(t *testing.T, length int) []database.Block {
	t.Helper()

	blocks := []database.Block{database.NewGenesisBlock(testGenesis().Date)}
	for i := 1; i < length; i++ {
		blocks = append(blocks, mineNext(t, blocks[i-1], signedTx(t, int64(i*10))))
	}

	return blocks
}
