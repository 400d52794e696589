package mempool_test

import (
	"testing"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/mempool"
	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func sign(amount int64) (database.SignedTx, error) {
	from, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
	if err != nil {
		return database.SignedTx{}, err
	}

	to, err := crypto.HexToECDSA("8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0")
	if err != nil {
		return database.SignedTx{}, err
	}

	tx, err := database.NewTx(signature.PublicKeyHex(from.PublicKey), signature.PublicKeyHex(to.PublicKey), amount)
	if err != nil {
		return database.SignedTx{}, err
	}

	return tx.Sign(from)
}

func TestCRUD(t *testing.T) {
	type table struct {
		name    string
		amounts []int64
		best    []int64
		mined   int64
		after   []int64
	}

	tt := []table{
		{
			name:    "basic",
			amounts: []int64{20, 30, 40, 10},
			best:    []int64{20, 30},
			mined:   30,
			after:   []int64{20, 40, 10},
		},
	}

	t.Log("Given the need to validate mempool api.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					mp := mempool.New()

					txs := make(map[int64]database.SignedTx)
					for _, amount := range tst.amounts {
						tx, err := sign(amount)
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to sign transaction: %v", failed, testID, err)
						}
						txs[amount] = tx

						if _, err := mp.Upsert(tx); err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to add transaction: %v", failed, testID, err)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould be able to add transactions.", success, testID)

					if _, err := mp.Upsert(txs[tst.amounts[0]]); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould not be able to add the same transaction twice.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould not be able to add the same transaction twice.", success, testID)

					if mp.Count() != len(tst.amounts) {
						t.Logf("\t\tTest %d:\tgot: %d", testID, mp.Count())
						t.Logf("\t\tTest %d:\texp: %d", testID, len(tst.amounts))
						t.Fatalf("\t%s\tTest %d:\tShould get the right count.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the right count.", success, testID)

					best := mp.PickBest(len(tst.best))
					for i, tx := range best {
						if tx.Amount != tst.best[i] {
							t.Logf("\t\tTest %d:\tgot: %d", testID, tx.Amount)
							t.Logf("\t\tTest %d:\texp: %d", testID, tst.best[i])
							t.Fatalf("\t%s\tTest %d:\tShould get the transactions in arrival order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get the transactions in arrival order.", success, testID)

					block := database.Block{Trans: []database.SignedTx{txs[tst.mined]}}
					if removed := mp.Prune([]database.Block{block}); removed != 1 {
						t.Fatalf("\t%s\tTest %d:\tShould prune the mined transaction: %d", failed, testID, removed)
					}
					t.Logf("\t%s\tTest %d:\tShould prune the mined transaction.", success, testID)

					after := mp.PickBest(-1)
					if len(after) != len(tst.after) {
						t.Fatalf("\t%s\tTest %d:\tShould get the right count after prune: %d", failed, testID, len(after))
					}
					for i, tx := range after {
						if tx.Amount != tst.after[i] {
							t.Fatalf("\t%s\tTest %d:\tShould keep arrival order after prune.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould keep arrival order after prune.", success, testID)

					if removed := mp.Prune([]database.Block{block}); removed != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould not prune the same transaction twice: %d", failed, testID, removed)
					}
					t.Logf("\t%s\tTest %d:\tShould not prune the same transaction twice.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}
