// Package mempool maintains the mempool for the blockchain. Transactions
// submitted by clients wait here until they are included in a block.
package mempool

import (
	"errors"
	"sync"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/gammazero/deque"
)

// ErrExists is returned when a transaction is already in the pool.
var ErrExists = errors.New("transaction already exists")

// Mempool represents a cache of transactions kept in arrival order with a
// second key on the transaction signature.
type Mempool struct {
	mu    sync.RWMutex
	queue *deque.Deque
	pool  map[string]database.SignedTx
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		queue: deque.New(),
		pool:  make(map[string]database.SignedTx),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a transaction to the back of the mempool.
func (mp *Mempool) Upsert(tx database.SignedTx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := mapKey(tx)
	if _, exists := mp.pool[key]; exists {
		return len(mp.pool), ErrExists
	}

	mp.pool[key] = tx
	mp.queue.PushBack(key)

	return len(mp.pool), nil
}

// Prune removes every transaction that is already recorded in the
// specified blocks.
func (mp *Mempool) Prune(blocks []database.Block) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	for _, block := range blocks {
		for _, tx := range block.Trans {
			key := mapKey(tx)
			if _, exists := mp.pool[key]; exists {
				delete(mp.pool, key)
				removed++
			}
		}
	}

	if removed > 0 {
		mp.compact()
	}

	return removed
}

// PickBest returns up to howMany transactions in the order they arrived.
// A value of -1 returns every transaction.
func (mp *Mempool) PickBest(howMany int) []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	n := mp.queue.Len()
	if howMany >= 0 && howMany < n {
		n = howMany
	}

	txs := make([]database.SignedTx, 0, n)
	for i := 0; i < n; i++ {
		key := mp.queue.At(i).(string)
		txs = append(txs, mp.pool[key])
	}

	return txs
}

// =============================================================================

// compact drops keys from the queue that no longer exist in the pool.
func (mp *Mempool) compact() {
	queue := deque.New()
	for mp.queue.Len() > 0 {
		key := mp.queue.PopFront().(string)
		if _, exists := mp.pool[key]; exists {
			queue.PushBack(key)
		}
	}
	mp.queue = queue
}

// mapKey is used to generate the map key.
func mapKey(tx database.SignedTx) string {
	return tx.Signature
}
