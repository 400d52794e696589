// Package badger implements the ability to read and write blocks to a
// badger key/value store. Blocks are stored as compressed canonical CBOR.
package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
)

// prefixBlock is the key prefix for every stored block.
var prefixBlock = []byte("block/")

// Config represents the configuration required to open the store. An
// empty path keeps the store in memory.
type Config struct {
	Path string
}

// Badger represents the serialization implementation for reading and
// storing blocks in badger. This implements the storage.Storage interface.
type Badger struct {
	db    *badger.DB
	codec *codec
}

// New opens the store at the configured path.
func New(cfg Config) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open badger: %w", err)
	}

	c, err := newCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Badger{db: db, codec: c}, nil
}

// Close flushes and releases the store.
func (b *Badger) Close() error {
	var merr *multierror.Error

	if err := b.db.Close(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("closing badger: %w", err))
	}

	if err := b.codec.close(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("closing codec: %w", err))
	}

	return merr.ErrorOrNil()
}

// Write stores the block under its number.
func (b *Badger) Write(block database.Block) error {
	value, err := b.codec.Marshal(block)
	if err != nil {
		return fmt.Errorf("block %d: %w", block.Header.Number, err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(block.Header.Number), value)
	})
}

// ReadAll returns every stored block in number order.
func (b *Badger) ReadAll() ([]database.Block, error) {
	var blocks []database.Block

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefixBlock); it.ValidForPrefix(prefixBlock); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var block database.Block
				if err := b.codec.Unmarshal(val, &block); err != nil {
					return err
				}

				blocks = append(blocks, block)
				return nil
			})
			if err != nil {
				return fmt.Errorf("reading key %x: %w", it.Item().Key(), err)
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return blocks, nil
}

// Reset drops every stored block.
func (b *Badger) Reset() error {
	return b.db.DropPrefix(prefixBlock)
}

// blockKey builds the key for the block number. The number is big endian
// so iteration returns blocks in order.
func blockKey(number uint64) []byte {
	key := make([]byte, len(prefixBlock)+8)
	copy(key, prefixBlock)
	binary.BigEndian.PutUint64(key[len(prefixBlock):], number)
	return key
}
