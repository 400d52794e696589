// Package validator implements the centralized mode where a single trusted
// authority decides which blocks extend the canonical chain.
package validator

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
)

// Result is the decision of the authority for a submitted block.
type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Stamp    string `json:"stamp,omitempty"`
}

// Submitter represents the behavior of anything that accepts or rejects a
// block on behalf of the canonical chain.
type Submitter interface {
	Submit(ctx context.Context, block database.Block) (Result, error)
}

// Canonical represents a submitter that also serves the canonical chain and
// the public key its stamps verify against.
type Canonical interface {
	Submitter
	Chain(ctx context.Context) ([]database.Block, error)
	PublicKey(ctx context.Context) (string, error)
}

// stamp is the data the authority signs for an accepted block.
type stamp struct {
	Number uint64 `json:"number"`
	Hash   string `json:"hash"`
}

// VerifyStamp reports whether the stamp was produced by the authority with
// the specified public key for this block.
func VerifyStamp(block database.Block, stampSig string, authority string) bool {
	if stampSig == "" {
		return false
	}

	return signature.Verify(stamp{Number: block.Header.Number, Hash: block.Hash}, authority, stampSig)
}

// VerifyChain checks that every block after genesis carries the stamp of
// the authority with the specified public key.
func VerifyChain(blocks []database.Block, authority string) error {
	for i := 1; i < len(blocks); i++ {
		if !VerifyStamp(blocks[i], blocks[i].Stamp, authority) {
			return fmt.Errorf("%w: block %d carries no valid authority stamp", database.ErrSignatureInvalid, blocks[i].Header.Number)
		}
	}

	return nil
}

// =============================================================================

// AuthorityConfig represents the configuration required to run the
// authority.
type AuthorityConfig struct {
	Chain      *database.Chain
	PrivateKey *ecdsa.PrivateKey
	OnAccept   func(block database.Block)
	EvHandler  database.EventHandler
}

// Authority is the single trusted process that extends the canonical chain.
type Authority struct {
	chain      *database.Chain
	privateKey *ecdsa.PrivateKey
	onAccept   func(block database.Block)
	evHandler  database.EventHandler
}

// NewAuthority constructs an authority guarding the specified chain. Every
// accepted block is stamped with the private key.
func NewAuthority(cfg AuthorityConfig) (*Authority, error) {
	if cfg.Chain == nil {
		return nil, errors.New("chain must be provided")
	}

	if cfg.PrivateKey == nil {
		return nil, errors.New("private key must be provided")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	a := Authority{
		chain:      cfg.Chain,
		privateKey: cfg.PrivateKey,
		onAccept:   cfg.OnAccept,
		evHandler:  ev,
	}

	return &a, nil
}

// PublicKey returns the public key clients use to verify stamps.
func (a *Authority) PublicKey() string {
	return signature.PublicKeyHex(a.privateKey.PublicKey)
}

// Submit validates the block against the canonical tip and appends it when
// it passes. A rejection is a decision, not an error.
func (a *Authority) Submit(ctx context.Context, block database.Block) (Result, error) {
	a.evHandler("validator: Submit: started: blk[%d]: hash[%s]", block.Header.Number, block.Hash)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// The stamp is stored with the block so the canonical chain can be
	// verified by anyone holding the public key. Whatever stamp the
	// submitter sent is replaced.
	sig, err := signature.Sign(stamp{Number: block.Header.Number, Hash: block.Hash}, a.privateKey)
	if err != nil {
		return Result{}, fmt.Errorf("stamping block %d: %w", block.Header.Number, err)
	}
	block.Stamp = sig

	if err := a.chain.TryAppend(block); err != nil {
		a.evHandler("validator: Submit: REJECTED: blk[%d]: %s", block.Header.Number, err)
		return Result{Accepted: false, Reason: err.Error()}, nil
	}

	if a.onAccept != nil {
		a.onAccept(block)
	}

	a.evHandler("validator: Submit: ACCEPTED: blk[%d]: hash[%s]", block.Header.Number, block.Hash)

	return Result{Accepted: true, Stamp: sig}, nil
}

// Chain returns a copy of the canonical chain.
func (a *Authority) Chain(ctx context.Context) ([]database.Block, error) {
	return a.chain.Blocks(), nil
}
