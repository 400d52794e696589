package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/edublock/foundation/blockchain/database"
	"github.com/ardanlabs/edublock/foundation/blockchain/metrics"
	"github.com/ardanlabs/edublock/foundation/blockchain/signature"
	"github.com/ardanlabs/edublock/foundation/blockchain/validator"
)

// SubmitBlock hands a block mined by another node to the authority running
// in this node for a decision.
func (s *State) SubmitBlock(ctx context.Context, block database.Block) (validator.Result, error) {
	if s.mode != ModeAuthority {
		return validator.Result{}, fmt.Errorf("%w: block submissions in %s mode", ErrWrongMode, s.mode)
	}

	s.mu.Lock()
	res, err := s.authority.Submit(ctx, block)
	s.mu.Unlock()

	if err != nil {
		return validator.Result{}, err
	}

	if !res.Accepted {
		metrics.AddRejected("submission")
		return res, nil
	}

	// The local mining operation is now working on a stale tip.
	done := s.Worker.SignalCancelMining()
	done()

	return res, nil
}

// AuthorityKey returns the public key used to stamp accepted blocks. It is
// empty unless this node is the authority.
func (s *State) AuthorityKey() string {
	if s.authority == nil {
		return ""
	}

	return s.authority.PublicKey()
}

// SyncAuthority brings the local copy of the canonical chain up to date
// with the authority.
func (s *State) SyncAuthority(ctx context.Context) error {
	if s.mode != ModeCentralized {
		return fmt.Errorf("%w: authority sync in %s mode", ErrWrongMode, s.mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.syncAuthority(ctx)
}

// =============================================================================

// syncAuthority pulls the canonical chain and replaces the local copy when
// the canonical chain is longer. The caller must hold the state lock.
func (s *State) syncAuthority(ctx context.Context) error {
	blocks, err := s.submitter.Chain(ctx)
	if err != nil {
		return err
	}

	if len(blocks) <= s.chain.Length() {
		return nil
	}

	key, err := s.authorityPublicKey(ctx)
	if err != nil {
		return err
	}

	// A chain the authority didn't stamp is not canonical.
	if err := validator.VerifyChain(blocks, key); err != nil {
		metrics.AddRejected(database.Reason(err))
		return fmt.Errorf("canonical chain: %w", err)
	}

	old := s.chain.Blocks()

	if err := s.chain.ReplaceWith(blocks); err != nil {
		if errors.Is(err, database.ErrStaleChain) {
			return nil
		}
		return fmt.Errorf("canonical chain: %w", err)
	}

	s.onReplace(old, s.chain.Blocks())

	return nil
}

// authorityPublicKey returns the key stamps are verified against. A key
// that wasn't pinned in the configuration is asked from the authority once.
// The caller must hold the state lock.
func (s *State) authorityPublicKey(ctx context.Context) (string, error) {
	if s.stampKey != "" {
		return s.stampKey, nil
	}

	key, err := s.submitter.PublicKey(ctx)
	if err != nil {
		return "", fmt.Errorf("authority public key: %w", err)
	}

	pub, err := signature.ParsePublicKey(key)
	if err != nil {
		return "", fmt.Errorf("authority public key: %w", err)
	}

	s.stampKey = signature.PublicKeyHex(*pub)
	s.evHandler("state: authorityPublicKey: key[%s]", s.stampKey)

	return s.stampKey, nil
}

// onAccept is called by the authority after a block was appended to the
// canonical chain. The state lock is held by the caller.
func (s *State) onAccept(block database.Block) {
	if err := s.updateLocalState(block); err != nil {
		s.evHandler("state: onAccept: ERROR: %s", err)
	}
}
