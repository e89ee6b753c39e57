// In-memory signer and bundler used by tests and the demo binary.

package account

import (
	"context"
	"fmt"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/userop"
)

// SimSigner produces deterministic fake signatures.
type SimSigner struct {
	Addr ethcommon.Address

	// FailAll makes every Sign call fail, to exercise abort paths.
	FailAll bool
}

func NewSimSigner(addr ethcommon.Address) *SimSigner {
	return &SimSigner{Addr: addr}
}

func (s *SimSigner) Sign(_ context.Context, hash [32]byte) ([]byte, error) {
	if s.FailAll {
		return nil, fmt.Errorf("simulated signer failure")
	}
	return crypto.Keccak256(hash[:], s.Addr[:]), nil
}

func (s *SimSigner) Address() ethcommon.Address {
	return s.Addr
}

// SimBundler records submissions and can reject per chain.
type SimBundler struct {
	mu        sync.Mutex
	submitted []*userop.UserOperation
	rejects   map[eiltypes.ChainId]string
}

func NewSimBundler() *SimBundler {
	return &SimBundler{rejects: make(map[eiltypes.ChainId]string)}
}

// RejectChain makes every submission on chainID fail with reason.
func (b *SimBundler) RejectChain(chainID eiltypes.ChainId, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejects[chainID] = reason
}

func (b *SimBundler) SendUserOperation(_ context.Context, op *userop.UserOperation, _ ethcommon.Address) (ethcommon.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if reason, ok := b.rejects[op.ChainID]; ok {
		return ethcommon.Hash{}, fmt.Errorf("%w: chain_id=%d: %s", ErrSubmissionRejected, op.ChainID, reason)
	}

	b.submitted = append(b.submitted, op)
	return crypto.Keccak256Hash(op.SigningHash().Bytes(), []byte("tx")), nil
}

// Submitted returns the ops accepted so far.
func (b *SimBundler) Submitted() []*userop.UserOperation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*userop.UserOperation, len(b.submitted))
	copy(out, b.submitted)
	return out
}
