// In-memory collaborators for tests and the demo binary. They stand in
// for a real bundler receipt poller and paymaster event listener.

package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/eil-protocol/eil-go/eiltypes"
)

// SimConfirmer confirms every transaction after a fixed latency, unless
// told to revert it or hang the whole chain.
type SimConfirmer struct {
	Latency time.Duration

	mu      sync.Mutex
	reverts map[ethcommon.Hash]string
	hangs   map[eiltypes.ChainId]bool
}

func NewSimConfirmer() *SimConfirmer {
	return &SimConfirmer{
		reverts: make(map[ethcommon.Hash]string),
		hangs:   make(map[eiltypes.ChainId]bool),
	}
}

// RevertTx makes txHash confirm as reverted with the given reason.
func (c *SimConfirmer) RevertTx(txHash ethcommon.Hash, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reverts[txHash] = reason
}

// HangChain makes every wait on chainID block until the context ends.
func (c *SimConfirmer) HangChain(chainID eiltypes.ChainId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangs[chainID] = true
}

func (c *SimConfirmer) WaitMined(ctx context.Context, chainID eiltypes.ChainId, txHash ethcommon.Hash) error {
	c.mu.Lock()
	hang := c.hangs[chainID]
	reason, reverted := c.reverts[txHash]
	c.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Latency):
		}
	}
	if reverted {
		return fmt.Errorf("%w: %s", ErrOnChainRevert, reason)
	}
	return nil
}

// SimWatcher resolves voucher issuance either automatically after a fixed
// latency or when Issue is called.
type SimWatcher struct {
	// AutoIssue resolves every wait after Latency without an Issue call.
	AutoIssue bool
	Latency   time.Duration

	mu     sync.Mutex
	issued map[string]chan struct{}
}

func NewSimWatcher() *SimWatcher {
	return &SimWatcher{issued: make(map[string]chan struct{})}
}

func (w *SimWatcher) channel(refID string) chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.issued[refID]
	if !ok {
		ch = make(chan struct{})
		w.issued[refID] = ch
	}
	return ch
}

// Issue marks refID as issued, releasing any waiter.
func (w *SimWatcher) Issue(refID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.issued[refID]
	if !ok {
		ch = make(chan struct{})
		w.issued[refID] = ch
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (w *SimWatcher) WaitForIssuance(ctx context.Context, _ eiltypes.ChainId, refID string) error {
	if w.AutoIssue {
		if w.Latency <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.Latency):
			return nil
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.channel(refID):
		return nil
	}
}
