package builder

import (
	logger "github.com/sirupsen/logrus"

	"github.com/eil-protocol/eil-go/actions"
	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/voucher"
)

// BatchBuilder assembles one per-chain batch. Obtained from StartBatch,
// returned to the parent builder by EndBatch.
type BatchBuilder struct {
	parent  *CrossChainBuilder
	chainID eiltypes.ChainId
	index   int

	actions         []actions.Action
	calls           []eiltypes.Call
	producedRequest *voucher.Request
	producedRefID   string
	consumedRefID   string
}

// ChainID satisfies the action encoding context.
func (b *BatchBuilder) ChainID() eiltypes.ChainId {
	return b.chainID
}

// HasVar reports whether an earlier, already closed batch declared name.
// A variable set inside this very batch is not visible to its own
// actions; values only cross batch boundaries.
func (b *BatchBuilder) HasVar(name string) bool {
	_, ok := b.parent.declaredVars[name]
	return ok
}

// AddAction appends an action. Encoding happens at EndBatch.
func (b *BatchBuilder) AddAction(a actions.Action) *BatchBuilder {
	b.actions = append(b.actions, a)
	return b
}

// AddVoucherRequest attaches the batch's produced voucher. At most one
// per batch, and the destination must be a different chain.
func (b *BatchBuilder) AddVoucherRequest(req voucher.Request) (*BatchBuilder, error) {
	if b.producedRequest != nil {
		return nil, ErrProducedVoucherLimit
	}
	if req.DestinationChainID == b.chainID {
		return nil, voucher.ErrVoucherSameChain(uint64(b.chainID))
	}
	req.SourceChainID = b.chainID
	b.producedRequest = &req
	b.producedRefID = req.RefID
	return b, nil
}

// UseVoucher spends a voucher registered by an earlier batch. Fails
// immediately for a ref that is not registered yet, even if a later
// batch would register it. The coordinator records the consumption at
// EndBatch, so an abandoned batch leaves the voucher spendable.
func (b *BatchBuilder) UseVoucher(refID string) (*BatchBuilder, error) {
	if b.consumedRefID != "" {
		return nil, ErrConsumedVoucherLimit
	}
	info, err := b.parent.coord.Get(refID)
	if err != nil {
		return nil, err
	}
	if info.Status == voucher.Consumed {
		return nil, voucher.ErrVoucherRefAlreadyConsumed(refID)
	}
	b.consumedRefID = refID
	return b, nil
}

// Abandon discards the batch without closing it, freeing the parent
// builder to start over after a failed EndBatch. Nothing the batch
// staged has reached the coordinator yet, so there is nothing to
// unwind.
func (b *BatchBuilder) Abandon() *CrossChainBuilder {
	if b.parent.open == b {
		b.parent.open = nil
		logger.WithFields(logger.Fields{
			"batch":   b.index,
			"chainId": b.chainID,
		}).Debug("batch abandoned")
	}
	return b.parent
}

// EndBatch encodes every action, records the consumed and produced
// vouchers with the coordinator and appends the batch to the operation.
// Encoding errors, an undeclared runtime variable among them, surface
// here rather than at execution. A failed close leaves the coordinator
// untouched; Abandon discards the batch so the builder can start over.
func (b *BatchBuilder) EndBatch() (*CrossChainBuilder, error) {
	parent := b.parent

	// a voucher request supplied as an action is lifted into the batch
	for _, a := range b.actions {
		if vra, ok := a.(*actions.VoucherRequestAction); ok {
			if b.producedRequest != nil && b.producedRequest.RefID == vra.Request.RefID {
				continue
			}
			if _, err := b.AddVoucherRequest(vra.Request); err != nil {
				return nil, err
			}
		}
	}

	var encoded []eiltypes.Call
	for _, a := range b.actions {
		calls, err := a.EncodeCalls(b)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, calls...)
	}
	b.calls = encoded

	// reject a duplicate ref before touching the coordinator so a
	// failed close stays side-effect free
	if b.producedRequest != nil {
		if _, err := parent.coord.Get(b.producedRequest.RefID); err == nil {
			return nil, voucher.ErrDuplicateVoucherRef(b.producedRequest.RefID)
		}
	}

	if b.consumedRefID != "" {
		if err := parent.coord.Consume(b.consumedRefID, b.index); err != nil {
			return nil, err
		}
	}
	if b.producedRequest != nil {
		if err := parent.coord.Register(*b.producedRequest, b.index); err != nil {
			return nil, err
		}
	}

	// declarations become visible to the batches that follow
	for _, a := range b.actions {
		if sv, ok := a.(*actions.SetVarAction); ok {
			parent.declaredVars[sv.Var.Name] = b.index
		}
	}

	parent.batches = append(parent.batches, b)
	parent.open = nil

	logger.WithFields(logger.Fields{
		"batch":   b.index,
		"chainId": b.chainID,
		"actions": len(b.actions),
	}).Debug("batch closed")
	return parent, nil
}
