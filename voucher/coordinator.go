// Voucher lifecycle bookkeeping for one cross-chain operation.
//
// The coordinator owns registration and consumption state. A ref id is
// registered exactly once and consumed at most once, and consumption can only
// name a ref that is already registered. Because of that rule the producing
// batch always precedes the consuming batch in the caller-given order, so no
// cycle detection is needed; DependencyEdges just reads the recorded indices.

package voucher

import (
	"sort"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/multichain"
	"github.com/eil-protocol/eil-go/userop"
)

// Request is the caller-facing voucher request attached to a batch.
type Request struct {
	// RefID is the caller-chosen correlation key, unique per operation.
	RefID string

	// SourceChainID is stamped by the batch that produces the voucher.
	SourceChainID eiltypes.ChainId

	DestinationChainID eiltypes.ChainId

	Tokens []multichain.TokenAmount

	// Target is the execution target on the destination chain.
	// Nil means the account's own address there.
	Target *ethcommon.Address
}

// Status of one voucher inside its operation.
type Status string

const (
	Registered Status = "registered"
	Consumed   Status = "consumed"
)

// Info is the coordinator-owned record for one voucher.
type Info struct {
	Request          Request
	SourceBatchIndex int

	// DestBatchIndex is -1 until the voucher is consumed.
	DestBatchIndex int

	Status Status

	// SelectedXlp is set once provider selection ran. Nil before.
	SelectedXlp *ethcommon.Address

	// ContractRequest is the converted on-chain request, set at finalize.
	ContractRequest *userop.VoucherRequest
}

// Edge is one producer -> consumer dependency between batch indices.
type Edge struct {
	ProducerIndex int
	ConsumerIndex int
	RefID         string
}

// Coordinator tracks all vouchers of one operation.
type Coordinator struct {
	vouchers map[string]*Info
	order    []string // registration order, for deterministic iteration
}

func NewCoordinator() *Coordinator {
	return &Coordinator{vouchers: make(map[string]*Info)}
}

// Register inserts a new voucher produced by the batch at sourceBatchIndex.
func (c *Coordinator) Register(req Request, sourceBatchIndex int) error {
	if _, ok := c.vouchers[req.RefID]; ok {
		return ErrDuplicateVoucherRef(req.RefID)
	}

	c.vouchers[req.RefID] = &Info{
		Request:          req,
		SourceBatchIndex: sourceBatchIndex,
		DestBatchIndex:   -1,
		Status:           Registered,
	}
	c.order = append(c.order, req.RefID)

	logger.WithFields(logger.Fields{
		"refId":       req.RefID,
		"sourceBatch": sourceBatchIndex,
		"destChain":   req.DestinationChainID,
	}).Debug("voucher registered")
	return nil
}

// Consume transitions a registered voucher to consumed by the batch at
// destBatchIndex.
func (c *Coordinator) Consume(refID string, destBatchIndex int) error {
	info, ok := c.vouchers[refID]
	if !ok {
		return ErrVoucherRefNotFound(refID)
	}
	if info.Status == Consumed {
		return ErrVoucherRefAlreadyConsumed(refID)
	}

	info.Status = Consumed
	info.DestBatchIndex = destBatchIndex

	logger.WithFields(logger.Fields{
		"refId":     refID,
		"destBatch": destBatchIndex,
	}).Debug("voucher consumed")
	return nil
}

// Get returns the record for refID.
func (c *Coordinator) Get(refID string) (*Info, error) {
	info, ok := c.vouchers[refID]
	if !ok {
		return nil, ErrVoucherRefNotFound(refID)
	}
	return info, nil
}

// All returns every voucher in registration order.
func (c *Coordinator) All() []*Info {
	infos := make([]*Info, 0, len(c.order))
	for _, refID := range c.order {
		infos = append(infos, c.vouchers[refID])
	}
	return infos
}

// Unconsumed returns the registered-but-not-consumed vouchers in
// registration order.
func (c *Coordinator) Unconsumed() []*Info {
	var infos []*Info
	for _, refID := range c.order {
		if info := c.vouchers[refID]; info.Status != Consumed {
			infos = append(infos, info)
		}
	}
	return infos
}

// ValidateAllConsumed fails naming every dangling ref id. An operation with
// dangling vouchers must not become a runnable plan.
func (c *Coordinator) ValidateAllConsumed() error {
	var dangling []string
	for _, info := range c.Unconsumed() {
		dangling = append(dangling, info.Request.RefID)
	}
	if len(dangling) > 0 {
		return ErrUnconsumedVoucherRefs(dangling)
	}
	return nil
}

// SetSelectedXlp records the provider chosen for refID.
func (c *Coordinator) SetSelectedXlp(refID string, xlp ethcommon.Address) error {
	info, ok := c.vouchers[refID]
	if !ok {
		return ErrVoucherRefNotFound(refID)
	}
	info.SelectedXlp = &xlp
	return nil
}

// SetContractRequest records the converted on-chain request for refID.
func (c *Coordinator) SetContractRequest(refID string, req *userop.VoucherRequest) error {
	info, ok := c.vouchers[refID]
	if !ok {
		return ErrVoucherRefNotFound(refID)
	}
	info.ContractRequest = req
	return nil
}

// DependencyEdges exposes the producer -> consumer relation over batch
// indices, sorted by consumer then producer. The executor submits batches
// with no edge between them concurrently and holds a consumer until its
// producer confirmed.
func (c *Coordinator) DependencyEdges() []Edge {
	var edges []Edge
	for _, refID := range c.order {
		info := c.vouchers[refID]
		if info.Status != Consumed {
			continue
		}
		edges = append(edges, Edge{
			ProducerIndex: info.SourceBatchIndex,
			ConsumerIndex: info.DestBatchIndex,
			RefID:         refID,
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].ConsumerIndex != edges[j].ConsumerIndex {
			return edges[i].ConsumerIndex < edges[j].ConsumerIndex
		}
		return edges[i].ProducerIndex < edges[j].ProducerIndex
	})
	return edges
}
