package executor

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/userop"
)

// SingleChainBatch is one finalized, signed per-chain unit of an
// operation, ready for submission.
type SingleChainBatch struct {
	Index   int
	ChainID eiltypes.ChainId

	UserOp     *userop.UserOperation
	UserOpHash ethcommon.Hash

	// ProducedRefID names the voucher this batch registers, "" for none.
	ProducedRefID string

	// ConsumedRefID names the voucher this batch spends, "" for none.
	ConsumedRefID string
}

// CallbackType labels one execution event.
type CallbackType string

const (
	// Executing fires when a batch's user operation is handed to the bundler.
	Executing CallbackType = "executing"
	// WaitingForVouchers fires when a confirmed producer batch starts
	// waiting for its voucher issuance.
	WaitingForVouchers CallbackType = "waiting_for_vouchers"
	// VoucherIssued fires once the produced voucher's issuance is observed.
	VoucherIssued CallbackType = "voucher_issued"
	// Done fires when a batch reaches its terminal confirmed state.
	Done CallbackType = "done"
	// Failed fires when a batch fails for any reason.
	Failed CallbackType = "failed"
)

// CallbackData is delivered to the execution callback for every event.
// Callbacks are invoked sequentially, never concurrently.
type CallbackData struct {
	Index      int
	Type       CallbackType
	ChainID    eiltypes.ChainId
	UserOpHash ethcommon.Hash

	// TxHash is set from the Done and VoucherIssued events on, zero before.
	TxHash ethcommon.Hash

	// RefID carries the voucher ref for voucher-related events.
	RefID string

	// RevertReason is set only on Failed.
	RevertReason string
}

// Callback receives execution progress events.
type Callback func(data CallbackData)
