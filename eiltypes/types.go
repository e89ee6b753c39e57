// Shared model types of the EIL SDK.
// Pure data, no chain interaction.

package eiltypes

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ChainId identifies one L2 network.
type ChainId uint64

// Well-known chain IDs.
const (
	Mainnet  ChainId = 1
	Optimism ChainId = 10
	Arbitrum ChainId = 42161
	Base     ChainId = 8453
	Polygon  ChainId = 137
)

// MaxRuntimeVarNameLen is the longest allowed runtime variable name.
const MaxRuntimeVarNameLen = 8

// RuntimeVar names a value computed on-chain by an earlier batch.
type RuntimeVar struct {
	Name string
}

// NewRuntimeVar validates the name length.
func NewRuntimeVar(name string) (RuntimeVar, error) {
	if len(name) > MaxRuntimeVarNameLen {
		return RuntimeVar{}, ErrVarNameTooLong(name)
	}
	return RuntimeVar{Name: name}, nil
}

// Amount is either a fixed value known at build time or a reference to a
// runtime variable resolved during on-chain execution.
type Amount struct {
	fixed   *big.Int
	varName string
}

func Fixed(v *big.Int) Amount {
	return Amount{fixed: new(big.Int).Set(v)}
}

func FixedUint64(v uint64) Amount {
	return Amount{fixed: new(big.Int).SetUint64(v)}
}

func FromVar(v RuntimeVar) Amount {
	return Amount{varName: v.Name}
}

func (a Amount) IsRuntime() bool {
	return a.fixed == nil
}

// Value returns the fixed value, nil for runtime amounts.
func (a Amount) Value() *big.Int {
	if a.fixed == nil {
		return nil
	}
	return new(big.Int).Set(a.fixed)
}

// VarName returns the runtime variable name, "" for fixed amounts.
func (a Amount) VarName() string {
	return a.varName
}

// Call is one low-level contract call inside a batch's user operation.
type Call struct {
	Target ethcommon.Address
	Data   []byte
	Value  *big.Int // nil means zero
}

// BatchStatus is the per-batch execution state.
type BatchStatus string

const (
	BatchPending            BatchStatus = "pending"
	BatchSubmitting         BatchStatus = "submitting"
	BatchSubmitted          BatchStatus = "submitted"
	BatchWaitingForVouchers BatchStatus = "waiting_for_vouchers"
	BatchConfirmed          BatchStatus = "confirmed"
	BatchFailed             BatchStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s BatchStatus) Terminal() bool {
	return s == BatchConfirmed || s == BatchFailed
}
