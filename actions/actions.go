// Actions are the user-facing building blocks of a batch. Each action
// encodes itself into zero or more low-level calls against the chain the
// enclosing batch targets.

package actions

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/multichain"
	"github.com/eil-protocol/eil-go/voucher"
)

// BatchContext is what an action may read from its enclosing batch while
// encoding. The builder's batch type satisfies it.
type BatchContext interface {
	ChainID() eiltypes.ChainId

	// HasVar reports whether a set-variable action in an earlier batch
	// of the same operation declared name.
	HasVar(name string) bool
}

// Action encodes to low-level calls against its enclosing batch.
type Action interface {
	EncodeCalls(batch BatchContext) ([]eiltypes.Call, error)
}

// RuntimePlaceholder is the word written into calldata wherever a runtime
// amount appears. The account's runtime-variable helper recognizes it
// on-chain and substitutes the variable's value before the call runs.
func RuntimePlaceholder(name string) *big.Int {
	h := crypto.Keccak256Hash([]byte("eil.runtime." + name))
	return new(big.Int).SetBytes(h.Bytes())
}

func amountWord(batch BatchContext, amount eiltypes.Amount) (*big.Int, error) {
	if !amount.IsRuntime() {
		return amount.Value(), nil
	}
	name := amount.VarName()
	if !batch.HasVar(name) {
		return nil, ErrVarNotDeclared(name)
	}
	return RuntimePlaceholder(name), nil
}

// TransferAction moves ERC20 tokens to a recipient.
type TransferAction struct {
	Token     *multichain.MultichainToken
	Recipient ethcommon.Address
	Amount    eiltypes.Amount
}

func (a *TransferAction) EncodeCalls(batch BatchContext) ([]eiltypes.Call, error) {
	target, ok := a.Token.AddressOn(batch.ChainID())
	if !ok {
		return nil, ErrTokenNotDeployed(a.Token.Name, batch.ChainID())
	}
	word, err := amountWord(batch, a.Amount)
	if err != nil {
		return nil, err
	}
	data, err := a.Token.ABI().Pack("transfer", a.Recipient, word)
	if err != nil {
		return nil, err
	}
	return []eiltypes.Call{{Target: target, Data: data}}, nil
}

// ApproveAction grants an ERC20 spending allowance.
type ApproveAction struct {
	Token   *multichain.MultichainToken
	Spender ethcommon.Address
	Value   eiltypes.Amount
}

func (a *ApproveAction) EncodeCalls(batch BatchContext) ([]eiltypes.Call, error) {
	target, ok := a.Token.AddressOn(batch.ChainID())
	if !ok {
		return nil, ErrTokenNotDeployed(a.Token.Name, batch.ChainID())
	}
	word, err := amountWord(batch, a.Value)
	if err != nil {
		return nil, err
	}
	data, err := a.Token.ABI().Pack("approve", a.Spender, word)
	if err != nil {
		return nil, err
	}
	return []eiltypes.Call{{Target: target, Data: data}}, nil
}

// FunctionCall specifies one contract invocation. Either Target holds a
// concrete address or Contract is resolved against the batch's chain.
type FunctionCall struct {
	Target   ethcommon.Address
	Contract *multichain.MultichainContract
	ABI      abi.ABI
	Method   string
	Args     []interface{}
	Value    *big.Int
}

func (c *FunctionCall) resolve(batch BatchContext) (ethcommon.Address, abi.ABI, error) {
	if c.Contract != nil {
		addr, ok := c.Contract.AddressOn(batch.ChainID())
		if !ok {
			return ethcommon.Address{}, abi.ABI{}, ErrContractNotDeployed(batch.ChainID())
		}
		return addr, c.Contract.ABI, nil
	}
	if c.Target == (ethcommon.Address{}) {
		return ethcommon.Address{}, abi.ABI{}, ErrZeroTarget
	}
	return c.Target, c.ABI, nil
}

// FunctionCallAction invokes an arbitrary contract function.
type FunctionCallAction struct {
	Call FunctionCall
}

func (a *FunctionCallAction) EncodeCalls(batch BatchContext) ([]eiltypes.Call, error) {
	target, contractABI, err := a.Call.resolve(batch)
	if err != nil {
		return nil, err
	}
	if _, ok := contractABI.Methods[a.Call.Method]; !ok {
		return nil, ErrFunctionMissing(a.Call.Method)
	}
	data, err := contractABI.Pack(a.Call.Method, a.Call.Args...)
	if err != nil {
		return nil, err
	}
	return []eiltypes.Call{{Target: target, Data: data, Value: a.Call.Value}}, nil
}

// VoucherRequestAction asks the paymaster for a cross-chain voucher. It
// encodes no calls itself; the builder lifts the request into the batch
// and the coordinator tracks it.
type VoucherRequestAction struct {
	Request voucher.Request
}

func (a *VoucherRequestAction) EncodeCalls(BatchContext) ([]eiltypes.Call, error) {
	return nil, nil
}

// SetVarAction runs a call and stores its single static return value as a
// runtime variable readable by later batches of the same operation.
type SetVarAction struct {
	Var  eiltypes.RuntimeVar
	Call FunctionCall
}

// NewSetVarAction validates the variable name up front.
func NewSetVarAction(name string, call FunctionCall) (*SetVarAction, error) {
	v, err := eiltypes.NewRuntimeVar(name)
	if err != nil {
		return nil, err
	}
	return &SetVarAction{Var: v, Call: call}, nil
}

func (a *SetVarAction) EncodeCalls(batch BatchContext) ([]eiltypes.Call, error) {
	target, contractABI, err := a.Call.resolve(batch)
	if err != nil {
		return nil, err
	}
	method, ok := contractABI.Methods[a.Call.Method]
	if !ok {
		return nil, ErrFunctionMissing(a.Call.Method)
	}
	if !staticSingleOutput(method) {
		return nil, ErrSetVarDynamic(a.Var.Name)
	}
	data, err := contractABI.Pack(a.Call.Method, a.Call.Args...)
	if err != nil {
		return nil, err
	}
	return []eiltypes.Call{{Target: target, Data: data, Value: a.Call.Value}}, nil
}

// staticSingleOutput reports whether the method returns exactly one value
// that occupies a fixed 32-byte slot.
func staticSingleOutput(method abi.Method) bool {
	if len(method.Outputs) != 1 {
		return false
	}
	switch method.Outputs[0].Type.T {
	case abi.UintTy, abi.IntTy, abi.AddressTy, abi.BoolTy, abi.FixedBytesTy, abi.HashTy:
		return true
	default:
		return false
	}
}
