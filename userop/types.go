// ERC-4337 user operation payloads and the contract-level voucher
// structures exchanged with the cross-chain paymaster.

package userop

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/eil-protocol/eil-go/common"
	"github.com/eil-protocol/eil-go/eiltypes"
)

// UserOperation is the account-level operation submitted for one batch.
type UserOperation struct {
	Sender               ethcommon.Address  `json:"sender"`
	Nonce                *big.Int           `json:"nonce"`
	Factory              *ethcommon.Address `json:"factory,omitempty"`
	FactoryData          []byte             `json:"factoryData,omitempty"`
	CallData             []byte             `json:"callData"`
	CallGasLimit         *big.Int           `json:"callGasLimit"`
	VerificationGasLimit *big.Int           `json:"verificationGasLimit"`
	PreVerificationGas   *big.Int           `json:"preVerificationGas"`
	MaxFeePerGas         *big.Int           `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *big.Int           `json:"maxPriorityFeePerGas"`
	Paymaster            *ethcommon.Address `json:"paymaster,omitempty"`
	PaymasterData        []byte             `json:"paymasterData,omitempty"`
	Signature            []byte             `json:"signature"`

	// ChainID and EntryPoint enter the signing hash; an op signed for one
	// chain cannot be replayed on another.
	ChainID    eiltypes.ChainId  `json:"chainId"`
	EntryPoint ethcommon.Address `json:"entryPoint"`
}

// SigningHash serializes the operation fields and hashes them.
func (op *UserOperation) SigningHash() ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		op.Sender,
		op.Nonce,
		crypto.Keccak256(op.CallData),
		op.CallGasLimit,
		op.VerificationGasLimit,
		op.PreVerificationGas,
		op.MaxFeePerGas,
		op.MaxPriorityFeePerGas,
		uint64(op.ChainID),
		op.EntryPoint,
	))
}

// Asset is an ERC20 token with a concrete amount.
type Asset struct {
	ERC20Token ethcommon.Address `json:"erc20Token"`
	Amount     *big.Int          `json:"amount"`
}

// AtomicSwapFeeRule holds fee numerators out of 10_000.
type AtomicSwapFeeRule struct {
	StartFeePercentNumerator *big.Int `json:"startFeePercentNumerator"`
	MaxFeePercentNumerator   *big.Int `json:"maxFeePercentNumerator"`
	FeeIncreasePerSecond     *big.Int `json:"feeIncreasePerSecond"`
	UnspentVoucherFee        *big.Int `json:"unspentVoucherFee"`
}

// SourceSwapComponent is the source-chain half of a voucher request.
type SourceSwapComponent struct {
	ChainID     eiltypes.ChainId    `json:"chainId"`
	Sender      ethcommon.Address   `json:"sender"`
	Paymaster   ethcommon.Address   `json:"paymaster"`
	Assets      []Asset             `json:"assets"`
	FeeRule     AtomicSwapFeeRule   `json:"feeRule"`
	SenderNonce *big.Int            `json:"senderNonce"`
	AllowedXlps []ethcommon.Address `json:"allowedXlps"`
}

// DestinationSwapComponent is the destination-chain half of a voucher request.
type DestinationSwapComponent struct {
	ChainID       eiltypes.ChainId  `json:"chainId"`
	Sender        ethcommon.Address `json:"sender"`
	Paymaster     ethcommon.Address `json:"paymaster"`
	Assets        []Asset           `json:"assets"`
	MaxUserOpCost *big.Int          `json:"maxUserOpCost"`
	ExpiresAt     *big.Int          `json:"expiresAt"`
}

// VoucherRequest is the contract-level voucher request, ready for signing
// by a liquidity provider.
type VoucherRequest struct {
	Origination SourceSwapComponent      `json:"origination"`
	Destination DestinationSwapComponent `json:"destination"`
}

// SigningHash serializes both components and hashes them.
func (vr *VoucherRequest) SigningHash() ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		uint64(vr.Origination.ChainID),
		vr.Origination.Sender,
		vr.Origination.Paymaster,
		vr.Origination.SenderNonce,
		packAssets(vr.Origination.Assets),
		uint64(vr.Destination.ChainID),
		vr.Destination.Sender,
		vr.Destination.Paymaster,
		packAssets(vr.Destination.Assets),
		vr.Destination.MaxUserOpCost,
		vr.Destination.ExpiresAt,
	))
}

func packAssets(assets []Asset) []byte {
	var parts []interface{}
	for _, a := range assets {
		parts = append(parts, a.ERC20Token, a.Amount)
	}
	return common.EncodePacked(parts...)
}

// SignedVoucher is a voucher request countersigned by the chosen XLP.
type SignedVoucher struct {
	Request   VoucherRequest `json:"request"`
	Signature []byte         `json:"signature"`
}
