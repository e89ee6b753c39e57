package chainenv

import (
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/eil-protocol/eil-go/eiltypes"
)

// ChainInfo configures one supported chain.
type ChainInfo struct {
	ChainID eiltypes.ChainId

	// RPCURL is the node endpoint for this chain.
	RPCURL string

	// EntryPoint is the ERC-4337 entry point contract.
	EntryPoint ethcommon.Address

	// Paymaster is the cross-chain paymaster holding XLP deposits.
	Paymaster ethcommon.Address

	// BundlerURL overrides RPCURL for user operation submission. Optional.
	BundlerURL string
}

// XlpSelectionConfig tunes provider selection during finalize.
type XlpSelectionConfig struct {
	// DepositReserveFactor demands this fraction of the requested amount as
	// provider deposit, e.g. 1.1 demands 110%.
	DepositReserveFactor float64

	// MaxFee drops providers quoting more. Nil means no cap.
	MaxFee *big.Int

	// Allowlist restricts selection to these providers. Nil means any.
	Allowlist []ethcommon.Address
}

// FeeConfig holds voucher fee percentages (0.0 to 1.0).
type FeeConfig struct {
	StartFeePercent          float64
	MaxFeePercent            float64
	FeeIncreasePerSecond     float64
	UnspentVoucherFeePercent float64
}

// CrossChainConfig is the top-level SDK configuration.
type CrossChainConfig struct {
	// ExpireTime bounds voucher validity.
	ExpireTime time.Duration

	// ConfirmationTimeout bounds every cross-chain wait during execution.
	ConfirmationTimeout time.Duration

	XlpSelection XlpSelectionConfig
	Fee          FeeConfig
	ChainInfos   []ChainInfo
}

// DefaultConfig mirrors the production defaults: 60s voucher expiry, 30s
// confirmation timeout, 0.1% starting fee growing to 5%.
func DefaultConfig() *CrossChainConfig {
	return &CrossChainConfig{
		ExpireTime:          60 * time.Second,
		ConfirmationTimeout: 30 * time.Second,
		XlpSelection: XlpSelectionConfig{
			DepositReserveFactor: 1.0,
		},
		Fee: FeeConfig{
			StartFeePercent:          0.001,
			MaxFeePercent:            0.05,
			FeeIncreasePerSecond:     0.0001,
			UnspentVoucherFeePercent: 0.001,
		},
	}
}

// AddChain appends a chain configuration.
func (c *CrossChainConfig) AddChain(info ChainInfo) *CrossChainConfig {
	c.ChainInfos = append(c.ChainInfos, info)
	return c
}

// ChainInfo returns the configuration for chainID, nil if unknown.
func (c *CrossChainConfig) ChainInfo(chainID eiltypes.ChainId) *ChainInfo {
	for i := range c.ChainInfos {
		if c.ChainInfos[i].ChainID == chainID {
			return &c.ChainInfos[i]
		}
	}
	return nil
}

// FeeNumerator converts a fee percentage (0.0 to 1.0) to a numerator out
// of 10_000, the representation the paymaster contract expects.
func FeeNumerator(percent float64) *big.Int {
	return big.NewInt(int64(percent * 10_000))
}
