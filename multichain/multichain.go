// Multi-chain entities: tokens and contracts that carry one logical identity
// but a different deployment address per chain.

package multichain

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/eil-protocol/eil-go/eiltypes"
)

// AddressPerChain maps chain id to deployment address.
type AddressPerChain map[eiltypes.ChainId]ethcommon.Address

// MultiChainEntity can provide an address on a given chain.
type MultiChainEntity interface {
	AddressOn(chainID eiltypes.ChainId) (ethcommon.Address, bool)
}

// MultichainContract is a contract deployed on several chains under one ABI.
type MultichainContract struct {
	ABI         abi.ABI
	Deployments AddressPerChain
}

func NewMultichainContract(contractABI abi.ABI, deployments AddressPerChain) *MultichainContract {
	return &MultichainContract{ABI: contractABI, Deployments: deployments}
}

func (c *MultichainContract) AddressOn(chainID eiltypes.ChainId) (ethcommon.Address, bool) {
	addr, ok := c.Deployments[chainID]
	return addr, ok
}

func (c *MultichainContract) IsDeployedOn(chainID eiltypes.ChainId) bool {
	_, ok := c.Deployments[chainID]
	return ok
}

// MultichainToken is an ERC20 token deployed on several chains.
type MultichainToken struct {
	Name        string
	Deployments AddressPerChain
}

func NewMultichainToken(name string, deployments AddressPerChain) *MultichainToken {
	return &MultichainToken{Name: name, Deployments: deployments}
}

func (t *MultichainToken) AddressOn(chainID eiltypes.ChainId) (ethcommon.Address, bool) {
	addr, ok := t.Deployments[chainID]
	return addr, ok
}

func (t *MultichainToken) IsDeployedOn(chainID eiltypes.ChainId) bool {
	_, ok := t.Deployments[chainID]
	return ok
}

// ABI returns the standard ERC20 ABI.
func (t *MultichainToken) ABI() abi.ABI {
	return ERC20ABI()
}

// TokenAmount pairs a token with an amount requested from (or moved by)
// a voucher.
type TokenAmount struct {
	Token  *MultichainToken
	Amount eiltypes.Amount

	// MinProviderDeposit is a floor on the provider's available deposit,
	// mainly useful when Amount is a runtime variable.
	MinProviderDeposit *big.Int
}

var (
	erc20ABIOnce sync.Once
	erc20ABI     abi.ABI
)

// ERC20ABI returns the minimal parsed ERC20 ABI used for action encoding.
func ERC20ABI() abi.ABI {
	erc20ABIOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
		if err != nil {
			panic(err)
		}
		erc20ABI = parsed
	})
	return erc20ABI
}

const erc20ABIJSON = `[
  {
    "type": "function",
    "name": "balanceOf",
    "stateMutability": "view",
    "inputs": [{"name": "account", "type": "address"}],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "transfer",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "to", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "approve",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "spender", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "allowance",
    "stateMutability": "view",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "spender", "type": "address"}
    ],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "decimals",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint8"}]
  },
  {
    "type": "function",
    "name": "symbol",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "string"}]
  }
]`
