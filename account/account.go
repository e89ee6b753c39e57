// Multi-chain smart account abstraction: one logical account with a
// deployment per chain, able to sign and submit user operations.

package account

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/userop"
)

var (
	// ErrSigningFailed is wrapped when the signer rejects a hash.
	ErrSigningFailed = errors.New("failed to sign user operation")

	// ErrSubmissionRejected is wrapped when the bundler rejects an op.
	ErrSubmissionRejected = errors.New("user operation rejected by bundler")
)

// Signer signs 32-byte operation hashes.
type Signer interface {
	Sign(ctx context.Context, hash [32]byte) ([]byte, error)
	Address() ethcommon.Address
}

// BundlerClient submits signed user operations for one or more chains.
type BundlerClient interface {
	// SendUserOperation returns the submission transaction hash.
	SendUserOperation(ctx context.Context, op *userop.UserOperation, entryPoint ethcommon.Address) (ethcommon.Hash, error)
}

// MultiChainSmartAccount is the executing account bound to a builder.
type MultiChainSmartAccount interface {
	// AddressOn returns the account address on chainID.
	AddressOn(chainID eiltypes.ChainId) (ethcommon.Address, error)

	// SignUserOps fills in the signature of every given op.
	SignUserOps(ctx context.Context, ops []*userop.UserOperation) error

	// EncodeCalls packs raw calls into the account's executeBatch calldata.
	EncodeCalls(chainID eiltypes.ChainId, calls []eiltypes.Call) ([]byte, error)

	// Nonce returns the account's anti-replay nonce on chainID.
	Nonce(ctx context.Context, chainID eiltypes.ChainId) (*big.Int, error)
}

// BaseMultichainAccount implements MultiChainSmartAccount over a static
// address map and a Signer.
type BaseMultichainAccount struct {
	addresses map[eiltypes.ChainId]ethcommon.Address
	signer    Signer

	mu     sync.Mutex
	nonces map[eiltypes.ChainId]*big.Int
}

func NewBaseMultichainAccount(addresses map[eiltypes.ChainId]ethcommon.Address, signer Signer) *BaseMultichainAccount {
	return &BaseMultichainAccount{
		addresses: addresses,
		signer:    signer,
		nonces:    make(map[eiltypes.ChainId]*big.Int),
	}
}

func (a *BaseMultichainAccount) AddressOn(chainID eiltypes.ChainId) (ethcommon.Address, error) {
	addr, ok := a.addresses[chainID]
	if !ok {
		return ethcommon.Address{}, eiltypes.ErrChainUnknown(chainID)
	}
	return addr, nil
}

func (a *BaseMultichainAccount) SignUserOps(ctx context.Context, ops []*userop.UserOperation) error {
	for _, op := range ops {
		hash := op.SigningHash()
		sig, err := a.signer.Sign(ctx, hash)
		if err != nil {
			return fmt.Errorf("%w: chain_id=%d: %v", ErrSigningFailed, op.ChainID, err)
		}
		op.Signature = sig
		logger.WithFields(logger.Fields{
			"chainId":    op.ChainID,
			"userOpHash": hash.Hex(),
		}).Debug("user operation signed")
	}
	return nil
}

func (a *BaseMultichainAccount) EncodeCalls(chainID eiltypes.ChainId, calls []eiltypes.Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	targets := make([]ethcommon.Address, len(calls))
	values := make([]*big.Int, len(calls))
	datas := make([][]byte, len(calls))
	for i, call := range calls {
		targets[i] = call.Target
		if call.Value != nil {
			values[i] = call.Value
		} else {
			values[i] = big.NewInt(0)
		}
		datas[i] = call.Data
	}

	return executeBatchABI().Pack("executeBatch", targets, values, datas)
}

func (a *BaseMultichainAccount) Nonce(_ context.Context, chainID eiltypes.ChainId) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n, ok := a.nonces[chainID]; ok {
		return new(big.Int).Set(n), nil
	}
	return big.NewInt(0), nil
}

// SetNonce seeds the cached nonce, mainly for tests.
func (a *BaseMultichainAccount) SetNonce(chainID eiltypes.ChainId, nonce *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nonces[chainID] = new(big.Int).Set(nonce)
}

var (
	executeBatchOnce   sync.Once
	executeBatchParsed abi.ABI
)

func executeBatchABI() abi.ABI {
	executeBatchOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(executeBatchABIJSON))
		if err != nil {
			panic(err)
		}
		executeBatchParsed = parsed
	})
	return executeBatchParsed
}

const executeBatchABIJSON = `[
  {
    "type": "function",
    "name": "executeBatch",
    "stateMutability": "payable",
    "inputs": [
      {"name": "targets", "type": "address[]"},
      {"name": "values", "type": "uint256[]"},
      {"name": "datas", "type": "bytes[]"}
    ],
    "outputs": []
  }
]`
