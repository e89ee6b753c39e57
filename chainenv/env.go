// NetworkEnvironment resolves per-chain deployment facts (entry point,
// paymaster, endpoints) from the configuration.

package chainenv

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/eil-protocol/eil-go/eiltypes"
)

type NetworkEnvironment struct {
	cfg    *CrossChainConfig
	chains map[eiltypes.ChainId]*ChainInfo
}

func NewNetworkEnvironment(cfg *CrossChainConfig) *NetworkEnvironment {
	chains := make(map[eiltypes.ChainId]*ChainInfo, len(cfg.ChainInfos))
	for i := range cfg.ChainInfos {
		chains[cfg.ChainInfos[i].ChainID] = &cfg.ChainInfos[i]
	}
	return &NetworkEnvironment{cfg: cfg, chains: chains}
}

func (e *NetworkEnvironment) Config() *CrossChainConfig {
	return e.cfg
}

// Supports reports whether chainID is configured.
func (e *NetworkEnvironment) Supports(chainID eiltypes.ChainId) bool {
	_, ok := e.chains[chainID]
	return ok
}

// ChainIDs returns all configured chain ids.
func (e *NetworkEnvironment) ChainIDs() []eiltypes.ChainId {
	ids := make([]eiltypes.ChainId, 0, len(e.cfg.ChainInfos))
	for _, info := range e.cfg.ChainInfos {
		ids = append(ids, info.ChainID)
	}
	return ids
}

func (e *NetworkEnvironment) RPCURL(chainID eiltypes.ChainId) (string, error) {
	info, ok := e.chains[chainID]
	if !ok {
		return "", eiltypes.ErrChainUnknown(chainID)
	}
	return info.RPCURL, nil
}

func (e *NetworkEnvironment) EntryPoint(chainID eiltypes.ChainId) (ethcommon.Address, error) {
	info, ok := e.chains[chainID]
	if !ok {
		return ethcommon.Address{}, eiltypes.ErrChainUnknown(chainID)
	}
	return info.EntryPoint, nil
}

func (e *NetworkEnvironment) Paymaster(chainID eiltypes.ChainId) (ethcommon.Address, error) {
	info, ok := e.chains[chainID]
	if !ok {
		return ethcommon.Address{}, eiltypes.ErrChainUnknown(chainID)
	}
	return info.Paymaster, nil
}
