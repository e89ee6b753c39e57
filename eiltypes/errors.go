package eiltypes

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVarName is wrapped by every runtime-variable name rejection.
	ErrInvalidVarName = errors.New("invalid runtime variable name")

	// ErrUnsupportedChain is wrapped whenever a batch references a chain id
	// the environment does not know about.
	ErrUnsupportedChain = errors.New("chain not supported")
)

func ErrVarNameTooLong(name string) error {
	return fmt.Errorf("%w: '%s' is too long, must be max %d characters", ErrInvalidVarName, name, MaxRuntimeVarNameLen)
}

func ErrChainUnknown(chainID ChainId) error {
	return fmt.Errorf("%w: chain_id=%d", ErrUnsupportedChain, chainID)
}
