package actions

import (
	"errors"
	"fmt"

	"github.com/eil-protocol/eil-go/eiltypes"
)

var (
	// ErrNotDeployed is wrapped when a token or contract has no address
	// on the batch's chain.
	ErrNotDeployed = errors.New("entity not deployed on chain")

	// ErrMethodMissing is wrapped when the named function is absent from
	// the supplied ABI.
	ErrMethodMissing = errors.New("function not found in abi")

	// ErrZeroTarget is returned for calls aimed at the zero address.
	ErrZeroTarget = errors.New("call target is the zero address")

	// ErrUndeclaredVar is wrapped when a runtime amount references a
	// variable no earlier batch of the operation has declared.
	ErrUndeclaredVar = errors.New("runtime variable not declared")

	// ErrDynamicSetVar is wrapped when a set-variable call returns a
	// dynamically sized value, which the on-chain helper cannot store.
	ErrDynamicSetVar = errors.New("set-variable call must return a static value")
)

func ErrTokenNotDeployed(name string, chainID eiltypes.ChainId) error {
	return fmt.Errorf("%w: token %s has no deployment on chain_id=%d", ErrNotDeployed, name, chainID)
}

func ErrContractNotDeployed(chainID eiltypes.ChainId) error {
	return fmt.Errorf("%w: contract has no deployment on chain_id=%d", ErrNotDeployed, chainID)
}

func ErrFunctionMissing(name string) error {
	return fmt.Errorf("%w: %s", ErrMethodMissing, name)
}

func ErrVarNotDeclared(name string) error {
	return fmt.Errorf("%w: '%s' must be set by an earlier batch of the same operation", ErrUndeclaredVar, name)
}

func ErrSetVarDynamic(name string) error {
	return fmt.Errorf("%w: variable '%s'", ErrDynamicSetVar, name)
}
