package executor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUserOpNotSigned is returned when execution starts with an
	// unsigned user operation in any batch.
	ErrUserOpNotSigned = errors.New("user operation not signed")

	// ErrExecutionAlreadyStarted guards the one-shot Execute call.
	ErrExecutionAlreadyStarted = errors.New("execution already started")

	// ErrConfirmationTimeout is wrapped when a cross-chain wait outlives
	// the configured confirmation timeout.
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrOnChainRevert is wrapped when a submitted batch reverts.
	ErrOnChainRevert = errors.New("execution reverted on chain")

	// ErrAborted marks batches that never started because a sibling
	// batch failed first.
	ErrAborted = errors.New("execution aborted")
)

func ErrBatchNotSigned(index int) error {
	return fmt.Errorf("%w: batch %d", ErrUserOpNotSigned, index)
}

func ErrBatchTimedOut(index int, timeout time.Duration) error {
	return fmt.Errorf("%w: batch %d exceeded %s", ErrConfirmationTimeout, index, timeout)
}

func ErrBatchReverted(index int, reason string) error {
	return fmt.Errorf("%w: batch %d: %s", ErrOnChainRevert, index, reason)
}
