package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrBuilderState is wrapped whenever an operation is attempted from
	// the wrong builder state.
	ErrBuilderState = errors.New("builder in wrong state")

	// ErrBatchOpen is returned when a call requires all batches closed.
	ErrBatchOpen = errors.New("a batch is still open")

	// ErrProducedVoucherLimit enforces at most one produced voucher per batch.
	ErrProducedVoucherLimit = errors.New("batch already produces a voucher")

	// ErrConsumedVoucherLimit enforces at most one consumed voucher per batch.
	ErrConsumedVoucherLimit = errors.New("batch already consumes a voucher")
)

func ErrWrongState(op string, state State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrBuilderState, op, state)
}
