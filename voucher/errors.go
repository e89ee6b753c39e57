package voucher

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateVoucher       = errors.New("voucher already exists")
	ErrVoucherNotFound        = errors.New("voucher not found")
	ErrVoucherAlreadyConsumed = errors.New("voucher already consumed")
	ErrUnconsumedVoucher      = errors.New("voucher not consumed by any batch")
	ErrSameChainVoucher       = errors.New("voucher destination equals source chain")
)

func ErrDuplicateVoucherRef(refID string) error {
	return fmt.Errorf("%w: ref_id=%s", ErrDuplicateVoucher, refID)
}

func ErrVoucherRefNotFound(refID string) error {
	return fmt.Errorf("%w: ref_id=%s", ErrVoucherNotFound, refID)
}

func ErrVoucherRefAlreadyConsumed(refID string) error {
	return fmt.Errorf("%w: ref_id=%s", ErrVoucherAlreadyConsumed, refID)
}

func ErrUnconsumedVoucherRefs(refIDs []string) error {
	return fmt.Errorf("%w: ref_ids=[%s]", ErrUnconsumedVoucher, strings.Join(refIDs, ", "))
}

func ErrVoucherSameChain(chainID uint64) error {
	return fmt.Errorf("%w: chain_id=%d", ErrSameChainVoucher, chainID)
}
