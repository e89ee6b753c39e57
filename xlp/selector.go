// Liquidity provider (XLP) selection.
//
// Select is pure: given the same candidates and policy it always picks the
// same provider. Sourcing the candidate list is a collaborator concern
// (CandidateSource).

package xlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/eil-protocol/eil-go/eiltypes"
)

var ErrNoEligibleXlp = errors.New("no eligible XLP")

func ErrNoEligibleXlpOnChain(chainID eiltypes.ChainId) error {
	return fmt.Errorf("%w: destination chain_id=%d", ErrNoEligibleXlp, chainID)
}

// Candidate is one liquidity provider on the destination chain.
type Candidate struct {
	Address          ethcommon.Address
	Fee              *big.Int // provider's quoted fee, base units
	AvailableDeposit *big.Int // deposit the provider can front
}

// Demand captures what a voucher asks a provider to front.
type Demand struct {
	ChainID eiltypes.ChainId
	Amount  *big.Int

	// MinProviderDeposit is an extra floor on top of Amount. Nil means zero.
	MinProviderDeposit *big.Int
}

// Policy constrains and prices the selection.
type Policy struct {
	// Allowlist restricts candidates to these addresses. Nil means any.
	Allowlist []ethcommon.Address

	// MaxFee drops candidates quoting more. Nil means no cap.
	MaxFee *big.Int

	// DepositReserveNumerator/Denominator scale the demanded amount before
	// comparing against the provider deposit (e.g. 11/10 demands 110%).
	// Zero values mean 1/1.
	DepositReserveNumerator   int64
	DepositReserveDenominator int64
}

// requiredDeposit = amount * reserve + min provider deposit floor.
func (p Policy) requiredDeposit(d Demand) *big.Int {
	num, den := p.DepositReserveNumerator, p.DepositReserveDenominator
	if num == 0 || den == 0 {
		num, den = 1, 1
	}
	required := new(big.Int).Mul(d.Amount, big.NewInt(num))
	required.Div(required, big.NewInt(den))
	if d.MinProviderDeposit != nil {
		required.Add(required, d.MinProviderDeposit)
	}
	return required
}

// Select picks the cheapest eligible provider. Ties break by larger
// available deposit, then by ascending address so the result is reproducible.
func Select(d Demand, candidates []Candidate, policy Policy) (Candidate, error) {
	required := policy.requiredDeposit(d)

	var survivors []Candidate
	for _, c := range candidates {
		if !allowed(policy.Allowlist, c.Address) {
			continue
		}
		if c.AvailableDeposit.Cmp(required) < 0 {
			continue
		}
		if policy.MaxFee != nil && c.Fee.Cmp(policy.MaxFee) > 0 {
			continue
		}
		survivors = append(survivors, c)
	}

	if len(survivors) == 0 {
		return Candidate{}, ErrNoEligibleXlpOnChain(d.ChainID)
	}

	sort.Slice(survivors, func(i, j int) bool {
		if cmp := survivors[i].Fee.Cmp(survivors[j].Fee); cmp != 0 {
			return cmp < 0
		}
		if cmp := survivors[i].AvailableDeposit.Cmp(survivors[j].AvailableDeposit); cmp != 0 {
			return cmp > 0
		}
		return bytes.Compare(survivors[i].Address[:], survivors[j].Address[:]) < 0
	})

	chosen := survivors[0]
	logger.WithFields(logger.Fields{
		"xlp":     chosen.Address.Hex(),
		"fee":     chosen.Fee,
		"deposit": chosen.AvailableDeposit,
		"chainId": d.ChainID,
	}).Debug("XLP selected")
	return chosen, nil
}

func allowed(allowlist []ethcommon.Address, addr ethcommon.Address) bool {
	if allowlist == nil {
		return true
	}
	for _, a := range allowlist {
		if a == addr {
			return true
		}
	}
	return false
}

// CandidateSource produces the current provider pool for a destination chain.
// A production implementation queries the paymaster contract.
type CandidateSource interface {
	Candidates(ctx context.Context, d Demand) ([]Candidate, error)
}
