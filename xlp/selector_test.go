package xlp

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/eil-protocol/eil-go/eiltypes"
)

func cand(addr string, fee, deposit int64) Candidate {
	return Candidate{
		Address:          ethcommon.HexToAddress(addr),
		Fee:              big.NewInt(fee),
		AvailableDeposit: big.NewInt(deposit),
	}
}

func TestSelectCheapest(t *testing.T) {
	d := Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(10)}
	candidates := []Candidate{
		cand("0x01", 10, 100),
		cand("0x02", 5, 100),
		cand("0x03", 7, 100),
	}

	chosen, err := Select(d, candidates, Policy{})
	assert.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress("0x02"), chosen.Address)
}

func TestSelectDeterministic(t *testing.T) {
	d := Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(10)}
	candidates := []Candidate{
		cand("0x01", 5, 100),
		cand("0x02", 5, 100),
		cand("0x03", 5, 200),
	}

	first, err := Select(d, candidates, Policy{})
	assert.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Select(d, candidates, Policy{})
		assert.NoError(t, err)
		assert.Equal(t, first.Address, again.Address)
	}

	// deeper deposit wins the fee tie
	assert.Equal(t, ethcommon.HexToAddress("0x03"), first.Address)
}

func TestSelectNextCheapestAfterRemoval(t *testing.T) {
	d := Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(10)}
	candidates := []Candidate{
		cand("0x01", 10, 100),
		cand("0x02", 5, 100),
		cand("0x03", 7, 100),
	}

	chosen, err := Select(d, candidates, Policy{})
	assert.NoError(t, err)

	var remaining []Candidate
	for _, c := range candidates {
		if c.Address != chosen.Address {
			remaining = append(remaining, c)
		}
	}
	next, err := Select(d, remaining, Policy{})
	assert.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress("0x03"), next.Address)
}

// Candidates {P1: fee 10, deposit 100}, {P2: fee 5, deposit 40}; the request
// needs deposit >= 50, so the cheaper P2 is filtered out.
func TestSelectDepositFloorBeatsFee(t *testing.T) {
	d := Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(50)}
	p1 := cand("0x01", 10, 100)
	p2 := cand("0x02", 5, 40)

	chosen, err := Select(d, []Candidate{p1, p2}, Policy{})
	assert.NoError(t, err)
	assert.Equal(t, p1.Address, chosen.Address)
}

func TestSelectMinProviderDeposit(t *testing.T) {
	d := Demand{
		ChainID:            eiltypes.Arbitrum,
		Amount:             big.NewInt(40),
		MinProviderDeposit: big.NewInt(70),
	}
	// deposit must cover 40 + 70
	chosen, err := Select(d, []Candidate{cand("0x01", 1, 100), cand("0x02", 2, 120)}, Policy{})
	assert.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress("0x02"), chosen.Address)
}

func TestSelectAllowlist(t *testing.T) {
	d := Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(10)}
	candidates := []Candidate{cand("0x01", 1, 100), cand("0x02", 2, 100)}
	policy := Policy{Allowlist: []ethcommon.Address{ethcommon.HexToAddress("0x02")}}

	chosen, err := Select(d, candidates, policy)
	assert.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress("0x02"), chosen.Address)
}

func TestSelectMaxFee(t *testing.T) {
	d := Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(10)}
	candidates := []Candidate{cand("0x01", 100, 100), cand("0x02", 200, 100)}

	_, err := Select(d, candidates, Policy{MaxFee: big.NewInt(50)})
	assert.True(t, errors.Is(err, ErrNoEligibleXlp))
}

func TestSelectReserveFactor(t *testing.T) {
	d := Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(100)}
	policy := Policy{DepositReserveNumerator: 11, DepositReserveDenominator: 10}

	// requires 110; only 0x02 clears it
	chosen, err := Select(d, []Candidate{cand("0x01", 1, 105), cand("0x02", 2, 115)}, policy)
	assert.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress("0x02"), chosen.Address)
}

func TestSelectEmptyPool(t *testing.T) {
	d := Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(10)}
	_, err := Select(d, nil, Policy{})
	assert.True(t, errors.Is(err, ErrNoEligibleXlp))
	assert.Contains(t, err.Error(), "42161")
}

func TestSimCandidateSource(t *testing.T) {
	src := NewSimCandidateSource()
	src.Add(eiltypes.Arbitrum, cand("0x01", 1, 100))

	got, err := src.Candidates(context.Background(), Demand{ChainID: eiltypes.Arbitrum, Amount: big.NewInt(1)})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(got))

	got, err = src.Candidates(context.Background(), Demand{ChainID: eiltypes.Base, Amount: big.NewInt(1)})
	assert.NoError(t, err)
	assert.Empty(t, got)
}
