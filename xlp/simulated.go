// In-memory candidate source for tests and the demo binary.

package xlp

import (
	"context"

	"github.com/eil-protocol/eil-go/eiltypes"
)

// SimCandidateSource serves a fixed pool per chain.
type SimCandidateSource struct {
	Pools map[eiltypes.ChainId][]Candidate
}

func NewSimCandidateSource() *SimCandidateSource {
	return &SimCandidateSource{Pools: make(map[eiltypes.ChainId][]Candidate)}
}

func (s *SimCandidateSource) Add(chainID eiltypes.ChainId, c Candidate) {
	s.Pools[chainID] = append(s.Pools[chainID], c)
}

func (s *SimCandidateSource) Candidates(_ context.Context, d Demand) ([]Candidate, error) {
	return s.Pools[d.ChainID], nil
}
