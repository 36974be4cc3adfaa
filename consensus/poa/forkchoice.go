package poa

import "github.com/ethereum/go-ethereum/core/types"

// Fork-choice scoring. Difficulty carries no information on a
// proof-of-authority chain, so candidate chains are ordered by how many of
// their blocks were sealed by the in-turn signer: a correctly rotating chain
// always beats a single-signer fill-in, and only equally rotated chains fall
// back to length.

// IsInTurn reports whether the header was sealed by the signer whose
// round-robin turn it was.
func (p *Poa) IsInTurn(header *types.Header) (bool, error) {
	sealer, err := ecrecover(header, p.signatures)
	if err != nil {
		return false, err
	}
	expected, ok := p.spec.ExpectedSigner(header.Number.Uint64())
	return ok && sealer == expected, nil
}

// ScoreChain counts the in-turn blocks in a header sequence. Headers whose
// seal cannot be recovered contribute nothing.
func (p *Poa) ScoreChain(headers []*types.Header) uint64 {
	var score uint64
	for _, header := range headers {
		if inturn, err := p.IsInTurn(header); err == nil && inturn {
			score++
		}
	}
	return score
}

// CompareChains orders two candidate chains lexicographically on
// (score, length). It returns +1 when a is preferable, -1 when b is, and 0
// when they tie on both criteria.
func (p *Poa) CompareChains(a, b []*types.Header) int {
	scoreA, scoreB := p.ScoreChain(a), p.ScoreChain(b)
	switch {
	case scoreA > scoreB:
		return 1
	case scoreA < scoreB:
		return -1
	case len(a) > len(b):
		return 1
	case len(a) < len(b):
		return -1
	default:
		return 0
	}
}
