package poa

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// buildChain seals blocks 1..length, picking the signer of block n with
// pickSigner(n).
func (h *devHarness) buildChain(t *testing.T, length uint64, pickSigner func(n uint64) common.Address) []*types.Header {
	t.Helper()
	var (
		chain  []*types.Header
		parent = h.spec.GenesisHeader()
	)
	for number := uint64(1); number <= length; number++ {
		header := h.seal(t, h.header(number, parent), pickSigner(number))
		chain = append(chain, header)
		parent = header
	}
	return chain
}

func TestScoreChainSingleSigner(t *testing.T) {
	h := newDevHarness(t)

	// Six blocks all sealed by S0: only numbers 3 and 6 are its turn.
	chain := h.buildChain(t, 6, func(uint64) common.Address { return h.signers[0] })
	if score := h.engine.ScoreChain(chain); score != 2 {
		t.Errorf("score: have %d, want 2", score)
	}
}

func TestScoreChainRoundRobin(t *testing.T) {
	h := newDevHarness(t)

	chain := h.buildChain(t, 6, func(n uint64) common.Address {
		return h.signers[n%uint64(len(h.signers))]
	})
	if score := h.engine.ScoreChain(chain); score != 6 {
		t.Errorf("score: have %d, want 6", score)
	}
}

func TestCompareChainsPrefersInTurn(t *testing.T) {
	h := newDevHarness(t)

	fillIn := h.buildChain(t, 6, func(uint64) common.Address { return h.signers[0] })
	rotating := h.buildChain(t, 6, func(n uint64) common.Address {
		return h.signers[n%uint64(len(h.signers))]
	})

	if verdict := h.engine.CompareChains(rotating, fillIn); verdict != 1 {
		t.Errorf("compare(rotating, fillIn): have %d, want 1", verdict)
	}
	// Antisymmetry.
	if verdict := h.engine.CompareChains(fillIn, rotating); verdict != -1 {
		t.Errorf("compare(fillIn, rotating): have %d, want -1", verdict)
	}
	if verdict := h.engine.CompareChains(rotating, rotating); verdict != 0 {
		t.Errorf("compare(x, x): have %d, want 0", verdict)
	}
}

func TestCompareChainsLengthBreaksTies(t *testing.T) {
	h := newDevHarness(t)

	rotate := func(n uint64) common.Address { return h.signers[n%uint64(len(h.signers))] }
	// Equal scores are impossible with different all-in-turn lengths, so
	// compare two out-of-turn chains instead: both score zero.
	outOfTurn := func(n uint64) common.Address { return h.signers[(n+1)%uint64(len(h.signers))] }

	long := h.buildChain(t, 5, outOfTurn)
	short := h.buildChain(t, 3, outOfTurn)
	if verdict := h.engine.CompareChains(long, short); verdict != 1 {
		t.Errorf("compare(long, short): have %d, want 1", verdict)
	}

	// And fully rotated chains order by score, which tracks length.
	longer := h.buildChain(t, 6, rotate)
	shorter := h.buildChain(t, 4, rotate)
	if verdict := h.engine.CompareChains(longer, shorter); verdict != 1 {
		t.Errorf("compare(longer, shorter): have %d, want 1", verdict)
	}
}

func TestScoreChainMonotonic(t *testing.T) {
	h := newDevHarness(t)

	chain := h.buildChain(t, 9, func(n uint64) common.Address {
		return h.signers[n%uint64(len(h.signers))]
	})
	prev := uint64(0)
	for i := range chain {
		score := h.engine.ScoreChain(chain[:i+1])
		if score < prev {
			t.Fatalf("score decreased at %d: %d -> %d", i, prev, score)
		}
		prev = score
	}
}

func TestScoreChainEmpty(t *testing.T) {
	h := newDevHarness(t)
	if score := h.engine.ScoreChain(nil); score != 0 {
		t.Errorf("score of empty chain: have %d, want 0", score)
	}
}
