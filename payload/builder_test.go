package payload

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/meowchain/go-meowchain/chainspec"
	"github.com/meowchain/go-meowchain/consensus/poa"
	"github.com/meowchain/go-meowchain/contracts/meowchain"
	"github.com/meowchain/go-meowchain/onchain"
	"github.com/meowchain/go-meowchain/params"
	"github.com/meowchain/go-meowchain/signer"
)

// mockAssembler fabricates empty candidate blocks on top of args.Parent the
// way the host builder would: executed, rooted, unsealed, zero difficulty.
type mockAssembler struct {
	outcome  Outcome
	lastArgs *BuildArgs
}

func (a *mockAssembler) AssembleBlock(args *BuildArgs) (*Candidate, error) {
	a.lastArgs = args
	header := &types.Header{
		ParentHash: args.Parent.Hash(),
		UncleHash:  types.CalcUncleHash(nil),
		Number:     new(big.Int).Add(args.Parent.Number, common.Big1),
		GasLimit:   args.GasLimit,
		Time:       args.Timestamp,
		Difficulty: new(big.Int),
		BaseFee:    big.NewInt(1_000_000_000),
	}
	return &Candidate{
		Block:   types.NewBlockWithHeader(header),
		Fees:    new(big.Int),
		Outcome: a.outcome,
	}, nil
}

// genesisProvider serves storage readers over a swappable genesis alloc,
// standing in for the latest-state database.
type genesisProvider struct {
	genesis *core.Genesis
	err     error
}

func (p *genesisProvider) LatestReader() (onchain.StorageReader, error) {
	if p.err != nil {
		return nil, p.err
	}
	return onchain.NewGenesisReader(p.genesis), nil
}

type buildHarness struct {
	spec      *chainspec.Spec
	manager   *signer.Manager
	assembler *mockAssembler
	provider  *genesisProvider
	builder   *Builder
	signers   []common.Address
}

// newBuildHarness wires a builder over the dev chain with the given epoch
// length, holding the dev keys at indices keyIdx.
func newBuildHarness(t *testing.T, epoch uint64, keyIdx ...int) *buildHarness {
	t.Helper()

	cfg := meowchain.DevGenesisConfig()
	cfg.Epoch = epoch
	genesis, err := cfg.Build()
	require.NoError(t, err)
	spec, err := chainspec.New(genesis, &params.PoaConfig{Period: cfg.Period, Epoch: epoch})
	require.NoError(t, err)

	manager := signer.NewManager()
	for _, i := range keyIdx {
		_, err := manager.Add(meowchain.DevSignerKeys[i])
		require.NoError(t, err)
	}

	assembler := &mockAssembler{outcome: OutcomeBetter}
	provider := &genesisProvider{genesis: genesis}
	builder, err := NewBuilder(spec, manager, assembler, provider, onchain.NewHotStateCache(256), false)
	require.NoError(t, err)

	return &buildHarness{
		spec:      spec,
		manager:   manager,
		assembler: assembler,
		provider:  provider,
		builder:   builder,
		signers:   spec.Signers(),
	}
}

// args builds payload attributes on top of the block with the given parent
// header.
func (h *buildHarness) args(parent *types.Header) *BuildArgs {
	return &BuildArgs{
		Parent:    parent,
		Timestamp: parent.Time + h.spec.BlockPeriod(),
	}
}

func TestBuilderWarmUp(t *testing.T) {
	h := newBuildHarness(t, params.DefaultEpoch, 0, 1, 2)

	require.True(t, h.spec.HasLiveSigners(), "warm-up must seed the live signer list")
	require.EqualValues(t, 30_000_000, h.builder.GasLimit(), "warm-up must adopt the governance gas limit")
}

func TestBuilderWarmUpWithoutState(t *testing.T) {
	cfg := meowchain.DevGenesisConfig()
	genesis, err := cfg.Build()
	require.NoError(t, err)
	spec, err := chainspec.New(genesis, params.DefaultPoaConfig())
	require.NoError(t, err)

	_, err = NewBuilder(spec, signer.NewManager(), &mockAssembler{}, &genesisProvider{err: errors.New("no state")}, nil, false)
	require.NoError(t, err)
	require.False(t, spec.HasLiveSigners())
}

func TestTryBuildSealsInTurn(t *testing.T) {
	h := newBuildHarness(t, params.DefaultEpoch, 0, 1, 2)

	payload, err := h.builder.TryBuild(h.args(h.spec.GenesisHeader()))
	require.NoError(t, err)
	require.True(t, payload.Sealed)
	require.True(t, payload.InTurn)

	header := payload.Block.Header()
	require.Zero(t, header.Difficulty.Sign(), "sealed payload must carry zero difficulty")
	require.Len(t, header.Extra, params.MinExtraLength)

	sealer, err := poa.RecoverSigner(header)
	require.NoError(t, err)
	require.Equal(t, h.signers[1], sealer, "block 1 must be sealed by signers[1]")
	require.NotZero(t, payload.SignTime)
}

func TestTryBuildOutOfTurnFallback(t *testing.T) {
	h := newBuildHarness(t, params.DefaultEpoch, 0) // only S0's key held

	payload, err := h.builder.TryBuild(h.args(h.spec.GenesisHeader()))
	require.NoError(t, err)
	require.True(t, payload.Sealed)
	require.False(t, payload.InTurn)

	sealer, err := poa.RecoverSigner(payload.Block.Header())
	require.NoError(t, err)
	require.Equal(t, h.signers[0], sealer)
}

func TestTryBuildUnsignedWithoutKeys(t *testing.T) {
	h := newBuildHarness(t, params.DefaultEpoch) // no keys at all

	payload, err := h.builder.TryBuild(h.args(h.spec.GenesisHeader()))
	require.NoError(t, err)
	require.False(t, payload.Sealed, "a node without keys must not produce sealed blocks")
	require.Nil(t, payload.Block.Header().Extra)
}

func TestTryBuildDevModePassthrough(t *testing.T) {
	cfg := meowchain.DevGenesisConfig()
	genesis, err := cfg.Build()
	require.NoError(t, err)
	spec, err := chainspec.New(genesis, params.DefaultPoaConfig())
	require.NoError(t, err)

	assembler := &mockAssembler{outcome: OutcomeFreeze}
	builder, err := NewBuilder(spec, signer.NewManager(), assembler, &genesisProvider{genesis: genesis}, nil, true)
	require.NoError(t, err)

	payload, err := builder.TryBuild(&BuildArgs{Parent: spec.GenesisHeader(), Timestamp: 2})
	require.NoError(t, err)
	require.False(t, payload.Sealed)
	require.Equal(t, OutcomeFreeze, payload.Outcome)
}

func TestTryBuildAbortedPassthrough(t *testing.T) {
	h := newBuildHarness(t, params.DefaultEpoch, 0, 1, 2)
	h.assembler.outcome = OutcomeAborted

	payload, err := h.builder.TryBuild(h.args(h.spec.GenesisHeader()))
	require.NoError(t, err)
	require.False(t, payload.Sealed)
	require.Equal(t, OutcomeAborted, payload.Outcome)
}

func TestEpochRefreshUpdatesLiveSigners(t *testing.T) {
	const epoch = 4
	h := newBuildHarness(t, epoch, 0, 1, 2)

	// Governance rotates the registry order during the closing epoch.
	rotated := []common.Address{h.signers[2], h.signers[0], h.signers[1]}
	cfg := meowchain.DevGenesisConfig()
	cfg.Epoch = epoch
	cfg.Signers = rotated
	updated, err := cfg.Build()
	require.NoError(t, err)
	h.provider.genesis = updated

	// Build the chain up to the epoch block.
	parent := h.spec.GenesisHeader()
	for number := uint64(1); number <= epoch; number++ {
		payload, err := h.builder.TryBuild(h.args(parent))
		require.NoError(t, err)
		require.True(t, payload.Sealed)
		parent = payload.Block.Header()
	}

	// The epoch build must have re-read the registry through a cold cache.
	require.Equal(t, rotated, h.spec.EffectiveSigners())

	// The epoch block carries the checkpoint of the refreshed list.
	engine := poa.New(h.spec)
	checkpoint, err := engine.ExtractCheckpointSigners(parent)
	require.NoError(t, err)
	require.Equal(t, rotated, checkpoint)

	// And its sealer is judged against the refreshed rotation.
	sealer, err := poa.RecoverSigner(parent)
	require.NoError(t, err)
	require.True(t, h.spec.IsAuthorizedSigner(sealer))
}

func TestEpochRefreshKeepsListWhenRegistryUnreadable(t *testing.T) {
	const epoch = 2
	h := newBuildHarness(t, epoch, 0, 1, 2)
	before := h.spec.EffectiveSigners()

	// Simulate an unreadable registry at the epoch boundary.
	h.provider.err = errors.New("database closed")

	parent := h.spec.GenesisHeader()
	for number := uint64(1); number <= epoch; number++ {
		payload, err := h.builder.TryBuild(h.args(parent))
		require.NoError(t, err)
		parent = payload.Block.Header()
	}
	require.Equal(t, before, h.spec.EffectiveSigners(), "refresh failure must keep the previous list")
}

func TestBuildEmptyPayload(t *testing.T) {
	h := newBuildHarness(t, params.DefaultEpoch, 0, 1, 2)

	payload, err := h.builder.BuildEmptyPayload(h.args(h.spec.GenesisHeader()))
	require.NoError(t, err)
	require.True(t, payload.Sealed, "empty payloads follow the same signing path")
	require.True(t, h.assembler.lastArgs.NoTxs)
	require.Zero(t, len(payload.Block.Transactions()))
}

func TestGasLimitFlowsToAssembler(t *testing.T) {
	h := newBuildHarness(t, params.DefaultEpoch, 0, 1, 2)

	_, err := h.builder.TryBuild(h.args(h.spec.GenesisHeader()))
	require.NoError(t, err)
	require.EqualValues(t, 30_000_000, h.assembler.lastArgs.GasLimit)
}
