// Package payload wraps the host's Ethereum payload builder with the
// proof-of-authority post-processing: governance-driven gas limits, live
// signer refresh at epoch boundaries, zero-difficulty header rewrite and
// ECDSA sealing.
package payload

import (
	"errors"
	"math/big"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/beacon/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/meowchain/go-meowchain/chainspec"
	"github.com/meowchain/go-meowchain/consensus/poa"
	"github.com/meowchain/go-meowchain/contracts/meowchain"
	"github.com/meowchain/go-meowchain/onchain"
	"github.com/meowchain/go-meowchain/params"
	"github.com/meowchain/go-meowchain/signer"
)

var (
	buildTimer          = metrics.NewRegisteredTimer("meow/payload/build", nil)
	signTimer           = metrics.NewRegisteredTimer("meow/payload/sign", nil)
	refreshCounter      = metrics.NewRegisteredCounter("meow/payload/refresh", nil)
	unsignedBuildMeter  = metrics.NewRegisteredMeter("meow/payload/unsigned", nil)
	outOfTurnBuildMeter = metrics.NewRegisteredMeter("meow/payload/outofturn", nil)
)

var errNoAssembler = errors.New("payload builder requires a block assembler")

// Outcome classifies a build attempt the way the host expects: whether the
// candidate improves on earlier ones for the same payload id, finalizes it,
// or was abandoned mid-build.
type Outcome int

const (
	OutcomeBetter Outcome = iota
	OutcomeFreeze
	OutcomeAborted
)

// String implements the stringer interface.
func (o Outcome) String() string {
	switch o {
	case OutcomeBetter:
		return "better"
	case OutcomeFreeze:
		return "freeze"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// BuildArgs describes one payload request from the host.
type BuildArgs struct {
	Parent       *types.Header
	Timestamp    uint64
	FeeRecipient common.Address
	Random       common.Hash
	Withdrawals  types.Withdrawals
	BeaconRoot   *common.Hash
	ID           engine.PayloadID

	// GasLimit is filled in by the builder from the on-chain ChainConfig
	// before the host assembles.
	GasLimit uint64

	// NoTxs requests an empty payload.
	NoTxs bool
}

// Candidate is the host assembler's output: an executed, root-computed but
// unsealed block.
type Candidate struct {
	Block    *types.Block
	Fees     *big.Int
	Receipts types.Receipts
	Outcome  Outcome
}

// BlockAssembler is the host's Ethereum payload builder: it selects
// transactions from the pool, runs the EVM and computes the roots.
type BlockAssembler interface {
	AssembleBlock(args *BuildArgs) (*Candidate, error)
}

// StateProvider hands out storage readers over the latest state, used for
// the governance reads between builds.
type StateProvider interface {
	LatestReader() (onchain.StorageReader, error)
}

// BuiltPayload is the sealed result, wrapping the original payload id and
// fees.
type BuiltPayload struct {
	ID       engine.PayloadID
	Block    *types.Block
	Fees     *big.Int
	Receipts types.Receipts
	Outcome  Outcome

	// Sealed reports whether the block carries a valid seal. An unsealed
	// payload is returned when this node holds no authorized key; consensus
	// will reject it downstream, which is the correct outcome.
	Sealed bool
	InTurn bool

	BuildTime time.Duration
	SignTime  time.Duration
}

// Builder is the proof-of-authority payload builder.
type Builder struct {
	spec      *chainspec.Spec
	manager   *signer.Manager
	assembler BlockAssembler
	states    StateProvider
	cache     *onchain.HotStateCache

	devMode  bool
	gasLimit uint64
	vanity   [params.ExtraVanity]byte
}

// NewBuilder wires the builder and warms the hot cache: the ChainConfig gas
// limit overrides the host's default, and a non-empty SignerRegistry seeds
// the live signer list so consensus starts from the governance view rather
// than the genesis one.
func NewBuilder(spec *chainspec.Spec, manager *signer.Manager, assembler BlockAssembler, states StateProvider, cache *onchain.HotStateCache, devMode bool) (*Builder, error) {
	if assembler == nil {
		return nil, errNoAssembler
	}
	if cache == nil {
		cache = onchain.NewHotStateCache(onchain.DefaultCacheEntries)
	}
	b := &Builder{
		spec:      spec,
		manager:   manager,
		assembler: assembler,
		states:    states,
		cache:     cache,
		devMode:   devMode,
		gasLimit:  spec.Genesis().GasLimit,
	}

	if reader, err := b.cachedReader(); err == nil {
		if gasLimit, ok := onchain.ReadGasLimit(reader); ok {
			b.gasLimit = gasLimit
		}
		if list := onchain.ReadSignerList(reader); list != nil && len(list.Signers) > 0 {
			spec.UpdateLiveSigners(list.Signers)
			log.Info("Seeded live signers from registry", "signers", len(list.Signers), "threshold", list.Threshold)
		}
	} else {
		log.Warn("Governance warm-up skipped", "err", err)
	}
	return b, nil
}

// GasLimit returns the block gas limit currently enforced by governance.
func (b *Builder) GasLimit() uint64 {
	return b.gasLimit
}

// Cache returns the shared hot state cache.
func (b *Builder) Cache() *onchain.HotStateCache {
	return b.cache
}

// SetVanity sets the opaque 32-byte extra-data prefix of produced blocks.
func (b *Builder) SetVanity(vanity [params.ExtraVanity]byte) {
	b.vanity = vanity
}

// TryBuild assembles one candidate block via the host and post-processes it
// into a sealed proof-of-authority payload. Aborted candidates are returned
// untouched.
func (b *Builder) TryBuild(args *BuildArgs) (*BuiltPayload, error) {
	args.GasLimit = b.gasLimit

	start := time.Now()
	candidate, err := b.assembler.AssembleBlock(args)
	if err != nil {
		return nil, err
	}
	buildTime := time.Since(start)
	buildTimer.Update(buildTime)

	payload := &BuiltPayload{
		ID:        args.ID,
		Block:     candidate.Block,
		Fees:      candidate.Fees,
		Receipts:  candidate.Receipts,
		Outcome:   candidate.Outcome,
		BuildTime: buildTime,
	}
	if candidate.Outcome == OutcomeAborted || b.devMode {
		return payload, nil
	}
	return b.seal(payload)
}

// BuildEmptyPayload assembles and seals a transaction-less payload.
// Empty builds follow the same signing path as full ones.
func (b *Builder) BuildEmptyPayload(args *BuildArgs) (*BuiltPayload, error) {
	empty := *args
	empty.NoTxs = true
	return b.TryBuild(&empty)
}

// seal rewrites the candidate header into its proof-of-authority form and
// signs it. The epoch refresh must precede the in-turn lookup so the turn is
// computed against the registry state this very block activates.
func (b *Builder) seal(payload *BuiltPayload) (*BuiltPayload, error) {
	number := payload.Block.NumberU64()

	if b.spec.IsEpochBlock(number) {
		b.refreshSigners(number)
	}

	signers := b.spec.EffectiveSigners()
	if len(signers) == 0 {
		unsignedBuildMeter.Mark(1)
		log.Warn("No effective signers, returning unsigned payload", "number", number)
		return payload, nil
	}

	signAddr, inTurn, ok := b.selectSigner(number, signers)
	if !ok {
		// A node without keys must not produce blocks; the unsigned
		// candidate is rejected by downstream consensus.
		unsignedBuildMeter.Mark(1)
		log.Warn("No authorized signer key held, returning unsigned payload", "number", number)
		return payload, nil
	}
	if !inTurn {
		outOfTurnBuildMeter.Mark(1)
	}

	header := types.CopyHeader(payload.Block.Header())
	header.Difficulty = new(big.Int)
	header.Extra = b.buildExtra(number)

	start := time.Now()
	sealed, err := poa.SealHeader(header, signAddr, b.manager)
	if err != nil {
		return nil, err
	}
	payload.SignTime = time.Since(start)
	signTimer.Update(payload.SignTime)

	// Same body, rewritten and sealed header.
	payload.Block = payload.Block.WithSeal(sealed)
	payload.Sealed = true
	payload.InTurn = inTurn

	log.Debug("Sealed payload", "number", number, "hash", payload.Block.Hash(),
		"signer", signAddr, "inturn", inTurn, "build", payload.BuildTime, "sign", payload.SignTime)
	return payload, nil
}

// selectSigner picks the in-turn signer when its key is held, else any
// authorized signer whose key is held.
func (b *Builder) selectSigner(number uint64, signers []common.Address) (common.Address, bool, bool) {
	held := mapset.NewThreadUnsafeSet(b.manager.Addresses()...)

	if expected, ok := b.spec.ExpectedSigner(number); ok && held.Contains(expected) {
		return expected, true, true
	}
	for _, addr := range signers {
		if held.Contains(addr) {
			return addr, false, true
		}
	}
	return common.Address{}, false, false
}

// buildExtra assembles vanity ‖ optional epoch checkpoint ‖ zeroed seal.
// The trailing 65 bytes are a placeholder the sealer overwrites.
func (b *Builder) buildExtra(number uint64) []byte {
	extra := make([]byte, 0, params.MinExtraLength)
	extra = append(extra, b.vanity[:]...)
	if b.spec.IsEpochBlock(number) {
		for _, addr := range b.spec.EffectiveSigners() {
			extra = append(extra, addr[:]...)
		}
	}
	return append(extra, make([]byte, params.ExtraSeal)...)
}

// refreshSigners invalidates the registry's cache entries and re-reads the
// signer list from the latest state. Without the invalidation a stale cached
// length would silently ignore on-chain additions from the closing epoch.
func (b *Builder) refreshSigners(number uint64) {
	b.cache.InvalidateAddress(meowchain.SignerRegistryAddress)
	refreshCounter.Inc(1)

	reader, err := b.cachedReader()
	if err != nil {
		log.Error("Failed to open state for signer refresh", "number", number, "err", err)
		return
	}
	list := onchain.ReadSignerList(reader)
	if list == nil {
		log.Error("Signer registry unreadable at epoch", "number", number)
		return
	}
	if len(list.Signers) == 0 {
		log.Warn("Signer registry empty at epoch, keeping previous list", "number", number)
		return
	}
	b.spec.UpdateLiveSigners(list.Signers)
	log.Info("Refreshed live signers at epoch", "number", number, "signers", len(list.Signers), "threshold", list.Threshold)

	if gasLimit, ok := onchain.ReadGasLimit(reader); ok && gasLimit != b.gasLimit {
		log.Info("Governance gas limit changed", "old", b.gasLimit, "new", gasLimit)
		b.gasLimit = gasLimit
	}
}

func (b *Builder) cachedReader() (onchain.StorageReader, error) {
	if b.states == nil {
		return nil, errors.New("no state provider")
	}
	reader, err := b.states.LatestReader()
	if err != nil {
		return nil, err
	}
	return onchain.NewCachedReader(reader, b.cache), nil
}
