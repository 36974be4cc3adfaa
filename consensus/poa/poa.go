// Package poa implements the Meowchain proof-of-authority consensus engine.
//
// A fixed set of authorized signers take turns producing blocks in
// round-robin order. Authority is proven by an ECDSA seal over the header in
// the trailing 65 bytes of extra-data; difficulty is always zero and fork
// choice is decided by counting in-turn seals instead. The signer set is
// governed on-chain: the payload builder refreshes it from the
// SignerRegistry contract at epoch boundaries and publishes it through the
// shared chain spec, where this engine picks it up on the next lookup.
package poa

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	ethparams "github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/trie"
	lru "github.com/hashicorp/golang-lru"

	"github.com/meowchain/go-meowchain/chainspec"
	"github.com/meowchain/go-meowchain/contracts/meowchain"
	"github.com/meowchain/go-meowchain/params"
	"github.com/meowchain/go-meowchain/signer"
)

const (
	inmemorySignatures = 4096 // Number of recent block signatures to keep in memory

	wiggleTime = 500 * time.Millisecond // Random delay (per signer) to allow concurrent signers
)

// MimetypeMeow identifies header-seal signing requests towards wallets.
const MimetypeMeow = "application/x-meowchain-header"

var uncleHash = types.CalcUncleHash(nil) // Always Keccak256(RLP([])) as uncles are meaningless outside of PoW.

// SignerFn hashes and signs the data to be signed by a backing account.
type SignerFn func(signer accounts.Account, mimeType string, message []byte) ([]byte, error)

// ReceiptValidation carries a precomputed receipts commitment so
// post-execution validation can compare without re-deriving it.
type ReceiptValidation struct {
	ReceiptsRoot common.Hash
	LogsBloom    types.Bloom
}

// Poa is the proof-of-authority consensus engine.
type Poa struct {
	spec *chainspec.Spec

	signatures *lru.ARCCache // Signatures of recent blocks to speed up validation

	signer common.Address // Ethereum address of the signing key
	signFn SignerFn       // Signer function to authorize hashes with
	lock   sync.RWMutex   // Protects the signer fields

	// devMode disables the signature and extra-data length checks so local
	// development can run against unsigned blocks. Never enabled on a
	// production peer.
	devMode bool
}

// New creates a Meowchain proof-of-authority consensus engine backed by the
// shared chain spec.
func New(spec *chainspec.Spec) *Poa {
	signatures, _ := lru.NewARC(inmemorySignatures)
	return &Poa{
		spec:       spec,
		signatures: signatures,
	}
}

// NewDev creates the engine with the production checks relaxed for local
// development against unsigned blocks.
func NewDev(spec *chainspec.Spec) *Poa {
	engine := New(spec)
	engine.devMode = true
	return engine
}

// DevMode reports whether the relaxed development checks are active.
func (p *Poa) DevMode() bool {
	return p.devMode
}

// ChainSpec returns the shared chain spec this engine consults.
func (p *Poa) ChainSpec() *chainspec.Spec {
	return p.spec
}

// Author implements consensus.Engine, returning the address recovered from
// the seal in the header's extra-data section.
func (p *Poa) Author(header *types.Header) (common.Address, error) {
	return ecrecover(header, p.signatures)
}

// ValidateHeader checks a single header in isolation: zero difficulty, seal
// presence, seal recovery and signer authorization. In dev mode only the
// zero-difficulty rule is enforced.
func (p *Poa) ValidateHeader(header *types.Header) error {
	if err := p.validateDifficulty(header); err != nil {
		return err
	}
	if p.devMode {
		return nil
	}
	if len(header.Extra) < params.MinExtraLength {
		return fmt.Errorf("%w: %d bytes", ErrExtraDataTooShort, len(header.Extra))
	}
	sealer, err := ecrecover(header, p.signatures)
	if err != nil {
		return err
	}
	if !p.spec.IsAuthorizedSigner(sealer) {
		return fmt.Errorf("%w: %s", ErrUnauthorizedSigner, sealer)
	}
	return nil
}

// ValidateHeaderAgainstParent checks the fields linking a child to its
// parent: number, hash, timestamp spacing and gas-limit drift.
func (p *Poa) ValidateHeaderAgainstParent(child, parent *types.Header) error {
	if child.Number.Uint64() != parent.Number.Uint64()+1 {
		return fmt.Errorf("%w: parent %d, child %d", ErrParentNumberMismatch, parent.Number, child.Number)
	}
	if child.ParentHash != parent.Hash() {
		return fmt.Errorf("%w: have %s, want %s", ErrParentHashMismatch, child.ParentHash, parent.Hash())
	}
	if child.Time < parent.Time+p.spec.BlockPeriod() {
		return fmt.Errorf("%w: parent %d, child %d, period %d", ErrTimestampTooEarly, parent.Time, child.Time, p.spec.BlockPeriod())
	}
	drift := parent.GasLimit / params.GasLimitBoundDivisor
	if child.GasLimit > parent.GasLimit+drift {
		return fmt.Errorf("%w: have %d, max %d", ErrGasLimitIncrease, child.GasLimit, parent.GasLimit+drift)
	}
	if child.GasLimit+drift < parent.GasLimit {
		return fmt.Errorf("%w: have %d, min %d", ErrGasLimitDecrease, child.GasLimit, parent.GasLimit-drift)
	}
	return nil
}

// ValidateBodyAgainstHeader checks that a block body matches the
// commitments in its header.
func (p *Poa) ValidateBodyAgainstHeader(body *types.Body, header *types.Header) error {
	if hash := types.CalcUncleHash(body.Uncles); hash != header.UncleHash {
		return errInvalidUncleHash
	}
	if hash := types.DeriveSha(types.Transactions(body.Transactions), trie.NewStackTrie(nil)); hash != header.TxHash {
		return fmt.Errorf("transaction root mismatch: have %s, want %s", hash, header.TxHash)
	}
	if header.WithdrawalsHash != nil {
		if body.Withdrawals == nil {
			return errors.New("missing withdrawals in block body")
		}
		if hash := types.DeriveSha(types.Withdrawals(body.Withdrawals), trie.NewStackTrie(nil)); hash != *header.WithdrawalsHash {
			return fmt.Errorf("withdrawals root mismatch: have %s, want %s", hash, *header.WithdrawalsHash)
		}
	} else if body.Withdrawals != nil {
		return errors.New("unexpected withdrawals in block body")
	}
	return nil
}

// ValidateBlockPreExecution runs the checks possible before the EVM touches
// the block.
func (p *Poa) ValidateBlockPreExecution(block *types.Block) error {
	if !p.devMode && len(block.Extra()) < params.MinExtraLength {
		return fmt.Errorf("%w: %d bytes", ErrExtraDataTooShort, len(block.Extra()))
	}
	if block.GasUsed() > block.GasLimit() {
		return fmt.Errorf("%w: used %d, limit %d", ErrGasUsedExceedsLimit, block.GasUsed(), block.GasLimit())
	}
	return nil
}

// ValidateBlockPostExecution compares the execution outcome against the
// header commitments. When a precomputed receipts root and bloom are
// supplied they are compared directly; otherwise both are derived from the
// receipts.
func (p *Poa) ValidateBlockPostExecution(block *types.Block, receipts types.Receipts, gasUsed uint64, precomputed *ReceiptValidation) error {
	header := block.Header()
	if gasUsed != header.GasUsed {
		return fmt.Errorf("%w: executed %d, header %d", ErrBlockGasUsedMismatch, gasUsed, header.GasUsed)
	}
	receiptsRoot := common.Hash{}
	logsBloom := types.Bloom{}
	if precomputed != nil {
		receiptsRoot, logsBloom = precomputed.ReceiptsRoot, precomputed.LogsBloom
	} else {
		receiptsRoot = types.DeriveSha(receipts, trie.NewStackTrie(nil))
		logsBloom = types.CreateBloom(receipts)
	}
	if receiptsRoot != header.ReceiptHash {
		return fmt.Errorf("%w: have %s, want %s", ErrReceiptRootMismatch, receiptsRoot, header.ReceiptHash)
	}
	if logsBloom != header.Bloom {
		return fmt.Errorf("%w: have %x, want %x", ErrLogsBloomMismatch, logsBloom.Bytes()[:8], header.Bloom.Bytes()[:8])
	}
	return nil
}

// ExtractCheckpointSigners parses the ordered signer list out of an epoch
// block's extra-data.
func (p *Poa) ExtractCheckpointSigners(header *types.Header) ([]common.Address, error) {
	if len(header.Extra) < params.MinExtraLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrExtraDataTooShort, len(header.Extra))
	}
	body := header.Extra[params.ExtraVanity : len(header.Extra)-params.ExtraSeal]
	if len(body)%common.AddressLength != 0 {
		return nil, fmt.Errorf("%w: %d byte body", ErrInvalidSignerList, len(body))
	}
	signers := make([]common.Address, len(body)/common.AddressLength)
	for i := range signers {
		copy(signers[i][:], body[i*common.AddressLength:])
	}
	return signers, nil
}

// validateDifficulty enforces the zero-difficulty rule. The engine-API
// execution payload format has no difficulty field, so every block carries
// zero; authority is proven by the seal alone.
func (p *Poa) validateDifficulty(header *types.Header) error {
	if header.Difficulty == nil || header.Difficulty.Sign() != 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDifficulty, header.Difficulty)
	}
	return nil
}

// VerifyHeader checks whether a header conforms to the consensus rules.
func (p *Poa) VerifyHeader(chain consensus.ChainHeaderReader, header *types.Header) error {
	return p.verifyHeader(chain, header, nil)
}

// VerifyHeaders is similar to VerifyHeader, but verifies a batch of headers.
// The method returns a quit channel to abort the operations and a results
// channel to retrieve the async verifications (the order is that of the
// input slice).
func (p *Poa) VerifyHeaders(chain consensus.ChainHeaderReader, headers []*types.Header) (chan<- struct{}, <-chan error) {
	abort := make(chan struct{})
	results := make(chan error, len(headers))

	go func() {
		for i, header := range headers {
			err := p.verifyHeader(chain, header, headers[:i])

			select {
			case <-abort:
				return
			case results <- err:
			}
		}
	}()
	return abort, results
}

// verifyHeader checks whether a header conforms to the consensus rules. The
// caller may optionally pass in a batch of parents (ascending order) to
// avoid looking those up from the database.
func (p *Poa) verifyHeader(chain consensus.ChainHeaderReader, header *types.Header, parents []*types.Header) error {
	if header.Number == nil {
		return errUnknownBlock
	}
	number := header.Number.Uint64()

	// Don't waste time checking blocks from the future
	if header.Time > uint64(time.Now().Unix()) {
		return consensus.ErrFutureBlock
	}
	if err := p.ValidateHeader(header); err != nil {
		return err
	}
	// Ensure that the extra-data contains a signer list on epoch blocks, but
	// none otherwise
	if !p.devMode && number > 0 {
		signersBytes := len(header.Extra) - params.ExtraVanity - params.ExtraSeal
		if !p.spec.IsEpochBlock(number) && signersBytes != 0 {
			return errExtraSigners
		}
		if p.spec.IsEpochBlock(number) && signersBytes%common.AddressLength != 0 {
			return fmt.Errorf("%w: %d byte body", ErrInvalidSignerList, signersBytes)
		}
	}
	// Ensure that the mix digest is zero as we don't have fork protection
	if header.MixDigest != (common.Hash{}) {
		return errInvalidMixDigest
	}
	// Ensure that the block doesn't contain any uncles which are meaningless in PoA
	if header.UncleHash != uncleHash {
		return errInvalidUncleHash
	}
	// Verify that the gas limit is <= 2^63-1
	if header.GasLimit > ethparams.MaxGasLimit {
		return fmt.Errorf("invalid gasLimit: have %v, max %v", header.GasLimit, ethparams.MaxGasLimit)
	}
	if header.GasUsed > header.GasLimit {
		return fmt.Errorf("%w: used %d, limit %d", ErrGasUsedExceedsLimit, header.GasUsed, header.GasLimit)
	}
	// All basic checks passed, verify cascading fields
	return p.verifyCascadingFields(chain, header, parents)
}

// verifyCascadingFields verifies all the header fields that are not
// standalone, rather depend on a batch of previous headers.
func (p *Poa) verifyCascadingFields(chain consensus.ChainHeaderReader, header *types.Header, parents []*types.Header) error {
	number := header.Number.Uint64()
	if number == 0 {
		// The genesis block is the always valid dead-end
		return nil
	}
	var parent *types.Header
	if len(parents) > 0 {
		parent = parents[len(parents)-1]
	} else {
		parent = chain.GetHeader(header.ParentHash, number-1)
	}
	if parent == nil || parent.Number.Uint64() != number-1 || parent.Hash() != header.ParentHash {
		return consensus.ErrUnknownAncestor
	}
	return p.ValidateHeaderAgainstParent(header, parent)
}

// VerifyUncles implements consensus.Engine, always returning an error for
// any uncles as this consensus mechanism doesn't permit uncles.
func (p *Poa) VerifyUncles(chain consensus.ChainReader, block *types.Block) error {
	if len(block.Uncles()) > 0 {
		return errors.New("uncles not allowed")
	}
	return nil
}

// Prepare implements consensus.Engine, preparing all the consensus fields of
// the header for running the transactions on top.
func (p *Poa) Prepare(chain consensus.ChainHeaderReader, header *types.Header) error {
	number := header.Number.Uint64()

	header.Coinbase = meowchain.MinerProxyAddress
	header.Nonce = types.BlockNonce{}
	header.MixDigest = common.Hash{}
	header.Difficulty = new(big.Int)

	// Ensure the extra data has all its components
	if len(header.Extra) < params.ExtraVanity {
		header.Extra = append(header.Extra, bytes.Repeat([]byte{0x00}, params.ExtraVanity-len(header.Extra))...)
	}
	header.Extra = header.Extra[:params.ExtraVanity]
	if p.spec.IsEpochBlock(number) {
		for _, addr := range p.spec.EffectiveSigners() {
			header.Extra = append(header.Extra, addr[:]...)
		}
	}
	header.Extra = append(header.Extra, make([]byte, params.ExtraSeal)...)

	// Ensure the timestamp has the correct delay
	parent := chain.GetHeader(header.ParentHash, number-1)
	if parent == nil {
		return consensus.ErrUnknownAncestor
	}
	header.Time = parent.Time + p.spec.BlockPeriod()
	if header.Time < uint64(time.Now().Unix()) {
		header.Time = uint64(time.Now().Unix())
	}
	return nil
}

// Finalize implements consensus.Engine. There are no block rewards in
// proof-of-authority; fees accrue to the miner proxy coinbase during
// execution, so the state is left as is.
func (p *Poa) Finalize(chain consensus.ChainHeaderReader, header *types.Header, state *state.StateDB, body *types.Body) {
}

// FinalizeAndAssemble implements consensus.Engine, computing the final state
// root and assembling the block.
func (p *Poa) FinalizeAndAssemble(chain consensus.ChainHeaderReader, header *types.Header, state *state.StateDB, body *types.Body, receipts []*types.Receipt) (*types.Block, error) {
	if len(body.Withdrawals) > 0 {
		return nil, errors.New("meowchain does not support withdrawals")
	}
	p.Finalize(chain, header, state, body)

	header.Root = state.IntermediateRoot(chain.Config().IsEIP158(header.Number))
	header.UncleHash = uncleHash
	return types.NewBlock(header, body, receipts, trie.NewStackTrie(nil)), nil
}

// Authorize injects a private key into the consensus engine to mint new
// blocks with.
func (p *Poa) Authorize(signerAddr common.Address, signFn SignerFn) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.signer = signerAddr
	p.signFn = signFn
}

// AuthorizeManager wires a signer.Manager-held key into the engine.
func (p *Poa) AuthorizeManager(signerAddr common.Address, manager *signer.Manager) {
	p.Authorize(signerAddr, func(account accounts.Account, _ string, message []byte) ([]byte, error) {
		return manager.SignHash(account.Address, crypto.Keccak256Hash(message))
	})
}

// Seal implements consensus.Engine, attempting to create a sealed block
// using the local signing credentials.
func (p *Poa) Seal(chain consensus.ChainHeaderReader, block *types.Block, results chan<- *types.Block, stop <-chan struct{}) error {
	header := block.Header()

	// Sealing the genesis block is not supported
	number := header.Number.Uint64()
	if number == 0 {
		return errUnknownBlock
	}
	// For 0-period chains, refuse to seal empty blocks (no reward but would spin sealing)
	if p.spec.BlockPeriod() == 0 && len(block.Transactions()) == 0 {
		return errors.New("sealing paused while waiting for transactions")
	}
	// Don't hold the signer fields for the entire sealing procedure
	p.lock.RLock()
	signerAddr, signFn := p.signer, p.signFn
	p.lock.RUnlock()

	// Bail out if we're unauthorized to sign a block
	if !p.spec.IsAuthorizedSigner(signerAddr) {
		return fmt.Errorf("%w: %s", ErrUnauthorizedSigner, signerAddr)
	}

	// Sweet, the protocol permits us to sign the block, wait for our time
	delay := time.Until(time.Unix(int64(header.Time), 0))
	if expected, ok := p.spec.ExpectedSigner(number); ok && expected != signerAddr {
		// It's not our turn explicitly to sign, delay it a bit
		wiggle := time.Duration(len(p.spec.EffectiveSigners())/2+1) * wiggleTime
		delay += time.Duration(rand.Int63n(int64(wiggle)))
		log.Trace("Out-of-turn signing requested", "wiggle", common.PrettyDuration(wiggle))
	}
	// Sign all the things!
	sighash, err := signFn(accounts.Account{Address: signerAddr}, MimetypeMeow, MeowRLP(header))
	if err != nil {
		return err
	}
	copy(header.Extra[len(header.Extra)-params.ExtraSeal:], sighash)
	// Wait until sealing is terminated or delay timeout.
	log.Trace("Waiting for slot to sign and propagate", "delay", common.PrettyDuration(delay))
	go func() {
		select {
		case <-stop:
			return
		case <-time.After(delay):
		}

		select {
		case results <- block.WithSeal(header):
		default:
			log.Warn("Sealing result is not read by miner", "sealhash", SealHash(header))
		}
	}()

	return nil
}

// CalcDifficulty implements consensus.Engine. Every Meowchain block carries
// zero difficulty; fork choice counts in-turn seals instead.
func (p *Poa) CalcDifficulty(chain consensus.ChainHeaderReader, time uint64, parent *types.Header) *big.Int {
	return new(big.Int)
}

// SealHash returns the hash of a block prior to it being sealed.
func (p *Poa) SealHash(header *types.Header) common.Hash {
	return SealHash(header)
}

// Close implements consensus.Engine. It's a noop as there are no background
// threads.
func (p *Poa) Close() error {
	return nil
}

// APIs implements consensus.Engine, returning the user facing RPC API.
func (p *Poa) APIs(chain consensus.ChainHeaderReader) []rpc.API {
	return []rpc.API{{
		Namespace: "poa",
		Service:   &API{chain: chain, poa: p},
	}}
}
