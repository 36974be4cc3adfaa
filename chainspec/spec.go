// Package chainspec carries the shared chain description: genesis, hardfork
// configuration, consensus parameters and the signer lists.
//
// One Spec is created at node start and every long-lived component holds the
// same pointer. The live signer list sits behind a reader-writer lock inside
// it; when the payload builder publishes a registry update, the consensus
// engine observes it on its next lookup with no message passing involved.
package chainspec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	ethparams "github.com/ethereum/go-ethereum/params"

	"github.com/meowchain/go-meowchain/contracts/meowchain"
	"github.com/meowchain/go-meowchain/params"
)

var (
	errMissingPoaConfig = errors.New("chain spec requires a poa config")
	errNoGenesisSigners = errors.New("genesis extra-data carries no signers")
)

// Spec bundles everything the consensus engine and the payload builder need
// to agree on: the genesis block, the hardfork table, the consensus timing
// parameters, the static signer list from genesis and the live signer list
// refreshed from the on-chain registry.
type Spec struct {
	chainConfig   *ethparams.ChainConfig
	poa           *params.PoaConfig
	genesis       *core.Genesis
	genesisBlock  *types.Block
	staticSigners []common.Address

	mu          sync.RWMutex
	liveSigners []common.Address // nil until the first successful registry read
}

// New builds a Spec from a genesis specification. The static signer list is
// parsed out of the genesis extra-data checkpoint.
func New(genesis *core.Genesis, poa *params.PoaConfig) (*Spec, error) {
	if poa == nil {
		return nil, errMissingPoaConfig
	}
	poa = poa.Copy()
	if poa.Epoch == 0 {
		poa.Epoch = params.DefaultEpoch
	}
	signers, err := parseCheckpointSigners(genesis.ExtraData)
	if err != nil {
		return nil, err
	}
	if len(signers) == 0 {
		return nil, errNoGenesisSigners
	}
	return &Spec{
		chainConfig:   genesis.Config,
		poa:           poa,
		genesis:       genesis,
		genesisBlock:  genesis.ToBlock(),
		staticSigners: signers,
	}, nil
}

// Dev returns the three-signer development chain spec.
func Dev() *Spec {
	genesis, err := meowchain.DevGenesisConfig().Build()
	if err != nil {
		panic(err)
	}
	spec, err := New(genesis, params.DefaultPoaConfig())
	if err != nil {
		panic(err)
	}
	return spec
}

// ChainConfig returns the go-ethereum hardfork configuration.
func (s *Spec) ChainConfig() *ethparams.ChainConfig {
	return s.chainConfig
}

// ChainID returns the chain identifier.
func (s *Spec) ChainID() uint64 {
	return s.chainConfig.ChainID.Uint64()
}

// Genesis returns the genesis specification.
func (s *Spec) Genesis() *core.Genesis {
	return s.genesis
}

// GenesisHeader returns the genesis block header.
func (s *Spec) GenesisHeader() *types.Header {
	return s.genesisBlock.Header()
}

// GenesisHash returns the genesis block hash.
func (s *Spec) GenesisHash() common.Hash {
	return s.genesisBlock.Hash()
}

// BlockPeriod returns the block interval in seconds.
func (s *Spec) BlockPeriod() uint64 {
	return s.poa.Period
}

// Epoch returns the number of blocks between signer checkpoints.
func (s *Spec) Epoch() uint64 {
	return s.poa.Epoch
}

// PoaConfig returns the consensus engine parameters.
func (s *Spec) PoaConfig() *params.PoaConfig {
	return s.poa
}

// Signers returns the static signer list from genesis.
func (s *Spec) Signers() []common.Address {
	out := make([]common.Address, len(s.staticSigners))
	copy(out, s.staticSigners)
	return out
}

// EffectiveSigners returns the list every authority decision consults: the
// live on-chain list when one has been read, else the genesis list.
func (s *Spec) EffectiveSigners() []common.Address {
	s.mu.RLock()
	live := s.liveSigners
	s.mu.RUnlock()

	src := s.staticSigners
	if live != nil {
		src = live
	}
	out := make([]common.Address, len(src))
	copy(out, src)
	return out
}

// HasLiveSigners reports whether the live list has been populated.
func (s *Spec) HasLiveSigners() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveSigners != nil
}

// UpdateLiveSigners publishes a new signer list read from the on-chain
// registry. Every holder of this Spec observes the new list on its next
// EffectiveSigners call.
func (s *Spec) UpdateLiveSigners(signers []common.Address) {
	cpy := make([]common.Address, len(signers))
	copy(cpy, signers)

	s.mu.Lock()
	s.liveSigners = cpy
	s.mu.Unlock()
}

// IsAuthorizedSigner reports membership in the effective signer list.
func (s *Spec) IsAuthorizedSigner(address common.Address) bool {
	for _, signer := range s.EffectiveSigners() {
		if signer == address {
			return true
		}
	}
	return false
}

// ExpectedSigner returns the in-turn signer for the given block number under
// round-robin rotation, or false when the effective list is empty.
func (s *Spec) ExpectedSigner(number uint64) (common.Address, bool) {
	signers := s.EffectiveSigners()
	if len(signers) == 0 {
		return common.Address{}, false
	}
	return signers[number%uint64(len(signers))], true
}

// IsEpochBlock reports whether the given number is a signer checkpoint. The
// genesis block is excluded: it carries the initial list but is never
// produced.
func (s *Spec) IsEpochBlock(number uint64) bool {
	return number > 0 && number%s.poa.Epoch == 0
}

// parseCheckpointSigners extracts the signer addresses embedded between the
// vanity prefix and the seal suffix of a checkpoint extra-data.
func parseCheckpointSigners(extra []byte) ([]common.Address, error) {
	if len(extra) < params.MinExtraLength {
		return nil, fmt.Errorf("checkpoint extra-data too short: %d bytes", len(extra))
	}
	body := extra[params.ExtraVanity : len(extra)-params.ExtraSeal]
	if len(body)%common.AddressLength != 0 {
		return nil, fmt.Errorf("checkpoint signer list not a multiple of %d bytes", common.AddressLength)
	}
	signers := make([]common.Address, len(body)/common.AddressLength)
	for i := range signers {
		copy(signers[i][:], body[i*common.AddressLength:])
	}
	return signers, nil
}
