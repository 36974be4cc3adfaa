// Package engineapi bridges proof-of-authority blocks through the
// engine-API execution payload format.
//
// The standard payload decoder rejects extra-data longer than 32 bytes,
// while sealed Meowchain headers carry 97 or more. The validator moves the
// extra-data aside, decodes through the host path, restores it into the
// resulting header and re-derives the block hash, keeping the engine-API
// integration surface identical to Ethereum.
package engineapi

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/beacon/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/metrics"
)

// ErrBlockHashMismatch is returned when the hash recomputed after restoring
// extra-data differs from the hash the payload claims. The claimed hash
// stays authoritative: a client mis-identifying its own payload gets the
// error back instead of a silently re-labelled block.
var ErrBlockHashMismatch = errors.New("payload block hash mismatch")

var convertedPayloadMeter = metrics.NewRegisteredMeter("meow/engineapi/converted", nil)

// PayloadValidator converts execution payloads into sealed blocks while
// admitting proof-of-authority extra-data.
type PayloadValidator struct{}

// NewPayloadValidator creates the validator.
func NewPayloadValidator() *PayloadValidator {
	return &PayloadValidator{}
}

// ConvertPayloadToBlock turns an execution payload into a sealed block.
//
// The payload's extra-data is temporarily emptied so the strict host decoder
// accepts it, then restored into the decoded header before the block hash is
// recomputed and compared against the claimed one.
func (v *PayloadValidator) ConvertPayloadToBlock(data engine.ExecutableData, versionedHashes []common.Hash, beaconRoot *common.Hash) (*types.Block, error) {
	claimed := data.BlockHash
	extra := data.ExtraData
	data.ExtraData = nil

	block, err := engine.ExecutableDataToBlockNoHash(data, versionedHashes, beaconRoot)
	if err != nil {
		return nil, err
	}

	header := block.Header()
	header.Extra = extra
	sealed := block.WithSeal(header)

	if sealed.Hash() != claimed {
		return nil, fmt.Errorf("%w: computed %s, claimed %s", ErrBlockHashMismatch, sealed.Hash(), claimed)
	}
	convertedPayloadMeter.Mark(1)
	return sealed, nil
}

// BlockToPayload converts a sealed block back into an execution payload
// envelope for the engine-API response path. Oversized extra-data passes
// through untouched; it is the counterparty's validator that strips it.
func (v *PayloadValidator) BlockToPayload(block *types.Block, fees *big.Int) *engine.ExecutionPayloadEnvelope {
	return engine.BlockToExecutableData(block, fees, nil)
}
