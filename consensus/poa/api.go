package poa

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus"
	"github.com/ethereum/go-ethereum/rpc"
)

// statusBlocks is how far Status looks back when sampling sealer activity.
const statusBlocks = 64

// API is a user facing RPC API to inspect the signer rotation.
type API struct {
	chain consensus.ChainHeaderReader
	poa   *Poa
}

// GetSigners returns the checkpoint signer list carried by the given block
// when it is an epoch block; for any other block number, or nil, it returns
// the current effective signer list.
func (api *API) GetSigners(number *rpc.BlockNumber) ([]common.Address, error) {
	if number != nil && *number != rpc.LatestBlockNumber {
		header := api.chain.GetHeaderByNumber(uint64(number.Int64()))
		if header == nil {
			return nil, errUnknownBlock
		}
		if api.poa.spec.IsEpochBlock(header.Number.Uint64()) {
			return api.poa.ExtractCheckpointSigners(header)
		}
	}
	return api.poa.spec.EffectiveSigners(), nil
}

// GetSignersAtHash returns the checkpoint signer list carried by the epoch
// block with the given hash.
func (api *API) GetSignersAtHash(hash common.Hash) ([]common.Address, error) {
	header := api.chain.GetHeaderByHash(hash)
	if header == nil {
		return nil, errUnknownBlock
	}
	if !api.poa.spec.IsEpochBlock(header.Number.Uint64()) {
		return nil, errors.New("not an epoch block")
	}
	return api.poa.ExtractCheckpointSigners(header)
}

// Proposer returns the in-turn signer for the given block number, or for the
// block after the current head when nil.
func (api *API) Proposer(number *rpc.BlockNumber) (common.Address, error) {
	target := uint64(0)
	if number == nil || *number == rpc.LatestBlockNumber {
		head := api.chain.CurrentHeader()
		if head == nil {
			return common.Address{}, errUnknownBlock
		}
		target = head.Number.Uint64() + 1
	} else {
		target = uint64(number.Int64())
	}
	expected, ok := api.poa.spec.ExpectedSigner(target)
	if !ok {
		return common.Address{}, errors.New("empty signer list")
	}
	return expected, nil
}

// Status is a sample of recent sealing activity.
type Status struct {
	InturnPercent float64                `json:"inturnPercent"`
	SigningStatus map[common.Address]int `json:"sealerActivity"`
	NumBlocks     uint64                 `json:"numBlocks"`
}

// Status walks back from the chain head and reports the in-turn ratio and
// per-signer block counts over the recent window.
func (api *API) Status() (*Status, error) {
	var (
		optimals  uint64
		signStats = make(map[common.Address]int)
		head      = api.chain.CurrentHeader()
	)
	if head == nil {
		return nil, errUnknownBlock
	}
	end := head.Number.Uint64()
	start := uint64(1)
	if end > statusBlocks {
		start = end - statusBlocks + 1
	}
	numBlocks := end - start + 1
	if end == 0 {
		return &Status{SigningStatus: signStats}, nil
	}

	header := head
	for n := end; n >= start; n-- {
		if header == nil {
			return nil, errUnknownBlock
		}
		sealer, err := ecrecover(header, api.poa.signatures)
		if err != nil {
			return nil, err
		}
		if expected, ok := api.poa.spec.ExpectedSigner(n); ok && expected == sealer {
			optimals++
		}
		signStats[sealer]++

		header = api.chain.GetHeader(header.ParentHash, n-1)
	}
	return &Status{
		InturnPercent: float64(100*optimals) / float64(numBlocks),
		SigningStatus: signStats,
		NumBlocks:     numBlocks,
	}, nil
}
