package poa

import "errors"

// Host-facing error kinds. Validation failures bubble up to the caller as
// one of these (possibly wrapped with the offending value); the block is
// rejected and no partial state is applied.
var (
	// ErrExtraDataTooShort is returned if a production block's extra-data
	// cannot hold the 32 byte vanity prefix and 65 byte seal suffix.
	ErrExtraDataTooShort = errors.New("extra-data shorter than vanity and seal")

	// ErrInvalidSignature is returned if the seal bytes are malformed or
	// public key recovery fails.
	ErrInvalidSignature = errors.New("invalid seal signature")

	// ErrUnauthorizedSigner is returned if a header is sealed by an address
	// outside the effective signer list.
	ErrUnauthorizedSigner = errors.New("unauthorized signer")

	// ErrInvalidDifficulty is returned if a block carries a non-zero
	// difficulty. Authority is proven by the seal alone.
	ErrInvalidDifficulty = errors.New("non-zero difficulty")

	// ErrInvalidSignerList is returned if an epoch block's checkpoint body
	// is not a whole multiple of 20 bytes.
	ErrInvalidSignerList = errors.New("invalid signer list on epoch block")

	// ErrTimestampTooEarly is returned if a block's timestamp is closer to
	// its parent than the block period allows.
	ErrTimestampTooEarly = errors.New("timestamp below parent plus block period")

	// ErrParentNumberMismatch is returned if a child's number is not the
	// parent's plus one.
	ErrParentNumberMismatch = errors.New("parent block number mismatch")

	// ErrParentHashMismatch is returned if a child does not link to its
	// parent's hash.
	ErrParentHashMismatch = errors.New("parent hash mismatch")

	// ErrGasLimitIncrease is returned if the gas limit grows faster than
	// the bound divisor allows.
	ErrGasLimitIncrease = errors.New("invalid gas limit increase")

	// ErrGasLimitDecrease is returned if the gas limit shrinks faster than
	// the bound divisor allows.
	ErrGasLimitDecrease = errors.New("invalid gas limit decrease")

	// ErrGasUsedExceedsLimit is returned if a header spends more gas than
	// its own limit.
	ErrGasUsedExceedsLimit = errors.New("header gas used exceeds gas limit")

	// ErrBlockGasUsedMismatch is returned if execution consumed a different
	// amount of gas than the header claims.
	ErrBlockGasUsedMismatch = errors.New("block gas used mismatch")

	// ErrReceiptRootMismatch is returned if the executed receipts hash to a
	// different root than the header commits to.
	ErrReceiptRootMismatch = errors.New("receipt root mismatch")

	// ErrLogsBloomMismatch is returned if the executed logs bloom differs
	// from the header's.
	ErrLogsBloomMismatch = errors.New("logs bloom mismatch")
)

// Errors internal to the go-ethereum engine surface. These stay private so
// engine-specific kinds never leak into the remainder of the codebase.
var (
	// errUnknownBlock is returned when operating on a block that is not
	// part of the local chain.
	errUnknownBlock = errors.New("unknown block")

	// errExtraSigners is returned if a non-epoch block carries signer data
	// in its extra-data checkpoint range.
	errExtraSigners = errors.New("non-epoch block contains extra signer list")

	// errInvalidUncleHash is returned if a block carries a non-empty uncle
	// list.
	errInvalidUncleHash = errors.New("non empty uncle hash")

	// errInvalidMixDigest is returned if a block's mix digest is non-zero.
	errInvalidMixDigest = errors.New("non-zero mix digest")
)
