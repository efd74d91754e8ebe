package udpfec

// Block-level constants, see spec §3.
const (
	// BlockBytes is the fixed size of every block, original or recovery.
	BlockBytes = 1472

	// OriginalCount is K, the number of original blocks per group.
	OriginalCount = 10

	// MaxRecoveryCount bounds the configurable recovery shard count.
	MaxRecoveryCount = 10

	// DefaultRecoveryCount is R, the default number of recovery blocks per group.
	DefaultRecoveryCount = 4

	// originalSizePrefix is the 2-byte little-endian length prefix
	// written at the front of every original block's payload region.
	originalSizePrefix = 2

	// maxIndexBits caps type+index into a single byte (spec §3, §9):
	// bit 7 is type, bits 0-6 are the in-partition index, so any
	// K+R configuration must keep each partition's count <= 128.
	maxIndexBits = 7
	maxIndex     = 1<<maxIndexBits - 1
)
