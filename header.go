package udpfec

import "encoding/binary"

// blockType distinguishes an original payload from a recovery payload
// within a group (spec §3, §4.2).
type blockType uint8

const (
	typeOriginal blockType = 0
	typeRecovery blockType = 1
)

// buildHeader packs a block's type and in-partition index into the
// single header byte that precedes it on the wire: bit 7 is the type,
// bits 0-6 are the index.
func buildHeader(t blockType, index int) (byte, error) {
	if index < 0 || index > maxIndex {
		return 0, ErrFecMalformedHeader
	}
	h := byte(index)
	if t == typeRecovery {
		h |= 0x80
	}
	return h, nil
}

// parseHeader unpacks a header byte into its type and index, bounding
// the index to the partition's configured size (K for originals, R
// for recoveries).
func parseHeader(h byte, k, r int) (t blockType, index int, err error) {
	if h&0x80 != 0 {
		t = typeRecovery
		index = int(h & 0x7f)
		if index >= r {
			return 0, 0, ErrFecMalformedHeader
		}
		return t, index, nil
	}
	t = typeOriginal
	index = int(h & 0x7f)
	if index >= k {
		return 0, 0, ErrFecMalformedHeader
	}
	return t, index, nil
}

// blockSizeOfOriginal reads the leading 2-byte little-endian size
// prefix of an original block (spec §3: size includes the 2 prefix
// bytes themselves).
func blockSizeOfOriginal(block []byte) int {
	return int(binary.LittleEndian.Uint16(block))
}

// putOriginalPrefix writes the size prefix at the front of an
// original block's backing region. size is the total length including
// the 2 prefix bytes.
func putOriginalPrefix(block []byte, size int) {
	binary.LittleEndian.PutUint16(block, uint16(size))
}
