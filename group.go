package udpfec

// group holds the per-direction assembly/dispersal buffer for exactly
// one FEC group (spec §4.3). Storage is pre-allocated in two
// contiguous arenas; blocks[i] is an (arena offset, canonical index)
// pair rather than a raw pointer (spec §9's arena-plus-index pattern),
// so there is no per-packet heap allocation on the fast path.
type group struct {
	params codecParams

	originalArena []byte // originalCount * blockBytes
	recoveryArena []byte // recoveryCount * blockBytes

	// originalSlot[physicalSlot] = canonical index, or -1 if empty.
	originalSlot []int
	recoverySlot []int

	originalsPresent  int
	recoveriesPresent int
}

func newGroup(params codecParams) *group {
	g := &group{
		params:        params,
		originalArena: make([]byte, params.originalCount*params.blockBytes),
		recoveryArena: make([]byte, params.recoveryCount*params.blockBytes),
		originalSlot:  make([]int, params.originalCount),
		recoverySlot:  make([]int, params.recoveryCount),
	}
	g.reset()
	return g
}

// reset zeroes the recovery region, clears the index table, and zeroes
// the counters (spec §4.3). The original region is left untouched:
// addOriginal clears each slot before writing it, so stale bytes from
// an earlier group never reach the codec or the wire.
func (g *group) reset() {
	for i := range g.recoveryArena {
		g.recoveryArena[i] = 0
	}
	for i := range g.originalSlot {
		g.originalSlot[i] = -1
	}
	for i := range g.recoverySlot {
		g.recoverySlot[i] = -1
	}
	g.originalsPresent = 0
	g.recoveriesPresent = 0
}

func (g *group) originalBlock(slot int) []byte {
	off := slot * g.params.blockBytes
	return g.originalArena[off : off+g.params.blockBytes]
}

func (g *group) recoveryBlock(slot int) []byte {
	off := slot * g.params.blockBytes
	return g.recoveryArena[off : off+g.params.blockBytes]
}

// addOriginal writes payload as a new original at the next free
// physical slot, tagged with canonicalIndex, and returns that slot.
func (g *group) addOriginal(payload []byte, canonicalIndex int) (int, error) {
	if g.originalsPresent >= g.params.originalCount {
		return 0, ErrFecGroupFull
	}
	slot := g.originalsPresent
	block := g.originalBlock(slot)
	clear(block)
	size := len(payload) + originalSizePrefix
	putOriginalPrefix(block, size)
	copy(block[originalSizePrefix:], payload)

	g.originalSlot[slot] = canonicalIndex
	g.originalsPresent++
	return slot, nil
}

// addRecovery writes raw recovery bytes at the next free physical
// slot, tagged with canonicalIndex. Extra recoveries beyond what is
// needed to reach K total blocks are useless and must be rejected
// (spec §4.3).
func (g *group) addRecovery(payload []byte, canonicalIndex int) (int, error) {
	if g.originalsPresent+g.recoveriesPresent >= g.params.originalCount {
		return 0, ErrFecGroupFull
	}
	slot := g.recoveriesPresent
	block := g.recoveryBlock(slot)
	clear(block)
	copy(block, payload)

	g.recoverySlot[slot] = canonicalIndex
	g.recoveriesPresent++
	return slot, nil
}

// findOriginalByIndex performs the linear scan over occupied original
// entries called for in spec §4.3's find_by_index.
func (g *group) findOriginalByIndex(canonicalIndex int) ([]byte, bool) {
	for slot, idx := range g.originalSlot {
		if idx == canonicalIndex {
			return g.originalBlock(slot), true
		}
	}
	return nil, false
}

// total reports the number of occupied entries across both
// partitions, for the "total block entries with defined payload <= N"
// invariant.
func (g *group) total() int {
	return g.originalsPresent + g.recoveriesPresent
}
