package udpfec

import (
	"sync"

	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// codecParams mirrors spec §4.1's params triple.
type codecParams struct {
	blockBytes    int
	originalCount int
	recoveryCount int
}

// codecCache holds one reedsolomon.Encoder per (K, R) shape. Building
// the matrix is the expensive part of reedsolomon.New; every endpoint
// opened with the same shape reuses it, the way cm256_init() is
// meant to run once process-wide (spec §4.1, §9).
var (
	codecMu    sync.Mutex
	codecCache = map[[2]int]reedsolomon.Encoder{}
	initOnce   sync.Once
)

// initCodec pre-warms the default K/R shape once per process.
// Subsequent getCodec calls for other shapes remain cheap and
// thread-safe without requiring a second global init.
func initCodec() {
	initOnce.Do(func() {
		_, _ = getCodec(OriginalCount, DefaultRecoveryCount)
	})
}

func getCodec(k, r int) (reedsolomon.Encoder, error) {
	key := [2]int{k, r}

	codecMu.Lock()
	defer codecMu.Unlock()

	if enc, ok := codecCache[key]; ok {
		return enc, nil
	}
	enc, err := reedsolomon.New(k, r)
	if err != nil {
		return nil, errors.Wrap(ErrCodecError, err.Error())
	}
	codecCache[key] = enc
	return enc, nil
}

// encodeGroup runs the codec's encode half: given K populated
// original shards, produce R recovery shards.
func encodeGroup(params codecParams, originals [][]byte) ([][]byte, error) {
	enc, err := getCodec(params.originalCount, params.recoveryCount)
	if err != nil {
		return nil, err
	}

	shards := make([][]byte, params.originalCount+params.recoveryCount)
	copy(shards, originals)
	for i := params.originalCount; i < len(shards); i++ {
		shards[i] = make([]byte, params.blockBytes)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, errors.Wrap(ErrCodecError, err.Error())
	}
	return shards[params.originalCount:], nil
}

// decodeGroup runs the codec's decode half in place: shards is sized
// K+R, present entries populated and missing entries nil. On success
// any missing shards within the first K entries (originals) are
// filled in place. Fails if fewer than K shards are present.
func decodeGroup(params codecParams, shards [][]byte) error {
	present := 0
	for _, s := range shards {
		if s != nil {
			present++
		}
	}
	if present < params.originalCount {
		return errors.Wrap(ErrCodecError, "fewer than K shards present")
	}

	enc, err := getCodec(params.originalCount, params.recoveryCount)
	if err != nil {
		return err
	}
	if err := enc.ReconstructData(shards); err != nil {
		return errors.Wrap(ErrCodecError, err.Error())
	}
	return nil
}

// originalIndexFor and recoveryIndexFor map a logical position to the
// codec's canonical per-group index. This scheme's header already
// carries the canonical index directly (spec §4.2), so both are the
// identity map.
func originalIndexFor(i int) int { return i }
func recoveryIndexFor(i int) int { return i }
