package udpfec

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestEncodeDecodeGroupRoundTrip(t *testing.T) {
	params := codecParams{blockBytes: 64, originalCount: 10, recoveryCount: 4}

	originals := make([][]byte, params.originalCount)
	for i := range originals {
		originals[i] = bytes.Repeat([]byte{byte(i)}, params.blockBytes)
	}

	recoveries, err := encodeGroup(params, originals)
	if err != nil {
		t.Fatalf("encodeGroup: %v", err)
	}
	if len(recoveries) != params.recoveryCount {
		t.Fatalf("got %d recovery shards, want %d", len(recoveries), params.recoveryCount)
	}

	all := append(append([][]byte{}, originals...), recoveries...)

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		shards := make([][]byte, len(all))
		present := rng.Perm(len(all))[:params.originalCount]
		for _, idx := range present {
			shards[idx] = append([]byte{}, all[idx]...)
		}

		if err := decodeGroup(params, shards); err != nil {
			t.Fatalf("trial %d: decodeGroup: %v", trial, err)
		}

		for i := 0; i < params.originalCount; i++ {
			if !bytes.Equal(shards[i], originals[i]) {
				t.Fatalf("trial %d: reconstructed original %d mismatch", trial, i)
			}
		}
	}
}

func TestDecodeGroupFailsWithFewerThanKShards(t *testing.T) {
	params := codecParams{blockBytes: 64, originalCount: 10, recoveryCount: 4}
	shards := make([][]byte, params.originalCount+params.recoveryCount)
	for i := 0; i < params.originalCount-1; i++ {
		shards[i] = make([]byte, params.blockBytes)
	}
	if err := decodeGroup(params, shards); err == nil {
		t.Fatal("expected an error when fewer than K shards are present")
	}
}
