package udpfec

import (
	"bytes"
	"testing"
)

func pipelineTestParams() codecParams {
	return codecParams{blockBytes: BlockBytes, originalCount: OriginalCount, recoveryCount: DefaultRecoveryCount}
}

// encodeMessages runs each message through a fresh encoderPipeline and
// returns the wire datagrams it emitted, in emission order.
func encodeMessages(t *testing.T, msgs [][]byte) [][]byte {
	t.Helper()
	var datagrams [][]byte
	enc := newEncoderPipeline(pipelineTestParams(), func(p []byte) error {
		cp := append([]byte(nil), p...)
		datagrams = append(datagrams, cp)
		return nil
	})
	for _, m := range msgs {
		if err := enc.write(m); err != nil {
			t.Fatalf("encoder write: %v", err)
		}
	}
	return datagrams
}

func tenMessages() [][]byte {
	msgs := make([][]byte, OriginalCount)
	for i := range msgs {
		msgs[i] = bytes.Repeat([]byte{byte(i)}, 100)
	}
	return msgs
}

func drainRing(t *testing.T, r *ringBuffer) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		rec, err := r.tryPopRecord()
		if err == ErrWouldBlock {
			return out
		}
		if err != nil {
			t.Fatalf("tryPopRecord: %v", err)
		}
		out = append(out, rec)
	}
}

// Scenario 1 (spec §8): lossless round trip of one group.
func TestEndToEndLosslessRoundTrip(t *testing.T) {
	msgs := tenMessages()
	datagrams := encodeMessages(t, msgs)
	if len(datagrams) != OriginalCount+DefaultRecoveryCount {
		t.Fatalf("got %d datagrams, want %d", len(datagrams), OriginalCount+DefaultRecoveryCount)
	}

	ring := newRingBuffer(1 << 20)
	dec := newDecoderPipeline(pipelineTestParams(), ring, false, nil)
	for _, d := range datagrams {
		if err := dec.ingest(d); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	got := drainRing(t, ring)
	if len(got) != OriginalCount {
		t.Fatalf("got %d records, want %d", len(got), OriginalCount)
	}
	for i, rec := range got {
		if !bytes.Equal(rec, msgs[i]) {
			t.Fatalf("record %d = %v, want %v", i, rec, msgs[i])
		}
	}
}

// Scenario 2: single-packet loss recovery via the parity shards.
func TestEndToEndSinglePacketLossRecovered(t *testing.T) {
	msgs := tenMessages()
	datagrams := encodeMessages(t, msgs)

	ring := newRingBuffer(1 << 20)
	dec := newDecoderPipeline(pipelineTestParams(), ring, false, nil)
	for i, d := range datagrams {
		if i == 3 {
			continue // drop datagram #3
		}
		if err := dec.ingest(d); err != nil {
			t.Fatalf("ingest(%d): %v", i, err)
		}
	}

	got := drainRing(t, ring)
	if len(got) != OriginalCount {
		t.Fatalf("got %d records, want %d", len(got), OriginalCount)
	}
	for i, rec := range got {
		if !bytes.Equal(rec, msgs[i]) {
			t.Fatalf("record %d = %v, want %v", i, rec, msgs[i])
		}
	}
}

// Scenario 3: four-packet loss at R=4 is still within recovery capacity.
func TestEndToEndFourPacketLossRecovered(t *testing.T) {
	msgs := tenMessages()
	datagrams := encodeMessages(t, msgs)
	drop := map[int]bool{0: true, 5: true, 11: true, 13: true}

	ring := newRingBuffer(1 << 20)
	dec := newDecoderPipeline(pipelineTestParams(), ring, false, nil)
	for i, d := range datagrams {
		if drop[i] {
			continue
		}
		if err := dec.ingest(d); err != nil {
			t.Fatalf("ingest(%d): %v", i, err)
		}
	}

	got := drainRing(t, ring)
	if len(got) != OriginalCount {
		t.Fatalf("got %d records, want %d", len(got), OriginalCount)
	}
	for i, rec := range got {
		if !bytes.Equal(rec, msgs[i]) {
			t.Fatalf("record %d = %v, want %v", i, rec, msgs[i])
		}
	}
}

// Scenario 4: five-packet loss exceeds R=4's recovery capacity; the
// decoder still publishes whichever originals arrived directly.
func TestEndToEndFivePacketLossExceedsCapacity(t *testing.T) {
	msgs := tenMessages()
	datagrams := encodeMessages(t, msgs)
	drop := map[int]bool{1: true, 2: true, 11: true, 12: true, 13: true}

	ring := newRingBuffer(1 << 20)
	dec := newDecoderPipeline(pipelineTestParams(), ring, false, nil)
	for i, d := range datagrams {
		if drop[i] {
			continue
		}
		if err := dec.ingest(d); err != nil {
			t.Fatalf("ingest(%d): %v", i, err)
		}
	}
	// The group never reaches originals+recoveries == K (8 originals +
	// 1 recovery == 9 < 10), so nothing publishes until the next
	// group's first original forces a stale reset. Simulate that by
	// starting a second group.
	nextMsgs := tenMessages()
	nextDatagrams := encodeMessages(t, nextMsgs)
	if err := dec.ingest(nextDatagrams[0]); err != nil {
		t.Fatalf("ingest next group's first original: %v", err)
	}

	got := drainRing(t, ring)
	wantIndices := []int{0, 3, 4, 5, 6, 7, 8, 9}
	if len(got) != len(wantIndices) {
		t.Fatalf("got %d records from the lossy group, want %d (originals that arrived directly)", len(got), len(wantIndices))
	}
	for i, idx := range wantIndices {
		if !bytes.Equal(got[i], msgs[idx]) {
			t.Fatalf("record %d = %v, want original %d (%v)", i, got[i], idx, msgs[idx])
		}
	}
}

// Scenario 5: a datagram from the next group arriving before the
// current group is complete forces a stale reset, publishing the
// first group (partially, if needed) before the second group starts.
func TestEndToEndReorderAcrossGroups(t *testing.T) {
	g1 := tenMessages()
	g2 := tenMessages()
	for i := range g2 {
		g2[i] = bytes.Repeat([]byte{byte(100 + i)}, 100)
	}

	d1 := encodeMessages(t, g1)
	d2 := encodeMessages(t, g2)

	ring := newRingBuffer(1 << 20)
	dec := newDecoderPipeline(pipelineTestParams(), ring, false, nil)

	// Feed G1's first 9 originals (hold back original #9), then G2's
	// first original (canonical index 0) arrives early: its index
	// collides with G1's already-occupied index 0, forcing a stale
	// reset that partially publishes G1's 9 originals before G2 begins.
	for i := 0; i < 9; i++ {
		if err := dec.ingest(d1[i]); err != nil {
			t.Fatalf("ingest g1[%d]: %v", i, err)
		}
	}
	if err := dec.ingest(d2[0]); err != nil {
		t.Fatalf("ingest g2[0]: %v", err)
	}
	for i := 1; i < len(d2); i++ {
		if err := dec.ingest(d2[i]); err != nil {
			t.Fatalf("ingest g2[%d]: %v", i, err)
		}
	}

	got := drainRing(t, ring)
	if len(got) != 9+OriginalCount {
		t.Fatalf("got %d records, want %d (9 partial from G1 + 10 from G2)", len(got), 9+OriginalCount)
	}
	for i := 0; i < 9; i++ {
		if !bytes.Equal(got[i], g1[i]) {
			t.Fatalf("G1 record %d = %v, want %v", i, got[i], g1[i])
		}
	}
	for i := 0; i < OriginalCount; i++ {
		if !bytes.Equal(got[9+i], g2[i]) {
			t.Fatalf("G2 record %d = %v, want %v", i, got[9+i], g2[i])
		}
	}
}
