package udpfec

import "github.com/pkg/errors"

// decoderPipeline ingests wire packets and publishes recovered
// originals to the consumer ring (spec §4.5).
type decoderPipeline struct {
	params codecParams
	group  *group
	ring   *ringBuffer

	// overrunNonfatal downgrades a full ring on publish from a fatal
	// BufferOverrun to a dropped-record warning (spec §4.5.4, §7).
	overrunNonfatal bool

	// onWarning receives non-fatal diagnostics (dropped/truncated
	// records); nil is a valid no-op sink.
	onWarning func(error)
}

func newDecoderPipeline(params codecParams, ring *ringBuffer, overrunNonfatal bool, onWarning func(error)) *decoderPipeline {
	return &decoderPipeline{
		params:          params,
		group:           newGroup(params),
		ring:            ring,
		overrunNonfatal: overrunNonfatal,
		onWarning:       onWarning,
	}
}

// ingest processes one datagram from the socket (spec §4.5).
func (d *decoderPipeline) ingest(datagram []byte) error {
	if len(datagram) < 1 {
		return ErrFecMalformedHeader
	}
	t, index, err := parseHeader(datagram[0], d.params.originalCount, d.params.recoveryCount)
	if err != nil {
		return err
	}
	payload := datagram[1:]

	if t == typeOriginal {
		return d.ingestOriginal(index, payload)
	}
	return d.ingestRecovery(index, payload)
}

func (d *decoderPipeline) ingestOriginal(canonicalIndex int, payload []byte) error {
	if len(payload) < originalSizePrefix {
		return ErrFecMalformedHeader
	}
	_, alreadyOccupied := d.group.findOriginalByIndex(canonicalIndex)
	stale := d.group.recoveriesPresent > 0 ||
		d.group.originalsPresent >= d.params.originalCount ||
		alreadyOccupied

	if stale {
		if d.group.total() > 0 && d.group.total() < d.params.originalCount+d.params.recoveryCount {
			if err := d.publishPartial(); err != nil {
				d.warn(err)
			}
		}
		d.group.reset()
	}

	// The wire block already starts with its size prefix; addOriginal
	// writes that prefix itself, so it gets only the bytes after it.
	if _, err := d.group.addOriginal(payload[originalSizePrefix:], canonicalIndex); err != nil {
		return err
	}

	if d.group.originalsPresent == d.params.originalCount {
		return d.publishDirect()
	}
	return nil
}

func (d *decoderPipeline) ingestRecovery(canonicalIndex int, payload []byte) error {
	if d.group.originalsPresent+d.group.recoveriesPresent >= d.params.originalCount {
		return nil // drop silently, spec §4.5 step 3
	}
	if _, err := d.group.addRecovery(payload, canonicalIndex); err != nil {
		return err
	}
	if d.group.originalsPresent+d.group.recoveriesPresent == d.params.originalCount {
		return d.decodeAndPublish()
	}
	return nil
}

// publishDirect publishes a group that reached K originals without
// ever needing the codec.
func (d *decoderPipeline) publishDirect() error {
	originals := make([][]byte, d.params.originalCount)
	for i := range originals {
		originals[i], _ = d.group.findOriginalByIndex(i)
	}
	err := d.publish(originals)
	d.group.reset()
	return err
}

// decodeAndPublish runs the codec to fill missing originals once
// originals+recoveries == K, then publishes on success or silently
// resets on failure (spec §4.5 step 3, §9's "publish now, reset").
func (d *decoderPipeline) decodeAndPublish() error {
	shards := make([][]byte, d.params.originalCount+d.params.recoveryCount)
	for slot, idx := range d.group.originalSlot {
		if idx >= 0 {
			shards[idx] = d.group.originalBlock(slot)
		}
	}
	for slot, idx := range d.group.recoverySlot {
		if idx >= 0 {
			shards[d.params.originalCount+idx] = d.group.recoveryBlock(slot)
		}
	}

	if err := decodeGroup(d.params, shards); err != nil {
		d.group.reset()
		return nil
	}

	originals := shards[:d.params.originalCount]
	err := d.publish(originals)
	d.group.reset()
	return err
}

// publishPartial publishes whatever originals arrived directly in a
// group abandoned by a stale-original arrival (spec §4.5 step 2,
// §4.9's PartialPublish state).
func (d *decoderPipeline) publishPartial() error {
	originals := make([][]byte, d.params.originalCount)
	for i := range originals {
		originals[i], _ = d.group.findOriginalByIndex(i)
	}
	return d.publish(originals)
}

// publish implements spec §4.5.4: for each original position in
// ascending canonical order, skip missing positions silently, and
// push [u32 LE len][payload] for present ones.
func (d *decoderPipeline) publish(originals [][]byte) error {
	for _, block := range originals {
		if block == nil {
			continue
		}
		size := blockSizeOfOriginal(block)
		payloadLen := size - originalSizePrefix
		payload := block[originalSizePrefix : originalSizePrefix+payloadLen]

		err := d.ring.pushRecord(payload)
		if err == ErrBufferFull {
			if d.overrunNonfatal {
				d.warn(errors.Wrap(ErrBufferOverrun, "dropped record"))
				continue
			}
			return ErrBufferOverrun
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *decoderPipeline) warn(err error) {
	if d.onWarning != nil {
		d.onWarning(err)
	}
}
