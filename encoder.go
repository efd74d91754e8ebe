package udpfec

// encoderPipeline ingests application writes and emits wire packets
// for a complete group (spec §4.4).
type encoderPipeline struct {
	params codecParams
	group  *group

	// dispatch is called once per emitted datagram: async mode pushes
	// it onto the ring buffer, sync mode sends it on the socket
	// directly. It owns copying payload if it needs to retain it.
	dispatch func(payload []byte) error

	// pending holds already-packaged datagrams from a group whose
	// dispatch was interrupted by a transient error (e.g. BufferFull).
	// They are independent copies, not aliased into the group's
	// arenas, so the group can be reset and reused while pending
	// datagrams are still waiting to go out.
	pending [][]byte
}

func newEncoderPipeline(params codecParams, dispatch func([]byte) error) *encoderPipeline {
	return &encoderPipeline{
		params:   params,
		group:    newGroup(params),
		dispatch: dispatch,
	}
}

// write stores buf as a new original and, once the group is complete,
// encodes and dispatches all K+R datagrams. If an earlier group still
// has datagrams undelivered from a prior transient dispatch failure,
// write first retries those and refuses new input until they clear:
// no already-computed block is ever silently dropped (spec §7, §8
// invariant #1).
func (e *encoderPipeline) write(buf []byte) error {
	if err := e.flushPending(); err != nil {
		return err
	}

	idx := e.group.originalsPresent
	if _, err := e.group.addOriginal(buf, originalIndexFor(idx)); err != nil {
		return err
	}

	if e.group.originalsPresent < e.params.originalCount {
		return nil
	}

	originals := make([][]byte, e.params.originalCount)
	for i := range originals {
		originals[i] = e.group.originalBlock(i)
	}

	recoveries, err := encodeGroup(e.params, originals)
	if err != nil {
		e.group.reset()
		return ErrCodecError
	}

	// Package all K+R datagrams as independent copies before touching
	// dispatch, so the group can be reset unconditionally once they're
	// built: nothing below this point still aliases the group's
	// arenas (spec §4.4 step 4's K-then-R emit order).
	datagrams := make([][]byte, 0, e.params.originalCount+e.params.recoveryCount)
	for i := 0; i < e.params.originalCount; i++ {
		block := originals[i]
		length := blockSizeOfOriginal(block)
		payload, err := packageBlock(typeOriginal, i, block[:length])
		if err != nil {
			e.group.reset()
			return err
		}
		datagrams = append(datagrams, payload)
	}
	for i := 0; i < e.params.recoveryCount; i++ {
		payload, err := packageBlock(typeRecovery, i, recoveries[i])
		if err != nil {
			e.group.reset()
			return err
		}
		datagrams = append(datagrams, payload)
	}

	e.group.reset()
	e.pending = datagrams
	return e.flushPending()
}

// flushPending dispatches any datagrams left over from a prior group
// whose emission was interrupted. It stops at the first dispatch
// failure, leaving the remainder in e.pending for the next call: a
// transient error (BufferFull) is returned without dropping anything,
// matching spec §7's propagation policy.
func (e *encoderPipeline) flushPending() error {
	for len(e.pending) > 0 {
		if err := e.dispatch(e.pending[0]); err != nil {
			return err
		}
		e.pending = e.pending[1:]
	}
	return nil
}

// packageBlock builds the wire datagram for one block: a header byte
// followed by the block's payload bytes.
func packageBlock(t blockType, index int, block []byte) ([]byte, error) {
	header, err := buildHeader(t, index)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 1+len(block))
	payload[0] = header
	copy(payload[1:], block)
	return payload, nil
}
