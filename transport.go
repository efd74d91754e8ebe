// Package udpfec implements a real-time UDP transport with
// application-layer forward error correction and a decoupling ring
// buffer between network I/O and the caller.
package udpfec

import (
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// OpenFlags selects which directions an Open call configures.
type OpenFlags struct {
	Write bool
	Read  bool
}

// Transport is the open / read / write / close surface composing the
// codec adapter, block header codec, FEC group state, encoder and
// decoder pipelines, ring buffers, and endpoint manager (spec §4.8).
type Transport struct {
	opts   Options
	params codecParams
	ep     *Endpoint

	asyncWrite bool
	asyncRead  bool

	encoder *encoderPipeline
	decoder *decoderPipeline

	txRing *ringBuffer
	rxRing *ringBuffer

	rxCloseCh chan struct{}
	rxDoneCh  chan struct{}
	txDoneCh  chan struct{}

	logger *log.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open parses a udp://host:port?opt=val URL (spec §6), overlays its
// query options onto opts (query wins per spec §9), configures the
// endpoint (spec §4.7), and wires the encoder/decoder pipelines and
// ring-buffer workers (spec §4.8).
func Open(rawURL string, opts Options, flags OpenFlags) (*Transport, error) {
	initCodec()

	pu, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := opts.applyQuery(pu.query); err != nil {
		return nil, err
	}
	normalizeOptions(&opts)

	ep, err := openEndpoint(pu, opts, flags.Write, flags.Read)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		opts:   opts,
		params: codecParams{blockBytes: BlockBytes, originalCount: opts.OriginalCount, recoveryCount: opts.RecoveryCount},
		ep:     ep,
		logger: log.New(os.Stderr, "udpfec: ", log.LstdFlags),
	}

	if flags.Write {
		t.setupWrite()
	}
	if flags.Read {
		t.setupRead()
	}
	return t, nil
}

func normalizeOptions(o *Options) {
	if o.OriginalCount <= 0 {
		o.OriginalCount = OriginalCount
	}
	if o.PacketSize <= 0 {
		o.PacketSize = BlockBytes
	}
}

func (t *Transport) setupWrite() {
	t.asyncWrite = t.opts.Bitrate > 0 && t.opts.CircularBufferSize > 0

	var dispatch func([]byte) error
	if t.asyncWrite {
		t.txRing = newRingBuffer(t.opts.CircularBufferSize * defaultCircularBufferUnit)
		p := newPacer(t.opts.Bitrate, t.opts.BurstBits, t.opts.MaxPacketSize())
		t.txDoneCh = make(chan struct{})
		dispatch = t.txRing.pushRecord
		go runTxWorker(t.ep, t.txRing, p, t.txDoneCh)
	} else {
		dispatch = t.ep.Send
	}
	t.encoder = newEncoderPipeline(t.params, dispatch)
}

func (t *Transport) setupRead() {
	t.asyncRead = t.opts.CircularBufferSize > 0
	if !t.asyncRead {
		return
	}
	t.rxRing = newRingBuffer(t.opts.CircularBufferSize * defaultCircularBufferUnit)
	t.decoder = newDecoderPipeline(t.params, t.rxRing, t.opts.OverrunNonfatal, func(err error) {
		t.logger.Printf("warning: %v", err)
	})
	t.rxCloseCh = make(chan struct{})
	t.rxDoneCh = make(chan struct{})
	go runRxWorker(t.ep, t.decoder, t.rxRing, t.rxCloseCh, t.rxDoneCh)
}

// Write routes buf through the encoder pipeline (spec §4.4, §4.8).
// It returns len(buf) on success, preserving stream semantics even
// though zero, one, or K+R datagrams may have actually been emitted.
func (t *Transport) Write(buf []byte) (int, error) {
	if t.encoder == nil {
		return 0, ErrDirectionNotOpen
	}
	if len(buf) > t.opts.MaxPacketSize() {
		return 0, ErrPacketTooLarge
	}
	if err := t.encoder.write(buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Read delivers one record to buf (spec §4.8). In async mode it
// drains one record from the ring, truncating to len(buf) and
// discarding the remainder of an oversized record with a warning; in
// sync mode it performs a single recv directly on the socket,
// bypassing the FEC pipeline.
func (t *Transport) Read(buf []byte) (int, error) {
	if t.ep == nil {
		return 0, ErrDirectionNotOpen
	}

	if !t.asyncRead {
		if t.opts.Timeout > 0 {
			_ = t.ep.SetReadDeadline(time.Now().Add(time.Duration(t.opts.Timeout) * time.Millisecond))
		}
		n, err := t.ep.Recv(buf)
		if err != nil {
			if isTimeoutErr(err) {
				return 0, ErrTimeout
			}
			return 0, err
		}
		return n, nil
	}

	rec, err := t.rxRing.popRecord()
	if err != nil {
		return 0, err
	}
	n := copy(buf, rec)
	if n < len(rec) {
		t.logger.Printf("warning: truncated %d byte record to %d", len(rec), n)
	}
	return n, nil
}

// TryRead is the non-blocking variant of Read for async mode,
// returning ErrWouldBlock immediately if no record is queued (spec
// §6's -EAGAIN class).
func (t *Transport) TryRead(buf []byte) (int, error) {
	if !t.asyncRead {
		return 0, ErrDirectionNotOpen
	}
	rec, err := t.rxRing.tryPopRecord()
	if err != nil {
		return 0, err
	}
	n := copy(buf, rec)
	if n < len(rec) {
		t.logger.Printf("warning: truncated %d byte record to %d", len(rec), n)
	}
	return n, nil
}

// LocalAddr reports the endpoint's bound local address.
func (t *Transport) LocalAddr() net.Addr {
	if t.ep == nil {
		return nil
	}
	return t.ep.LocalAddr()
}

// FileHandle exposes the endpoint's underlying descriptor (spec §6).
func (t *Transport) FileHandle() (*os.File, error) {
	if t.ep == nil {
		return nil, ErrClosed
	}
	return t.ep.FileHandle()
}

// Close signals the workers, joins them, and releases the ring
// buffers, codec state, and socket (spec §4.8, §5).
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.rxCloseCh != nil {
			close(t.rxCloseCh)
		}
		if t.rxRing != nil {
			t.rxRing.close()
		}
		if t.txRing != nil {
			t.txRing.close()
		}
		if t.rxDoneCh != nil {
			<-t.rxDoneCh
		}
		if t.txDoneCh != nil {
			<-t.txDoneCh
		}
		if t.ep != nil {
			if err := t.ep.Close(); err != nil {
				t.closeErr = errors.Wrap(err, "udpfec: close")
			}
		}
	})
	return t.closeErr
}
