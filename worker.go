package udpfec

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// pacer enforces token-bucket pacing on the tx worker (spec §4.6).
type pacer struct {
	bitrate       int64
	burstBits     int64
	maxPacketSize int

	startTime time.Time
	sentBits  int64
}

func newPacer(bitrate, burstBits int64, maxPacketSize int) *pacer {
	if bitrate <= 0 {
		return nil
	}
	return &pacer{bitrate: bitrate, burstBits: burstBits, maxPacketSize: maxPacketSize}
}

// throttle sleeps as needed before a packet of packetLenBytes is sent,
// maintaining (start_time, sent_bits) and enforcing the max_delay
// clamp described in spec §4.6.
func (p *pacer) throttle(packetLenBytes int) {
	now := time.Now()
	if p.startTime.IsZero() {
		p.startTime = now
	}

	targetMicros := p.sentBits * 1_000_000 / p.bitrate
	targetTime := p.startTime.Add(time.Duration(targetMicros) * time.Microsecond)
	burstInterval := time.Duration(p.burstBits*1_000_000/p.bitrate) * time.Microsecond

	if now.Before(targetTime) {
		maxDelay := time.Duration(int64(p.maxPacketSize)*8*1_000_000/p.bitrate+1) * time.Microsecond
		delay := targetTime.Sub(now)
		if delay > maxDelay {
			// Debt beyond max_delay is forgiven rather than carried:
			// reset the bucket using the clamped delay, before
			// sleeping, mirroring udp.c's circular_buffer_task_tx.
			delay = maxDelay
			p.startTime = now.Add(delay)
			p.sentBits = 0
		}
		time.Sleep(delay)
	} else if now.Sub(targetTime) > burstInterval {
		// Resuming after an idle gap wider than one burst window:
		// reset the bucket rather than letting it pay down debt from
		// a window nobody was sending in.
		p.startTime = now.Add(-burstInterval)
		p.sentBits = 0
	}

	p.sentBits += int64(packetLenBytes) * 8
}

func isTimeoutErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// runRxWorker is the receive-side worker (spec §4.6): blocking recv
// into a reused buffer, decode outside the ring's mutex (each publish
// takes it inside pushRecord), signal on each push. Cancellation is cooperative: a short read deadline lets it
// notice closeCh without relying on a true cancel-out-of-recv
// primitive (spec §9's note on cooperative close_req).
func runRxWorker(ep *Endpoint, dec *decoderPipeline, ring *ringBuffer, closeCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	buf := make([]byte, BlockBytes+1)
	for {
		select {
		case <-closeCh:
			return
		default:
		}

		_ = ep.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := ep.Recv(buf)
		if err != nil {
			if isTimeoutErr(err) {
				continue
			}
			select {
			case <-closeCh:
				return
			default:
			}
			ring.setErr(errors.Wrap(err, "udpfec: socket read error"))
			return
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		if err := dec.ingest(datagram); err != nil {
			switch err {
			case ErrFecMalformedHeader, ErrCodecError, ErrFecGroupFull:
				continue // aborts only the offending packet/group
			case ErrBufferOverrun:
				ring.setErr(ErrBufferOverrun)
				return
			default:
				ring.setErr(err)
				return
			}
		}
	}
}

// runTxWorker is the transmit-side worker (spec §4.6): wait for a
// queued record, release the mutex around the send syscall, and
// apply pacing when a bitrate is configured.
func runTxWorker(ep *Endpoint, ring *ringBuffer, p *pacer, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		rec, err := ring.popRecord()
		if err != nil {
			if err == ErrClosed {
				return
			}
			ring.setErr(err)
			return
		}

		if p != nil {
			p.throttle(len(rec))
		}

		if err := ep.Send(rec); err != nil {
			ring.setErr(errors.Wrap(err, "udpfec: socket write error"))
			return
		}
	}
}
