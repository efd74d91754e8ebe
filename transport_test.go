package udpfec

import (
	"bytes"
	"testing"
	"time"
)

// TestTransportLoopbackSyncWriteRead exercises Open/Write/Read/Close
// end to end over a real loopback socket pair in sync mode (no
// Bitrate, no CircularBufferSize), matching spec §4.8's default
// facade behavior.
func TestTransportLoopbackSyncWriteRead(t *testing.T) {
	opts := DefaultOptions()
	opts.CircularBufferSize = 0 // sync read: single recv, no FEC pipeline

	server, err := Open("udp://127.0.0.1:0", opts, OpenFlags{Read: true})
	if err != nil {
		t.Fatalf("Open server: %v", err)
	}
	defer server.Close()

	clientURL := "udp://" + server.LocalAddr().String()
	client, err := Open(clientURL, opts, OpenFlags{Write: true})
	if err != nil {
		t.Fatalf("Open client: %v", err)
	}
	defer client.Close()

	msg := []byte("hello over loopback")
	if err := client.ep.Send(msg); err != nil {
		t.Fatalf("raw send: %v", err)
	}

	server.opts.Timeout = 1000
	buf := make([]byte, 1500)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf[:n], msg) {
		t.Fatalf("Read = %q, want %q", buf[:n], msg)
	}
}

// TestTransportLoopbackAsyncRoundTrip drives a full group through the
// FEC-enabled async path over a real loopback socket: one side's
// encoder emits K+R datagrams, the other side's rx worker decodes and
// republishes the group's originals onto its read ring.
func TestTransportLoopbackAsyncRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.OriginalCount = OriginalCount
	opts.RecoveryCount = DefaultRecoveryCount

	server, err := Open("udp://127.0.0.1:0", opts, OpenFlags{Read: true})
	if err != nil {
		t.Fatalf("Open server: %v", err)
	}
	defer server.Close()

	clientURL := "udp://" + server.LocalAddr().String()
	client, err := Open(clientURL, opts, OpenFlags{Write: true})
	if err != nil {
		t.Fatalf("Open client: %v", err)
	}
	defer client.Close()

	msgs := tenMessages()
	for _, m := range msgs {
		if _, err := client.Write(m); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	for i, want := range msgs {
		buf := make([]byte, 1500)
		n, err := waitForRead(t, server, buf, 2*time.Second)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !bytes.Equal(buf[:n], want) {
			t.Fatalf("record %d = %q, want %q", i, buf[:n], want)
		}
	}
}

func waitForRead(t *testing.T, tr *Transport, buf []byte, timeout time.Duration) (int, error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		n, err := tr.TryRead(buf)
		if err == nil {
			return n, nil
		}
		if err != ErrWouldBlock {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
		time.Sleep(5 * time.Millisecond)
	}
}
