package udpfec

import "testing"

func TestParseURLHostPortAndQuery(t *testing.T) {
	pu, err := parseURL("udp://239.0.0.1:5004?ttl=4&sources=10.0.0.1,10.0.0.2")
	if err != nil {
		t.Fatalf("parseURL: %v", err)
	}
	if pu.host != "239.0.0.1" {
		t.Fatalf("host = %q, want 239.0.0.1", pu.host)
	}
	if pu.port != "5004" {
		t.Fatalf("port = %q, want 5004", pu.port)
	}
	if got := pu.query.Get("ttl"); got != "4" {
		t.Fatalf("ttl query = %q, want 4", got)
	}
}

func TestParseURLRejectsNonUDPScheme(t *testing.T) {
	if _, err := parseURL("tcp://127.0.0.1:9"); err == nil {
		t.Fatal("expected an error for a non-udp scheme")
	}
}

func TestParseURLEmptyHostForListener(t *testing.T) {
	pu, err := parseURL("udp://:5004")
	if err != nil {
		t.Fatalf("parseURL: %v", err)
	}
	if pu.host != "" {
		t.Fatalf("host = %q, want empty", pu.host)
	}
	if pu.port != "5004" {
		t.Fatalf("port = %q, want 5004", pu.port)
	}
}

func TestApplyQueryOverridesConfigDefaults(t *testing.T) {
	opts := DefaultOptions()
	opts.SendBufferSize = 1111 // stand in for a value loaded from Config

	pu, err := parseURL("udp://127.0.0.1:5004?sndbuf=2222&datashard=6&parityshard=3")
	if err != nil {
		t.Fatalf("parseURL: %v", err)
	}
	if err := opts.applyQuery(pu.query); err != nil {
		t.Fatalf("applyQuery: %v", err)
	}

	if opts.SendBufferSize != 2222 {
		t.Fatalf("SendBufferSize = %d, want 2222 (query must win over Config)", opts.SendBufferSize)
	}
	if opts.OriginalCount != 6 {
		t.Fatalf("OriginalCount = %d, want 6", opts.OriginalCount)
	}
	if opts.RecoveryCount != 3 {
		t.Fatalf("RecoveryCount = %d, want 3", opts.RecoveryCount)
	}
}

func TestApplyQueryBufferSizeSetsBothDirections(t *testing.T) {
	opts := DefaultOptions()
	pu, _ := parseURL("udp://127.0.0.1:5004?buffer_size=4096")
	if err := opts.applyQuery(pu.query); err != nil {
		t.Fatalf("applyQuery: %v", err)
	}
	if opts.SendBufferSize != 4096 || opts.RecvBufferSize != 4096 {
		t.Fatalf("buffer_size did not set both directions: send=%d recv=%d", opts.SendBufferSize, opts.RecvBufferSize)
	}
}

func TestApplyQueryBooleanVariants(t *testing.T) {
	for _, tt := range []struct {
		raw  string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"0", false},
		{"false", false},
		{"", false},
	} {
		b, err := parseBool(tt.raw)
		if err != nil {
			t.Fatalf("parseBool(%q): %v", tt.raw, err)
		}
		if b != tt.want {
			t.Fatalf("parseBool(%q) = %v, want %v", tt.raw, b, tt.want)
		}
	}
	if _, err := parseBool("maybe"); err == nil {
		t.Fatal("expected an error for an unrecognized boolean")
	}
}

func TestApplyQueryUnrecognizedOptionIgnored(t *testing.T) {
	opts := DefaultOptions()
	pu, _ := parseURL("udp://127.0.0.1:5004?nonsense=yes")
	if err := opts.applyQuery(pu.query); err != nil {
		t.Fatalf("applyQuery should ignore unrecognized options, got: %v", err)
	}
}

func TestMaxPacketSize(t *testing.T) {
	opts := DefaultOptions()
	if got, want := opts.MaxPacketSize(), BlockBytes-3; got != want {
		t.Fatalf("MaxPacketSize = %d, want %d", got, want)
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Fatalf("splitList(\"\") = %v, want nil", got)
	}
	got := splitList("a,b,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
