package udpfec

import (
	"encoding/json"
	"os"
)

// Config mirrors the JSON-tagged struct xtaci-kcptun's server/config.go
// decodes with encoding/json, extended with this transport's options.
// A URL query string, when also supplied to Open, still takes
// precedence over Config fields (spec §9).
type Config struct {
	LocalAddr  string `json:"localaddr"`
	RemoteAddr string `json:"remoteaddr"`

	DataShard   int `json:"datashard"`
	ParityShard int `json:"parityshard"`

	MTU     int `json:"mtu"`
	SockBuf int `json:"sockbuf"`
	RcvBuf  int `json:"rcvbuf"`
	SndBuf  int `json:"sndbuf"`
	TTL     int `json:"ttl"`

	ReuseSocket     bool `json:"reuse_socket"`
	IsBroadcast     bool `json:"broadcast"`
	IsConnected     bool `json:"connected"`
	UDPLite         bool `json:"udplite"`
	UDPLiteCoverage int  `json:"udplite_coverage"`

	Sources []string `json:"sources"`
	Block   []string `json:"block"`

	CircularBufferSize int   `json:"circularbuf"`
	Bitrate            int64 `json:"bitrate"`
	BurstBits          int64 `json:"burstbits"`
	OverrunNonfatal    bool  `json:"overrun_nonfatal"`
	Timeout            int   `json:"timeout"`
}

// ParseJSONConfig decodes a Config from path, matching
// server/config.go's parseJSONConfig(config *Config, path string)
// exactly.
func ParseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(config)
}

// ToOptions converts a Config into Options, applying spec defaults
// for any field left at its zero value.
func (c Config) ToOptions() Options {
	o := DefaultOptions()
	if c.DataShard > 0 {
		o.OriginalCount = c.DataShard
	}
	if c.ParityShard > 0 {
		o.RecoveryCount = c.ParityShard
	}
	if c.MTU > 0 {
		o.PacketSize = c.MTU
	}
	if c.SockBuf > 0 {
		o.SendBufferSize, o.RecvBufferSize = c.SockBuf, c.SockBuf
	}
	if c.RcvBuf > 0 {
		o.RecvBufferSize = c.RcvBuf
	}
	if c.SndBuf > 0 {
		o.SendBufferSize = c.SndBuf
	}
	o.TTL = c.TTL
	if c.ReuseSocket {
		reuse := true
		o.ReuseSocket = &reuse
	}
	o.IsBroadcast = c.IsBroadcast
	o.IsConnected = c.IsConnected
	o.UDPLite = c.UDPLite
	o.UDPLiteCoverage = c.UDPLiteCoverage
	o.Sources = c.Sources
	o.Block = c.Block
	if c.CircularBufferSize > 0 {
		o.CircularBufferSize = c.CircularBufferSize
	}
	o.Bitrate = c.Bitrate
	o.BurstBits = c.BurstBits
	o.OverrunNonfatal = c.OverrunNonfatal
	o.Timeout = c.Timeout
	return o
}
