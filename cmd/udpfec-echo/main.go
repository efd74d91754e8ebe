// The MIT License (MIT)
//
// Copyright (c) 2015 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Command udpfec-echo exercises the udpfec transport end to end: in
// listen mode it logs every message the decoder recovers; in dial
// mode it sends each line of stdin as one message per write. Reply
// routing isn't part of this transport's API (Send addresses a single
// configured remote, not "whoever sent the last datagram"), so this
// is a one-way demo rather than a true echo server.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	udpfec "github.com/xtaci/udpfec"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "udpfec-echo"
	app.Usage = "exercise the udpfec transport"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen,l",
			Usage: "udp:// URL to listen on, eg udp://:29900",
		},
		cli.StringFlag{
			Name:  "dial,d",
			Usage: "udp:// URL to dial, eg udp://127.0.0.1:29900",
		},
		cli.IntFlag{
			Name:  "datashard,ds",
			Value: udpfec.OriginalCount,
			Usage: "set reed-solomon erasure coding - datashard",
		},
		cli.IntFlag{
			Name:  "parityshard,ps",
			Value: udpfec.DefaultRecoveryCount,
			Usage: "set reed-solomon erasure coding - parityshard",
		},
		cli.IntFlag{
			Name:  "bitrate",
			Value: 0,
			Usage: "cap outgoing bits/sec, 0 to disable pacing",
		},
		cli.StringFlag{
			Name:  "config,c",
			Usage: "path to a JSON config file (overridden by other flags when set)",
		},
	}

	app.Action = func(c *cli.Context) error {
		config := udpfec.Config{}
		if path := c.String("config"); path != "" {
			if err := udpfec.ParseJSONConfig(&config, path); err != nil {
				return errors.Wrap(err, "parsing config file")
			}
		}
		if c.IsSet("datashard") {
			config.DataShard = c.Int("datashard")
		}
		if c.IsSet("parityshard") {
			config.ParityShard = c.Int("parityshard")
		}
		if c.IsSet("bitrate") {
			config.Bitrate = int64(c.Int("bitrate"))
		}

		opts := config.ToOptions()

		switch {
		case c.String("listen") != "":
			return runListener(c.String("listen"), opts)
		case c.String("dial") != "":
			return runDialer(c.String("dial"), opts)
		default:
			return errors.New("one of -listen or -dial is required")
		}
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("udpfec-echo: %v", err)
		os.Exit(1)
	}
}

func runListener(url string, opts udpfec.Options) error {
	t, err := udpfec.Open(url, opts, udpfec.OpenFlags{Read: true})
	if err != nil {
		return errors.Wrap(err, "opening listener")
	}
	defer t.Close()

	color.Green("listening on %s (K=%d R=%d)", url, opts.OriginalCount, opts.RecoveryCount)

	buf := make([]byte, udpfec.BlockBytes)
	for {
		n, err := t.Read(buf)
		if err != nil {
			return errors.Wrap(err, "reading")
		}
		log.Printf("recovered %d bytes: %q", n, buf[:n])
	}
}

func runDialer(url string, opts udpfec.Options) error {
	t, err := udpfec.Open(url, opts, udpfec.OpenFlags{Write: true})
	if err != nil {
		return errors.Wrap(err, "dialing")
	}
	defer t.Close()

	color.Green("dialed %s (K=%d R=%d)", url, opts.OriginalCount, opts.RecoveryCount)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if _, err := t.Write(line); err != nil {
			return errors.Wrap(err, "writing")
		}
		fmt.Println("sent")
	}
	return scanner.Err()
}
