// BSD 3-Clause License
//
// Copyright (c) 2020, Sperax
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this
//    list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"

	"code.cloudfoundry.org/bytefmt"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/julian-baumann/data-rct/nearby"
	"github.com/julian-baumann/data-rct/wire"
)

// deviceIdentity is the on-disk JSON shape written by gendevice and read
// by serve/discover.
type deviceIdentity struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
}

func main() {
	app := &cli.App{
		Name:                 "nearbyctl",
		Usage:                "run a nearby-sharing connection engine node",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "gendevice",
				Usage: "generate a device identity file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true, Usage: "stable device id"},
					&cli.StringFlag{Name: "name", Required: true, Usage: "human-readable device name"},
					&cli.StringFlag{Name: "type", Value: "computer", Usage: "mobile, computer, or other"},
					&cli.StringFlag{Name: "out", Value: "./device.json", Usage: "output path"},
				},
				Action: func(c *cli.Context) error {
					identity := deviceIdentity{
						Id:         c.String("id"),
						Name:       c.String("name"),
						DeviceType: c.String("type"),
					}
					file, err := os.Create(c.String("out"))
					if err != nil {
						return err
					}
					defer file.Close()

					enc := json.NewEncoder(file)
					enc.SetIndent("", "\t")
					if err := enc.Encode(identity); err != nil {
						return err
					}
					log.Println("wrote device identity to", c.String("out"))
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "start the connection engine and auto-accept incoming transfers",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "device", Value: "./device.json", Usage: "device identity file"},
					&cli.StringFlag{Name: "dest", Value: ".", Usage: "destination directory for received files"},
				},
				Action: func(c *cli.Context) error {
					device, err := loadDevice(c.String("device"))
					if err != nil {
						return err
					}

					destDir := c.String("dest")
					delegate := &autoAcceptDelegate{destDir: destDir}
					server, err := nearby.NewServer(device, destDir, delegate)
					if err != nil {
						return err
					}

					if err := server.Start(); err != nil {
						return err
					}
					defer server.Stop()

					log.Printf("serving as %s (%s), writing received files to %s", device.Name, device.Id, destDir)

					sigCh := make(chan os.Signal, 1)
					signal.Notify(sigCh, os.Interrupt)
					<-sigCh
					return nil
				},
			},
			{
				Name:  "send",
				Usage: "send a file to a peer reachable over tcp",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "device", Value: "./device.json", Usage: "device identity file"},
					&cli.StringFlag{Name: "to", Required: true, Usage: "receiver device id"},
					&cli.StringFlag{Name: "to-name", Value: "peer", Usage: "receiver device name"},
					&cli.StringFlag{Name: "host", Required: true, Usage: "receiver tcp hostname"},
					&cli.IntFlag{Name: "port", Required: true, Usage: "receiver tcp port"},
					&cli.StringFlag{Name: "file", Required: true, Usage: "path of the file to send"},
				},
				Action: func(c *cli.Context) error {
					device, err := loadDevice(c.String("device"))
					if err != nil {
						return err
					}

					server, err := nearby.NewServer(device, ".", nil)
					if err != nil {
						return err
					}

					receiver := &wire.Device{
						Id:              c.String("to"),
						Name:            c.String("to-name"),
						ProtocolVersion: nearby.ProtocolVersion,
					}
					announcement := &wire.DeviceDiscoveryMessage{
						ConnectionInfo: &wire.DeviceConnectionInfo{
							Device: receiver,
							Tcp: &wire.TcpConnectionInfo{
								Hostname: c.String("host"),
								Port:     uint32(c.Int("port")),
							},
						},
					}
					payload, err := announcement.Marshal()
					if err != nil {
						return err
					}
					if err := server.Registry().ParseDiscoveryMessage(payload, ""); err != nil {
						return err
					}

					path := c.String("file")
					return server.SendFile(receiver.Id, path, loggingSendDelegate{path: path})
				},
			},
			{
				Name:  "discover",
				Usage: "render the discovery registry as a table",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "device", Value: "./device.json", Usage: "device identity file"},
					&cli.StringFlag{Name: "feed", Usage: "path to a file of base64-encoded DeviceDiscoveryMessage payloads, one per line"},
				},
				Action: func(c *cli.Context) error {
					device, err := loadDevice(c.String("device"))
					if err != nil {
						return err
					}

					server, err := nearby.NewServer(device, ".", nil)
					if err != nil {
						return err
					}

					if feedPath := c.String("feed"); feedPath != "" {
						if err := feedDiscoveryPayloads(server, feedPath); err != nil {
							return err
						}
					}

					printRegistry(server)
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			cli.ShowAppHelp(c)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadDevice(path string) (*wire.Device, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	identity := new(deviceIdentity)
	if err := json.NewDecoder(file).Decode(identity); err != nil {
		return nil, err
	}

	return &wire.Device{
		Id:              identity.Id,
		Name:            identity.Name,
		DeviceType:      nearby.ParseDeviceType(identity.DeviceType),
		ProtocolVersion: nearby.ProtocolVersion,
	}, nil
}

func feedDiscoveryPayloads(server *nearby.Server, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var line string
	for {
		n, err := fmt.Fscanln(file, &line)
		if n == 0 || err != nil {
			break
		}
		payload, decodeErr := base64.StdEncoding.DecodeString(line)
		if decodeErr != nil {
			log.Printf("nearbyctl: skipping malformed feed line: %v", decodeErr)
			continue
		}
		if err := server.Registry().ParseDiscoveryMessage(payload, ""); err != nil {
			log.Printf("nearbyctl: skipping unparsable feed payload: %v", err)
		}
	}
	return nil
}

func printRegistry(server *nearby.Server) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Id", "Name", "Type", "TCP", "BLE"})

	for _, info := range server.Registry().Snapshot() {
		tcp := "-"
		if info.Tcp != nil {
			tcp = info.Tcp.Hostname + ":" + strconv.Itoa(int(info.Tcp.Port))
		}
		ble := "-"
		if info.Ble != nil {
			ble = info.Ble.Uuid
		}
		table.Append([]string{
			info.Device.Id,
			info.Device.Name,
			nearby.DeviceTypeName(info.Device.DeviceType),
			tcp,
			ble,
		})
	}
	table.Render()
}

// autoAcceptDelegate accepts every incoming transfer and logs its progress
// as a percentage.
type autoAcceptDelegate struct {
	destDir string
}

func (d *autoAcceptDelegate) OnIncomingConnection(req *nearby.ConnectionRequest) {
	go func() {
		if err := req.Accept(loggingReceiveDelegate{sender: req.Sender().Id}); err != nil {
			log.Printf("nearbyctl: accept failed: %v", err)
		}
	}()
}

type loggingReceiveDelegate struct {
	sender string
}

func (d loggingReceiveDelegate) OnReceiveProgress(state nearby.ReceiveProgressState) {
	switch state.Kind {
	case nearby.ReceiveTransferring:
		log.Printf("receiving from %s: %.0f%%", d.sender, state.Progress*100)
	case nearby.ReceiveFinished:
		log.Printf("receive from %s finished", d.sender)
	case nearby.ReceiveCancelled:
		log.Printf("receive from %s cancelled", d.sender)
	}
}

// loggingSendDelegate reports a send_file call's progress, formatting the
// final transferred size with bytefmt once the transfer completes.
type loggingSendDelegate struct {
	path string
}

func (d loggingSendDelegate) OnSendProgress(state nearby.SendProgressState) {
	switch state.Kind {
	case nearby.SendConnecting:
		log.Println("nearbyctl: connecting")
	case nearby.SendRequesting:
		log.Println("nearbyctl: awaiting accept")
	case nearby.SendTransferring:
		log.Printf("nearbyctl: sending: %.0f%%", state.Progress*100)
	case nearby.SendFinished:
		size := "unknown size"
		if stat, err := os.Stat(d.path); err == nil {
			size = bytefmt.ByteSize(uint64(stat.Size()))
		}
		log.Printf("nearbyctl: send finished (%s)", size)
	case nearby.SendDeclined:
		log.Println("nearbyctl: send declined by receiver")
	case nearby.SendCancelled:
		log.Println("nearbyctl: send cancelled")
	}
}
