// Copyright 2026 the usbmon Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package usbmon

import (
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// The YKUSH board enumerates a HID device next to its internal hub; port
// power is commanded through one-byte HID output reports sent to that
// device over endpoint zero.
const (
	YkushVendor  gousb.ID = 0x04d8
	YkushProduct gousb.ID = 0x0042

	ykushNumPorts = 3

	// Command bytes, OR'ed with the port number (1-based).
	ykushCmdPortOff = 0x10
	ykushCmdPortOn  = 0x11

	// HID SET_REPORT carrying the command.
	ykushRequestType = uint8(gousb.ControlOut | gousb.ControlClass | gousb.ControlInterface)
	ykushRequest     = 0x09
	ykushReportValue = 0x0200 // output report, report id 0
)

// newYkushHub wraps an opened YKUSH HID device. The switched ports hang off
// the board's internal hub, one level above the HID device itself.
func newYkushHub(dev Device) *Hub {
	h := &Hub{
		dev:      dev,
		path:     dev.Info().Path.Parent(),
		numPorts: ykushNumPorts,
	}
	h.backend = &ykushBackend{hub: h}
	return h
}

type ykushBackend struct {
	hub *Hub
}

func (b *ykushBackend) String() string { return "YKUSH" }

func (b *ykushBackend) command(cmd byte) error {
	if b.hub.dev == nil {
		return errors.New("ykush: hub control device is gone")
	}
	if _, err := b.hub.dev.Control(ykushRequestType, ykushRequest, ykushReportValue, 0, []byte{cmd}); err != nil {
		return fmt.Errorf("ykush command %#02x: %w", cmd, err)
	}
	return nil
}

func (b *ykushBackend) PowerOff(p *Port) error {
	return b.command(byte(ykushCmdPortOff | p.number))
}

func (b *ykushBackend) PowerOn(p *Port) error {
	return b.command(byte(ykushCmdPortOn | p.number))
}

func (b *ykushBackend) Describe(p *Port) string {
	if p.status == StatusNoDevice {
		return fmt.Sprintf("YKUSH %s: %s, %s, power %s", p, p.status, p.mode, p.power)
	}
	return fmt.Sprintf("YKUSH %s: %s:%s %s, %s, power %s",
		p, p.vendor, p.product, p.deviceName(), p.mode, p.power)
}
