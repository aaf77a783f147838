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
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/google/gousb/usbid"
)

// Status says whether a port currently has a device attached.
type Status uint8

const (
	StatusNoDevice Status = iota
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusNoDevice:
		return "no device"
	case StatusConnected:
		return "connected"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// PowerState is the assumed state of a port's power rail. The hardware does
// not report the truth; ports are assumed on until the supervisor switches
// them, and the no-device restart sweep corrects any drift.
type PowerState uint8

const (
	PowerOff PowerState = iota
	PowerOn
)

func (s PowerState) String() string {
	switch s {
	case PowerOff:
		return "off"
	case PowerOn:
		return "on"
	}
	return fmt.Sprintf("PowerState(%d)", uint8(s))
}

// Mode is the current stage of a port's supervision state machine.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModePing
	ModeReset
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePing:
		return "ping"
	case ModeReset:
		return "reset"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Port is one supervised downstream position on a switching hub. Ports are
// created when their hub is onboarded and live until the hub departs;
// device bindings come and go with hotplug events.
type Port struct {
	hub    *Hub // not owned; the hub outlives its ports
	path   Path
	number int // position on the parent hub

	dev     Device // nil exactly when status is StatusNoDevice
	vendor  gousb.ID
	product gousb.ID

	status  Status
	power   PowerState
	mode    Mode
	retrans int
	pings   uint64

	deadline time.Time
	probeBuf [probeDataLen]byte
}

func newPort(hub *Hub, number int, path Path) *Port {
	return &Port{
		hub:    hub,
		path:   path,
		number: number,
		power:  PowerOn,
	}
}

// bind attaches an opened device to the port and caches its identifiers.
func (p *Port) bind(dev Device) {
	info := dev.Info()
	p.dev = dev
	p.vendor = info.Vendor
	p.product = info.Product
	p.status = StatusConnected
	p.mode = ModePing
	p.retrans = 0
}

// unbind drops the device binding, if any, releasing the handle. The cached
// vendor/product survive for logging.
func (p *Port) unbind() {
	if p.dev != nil {
		p.dev.Close()
		p.dev = nil
	}
	p.status = StatusNoDevice
}

// deviceName resolves a human-readable name for the cached identifiers.
func (p *Port) deviceName() string {
	return usbid.Describe(&gousb.DeviceDesc{Vendor: p.vendor, Product: p.product})
}

func (p *Port) String() string {
	return fmt.Sprintf("port %d (%s)", p.number, p.path)
}
