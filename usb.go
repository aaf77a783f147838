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

	"github.com/google/gousb"
)

// Control transfer parameters of the liveness probe: a standard GET_STATUS
// directed at the device on endpoint zero.
const (
	probeRequestType = uint8(gousb.ControlIn | gousb.ControlStandard | gousb.ControlDevice)
	probeRequest     = 0x00
	probeDataLen     = 2
)

// EventType distinguishes hotplug arrivals from departures.
type EventType int

const (
	DeviceArrived EventType = iota
	DeviceLeft
)

func (t EventType) String() string {
	switch t {
	case DeviceArrived:
		return "arrived"
	case DeviceLeft:
		return "left"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// DeviceInfo describes a device's identity and bus position. Two infos with
// the same bus number and address refer to the same attachment; the address
// changes when a device re-enumerates.
type DeviceInfo struct {
	Bus     int
	Address int
	Path    Path
	Vendor  gousb.ID
	Product gousb.ID
	Class   gousb.Class
}

// SameDevice reports whether both infos refer to the same attachment.
func (i DeviceInfo) SameDevice(o DeviceInfo) bool {
	return i.Bus == o.Bus && i.Address == o.Address
}

func (i DeviceInfo) String() string {
	return fmt.Sprintf("%s:%s at %s", i.Vendor, i.Product, i.Path)
}

// Device is an opened handle on an attached USB device. Closing the handle
// drops the supervisor's reference; the device itself stays on the bus.
type Device interface {
	Info() DeviceInfo
	// Control performs a synchronous control transfer on endpoint zero.
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	Close() error
}

// Event is one hotplug notification. Open is only valid for arrivals and
// may fail if the device is gone by the time it is called.
type Event struct {
	Type EventType
	Info DeviceInfo

	open func() (Device, error)
}

// Open obtains a handle on the arrived device.
func (e Event) Open() (Device, error) {
	if e.open == nil {
		return nil, fmt.Errorf("device %s cannot be opened", e.Info)
	}
	return e.open()
}

// Bus is the supervisor's view of the host USB subsystem. Events delivers
// hotplug notifications, including synthesized arrivals for devices present
// when the bus was opened. Snapshot returns arrival-shaped records for the
// current device list, used by the periodic device sweep and by hub
// onboarding.
type Bus interface {
	Events() <-chan Event
	Snapshot() ([]Event, error)
	Close() error
}

// eventBuffer absorbs the burst of arrivals that a freshly plugged hub
// produces. The hotplug callback runs on gousb's event goroutine and must
// never block there.
const eventBuffer = 64

// gousbBus adapts a gousb Context to the Bus interface. Hotplug callbacks
// only convert and enqueue; all supervisor state stays on the loop
// goroutine.
type gousbBus struct {
	ctx    *gousb.Context
	events chan Event
	cb     gousb.HotplugCallback
}

// NewBus registers for hotplug events (including enumeration of devices
// already present) on the given context. The context stays owned by the
// caller.
func NewBus(ctx *gousb.Context) (Bus, error) {
	b := &gousbBus{
		ctx:    ctx,
		events: make(chan Event, eventBuffer),
	}
	cb, err := ctx.Hotplug().Arrived().Left().Enumerate().Register(b.hotplug)
	if err != nil {
		return nil, fmt.Errorf("registering hotplug callback: %w", err)
	}
	b.cb = cb
	return b, nil
}

func (b *gousbBus) hotplug(e gousb.HotplugEvent) {
	desc, err := e.DeviceDesc()
	if err != nil {
		return
	}
	ev := Event{Info: infoFromDesc(desc)}
	switch e.Type() {
	case gousb.HotplugEventDeviceArrived:
		ev.Type = DeviceArrived
		ev.open = b.opener(ev.Info)
	case gousb.HotplugEventDeviceLeft:
		ev.Type = DeviceLeft
	default:
		return
	}
	select {
	case b.events <- ev:
	default:
		// Dropped on overflow. The device sweep picks up a missed
		// arrival; a missed departure surfaces as failing probes.
	}
}

// opener resolves the device by bus position at open time. Hotplug event
// objects must not be used outside the callback, so this re-enumerates.
func (b *gousbBus) opener(info DeviceInfo) func() (Device, error) {
	return func() (Device, error) {
		devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
			return desc.Bus == info.Bus && desc.Address == info.Address
		})
		if len(devs) == 0 {
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", info, err)
			}
			return nil, fmt.Errorf("device %s is gone", info)
		}
		for _, d := range devs[1:] {
			d.Close()
		}
		dev := devs[0]
		// Endpoint-zero class commands collide with a bound kernel driver
		// (the YKUSH HID); let libusb detach it on demand. Best effort, a
		// device without a driver reports an error here.
		_ = dev.SetAutoDetach(true)
		return &gousbDevice{dev: dev, info: info}, nil
	}
}

func infoFromDesc(desc *gousb.DeviceDesc) DeviceInfo {
	return DeviceInfo{
		Bus:     desc.Bus,
		Address: desc.Address,
		Path:    Path{Bus: desc.Bus, Ports: append([]int(nil), desc.Path...)},
		Vendor:  desc.Vendor,
		Product: desc.Product,
		Class:   desc.Class,
	}
}

func (b *gousbBus) Events() <-chan Event { return b.events }

func (b *gousbBus) Snapshot() ([]Event, error) {
	var evs []Event
	// OpenDevices is the only enumeration gousb offers; decline every
	// device so none is actually opened here.
	_, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		info := infoFromDesc(desc)
		evs = append(evs, Event{Type: DeviceArrived, Info: info, open: b.opener(info)})
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	return evs, nil
}

func (b *gousbBus) Close() error {
	b.cb.Deregister()
	return nil
}

type gousbDevice struct {
	dev  *gousb.Device
	info DeviceInfo
}

func (d *gousbDevice) Info() DeviceInfo { return d.info }

func (d *gousbDevice) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return d.dev.Control(rType, request, val, idx, data)
}

func (d *gousbDevice) Close() error { return d.dev.Close() }
