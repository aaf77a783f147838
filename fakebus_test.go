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
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/google/gousb"
)

// fakeBus implements Bus over an in-memory device list. Tests either post
// events through the channel and run ticks, or hand them to the monitor's
// handlers directly.
type fakeBus struct {
	events  chan Event
	devices []*fakeDevice
}

func newFakeBus() *fakeBus {
	return &fakeBus{events: make(chan Event, 16)}
}

func (b *fakeBus) Events() <-chan Event { return b.events }

func (b *fakeBus) Snapshot() ([]Event, error) {
	evs := make([]Event, 0, len(b.devices))
	for _, d := range b.devices {
		evs = append(evs, d.arrival())
	}
	return evs, nil
}

func (b *fakeBus) Close() error { return nil }

// plug makes the device part of the bus snapshot and returns its arrival
// event.
func (b *fakeBus) plug(d *fakeDevice) Event {
	b.devices = append(b.devices, d)
	return d.arrival()
}

// unplug removes the device from the snapshot and returns its departure
// event.
func (b *fakeBus) unplug(d *fakeDevice) Event {
	for i, o := range b.devices {
		if o == d {
			b.devices = append(b.devices[:i], b.devices[i+1:]...)
			break
		}
	}
	return Event{Type: DeviceLeft, Info: d.info}
}

// controlCall is one recorded control transfer.
type controlCall struct {
	rType, request uint8
	val, idx       uint16
	data           []byte
}

// fakeDevice records control transfers and optionally fails them.
type fakeDevice struct {
	info       DeviceInfo
	controls   []controlCall
	controlErr error
	closed     bool
}

func newFakeDevice(bus, addr int, path Path, vendor, product gousb.ID) *fakeDevice {
	return &fakeDevice{info: DeviceInfo{
		Bus:     bus,
		Address: addr,
		Path:    path,
		Vendor:  vendor,
		Product: product,
	}}
}

func (d *fakeDevice) Info() DeviceInfo { return d.info }

func (d *fakeDevice) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	d.controls = append(d.controls, controlCall{
		rType:   rType,
		request: request,
		val:     val,
		idx:     idx,
		data:    append([]byte(nil), data...),
	})
	if d.controlErr != nil {
		return 0, d.controlErr
	}
	return len(data), nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDevice) arrival() Event {
	return Event{
		Type: DeviceArrived,
		Info: d.info,
		open: func() (Device, error) { d.closed = false; return d, nil },
	}
}

// commands returns the YKUSH command bytes the device has received.
func (d *fakeDevice) commands() []byte {
	var out []byte
	for _, c := range d.controls {
		if c.request == ykushRequest && len(c.data) == 1 {
			out = append(out, c.data[0])
		}
	}
	return out
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeLine records GPIO writes.
type fakeLine struct {
	writes []bool
	err    error
}

func (l *fakeLine) Set(on bool) error {
	if l.err != nil {
		return l.err
	}
	l.writes = append(l.writes, on)
	return nil
}

// newTestMonitor wires a monitor to a fake bus, a manual clock and an
// in-memory log handler.
func newTestMonitor(bus Bus) (*Monitor, *fakeClock, *memory.Handler) {
	h := memory.New()
	m := New(bus, &log.Logger{Handler: h, Level: log.InfoLevel})
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	m.now = clk.now
	m.lastDevCheck = clk.t
	m.lastRestart = clk.t
	return m, clk, h
}

// plugYkush onboards a YKUSH board whose HID device sits at hidPath and
// returns the HID fake for command inspection.
func plugYkush(m *Monitor, bus *fakeBus, addr int, hidPath Path) *fakeDevice {
	hid := newFakeDevice(hidPath.Bus, addr, hidPath, YkushVendor, YkushProduct)
	m.handleEvent(bus.plug(hid))
	return hid
}
