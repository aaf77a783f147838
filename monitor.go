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
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/gousb"
)

// Monitor owns the topology registry and runs the supervision loop. All
// state lives on the loop goroutine; hotplug callbacks and the operator
// signal reach it as messages.
type Monitor struct {
	bus Bus
	reg *Registry
	log log.Interface
	now func() time.Time

	force chan struct{}

	lastDevCheck time.Time
	lastRestart  time.Time
}

func New(bus Bus, logger log.Interface) *Monitor {
	return &Monitor{
		bus:   bus,
		reg:   NewRegistry(),
		log:   logger,
		now:   time.Now,
		force: make(chan struct{}, 1),
	}
}

// AddGPIOHandler creates the synthetic hub described by a GPIO handler
// configuration entry. Paths already supervised by another hub are refused.
func (m *Monitor) AddGPIOHandler(ports map[string]int) error {
	hub, hubPorts, err := newGPIOHub(ports)
	if err != nil {
		return err
	}
	for _, p := range hubPorts {
		if other := m.reg.FindPortByPath(p.path); other != nil {
			return fmt.Errorf("duplicate supervised path %s", p.path)
		}
	}
	m.reg.AddHub(hub)
	for _, p := range hubPorts {
		m.reg.AddPort(p)
	}
	return nil
}

// ForceReset asks the loop to power cycle every port. Safe to call from
// any goroutine; the transition happens on the loop goroutine at the next
// tick. Requests collapse while one is pending.
func (m *Monitor) ForceReset() {
	select {
	case m.force <- struct{}{}:
	default:
	}
}

// Run executes loop ticks until ctx is done. Operational faults never
// terminate the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("initial state:")
	m.logPorts()
	now := m.now()
	m.lastDevCheck = now
	m.lastRestart = now
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		m.tick(ctx)
	}
}

// tick is one turn of the loop: USB events and operator requests first,
// then expired timers, then at most one of the periodic sweeps.
func (m *Monitor) tick(ctx context.Context) {
	wait := time.NewTimer(eventWait)
	select {
	case <-ctx.Done():
		wait.Stop()
		return
	case ev := <-m.bus.Events():
		m.handleEvent(ev)
	case <-m.force:
		m.resetAllPorts(true)
	case <-wait.C:
	}
	wait.Stop()

	// Drain whatever queued up while we were waiting.
	for drained := false; !drained; {
		select {
		case ev := <-m.bus.Events():
			m.handleEvent(ev)
		case <-m.force:
			m.resetAllPorts(true)
		default:
			drained = true
		}
	}

	m.checkTimeouts()

	now := m.now()
	// Never run both sweeps in the same tick.
	if now.Sub(m.lastDevCheck) > devCheckInterval {
		m.lastDevCheck = now
		m.rewalkDevices()
	} else if now.Sub(m.lastRestart) > restartInterval {
		m.lastRestart = now
		m.resetAllPorts(false)
	}
}

// checkTimeouts fires every expired deadline. A port is detached from the
// timeout list before its handler runs, so the handler can re-enroll it
// cleanly.
func (m *Monitor) checkTimeouts() {
	now := m.now()
	var expired []*Port
	for _, p := range m.reg.timeouts {
		if !p.deadline.After(now) {
			expired = append(expired, p)
		}
	}
	for _, p := range expired {
		m.reg.RemoveTimeout(p)
		m.handleTimeout(p)
	}
}

func (m *Monitor) handleEvent(ev Event) {
	switch ev.Type {
	case DeviceArrived:
		m.deviceArrived(ev)
	case DeviceLeft:
		if ev.Info.Vendor == YkushVendor && ev.Info.Product == YkushProduct {
			m.removeYkushHub(ev.Info)
			return
		}
		m.deviceLeft(ev.Info)
	}
}

// deviceArrived routes an arrival: switching hubs are onboarded, plain
// hubs are skipped, everything else may bind to a supervised port. The
// device sweeps call this with synthesized events, so duplicates must be
// no-ops.
func (m *Monitor) deviceArrived(ev Event) {
	info := ev.Info
	if info.Vendor == YkushVendor && info.Product == YkushProduct {
		m.addYkushHub(ev)
		return
	}
	if info.Class == gousb.ClassHub {
		// Hubs inside hubs are not supervised.
		return
	}
	port := m.reg.FindPortByPath(info.Path)
	if port == nil {
		return
	}
	if port.dev != nil && port.dev.Info().SameDevice(info) {
		// Initial enumeration and a hub re-walk can both report the same
		// device; the existing binding makes the second report a no-op.
		return
	}
	dev, err := ev.Open()
	if err != nil {
		m.log.Errorf("%s: opening %s: %v", port, info, err)
		return
	}
	if port.dev != nil {
		// The device re-enumerated without a departure event.
		port.unbind()
	}
	port.bind(dev)
	m.log.Infof("device %s added", info)
	m.logPorts()
	// Wait out both the probe cadence and the mode-switch grace before
	// the first ping.
	m.enroll(port, defaultTimeout+modeswitchGrace)
}

// deviceLeft unbinds a departed device. Departures for unknown paths, for
// unbound ports, or for a device other than the bound one are ignored; the
// device sweep corrects any drift.
func (m *Monitor) deviceLeft(info DeviceInfo) {
	port := m.reg.FindPortByPath(info.Path)
	if port == nil || port.dev == nil || !port.dev.Info().SameDevice(info) {
		return
	}
	port.unbind()
	if port.mode != ModeReset {
		// An in-flight power cycle keeps its timer; everything else goes
		// back to idle.
		port.mode = ModeIdle
		port.retrans = 0
		m.reg.RemoveTimeout(port)
	}
	m.log.Infof("device %s removed", info)
	m.logPorts()
}

// addYkushHub onboards a YKUSH board when its HID device appears. Children
// may have enumerated before the HID device did, so the device list is
// re-walked afterwards to pick them up.
func (m *Monitor) addYkushHub(ev Event) {
	if m.reg.FindHub(ev.Info) != nil {
		return
	}
	dev, err := ev.Open()
	if err != nil {
		m.log.Errorf("opening YKUSH %s: %v", ev.Info, err)
		return
	}
	hub := newYkushHub(dev)
	for n := 1; n <= hub.numPorts; n++ {
		if other := m.reg.FindPortByPath(hub.path.Child(n)); other != nil {
			m.log.Errorf("YKUSH at %s overlaps supervised %s, ignoring hub", hub.path, other)
			dev.Close()
			return
		}
	}
	m.reg.AddHub(hub)
	for n := 1; n <= hub.numPorts; n++ {
		m.reg.AddPort(newPort(hub, n, hub.path.Child(n)))
	}
	m.log.Infof("YKUSH hub onboarded at %s", hub.path)
	m.rewalkDevices()
}

// removeYkushHub tears a hub down on departure of its HID device. Every
// port of the hub goes with it, in the same step.
func (m *Monitor) removeYkushHub(info DeviceInfo) {
	hub := m.reg.FindHub(info)
	if hub == nil {
		return
	}
	m.reg.RemoveHub(hub)
	if hub.dev != nil {
		hub.dev.Close()
	}
	m.log.Infof("YKUSH hub at %s removed", hub.path)
	m.logPorts()
}

// rewalkDevices synthesizes an arrival for every device currently on the
// bus. Devices already bound to their port are deduplicated by
// deviceArrived.
func (m *Monitor) rewalkDevices() {
	evs, err := m.bus.Snapshot()
	if err != nil {
		m.log.Errorf("device walk: %v", err)
		return
	}
	for _, ev := range evs {
		m.deviceArrived(ev)
	}
}

// resetAllPorts power cycles ports. A forced sweep takes every port; the
// periodic sweep only takes ports whose device never appeared. Ports
// already mid-reset are left alone either way.
func (m *Monitor) resetAllPorts(forced bool) {
	if forced {
		m.log.Info("signalled to restart all ports")
	}
	for _, p := range m.reg.ports {
		if forced || (p.status == StatusNoDevice && p.mode != ModeReset) {
			m.beginReset(p)
		}
	}
}

// logPorts writes one status line per supervised port.
func (m *Monitor) logPorts() {
	for _, p := range m.reg.ports {
		m.log.Info(p.hub.backend.Describe(p))
	}
}
