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

import "time"

// enroll arms the port's deadline d from now and ensures it is on the
// timeout list.
func (m *Monitor) enroll(p *Port, d time.Duration) {
	p.deadline = m.now().Add(d)
	m.reg.AddTimeout(p)
}

// handleTimeout drives the next state-machine step for a port whose
// deadline has passed. The port was detached from the timeout list before
// this call, so every branch is free to re-enroll it. Mode is re-read
// here: a deadline armed in one state may fire after the port has moved
// on, and such stale deadlines must be harmless.
func (m *Monitor) handleTimeout(p *Port) {
	switch p.mode {
	case ModePing:
		m.ping(p)
	case ModeReset:
		m.stepReset(p)
	case ModeIdle:
		// Only a port without a device is acted on: it is power cycled.
		// A deadline on an idle port that has a device is stale and ignored.
		if p.status == StatusNoDevice {
			m.beginReset(p)
		}
	}
}

// ping probes the attached device with a GET_STATUS on endpoint zero.
// Failures count against the retransmission budget; the failure that
// reaches retransLimit starts a power cycle.
func (m *Monitor) ping(p *Port) {
	if p.dev == nil {
		// The device left while the deadline was pending.
		return
	}
	if _, err := p.dev.Control(probeRequestType, probeRequest, 0, 0, p.probeBuf[:]); err != nil {
		p.retrans++
		if p.retrans >= retransLimit {
			m.log.Warnf("%s: %d probes failed, power cycling", p, p.retrans)
			m.beginReset(p)
			return
		}
		m.enroll(p, 0) // retry on the next tick
		return
	}
	p.retrans = 0
	p.pings++
	if p.pings%pingLogThrottle == 1 {
		m.log.Infof("%s: ping ok (%d total)", p, p.pings)
	}
	m.enroll(p, defaultTimeout)
}

// beginReset starts a power cycle: the device binding is dropped, power is
// cut and the hold timer armed. A port already mid-reset is left alone.
func (m *Monitor) beginReset(p *Port) {
	if p.mode == ModeReset {
		return
	}
	p.unbind()
	p.mode = ModeReset
	if err := p.hub.backend.PowerOff(p); err != nil {
		// Power still assumed on; the hold timer retries the off command.
		m.log.Errorf("%s: power off failed: %v", p, err)
	} else {
		p.power = PowerOff
	}
	m.enroll(p, resetHold)
}

// stepReset continues a power cycle when the hold timer fires: it retries
// the off command if that never took, otherwise restores power and returns
// the port to idle. The next arrival event resumes supervision.
func (m *Monitor) stepReset(p *Port) {
	if p.power == PowerOn {
		if err := p.hub.backend.PowerOff(p); err != nil {
			m.log.Errorf("%s: power off failed: %v", p, err)
		} else {
			p.power = PowerOff
		}
		m.enroll(p, resetHold)
		return
	}
	if err := p.hub.backend.PowerOn(p); err != nil {
		m.log.Errorf("%s: power on failed: %v", p, err)
		m.enroll(p, resetHold)
		return
	}
	p.power = PowerOn
	p.mode = ModeIdle
	p.retrans = 0
	m.log.Infof("%s: power cycled", p)
}
