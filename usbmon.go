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

// Package usbmon supervises USB devices attached to programmable
// power-switching hubs. Each downstream port of a known hub is tracked
// persistently; attached devices are probed for liveness with a periodic
// GET_STATUS control transfer, and a device that stops answering has its
// port power cycled through the hub's switching backend.
//
// Two backends are supported: the YKUSH family of HID-controlled hubs and
// host GPIO lines wired to port power rails. The whole supervisor runs on a
// single goroutine; USB hotplug callbacks and operator signals are posted
// to the loop as messages.
package usbmon

import "time"

const (
	// defaultTimeout is the cadence of liveness probes.
	defaultTimeout = 5 * time.Second

	// modeswitchGrace extends the deadline of the first probe after an
	// arrival, giving tools like usb_modeswitch time to re-enumerate the
	// device before we start poking at it.
	modeswitchGrace = 5 * time.Second

	// retransLimit is the number of consecutive failed probes after which
	// a port is power cycled.
	retransLimit = 5

	// pingLogThrottle limits successful-probe logging to one line per this
	// many successes.
	pingLogThrottle = 20

	// resetHold is how long a port stays powered off during a cycle. The
	// switching command itself takes around 200ms on YKUSH hardware.
	resetHold = time.Second

	// eventWait bounds the wait for USB events in a single loop tick.
	eventWait = time.Second

	// devCheckInterval is the cadence of the full device-list sweep that
	// recovers from missed hotplug events.
	devCheckInterval = 30 * time.Second

	// restartInterval is the cadence of the sweep that power cycles ports
	// whose device never appeared.
	restartInterval = 60 * time.Second
)
