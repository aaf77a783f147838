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
	"os"
	"sort"
)

// Line is one switched GPIO output controlling a port's power rail.
type Line interface {
	Set(on bool) error
}

// sysfsLine drives an exported GPIO through its sysfs value file.
type sysfsLine struct {
	value string // path of the value file
}

func (l sysfsLine) Set(on bool) error {
	v := []byte("0")
	if on {
		v = []byte("1")
	}
	if err := os.WriteFile(l.value, v, 0644); err != nil {
		return fmt.Errorf("gpio write: %w", err)
	}
	return nil
}

func sysfsValuePath(n int) string {
	return fmt.Sprintf("/sys/class/gpio/gpio%d/value", n)
}

// gpioBackend switches port power through host GPIO lines, one per
// supervised path.
type gpioBackend struct {
	lines map[string]Line // keyed by Path.String()
}

func (b *gpioBackend) String() string { return "GPIO" }

func (b *gpioBackend) line(p *Port) (Line, error) {
	l, ok := b.lines[p.path.String()]
	if !ok {
		return nil, fmt.Errorf("gpio: no line configured for %s", p.path)
	}
	return l, nil
}

func (b *gpioBackend) PowerOff(p *Port) error {
	l, err := b.line(p)
	if err != nil {
		return err
	}
	return l.Set(false)
}

func (b *gpioBackend) PowerOn(p *Port) error {
	l, err := b.line(p)
	if err != nil {
		return err
	}
	return l.Set(true)
}

func (b *gpioBackend) Describe(p *Port) string {
	if p.status == StatusNoDevice {
		return fmt.Sprintf("GPIO %s: %s, %s, power %s", p, p.status, p.mode, p.power)
	}
	return fmt.Sprintf("GPIO %s: %s:%s %s, %s, power %s",
		p, p.vendor, p.product, p.deviceName(), p.mode, p.power)
}

// newGPIOHub builds the synthetic hub described by a GPIO handler entry:
// one supervised port per configured path, each wired to its sysfs line.
// GPIO hubs have no control device and never depart.
func newGPIOHub(ports map[string]int) (*Hub, []*Port, error) {
	if len(ports) == 0 {
		return nil, nil, fmt.Errorf("gpio: handler has no ports")
	}
	keys := make([]string, 0, len(ports))
	for k := range ports {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hub := &Hub{numPorts: len(ports)}
	backend := &gpioBackend{lines: make(map[string]Line, len(ports))}
	hub.backend = backend

	out := make([]*Port, 0, len(ports))
	for i, k := range keys {
		path, err := ParsePath(k)
		if err != nil {
			return nil, nil, fmt.Errorf("gpio: %w", err)
		}
		backend.lines[path.String()] = sysfsLine{value: sysfsValuePath(ports[k])}
		out = append(out, newPort(hub, i+1, path))
	}
	return hub, out, nil
}
