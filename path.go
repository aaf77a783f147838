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
	"strconv"
	"strings"
)

// maxPathDepth is the USB limit on hub chaining below the root.
const maxPathDepth = 7

// Path identifies a physical position on a USB bus: the bus number followed
// by the chain of hub port numbers leading to the device. It uses the same
// notation as sysfs, e.g. "1-2.4" for bus 1, hub port 2, port 4.
type Path struct {
	Bus   int
	Ports []int
}

// ParsePath parses sysfs-style notation, e.g. "1-2.4".
func ParsePath(s string) (Path, error) {
	bus, rest, found := strings.Cut(s, "-")
	if !found {
		return Path{}, fmt.Errorf("path %q: missing bus separator", s)
	}
	p := Path{}
	var err error
	if p.Bus, err = strconv.Atoi(bus); err != nil {
		return Path{}, fmt.Errorf("path %q: bad bus number: %v", s, err)
	}
	for _, f := range strings.Split(rest, ".") {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Path{}, fmt.Errorf("path %q: bad port number %q", s, f)
		}
		if n < 1 {
			return Path{}, fmt.Errorf("path %q: port numbers start at 1", s)
		}
		p.Ports = append(p.Ports, n)
	}
	if len(p.Ports) > maxPathDepth {
		return Path{}, fmt.Errorf("path %q: deeper than %d levels", s, maxPathDepth)
	}
	return p, nil
}

func (p Path) String() string {
	if len(p.Ports) == 0 {
		return strconv.Itoa(p.Bus)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d-%d", p.Bus, p.Ports[0])
	for _, n := range p.Ports[1:] {
		fmt.Fprintf(&b, ".%d", n)
	}
	return b.String()
}

// Equal reports whether two paths name the same physical position.
func (p Path) Equal(o Path) bool {
	if p.Bus != o.Bus || len(p.Ports) != len(o.Ports) {
		return false
	}
	for i := range p.Ports {
		if p.Ports[i] != o.Ports[i] {
			return false
		}
	}
	return true
}

// Child returns the path of port n below p.
func (p Path) Child(n int) Path {
	ports := make([]int, len(p.Ports)+1)
	copy(ports, p.Ports)
	ports[len(p.Ports)] = n
	return Path{Bus: p.Bus, Ports: ports}
}

// Parent returns the path one hub level up. The parent of a root-attached
// position is the bus itself.
func (p Path) Parent() Path {
	if len(p.Ports) == 0 {
		return p
	}
	ports := make([]int, len(p.Ports)-1)
	copy(ports, p.Ports)
	return Path{Bus: p.Bus, Ports: ports}
}
