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

// Registry tracks the known switching hubs, the supervised ports, and the
// subset of ports with a pending deadline. Everything runs on the loop
// goroutine, so there is no locking. Collections are unsorted and scanned
// linearly; the population is bounded by physical port counts.
type Registry struct {
	hubs     []*Hub
	ports    []*Port
	timeouts []*Port
}

func NewRegistry() *Registry {
	return &Registry{}
}

// FindHub looks a hub up by the identity of its control device.
func (r *Registry) FindHub(info DeviceInfo) *Hub {
	for _, h := range r.hubs {
		if h.dev != nil && h.dev.Info().SameDevice(info) {
			return h
		}
	}
	return nil
}

func (r *Registry) AddHub(h *Hub) {
	r.hubs = append(r.hubs, h)
}

// RemoveHub drops the hub together with every port whose parent it is,
// unbinding their devices and deenrolling them from the timeout list.
func (r *Registry) RemoveHub(h *Hub) {
	for i := 0; i < len(r.ports); {
		if r.ports[i].hub == h {
			p := r.ports[i]
			p.unbind()
			r.RemovePort(p)
			continue
		}
		i++
	}
	for i, o := range r.hubs {
		if o == h {
			r.hubs = append(r.hubs[:i], r.hubs[i+1:]...)
			return
		}
	}
}

func (r *Registry) AddPort(p *Port) {
	r.ports = append(r.ports, p)
}

// RemovePort drops the port, making sure it is also absent from the
// timeout list.
func (r *Registry) RemovePort(p *Port) {
	r.RemoveTimeout(p)
	for i, o := range r.ports {
		if o == p {
			r.ports = append(r.ports[:i], r.ports[i+1:]...)
			return
		}
	}
}

// FindPortByPath returns the supervised port at the given position, if any.
func (r *Registry) FindPortByPath(path Path) *Port {
	for _, p := range r.ports {
		if p.path.Equal(path) {
			return p
		}
	}
	return nil
}

// AddTimeout enrolls the port in the timeout list. Enrolling an already
// enrolled port is a no-op.
func (r *Registry) AddTimeout(p *Port) {
	for _, o := range r.timeouts {
		if o == p {
			return
		}
	}
	r.timeouts = append(r.timeouts, p)
}

// RemoveTimeout deenrolls the port; not being enrolled is fine.
func (r *Registry) RemoveTimeout(p *Port) {
	for i, o := range r.timeouts {
		if o == p {
			r.timeouts = append(r.timeouts[:i], r.timeouts[i+1:]...)
			return
		}
	}
}
