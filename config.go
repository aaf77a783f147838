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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the supervisor's configuration file: a single top-level
// mapping whose only key is "handlers", an ordered sequence of handler
// entries. Decoding is strict; unknown keys anywhere fail startup.
type Config struct {
	Handlers []HandlerConfig `yaml:"handlers"`
}

// HandlerConfig is one element of the handlers sequence. Ports carries the
// handler-specific payload and is decoded by the named handler.
type HandlerConfig struct {
	Name  string    `yaml:"name"`
	Ports yaml.Node `yaml:"ports"`
}

// LoadConfig reads and validates a configuration file. The whole file is
// read, however large.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	for i := range cfg.Handlers {
		h := &cfg.Handlers[i]
		switch h.Name {
		case "GPIO":
			if _, err := h.gpioPorts(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown handler %q", h.Name)
		}
	}
	return &cfg, nil
}

// gpioPorts decodes the GPIO handler payload: a mapping of topological
// path to GPIO line number.
func (h *HandlerConfig) gpioPorts() (map[string]int, error) {
	var ports map[string]int
	if err := h.Ports.Decode(&ports); err != nil {
		return nil, fmt.Errorf("GPIO handler ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, errors.New("GPIO handler has no ports")
	}
	for path := range ports {
		if _, err := ParsePath(path); err != nil {
			return nil, fmt.Errorf("GPIO handler: %w", err)
		}
	}
	return ports, nil
}

// Apply instantiates the configured handlers on the monitor.
func (c *Config) Apply(m *Monitor) error {
	for i := range c.Handlers {
		h := &c.Handlers[i]
		switch h.Name {
		case "GPIO":
			ports, err := h.gpioPorts()
			if err != nil {
				return err
			}
			if err := m.AddGPIOHandler(ports); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown handler %q", h.Name)
		}
	}
	return nil
}
