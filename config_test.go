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
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()
	cfg, err := parseConfig([]byte(`
handlers:
  - name: GPIO
    ports:
      "1-2.1": 17
      "1-2.2": 27
`))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if got, want := len(cfg.Handlers), 1; got != want {
		t.Fatalf("handlers = %d, want %d", got, want)
	}
	ports, err := cfg.Handlers[0].gpioPorts()
	if err != nil {
		t.Fatalf("gpioPorts: %v", err)
	}
	if got, want := ports["1-2.1"], 17; got != want {
		t.Errorf(`ports["1-2.1"] = %d, want %d`, got, want)
	}
	if got, want := ports["1-2.2"], 27; got != want {
		t.Errorf(`ports["1-2.2"] = %d, want %d`, got, want)
	}
}

func TestParseConfigRejects(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name string
		in   string
	}{
		{"unknown top-level key", "handlers: []\nextras: 1\n"},
		{"unknown handler name", "handlers:\n  - name: I2C\n    ports:\n      \"1-2\": 1\n"},
		{"unknown per-handler key", "handlers:\n  - name: GPIO\n    ports:\n      \"1-2\": 1\n    mode: fast\n"},
		{"no ports", "handlers:\n  - name: GPIO\n    ports: {}\n"},
		{"bad path key", "handlers:\n  - name: GPIO\n    ports:\n      \"bogus\": 1\n"},
		{"bad line number", "handlers:\n  - name: GPIO\n    ports:\n      \"1-2\": seventeen\n"},
		{"not yaml", "{{{\n"},
	} {
		if _, err := parseConfig([]byte(tc.in)); err == nil {
			t.Errorf("%s: parseConfig accepted %q", tc.name, tc.in)
		}
	}
}

func TestLoadConfigReadsWholeFile(t *testing.T) {
	t.Parallel()
	// Far beyond the 1KB the original daemon silently truncated at.
	var b strings.Builder
	b.WriteString("handlers:\n  - name: GPIO\n    ports:\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "      \"1-%d.%d\": %d\n", i/7+1, i%7+1, i)
	}
	path := filepath.Join(t.TempDir(), "usbmon.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	ports, err := cfg.Handlers[0].gpioPorts()
	if err != nil {
		t.Fatalf("gpioPorts: %v", err)
	}
	if got, want := len(ports), 200; got != want {
		t.Errorf("ports = %d, want %d (file truncated?)", got, want)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig succeeded on a missing file")
	}
}

func TestConfigApply(t *testing.T) {
	t.Parallel()
	cfg, err := parseConfig([]byte(`
handlers:
  - name: GPIO
    ports:
      "1-2.1": 17
`))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	m, _, _ := newTestMonitor(newFakeBus())
	if err := cfg.Apply(m); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	p := m.reg.FindPortByPath(Path{Bus: 1, Ports: []int{2, 1}})
	if p == nil {
		t.Fatal("no port created from config")
	}
	if got, want := p.hub.backend.String(), "GPIO"; got != want {
		t.Errorf("backend = %q, want %q", got, want)
	}
	if got, want := p.status, StatusNoDevice; got != want {
		t.Errorf("status = %v, want %v", got, want)
	}
}
