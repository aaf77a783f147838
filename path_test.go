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

import "testing"

func TestParsePath(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in      string
		want    Path
		wantErr bool
	}{
		{in: "1-2", want: Path{Bus: 1, Ports: []int{2}}},
		{in: "1-2.4", want: Path{Bus: 1, Ports: []int{2, 4}}},
		{in: "12-1.2.3.4.5.6.7", want: Path{Bus: 12, Ports: []int{1, 2, 3, 4, 5, 6, 7}}},
		{in: "1-1.2.3.4.5.6.7.8", wantErr: true},
		{in: "1", wantErr: true},
		{in: "x-1", wantErr: true},
		{in: "1-x", wantErr: true},
		{in: "1-0", wantErr: true},
		{in: "1-2.", wantErr: true},
		{in: "", wantErr: true},
	} {
		got, err := ParsePath(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParsePath(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParsePath(%q) = %s, want %s", tc.in, got, tc.want)
		}
		if got.String() != tc.in {
			t.Errorf("ParsePath(%q).String() = %q", tc.in, got.String())
		}
	}
}

func TestPathEqual(t *testing.T) {
	t.Parallel()
	a := Path{Bus: 1, Ports: []int{1, 2}}
	for _, tc := range []struct {
		b    Path
		want bool
	}{
		{Path{Bus: 1, Ports: []int{1, 2}}, true},
		{Path{Bus: 2, Ports: []int{1, 2}}, false},
		{Path{Bus: 1, Ports: []int{1}}, false},
		{Path{Bus: 1, Ports: []int{1, 2, 3}}, false},
		{Path{Bus: 1, Ports: []int{1, 3}}, false},
	} {
		if got := a.Equal(tc.b); got != tc.want {
			t.Errorf("%s.Equal(%s) = %v, want %v", a, tc.b, got, tc.want)
		}
	}
}

func TestPathChildParent(t *testing.T) {
	t.Parallel()
	hub := Path{Bus: 1, Ports: []int{1}}
	child := hub.Child(3)
	if got, want := child.String(), "1-1.3"; got != want {
		t.Errorf("Child(3) = %q, want %q", got, want)
	}
	if !child.Parent().Equal(hub) {
		t.Errorf("Parent() = %s, want %s", child.Parent(), hub)
	}
	root := Path{Bus: 2}
	if !root.Parent().Equal(root) {
		t.Errorf("root Parent() = %s, want %s", root.Parent(), root)
	}

	// Child must not alias its parent's backing array.
	a := hub.Child(1)
	b := hub.Child(2)
	if a.Ports[1] == b.Ports[1] {
		t.Errorf("Child shares state: %s vs %s", a, b)
	}
}
