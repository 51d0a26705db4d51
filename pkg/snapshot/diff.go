// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package snapshot

import "reflect"

// Equal reports whether two snapshots of domain d are structurally equal.
// Nil and empty collections compare equal. Resource samples ignore host
// uptime, which moves on every sample.
func Equal(d Domain, a, b any) bool {
	if d == Resources {
		ra, okA := a.(*HostResources)
		rb, okB := b.(*HostResources)
		if okA && okB {
			return reflect.DeepEqual(withoutUptime(ra), withoutUptime(rb))
		}
	}
	if isEmpty(a) && isEmpty(b) {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func withoutUptime(r *HostResources) *HostResources {
	if r == nil || r.OS == nil {
		return r
	}
	c := *r
	osInfo := *r.OS
	osInfo.Uptime = 0
	c.OS = &osInfo
	return &c
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr:
		return rv.IsNil()
	default:
		return false
	}
}
