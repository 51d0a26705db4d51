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

// Package file parses line-oriented and key/value text such as
// /proc/meminfo, /proc/stat and /etc/os-release.
//
// Files are read through a hostfs.FS so the same parser serves a local or
// a remote execution target.
//
// # Usage
//
//	p := file.NewParser(file.WithFS(fsys), file.WithKVDelimiter(":"))
//	mem, err := p.GetMap(ctx, "/proc/meminfo")
//	// mem["MemTotal"] == "16318412 kB"
//
// Parse content already in memory:
//
//	rel, err := file.NewParser(file.WithVTrimChars(`"`)).ParseMap(b)
//	// rel["PRETTY_NAME"] == "Fedora CoreOS 40"
package file
