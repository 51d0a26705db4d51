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

package file

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
)

// Options for configuring the Parser.
type Option func(*Parser)

// Parser parses key/value and line-oriented content such as /proc files
// and os-release.
type Parser struct {
	fs              hostfs.FS
	maxSize         int
	skipComments    bool
	kvDelimiter     string
	vTrimChars      string
	skipEmptyValues bool
}

// WithFS sets the filesystem files are read from. Default is the local host.
func WithFS(fs hostfs.FS) Option {
	return func(p *Parser) {
		p.fs = fs
	}
}

// WithMaxSize sets the maximum content size in bytes.
// Default is 1MB.
func WithMaxSize(size int) Option {
	return func(p *Parser) {
		p.maxSize = size
	}
}

// WithSkipComments sets whether to skip comment lines.
// Default is true.
func WithSkipComments(skip bool) Option {
	return func(p *Parser) {
		p.skipComments = skip
	}
}

// WithKVDelimiter sets the key-value delimiter used in ParseMap.
// Default is "=".
func WithKVDelimiter(kvDelim string) Option {
	return func(p *Parser) {
		p.kvDelimiter = kvDelim
	}
}

// WithVTrimChars sets characters to trim from values.
func WithVTrimChars(trimChars string) Option {
	return func(p *Parser) {
		p.vTrimChars = trimChars
	}
}

// WithSkipEmptyValues sets whether to skip keys whose value is empty.
func WithSkipEmptyValues(skip bool) Option {
	return func(p *Parser) {
		p.skipEmptyValues = skip
	}
}

// NewParser creates a new parser with the provided options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		maxSize:      1 << 20,
		skipComments: true,
		kvDelimiter:  "=",
	}

	for _, opt := range opts {
		opt(p)
	}
	if p.fs == nil {
		p.fs = hostfs.NewLocal()
	}
	return p
}

// GetMap reads path from the parser's filesystem and parses it with ParseMap.
func (p *Parser) GetMap(ctx context.Context, path string) (map[string]string, error) {
	b, err := p.read(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.ParseMap(b)
}

// GetLines reads path from the parser's filesystem and parses it with ParseLines.
func (p *Parser) GetLines(ctx context.Context, path string) ([]string, error) {
	b, err := p.read(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.ParseLines(b)
}

func (p *Parser) read(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	b, err := p.fs.ReadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}
	return b, nil
}

// ParseMap splits each line into a key and value on the kv delimiter.
// A line without the delimiter maps to "".
func (p *Parser) ParseMap(b []byte) (map[string]string, error) {
	parts, err := p.ParseLines(b)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, part := range parts {
		kv := strings.SplitN(part, p.kvDelimiter, 2)
		key := strings.TrimSpace(kv[0])

		if len(kv) != 2 {
			if !p.skipEmptyValues {
				result[key] = ""
			}
			continue
		}

		value := strings.TrimSpace(kv[1])
		if p.vTrimChars != "" {
			value = strings.Trim(value, p.vTrimChars)
		}
		if p.skipEmptyValues && value == "" {
			slog.Debug("skipping entry with empty value", "key", key)
			continue
		}

		result[key] = value
	}

	return result, nil
}

// ParseLines returns the non-empty, trimmed lines of b. Content must be
// valid UTF-8 within the size limit.
func (p *Parser) ParseLines(b []byte) ([]string, error) {
	if len(b) > p.maxSize {
		return nil, fmt.Errorf("content exceeds maximum size of %d bytes", p.maxSize)
	}
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("content is not valid UTF-8")
	}

	parts := strings.Split(string(b), "\n")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		if p.skipComments && strings.HasPrefix(clean, "#") {
			continue
		}
		result = append(result, clean)
	}

	return result, nil
}
