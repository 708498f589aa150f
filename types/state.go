/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

const (
	compressedStateFormat = "base64/gzip"
	stateFormatKey        = "format"
	stateDataKey          = "data"
)

// State maps a stream name to the opaque progress marker owned by that stream
type State map[string]any

// Stream returns the state stored for a stream, or nil
func (s State) Stream(name string) any {
	if s == nil {
		return nil
	}
	return s[name]
}

// Clone deep-copies the state so that the copy can be mutated freely
func (s State) Clone() State {
	if s == nil {
		return State{}
	}

	cloned := make(State, len(s))
	for key, value := range s {
		cloned[key] = DeepClone(value)
	}
	return cloned
}

// DeepClone copies JSON-like values (maps, slices, scalars). Values of any
// other type are copied through a JSON round trip; if that fails the value is
// returned as is.
func DeepClone(value any) any {
	switch v := value.(type) {
	case nil, string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return v
	case map[string]any:
		cloned := make(map[string]any, len(v))
		for key, item := range v {
			cloned[key] = DeepClone(item)
		}
		return cloned
	case State:
		return v.Clone()
	case []any:
		cloned := make([]any, len(v))
		for idx, item := range v {
			cloned[idx] = DeepClone(item)
		}
		return cloned
	case []string:
		return append([]string(nil), v...)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var cloned any
		if err := json.Unmarshal(raw, &cloned); err != nil {
			return v
		}
		return cloned
	}
}

// IsCompressed reports whether the state is a compressed envelope
func (s State) IsCompressed() bool {
	format, ok := s[stateFormatKey].(string)
	_, hasData := s[stateDataKey].(string)
	return ok && hasData && format == compressedStateFormat && len(s) == 2
}

// Compress packs the state into a {"format": "base64/gzip", "data": "..."} envelope
func (s State) Compress() (State, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %s", err)
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress state: %s", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress state: %s", err)
	}

	return State{
		stateFormatKey: compressedStateFormat,
		stateDataKey:   base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Decompress unpacks a compressed envelope; uncompressed states are returned unchanged
func (s State) Decompress() (State, error) {
	if !s.IsCompressed() {
		return s, nil
	}

	compressed, err := base64.StdEncoding.DecodeString(s[stateDataKey].(string))
	if err != nil {
		return nil, fmt.Errorf("failed to decode compressed state: %s", err)
	}

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed state: %s", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress state: %s", err)
	}

	state := State{}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decompressed state: %s", err)
	}
	return state, nil
}
