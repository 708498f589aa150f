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

package typeutils

import (
	"fmt"
	"strings"
	"time"
)

// layouts accepted for cursor values returned by REST APIs
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Time is a timestamp that unmarshals from any of the accepted layouts
type Time struct {
	time.Time
}

func (ct *Time) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), "\"")
	parsed, err := ParseTimestamp(str)
	if err != nil {
		return err
	}

	*ct = Time{parsed}
	return nil
}

func (ct Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ct.UTC().Format(time.RFC3339Nano) + `"`), nil
}

// Compare compares the time instant ct with u. If ct is before u, it returns -1;
// if ct is after u, it returns +1; if they're the same, it returns 0.
func (ct Time) Compare(u Time) int {
	return ct.Time.Compare(u.Time)
}

// ParseTimestamp parses value with the first matching layout
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	// a cheap guard so that plain ids and names never go through every layout
	if len(value) < len(time.DateOnly) || value[4] != '-' {
		return time.Time{}, fmt.Errorf("failed to parse timestamp[%s]", value)
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp[%s]", value)
}

// FormatTimestamp renders t the way cursors are persisted in state
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
