package types

import (
	"fmt"
	"strings"
)

type SyncMode string

const (
	FULLREFRESH SyncMode = "full_refresh"
	INCREMENTAL SyncMode = "incremental"
)

type DestinationSyncMode string

const (
	DestinationAppend      DestinationSyncMode = "append"
	DestinationOverwrite   DestinationSyncMode = "overwrite"
	DestinationAppendDedup DestinationSyncMode = "append_dedup"
)

// Stream is the public description of a syncable entity as published by discover
type Stream struct {
	Name                    string         `json:"name"`
	Namespace               string         `json:"namespace,omitempty"`
	JSONSchema              map[string]any `json:"json_schema"`
	SupportedSyncModes      []SyncMode     `json:"supported_sync_modes"`
	SourceDefinedCursor     bool           `json:"source_defined_cursor,omitempty"`
	DefaultCursorField      FieldPath      `json:"default_cursor_field,omitempty"`
	SourceDefinedPrimaryKey PrimaryKey     `json:"source_defined_primary_key,omitempty"`
}

func (s *Stream) SupportsSyncMode(mode SyncMode) bool {
	for _, supported := range s.SupportedSyncModes {
		if supported == mode {
			return true
		}
	}
	return false
}

// Catalog defines the complete available schema of a source.
// Not to be mistaken with ConfiguredCatalog which holds the selected streams.
type Catalog struct {
	Streams []*Stream `json:"streams"`
}

// ConfiguredStream pairs a stream with the sync parameters chosen by the caller
type ConfiguredStream struct {
	Stream              *Stream             `json:"stream"`
	SyncMode            SyncMode            `json:"sync_mode"`
	CursorField         FieldPath           `json:"cursor_field,omitempty"`
	DestinationSyncMode DestinationSyncMode `json:"destination_sync_mode,omitempty"`
	PrimaryKey          PrimaryKey          `json:"primary_key,omitempty"`
}

func (s *ConfiguredStream) Name() string {
	return s.Stream.Name
}

func (s *ConfiguredStream) Namespace() string {
	return s.Stream.Namespace
}

// ConfiguredCatalog is the selection of streams to sync, in the order they must be read
type ConfiguredCatalog struct {
	Streams []*ConfiguredStream `json:"streams"`
}

func (c *ConfiguredCatalog) Validate() error {
	seen := make(map[string]bool, len(c.Streams))
	for idx, stream := range c.Streams {
		if stream == nil || stream.Stream == nil || stream.Stream.Name == "" {
			return fmt.Errorf("configured stream at index %d has no stream name", idx)
		}
		switch stream.SyncMode {
		case FULLREFRESH, INCREMENTAL:
		default:
			return fmt.Errorf("invalid sync mode[%s] for stream %s; valid are %s, %s", stream.SyncMode, stream.Name(), FULLREFRESH, INCREMENTAL)
		}
		if seen[stream.Name()] {
			return fmt.Errorf("stream %s configured more than once", stream.Name())
		}
		seen[stream.Name()] = true
	}
	return nil
}

// StreamNames lists configured stream names in catalog order
func (c *ConfiguredCatalog) StreamNames() string {
	names := make([]string, 0, len(c.Streams))
	for _, stream := range c.Streams {
		names = append(names, stream.Name())
	}
	return strings.Join(names, ", ")
}

// Lookup returns the configured stream by name
func (c *ConfiguredCatalog) Lookup(name string) (*ConfiguredStream, bool) {
	for _, stream := range c.Streams {
		if stream.Name() == name {
			return stream, true
		}
	}
	return nil, false
}

// ConnectorSpecification describes the settings a connector instance accepts
type ConnectorSpecification struct {
	DocumentationURL              string                `json:"documentationUrl,omitempty"`
	ChangelogURL                  string                `json:"changelogUrl,omitempty"`
	SupportsIncremental           bool                  `json:"supportsIncremental,omitempty"`
	SupportsNormalization         bool                  `json:"supportsNormalization,omitempty"`
	SupportsDBT                   bool                  `json:"supportsDBT,omitempty"`
	SupportedDestinationSyncModes []DestinationSyncMode `json:"supported_destination_sync_modes,omitempty"`
	ConnectionSpecification       map[string]any        `json:"connectionSpecification"`
}
