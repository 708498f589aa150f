package base

import (
	"context"
	"iter"

	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/typeutils"
)

// Stream carries the static description shared by connector streams. Embed it
// and implement ReadRecords (and StreamSlices when the stream is partitioned).
type Stream struct {
	StreamName         string
	Schema             map[string]any
	Key                types.PrimaryKey
	Cursor             types.FieldPath
	Incremental        bool
	CheckpointInterval int
}

func (s *Stream) Name() string {
	return s.StreamName
}

func (s *Stream) JSONSchema() map[string]any {
	return s.Schema
}

func (s *Stream) PrimaryKey() types.PrimaryKey {
	return s.Key
}

func (s *Stream) CursorField() types.FieldPath {
	return s.Cursor
}

func (s *Stream) SupportsIncremental() bool {
	return s.Incremental
}

func (s *Stream) StateCheckpointInterval() int {
	return s.CheckpointInterval
}

// StreamSlices defaults to a single nil slice
func (s *Stream) StreamSlices(_ context.Context, _ types.SyncMode, _ types.FieldPath, _ any) iter.Seq2[any, error] {
	return nil
}

// GetUpdatedState keeps the greatest cursor value seen so far under the
// cursor's dotted name: {"updated_at": "2024-01-01T00:00:00Z"}.
func (s *Stream) GetUpdatedState(currentState any, latestRecord map[string]any) any {
	return MaxCursorState(s.Cursor, currentState, latestRecord)
}

// MaxCursorState returns a copy of currentState whose cursor entry is the max
// of the stored value and the record's cursor value
func MaxCursorState(cursor types.FieldPath, currentState any, latestRecord map[string]any) any {
	state := copyState(currentState)
	if cursor.IsZero() {
		return state
	}

	value, found := cursor.Lookup(latestRecord)
	if !found || value == nil {
		return state
	}

	state[cursor.String()] = typeutils.Max(state[cursor.String()], value)
	return state
}

// PartitionedCursorState tracks one cursor per partition, where the partition
// is read from the record itself: {"<partition>": {"modified_at": ...}}.
func PartitionedCursorState(partition, cursor types.FieldPath, currentState any, latestRecord map[string]any) any {
	state := copyState(currentState)
	key, found := partition.Lookup(latestRecord)
	if !found || key == nil {
		return state
	}

	partitionKey := typeutils.String(key)
	state[partitionKey] = MaxCursorState(cursor, state[partitionKey], latestRecord)
	return state
}

// CursorValue reads the stored cursor of a state written by MaxCursorState
func CursorValue(cursor types.FieldPath, streamState any) any {
	state, ok := streamState.(map[string]any)
	if !ok {
		return nil
	}
	return state[cursor.String()]
}

// PartitionState returns the sub state of one partition
func PartitionState(streamState any, partition string) any {
	state, ok := streamState.(map[string]any)
	if !ok {
		return nil
	}
	return state[partition]
}

func copyState(currentState any) map[string]any {
	current, _ := currentState.(map[string]any)
	state := make(map[string]any, len(current)+1)
	for key, value := range current {
		state[key] = value
	}
	return state
}
