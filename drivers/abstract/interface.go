package abstract

import (
	"context"
	"iter"

	"github.com/datazip-inc/airlake/types"
)

type Config interface {
	Validate() error
}

// Stream is implemented once per syncable entity of a connector
type Stream interface {
	Name() string
	JSONSchema() map[string]any
	PrimaryKey() types.PrimaryKey
	// default cursor; empty when the stream has none
	CursorField() types.FieldPath
	SupportsIncremental() bool
	// records per slice between intermediate state messages; 0 disables
	// intermediate checkpoints, negative values are rejected
	StateCheckpointInterval() int
	// StreamSlices yields opaque partitions handed back to ReadRecords; a nil
	// sequence is read as one nil slice
	StreamSlices(ctx context.Context, mode types.SyncMode, cursorField types.FieldPath, streamState any) iter.Seq2[any, error]
	ReadRecords(ctx context.Context, mode types.SyncMode, cursorField types.FieldPath, slice any, streamState any) iter.Seq2[map[string]any, error]
	// GetUpdatedState must not perform I/O; its result becomes the stream's state
	GetUpdatedState(currentState any, latestRecord map[string]any) any
}

type Source interface {
	Type() string
	GetConfigRef() Config
	Spec() *types.ConnectorSpecification
	// CheckConnection reports (false, err) or an error when the config can not
	// reach the upstream API
	CheckConnection(ctx context.Context, cfg Config) (bool, error)
	// Streams may perform I/O, it is called once per command
	Streams(ctx context.Context, cfg Config) ([]Stream, error)
}

// ReadHook lets a source adjust the catalog and state before a sync starts
type ReadHook interface {
	OnBeforeRead(ctx context.Context, cfg Config, catalog *types.ConfiguredCatalog, state types.State) (*types.ConfiguredCatalog, types.State, error)
}
