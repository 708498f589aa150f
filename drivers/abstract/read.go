package abstract

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils"
	"github.com/datazip-inc/airlake/utils/logger"
)

// emitFn forwards one message to the consumer; it returns
// constants.ErrConsumerStopped once the consumer stops pulling
type emitFn func(message *types.Message) error

// Read syncs the configured streams in catalog order. Records and state
// checkpoints are yielded as they are produced; the first error ends the
// sequence as a (nil, err) pair. The given state is never mutated.
func (a *AbstractSource) Read(ctx context.Context, cfg Config, catalog *types.ConfiguredCatalog, state types.State) iter.Seq2[*types.Message, error] {
	return func(yield func(*types.Message, error) bool) {
		emit := func(message *types.Message) error {
			if !yield(message, nil) {
				return constants.ErrConsumerStopped
			}
			return nil
		}

		err := a.read(ctx, cfg, catalog, state, emit)
		if err != nil && !errors.Is(err, constants.ErrConsumerStopped) {
			yield(nil, err)
		}
	}
}

func (a *AbstractSource) read(ctx context.Context, cfg Config, catalog *types.ConfiguredCatalog, state types.State, emit emitFn) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if catalog == nil {
		return fmt.Errorf("%w: configured catalog not provided", constants.ErrInvalidConfig)
	}

	if hook, ok := a.source.(ReadHook); ok {
		var err error
		catalog, state, err = hook.OnBeforeRead(ctx, cfg, catalog, state)
		if err != nil {
			return fmt.Errorf("failed to prepare read: %w", err)
		}
	}

	if err := catalog.Validate(); err != nil {
		return fmt.Errorf("%w: %w", constants.ErrInvalidConfig, err)
	}

	// working copy, the only state carried across streams
	connectorState := state.Clone()

	syncID := utils.ULID()
	logger.Infof("Starting sync[%s] of source[%s] for streams: %s", syncID, a.source.Type(), catalog.StreamNames())

	streams, err := a.streamsByName(ctx, cfg)
	if err != nil {
		return err
	}

	for _, configured := range catalog.Streams {
		stream, found := streams[configured.Name()]
		if !found {
			err := fmt.Errorf("%w: %w: the requested stream [%s] was not found in the source. Available streams: %s",
				constants.ErrInvalidConfig, constants.ErrUnknownStream, configured.Name(), availableStreams(streams))
			logger.Error(err)
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Infof("Syncing stream[%s]", configured.Name())
		records, err := a.readStream(ctx, configured, stream, connectorState, emit)
		if err != nil {
			if errors.Is(err, constants.ErrConsumerStopped) {
				return err
			}
			logger.Errorf("Encountered an error while reading stream[%s]: %s", configured.Name(), err)
			return fmt.Errorf("stream[%s]: %w", configured.Name(), err)
		}
		logger.Infof("Read %d records from stream[%s]", records, configured.Name())
	}

	logger.Infof("Finished sync[%s] of source[%s]", syncID, a.source.Type())
	return nil
}

// readStream picks the effective sync mode of one configured stream
func (a *AbstractSource) readStream(ctx context.Context, configured *types.ConfiguredStream, stream Stream, connectorState types.State, emit emitFn) (int, error) {
	cursorField := configured.CursorField
	if cursorField.IsZero() {
		cursorField = stream.CursorField()
	}

	if configured.SyncMode == types.INCREMENTAL {
		if stream.SupportsIncremental() {
			return readIncremental(ctx, configured, stream, cursorField, connectorState, emit)
		}
		logger.Warnf("Stream[%s] does not support incremental sync, falling back to full refresh", configured.Name())
	}

	return readFullRefresh(ctx, configured, stream, cursorField, emit)
}

// slices returns the stream's slices, defaulting to one nil slice
func slices(ctx context.Context, stream Stream, mode types.SyncMode, cursorField types.FieldPath, streamState any) iter.Seq2[any, error] {
	if seq := stream.StreamSlices(ctx, mode, cursorField, streamState); seq != nil {
		return seq
	}
	return func(yield func(any, error) bool) {
		yield(nil, nil)
	}
}

func records(ctx context.Context, stream Stream, mode types.SyncMode, cursorField types.FieldPath, slice, streamState any) iter.Seq2[map[string]any, error] {
	if seq := stream.ReadRecords(ctx, mode, cursorField, slice, streamState); seq != nil {
		return seq
	}
	return func(func(map[string]any, error) bool) {}
}
