package abstract

import (
	"context"
	"fmt"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
)

// readIncremental reads the stream slice by slice, advancing the stream's
// state after every record. A state message is emitted every `interval`
// records of a slice and once more when the slice is exhausted; each state
// message carries the whole connector state.
func readIncremental(ctx context.Context, configured *types.ConfiguredStream, stream Stream, cursorField types.FieldPath, connectorState types.State, emit emitFn) (int, error) {
	interval := stream.StateCheckpointInterval()
	if interval < 0 {
		return 0, fmt.Errorf("%w: state checkpoint interval must be a non-negative integer, got %d", constants.ErrInvalidConfig, interval)
	}

	name := configured.Name()
	streamState := connectorState.Stream(name)
	if streamState == nil {
		streamState = map[string]any{}
	}

	checkpoint := func() error {
		connectorState[name] = streamState
		return emit(types.NewStateMessage(connectorState))
	}

	total := 0
	for slice, err := range slices(ctx, stream, types.INCREMENTAL, cursorField, streamState) {
		if err != nil {
			return total, fmt.Errorf("failed to compute slices: %w", err)
		}
		logger.Debugf("Reading slice[%v] of stream[%s]", slice, name)

		counter := 0
		for record, err := range records(ctx, stream, types.INCREMENTAL, cursorField, slice, streamState) {
			if err != nil {
				return total, fmt.Errorf("failed to read records of slice[%v]: %w", slice, err)
			}

			counter++
			total++
			if err := emit(types.NewRecordMessage(name, configured.Namespace(), record)); err != nil {
				return total, err
			}

			streamState = stream.GetUpdatedState(streamState, record)
			if interval > 0 && counter%interval == 0 {
				if err := checkpoint(); err != nil {
					return total, err
				}
			}
		}

		// every slice boundary is a resumption point
		if err := checkpoint(); err != nil {
			return total, err
		}
	}

	return total, nil
}
