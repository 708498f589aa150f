package abstract

import (
	"context"
	"fmt"

	"github.com/datazip-inc/airlake/types"
)

// readFullRefresh reads every slice of the stream without touching state
func readFullRefresh(ctx context.Context, configured *types.ConfiguredStream, stream Stream, cursorField types.FieldPath, emit emitFn) (int, error) {
	total := 0
	for slice, err := range slices(ctx, stream, types.FULLREFRESH, cursorField, nil) {
		if err != nil {
			return total, fmt.Errorf("failed to compute slices: %w", err)
		}

		for record, err := range records(ctx, stream, types.FULLREFRESH, cursorField, slice, nil) {
			if err != nil {
				return total, fmt.Errorf("failed to read records of slice[%v]: %w", slice, err)
			}

			total++
			if err := emit(types.NewRecordMessage(configured.Name(), configured.Namespace(), record)); err != nil {
				return total, err
			}
		}
	}

	return total, nil
}
