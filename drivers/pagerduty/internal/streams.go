package driver

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"time"

	"github.com/datazip-inc/airlake/drivers/base"
	"github.com/datazip-inc/airlake/pkg/rest"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/typeutils"
)

const incidentsCheckpointInterval = 50

var createdAt = types.NewFieldPath("created_at")

// idsAtCursor lists the incidents already synced whose created_at equals the
// stored cursor
const idsAtCursor = "ids_at_cursor"

// listStream reads a whole collection with no slicing
type listStream struct {
	base.Stream
	client *client
	path   string
}

func newListStream(client *client, name, path string, schema map[string]any) *listStream {
	return &listStream{
		Stream: base.Stream{StreamName: name, Schema: schema, Key: types.NewPrimaryKey("id")},
		client: client,
		path:   path,
	}
}

func (l *listStream) ReadRecords(ctx context.Context, _ types.SyncMode, _ types.FieldPath, _ any, _ any) iter.Seq2[map[string]any, error] {
	return rest.Paginate(ctx, l.client.list(l.path, l.path, nil))
}

// window is one incidents slice, [Since, Until)
type window struct {
	Since time.Time
	Until time.Time
}

func (w window) String() string {
	return fmt.Sprintf("[%s, %s)", typeutils.FormatTimestamp(w.Since), typeutils.FormatTimestamp(w.Until))
}

// incidents are sliced in fixed windows of creation time since the
// incidents api filters on created_at
type incidents struct {
	base.Stream
	client *client
}

func newIncidents(client *client, schema map[string]any) *incidents {
	return &incidents{
		Stream: base.Stream{
			StreamName:         "Incidents",
			Schema:             schema,
			Key:                types.NewPrimaryKey("id"),
			Cursor:             createdAt,
			Incremental:        true,
			CheckpointInterval: incidentsCheckpointInterval,
		},
		client: client,
	}
}

func (i *incidents) start(mode types.SyncMode, streamState any) (time.Time, error) {
	if mode == types.INCREMENTAL {
		if cursor := base.CursorValue(createdAt, streamState); cursor != nil {
			return typeutils.ParseTimestamp(typeutils.String(cursor))
		}
	}
	if i.client.config.StartDate != "" {
		return typeutils.ParseTimestamp(i.client.config.StartDate)
	}
	return i.client.now().Add(-defaultLookback), nil
}

func (i *incidents) StreamSlices(_ context.Context, mode types.SyncMode, _ types.FieldPath, streamState any) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		since, err := i.start(mode, streamState)
		if err != nil {
			yield(nil, fmt.Errorf("invalid incidents cursor: %s", err))
			return
		}

		now := i.client.now().UTC()
		size := i.client.config.window()
		for since = since.UTC(); since.Before(now); since = since.Add(size) {
			until := since.Add(size)
			if until.After(now) {
				until = now
			}
			if !yield(window{Since: since, Until: until}, nil) {
				return
			}
		}
	}
}

func (i *incidents) ReadRecords(ctx context.Context, mode types.SyncMode, _ types.FieldPath, slice any, streamState any) iter.Seq2[map[string]any, error] {
	current, ok := slice.(window)
	if !ok {
		return func(yield func(map[string]any, error) bool) {
			yield(nil, fmt.Errorf("unexpected incidents slice %T", slice))
		}
	}

	query := url.Values{
		"since":     {typeutils.FormatTimestamp(current.Since)},
		"until":     {typeutils.FormatTimestamp(current.Until)},
		"sort_by":   {"created_at:asc"},
		"time_zone": {"UTC"},
	}
	cursor := base.CursorValue(createdAt, streamState)
	synced := syncedAtCursor(streamState)

	return func(yield func(map[string]any, error) bool) {
		for record, err := range rest.Paginate(ctx, i.client.list("incidents", "incidents", query)) {
			if err != nil {
				yield(nil, err)
				return
			}
			// since is inclusive, so incidents at the cursor come back again
			if mode == types.INCREMENTAL && cursor != nil {
				cmp := typeutils.Compare(record["created_at"], cursor)
				if cmp < 0 || (cmp == 0 && synced[typeutils.String(record["id"])]) {
					continue
				}
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// GetUpdatedState keeps the max created_at along with the ids of the
// incidents created at that instant:
// {"created_at": "...", "ids_at_cursor": ["P1", "P2"]}
func (i *incidents) GetUpdatedState(currentState any, latestRecord map[string]any) any {
	previous := base.CursorValue(createdAt, currentState)
	state, _ := base.MaxCursorState(createdAt, currentState, latestRecord).(map[string]any)

	value, found := createdAt.Lookup(latestRecord)
	if !found || value == nil {
		return state
	}
	id := typeutils.String(latestRecord["id"])

	cmp := 1
	if previous != nil {
		cmp = typeutils.Compare(value, previous)
	}
	switch {
	case cmp > 0:
		state[idsAtCursor] = []any{id}
	case cmp == 0:
		ids, _ := state[idsAtCursor].([]any)
		if syncedAtCursor(state)[id] {
			return state
		}
		// copied so earlier checkpoints keep their own list
		state[idsAtCursor] = append(append(make([]any, 0, len(ids)+1), ids...), id)
	}
	return state
}

func syncedAtCursor(streamState any) map[string]bool {
	state, _ := streamState.(map[string]any)
	ids, _ := state[idsAtCursor].([]any)
	synced := make(map[string]bool, len(ids))
	for _, id := range ids {
		synced[typeutils.String(id)] = true
	}
	return synced
}
