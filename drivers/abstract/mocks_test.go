package abstract

import (
	"context"
	"errors"
	"iter"

	"github.com/datazip-inc/airlake/types"
)

type MockConfig struct {
	validateErr error
}

func (c *MockConfig) Validate() error {
	return c.validateErr
}

// MockStream yields predefined slices and records; every hook can be overridden.
// An empty slices list yields no slice at all, set nilSlices for the default
// single nil slice.
type MockStream struct {
	name                string
	cursor              types.FieldPath
	primaryKey          types.PrimaryKey
	supportsIncremental bool
	checkpointInterval  int
	slices              []any
	nilSlices           bool
	records             map[any][]map[string]any
	sliceErr            error
	recordErr           error

	streamSlicesFunc    func(ctx context.Context, mode types.SyncMode, cursorField types.FieldPath, streamState any) iter.Seq2[any, error]
	getUpdatedStateFunc func(currentState any, latestRecord map[string]any) any

	// observed calls
	readCalls   []readCall
	sliceStates []any
}

type readCall struct {
	mode        types.SyncMode
	cursorField types.FieldPath
	slice       any
	state       any
}

func (m *MockStream) Name() string {
	return m.name
}

func (m *MockStream) JSONSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"id": map[string]any{"type": "string"}}}
}

func (m *MockStream) PrimaryKey() types.PrimaryKey {
	return m.primaryKey
}

func (m *MockStream) CursorField() types.FieldPath {
	return m.cursor
}

func (m *MockStream) SupportsIncremental() bool {
	return m.supportsIncremental
}

func (m *MockStream) StateCheckpointInterval() int {
	return m.checkpointInterval
}

func (m *MockStream) StreamSlices(ctx context.Context, mode types.SyncMode, cursorField types.FieldPath, streamState any) iter.Seq2[any, error] {
	if m.streamSlicesFunc != nil {
		return m.streamSlicesFunc(ctx, mode, cursorField, streamState)
	}
	if m.nilSlices {
		return nil
	}
	m.sliceStates = append(m.sliceStates, types.DeepClone(streamState))
	return func(yield func(any, error) bool) {
		for _, slice := range m.slices {
			if !yield(slice, nil) {
				return
			}
		}
		if m.sliceErr != nil {
			yield(nil, m.sliceErr)
		}
	}
}

func (m *MockStream) ReadRecords(_ context.Context, mode types.SyncMode, cursorField types.FieldPath, slice any, streamState any) iter.Seq2[map[string]any, error] {
	m.readCalls = append(m.readCalls, readCall{mode: mode, cursorField: cursorField, slice: slice, state: types.DeepClone(streamState)})
	return func(yield func(map[string]any, error) bool) {
		for _, record := range m.records[slice] {
			if !yield(record, nil) {
				return
			}
		}
		if m.recordErr != nil {
			yield(nil, m.recordErr)
		}
	}
}

// GetUpdatedState keeps the highest value of the cursor field seen so far
func (m *MockStream) GetUpdatedState(currentState any, latestRecord map[string]any) any {
	if m.getUpdatedStateFunc != nil {
		return m.getUpdatedStateFunc(currentState, latestRecord)
	}

	current, _ := currentState.(map[string]any)
	updated := map[string]any{}
	for key, value := range current {
		updated[key] = value
	}
	value, found := m.cursor.Lookup(latestRecord)
	if !found {
		return updated
	}
	if previous, ok := updated[m.cursor.String()].(float64); !ok || value.(float64) > previous {
		updated[m.cursor.String()] = value
	}
	return updated
}

type MockSource struct {
	streams []Stream

	streamsFunc         func(ctx context.Context, cfg Config) ([]Stream, error)
	checkConnectionFunc func(ctx context.Context, cfg Config) (bool, error)
	streamsCalls        int
}

func (m *MockSource) Type() string {
	return "mock"
}

func (m *MockSource) GetConfigRef() Config {
	return &MockConfig{}
}

func (m *MockSource) Spec() *types.ConnectorSpecification {
	return &types.ConnectorSpecification{
		DocumentationURL:        "https://example.com/docs",
		ConnectionSpecification: map[string]any{"type": "object"},
	}
}

func (m *MockSource) CheckConnection(ctx context.Context, cfg Config) (bool, error) {
	if m.checkConnectionFunc != nil {
		return m.checkConnectionFunc(ctx, cfg)
	}
	return true, nil
}

func (m *MockSource) Streams(ctx context.Context, cfg Config) ([]Stream, error) {
	m.streamsCalls++
	if m.streamsFunc != nil {
		return m.streamsFunc(ctx, cfg)
	}
	return m.streams, nil
}

// MockHookSource rewrites the catalog and state before reads
type MockHookSource struct {
	MockSource
	onBeforeReadFunc func(ctx context.Context, cfg Config, catalog *types.ConfiguredCatalog, state types.State) (*types.ConfiguredCatalog, types.State, error)
}

func (m *MockHookSource) OnBeforeRead(ctx context.Context, cfg Config, catalog *types.ConfiguredCatalog, state types.State) (*types.ConfiguredCatalog, types.State, error) {
	return m.onBeforeReadFunc(ctx, cfg, catalog, state)
}

var errMockRead = errors.New("upstream returned 500")

func configuredStream(name string, mode types.SyncMode) *types.ConfiguredStream {
	return &types.ConfiguredStream{Stream: &types.Stream{Name: name}, SyncMode: mode}
}

func configuredCatalog(streams ...*types.ConfiguredStream) *types.ConfiguredCatalog {
	return &types.ConfiguredCatalog{Streams: streams}
}

func cursorRecords(field string, values ...float64) []map[string]any {
	records := make([]map[string]any, 0, len(values))
	for idx, value := range values {
		records = append(records, map[string]any{"id": float64(idx + 1), field: value})
	}
	return records
}

// collect drains a read, returning the messages and the terminal error
func collect(seq iter.Seq2[*types.Message, error]) ([]*types.Message, error) {
	var messages []*types.Message
	for message, err := range seq {
		if err != nil {
			return messages, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func messageTypes(messages []*types.Message) []types.MessageType {
	out := make([]types.MessageType, 0, len(messages))
	for _, message := range messages {
		out = append(out, message.Type)
	}
	return out
}

func countType(messages []*types.Message, typ types.MessageType) int {
	count := 0
	for _, message := range messages {
		if message.Type == typ {
			count++
		}
	}
	return count
}
