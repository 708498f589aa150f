package protocol

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datazip-inc/airlake/constants"
	_ "github.com/datazip-inc/airlake/destination/local"
	"github.com/datazip-inc/airlake/drivers/abstract"
	"github.com/datazip-inc/airlake/drivers/base"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfig struct {
	Token string `json:"token"`
}

func (c *fakeConfig) Validate() error {
	if c.Token == "" {
		return errors.New("token is a required field")
	}
	return nil
}

type fakeStream struct {
	base.Stream
	records []map[string]any
	err     error
}

func (f *fakeStream) ReadRecords(_ context.Context, mode types.SyncMode, _ types.FieldPath, _ any, streamState any) iter.Seq2[map[string]any, error] {
	cursor := base.CursorValue(f.Cursor, streamState)
	return func(yield func(map[string]any, error) bool) {
		for _, record := range f.records {
			if mode == types.INCREMENTAL && cursor != nil && record["updated"].(float64) <= cursor.(float64) {
				continue
			}
			if !yield(record, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

type fakeSource struct {
	stream *fakeStream
}

func newFakeSource() *fakeSource {
	return &fakeSource{stream: &fakeStream{
		Stream: base.Stream{
			StreamName:  "Tasks",
			Schema:      map[string]any{"type": "object", "properties": map[string]any{"id": map[string]any{"type": "integer"}}},
			Key:         types.NewPrimaryKey("id"),
			Cursor:      types.NewFieldPath("updated"),
			Incremental: true,
		},
		records: []map[string]any{
			{"id": 1.0, "updated": 10.0},
			{"id": 2.0, "updated": 20.0},
		},
	}}
}

func (f *fakeSource) Type() string {
	return "fake"
}

func (f *fakeSource) GetConfigRef() abstract.Config {
	return &fakeConfig{}
}

func (f *fakeSource) Spec() *types.ConnectorSpecification {
	return &types.ConnectorSpecification{
		DocumentationURL: "https://example.com",
		ConnectionSpecification: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"token":      map[string]any{"type": "string", "order": 1.0},
				"api_url":    map[string]any{"type": "string", "order": 0.0},
				"zz_extra":   map[string]any{"type": "string"},
				"aa_extra":   map[string]any{"type": "string"},
				"page_size":  map[string]any{"type": "integer", "order": 2.0},
				"start_date": map[string]any{"type": "string", "order": 2.0},
			},
		},
	}
}

func (f *fakeSource) CheckConnection(_ context.Context, cfg abstract.Config) (bool, error) {
	if cfg.(*fakeConfig).Token != "secret" {
		return false, errors.New("401 Unauthorized")
	}
	return true, nil
}

func (f *fakeSource) Streams(context.Context, abstract.Config) ([]abstract.Stream, error) {
	return []abstract.Stream{f.stream}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the command line and returns the protocol messages printed
func execute(t *testing.T, root func() *cobra.Command, stdin string, args ...string) ([]*types.Message, error) {
	t.Helper()
	var out bytes.Buffer
	logger.SetOutput(&out)
	t.Cleanup(func() {
		logger.SetOutput(os.Stdout)
		viper.Set(constants.CompressState, false)
		viper.Set(constants.LogLevel, constants.DefaultLogLevel)
		viper.Set(constants.ConfigFolder, "")
	})

	cmd := root()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()

	var messages []*types.Message
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		message := &types.Message{}
		require.NoError(t, json.Unmarshal([]byte(line), message), line)
		messages = append(messages, message)
	}
	return messages, err
}

func ofType(messages []*types.Message, typ types.MessageType) []*types.Message {
	var filtered []*types.Message
	for _, message := range messages {
		if message.Type == typ {
			filtered = append(filtered, message)
		}
	}
	return filtered
}

func sourceCommand(source abstract.Source) func() *cobra.Command {
	return func() *cobra.Command {
		return CreateRootCommand(source)
	}
}

func TestSpecSortsProperties(t *testing.T) {
	messages, err := execute(t, sourceCommand(newFakeSource()), "", "spec")
	require.NoError(t, err)

	specs := ofType(messages, types.SpecMessage)
	require.Len(t, specs, 1)
	assert.Equal(t, "https://example.com", specs[0].Spec.DocumentationURL)
	assert.Len(t, specs[0].Spec.ConnectionSpecification["properties"], 6)
}

func TestSortSchemaProperties(t *testing.T) {
	schema := newFakeSource().Spec().ConnectionSpecification
	schema["properties"].(map[string]any)["api_url"].(map[string]any)["properties"] = map[string]any{
		"b": map[string]any{"type": "string"},
		"a": map[string]any{"type": "string"},
	}

	sortSchemaProperties(schema)
	ordered := schema["properties"].(OrderedProperties)
	assert.Equal(t, []string{"api_url", "token", "page_size", "start_date", "aa_extra", "zz_extra"}, ordered.Order)

	nested := ordered.Properties["api_url"].(map[string]any)["properties"].(OrderedProperties)
	assert.Equal(t, []string{"a", "b"}, nested.Order)

	raw, err := json.Marshal(schema)
	require.NoError(t, err)
	text := string(raw)
	assert.Less(t, strings.Index(text, `"api_url"`), strings.Index(text, `"token"`))
	assert.Less(t, strings.Index(text, `"start_date"`), strings.Index(text, `"aa_extra"`))
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()

	good := writeFile(t, dir, "good.json", `{"token": "secret"}`)
	messages, err := execute(t, sourceCommand(newFakeSource()), "", "check", "--config", good)
	require.NoError(t, err)
	status := ofType(messages, types.ConnectionStatusMessage)
	require.Len(t, status, 1)
	assert.Equal(t, types.ConnectionSucceed, status[0].ConnectionStatus.Status)

	bad := writeFile(t, dir, "bad.yaml", "token: wrong\n")
	messages, err = execute(t, sourceCommand(newFakeSource()), "", "check", "--config", bad)
	require.NoError(t, err)
	status = ofType(messages, types.ConnectionStatusMessage)
	require.Len(t, status, 1)
	assert.Equal(t, types.ConnectionFailed, status[0].ConnectionStatus.Status)
	assert.Equal(t, "401 Unauthorized", status[0].ConnectionStatus.Message)

	messages, err = execute(t, sourceCommand(newFakeSource()), "", "check", "--config", filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionFailed, ofType(messages, types.ConnectionStatusMessage)[0].ConnectionStatus.Status)

	_, err = execute(t, sourceCommand(newFakeSource()), "", "check")
	assert.ErrorContains(t, err, "--config not passed")
}

func TestDiscoverCommand(t *testing.T) {
	config := writeFile(t, t.TempDir(), "config.json", `{"token": "secret"}`)

	messages, err := execute(t, sourceCommand(newFakeSource()), "", "discover", "--config", config)
	require.NoError(t, err)

	catalogs := ofType(messages, types.CatalogMessage)
	require.Len(t, catalogs, 1)
	require.Len(t, catalogs[0].Catalog.Streams, 1)
	assert.Equal(t, "Tasks", catalogs[0].Catalog.Streams[0].Name)
	assert.True(t, catalogs[0].Catalog.Streams[0].SupportsSyncMode(types.INCREMENTAL))
}

const tasksCatalog = `{"streams": [{"stream": {"name": "Tasks", "json_schema": {}, "supported_sync_modes": ["incremental"]}, "sync_mode": "incremental", "destination_sync_mode": "append"}]}`

func TestReadCommand(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "config.json", `{"token": "secret"}`)
	catalog := writeFile(t, dir, "catalog.json", tasksCatalog)
	state := writeFile(t, dir, "state.json", `{"Tasks": {"updated": 10}}`)

	messages, err := execute(t, sourceCommand(newFakeSource()), "", "read", "--config", config, "--catalog", catalog, "--state", state)
	require.NoError(t, err)

	records := ofType(messages, types.RecordMessage)
	require.Len(t, records, 1)
	assert.Equal(t, 2.0, records[0].Record.Data["id"])

	states := ofType(messages, types.StateMessage)
	require.NotEmpty(t, states)
	assert.Equal(t, map[string]any{"updated": 20.0}, states[len(states)-1].State.Data["Tasks"])
}

func TestReadCommandCompressedState(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "config.json", `{"token": "secret"}`)
	catalog := writeFile(t, dir, "catalog.json", tasksCatalog)

	messages, err := execute(t, sourceCommand(newFakeSource()), "", "read", "--config", config, "--catalog", catalog, "--compress-state")
	require.NoError(t, err)
	require.Len(t, ofType(messages, types.RecordMessage), 2)

	last := ofType(messages, types.StateMessage)
	compressed := last[len(last)-1].State.Data
	require.True(t, compressed.IsCompressed())

	// a compressed state is accepted back as input
	raw, err := json.Marshal(compressed)
	require.NoError(t, err)
	state := writeFile(t, dir, "state.json", string(raw))

	messages, err = execute(t, sourceCommand(newFakeSource()), "", "read", "--config", config, "--catalog", catalog, "--state", state)
	require.NoError(t, err)
	assert.Empty(t, ofType(messages, types.RecordMessage))
}

func TestReadCommandFailures(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "config.json", `{"token": "secret"}`)
	catalog := writeFile(t, dir, "catalog.json", tasksCatalog)

	source := newFakeSource()
	source.stream.err = errors.New("upstream returned 500")
	messages, err := execute(t, sourceCommand(source), "", "read", "--config", config, "--catalog", catalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream[Tasks]")
	assert.Len(t, ofType(messages, types.RecordMessage), 2)

	var errorLogs int
	for _, message := range ofType(messages, types.LogMessage) {
		if message.Log.Level == types.LogLevelError {
			errorLogs++
		}
	}
	assert.NotZero(t, errorLogs)

	unknown := writeFile(t, dir, "unknown.json", `{"streams": [{"stream": {"name": "Projects"}, "sync_mode": "full_refresh"}]}`)
	_, err = execute(t, sourceCommand(newFakeSource()), "", "read", "--config", config, "--catalog", unknown)
	assert.ErrorIs(t, err, constants.ErrUnknownStream)

	_, err = execute(t, sourceCommand(newFakeSource()), "", "read", "--config", config)
	assert.ErrorContains(t, err, "--catalog not passed")
}

func TestDestinationCommands(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out")
	config := writeFile(t, dir, "destination.json", `{"type": "local", "writer": {"path": "`+output+`"}}`)
	catalog := writeFile(t, dir, "catalog.json", tasksCatalog)

	messages, err := execute(t, CreateDestinationCommand, "", "spec", "--destination-type", "local")
	require.NoError(t, err)
	require.Len(t, ofType(messages, types.SpecMessage), 1)

	_, err = execute(t, CreateDestinationCommand, "", "spec", "--destination-type", "s3")
	assert.ErrorIs(t, err, constants.ErrInvalidConfig)

	messages, err = execute(t, CreateDestinationCommand, "", "check", "--config", config)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionSucceed, ofType(messages, types.ConnectionStatusMessage)[0].ConnectionStatus.Status)

	input := strings.Join([]string{
		`{"type":"RECORD","record":{"stream":"Tasks","emitted_at":1,"data":{"id":1}}}`,
		`{"type":"STATE","state":{"data":{"Tasks":{"updated":1}}}}`,
	}, "\n")
	messages, err = execute(t, CreateDestinationCommand, input, "write", "--config", config, "--catalog", catalog)
	require.NoError(t, err)
	require.Len(t, ofType(messages, types.StateMessage), 1)

	entries, err := os.ReadDir(filepath.Join(output, "Tasks"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// dry runs echo states without touching the destination
	messages, err = execute(t, CreateDestinationCommand, input, "write", "--config", filepath.Join(dir, "missing.json"), "--catalog", catalog, "--dry-run")
	require.NoError(t, err)
	require.Len(t, ofType(messages, types.StateMessage), 1)
}
