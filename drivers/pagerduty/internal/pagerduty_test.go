package driver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/drivers/abstract"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var testNow = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type fakePagerDuty struct {
	users     []any
	incidents []map[string]any
	windows   []string
}

func newFakePagerDuty() *fakePagerDuty {
	return &fakePagerDuty{
		users: []any{
			map[string]any{"id": "PU1", "name": "Ada"},
			map[string]any{"id": "PU2", "name": "Grace"},
			map[string]any{"id": "PU3", "name": "Linus"},
		},
		incidents: []map[string]any{
			{"id": "PI1", "title": "db down", "created_at": "2024-01-05T00:00:00Z"},
			{"id": "PI2", "title": "disk full", "created_at": "2024-02-10T00:00:00Z"},
			{"id": "PI3", "title": "latency", "created_at": "2024-03-10T00:00:00Z"},
		},
	}
}

func (f *fakePagerDuty) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Token token=pd" || r.Header.Get("Accept") != acceptHeader {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Unauthorized","code":2006}}`))
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	switch r.URL.Path {
	case "/abilities":
		f.write(w, map[string]any{"abilities": []any{"teams"}})
	case "/users":
		end := min(offset+limit, len(f.users))
		f.write(w, map[string]any{"users": f.users[offset:end], "more": end < len(f.users)})
	case "/services":
		f.write(w, map[string]any{"services": []any{map[string]any{"id": "PS1"}}, "more": false})
	case "/incidents":
		since, _ := time.Parse(time.RFC3339, query.Get("since"))
		until, _ := time.Parse(time.RFC3339, query.Get("until"))
		f.windows = append(f.windows, query.Get("since")+"/"+query.Get("until"))

		matched := []any{}
		for _, incident := range f.incidents {
			created, _ := time.Parse(time.RFC3339, incident["created_at"].(string))
			if !created.Before(since) && created.Before(until) {
				matched = append(matched, incident)
			}
		}
		f.write(w, map[string]any{"incidents": matched, "more": false})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePagerDuty) write(w http.ResponseWriter, body any) {
	raw, _ := json.Marshal(body)
	_, _ = w.Write(raw)
}

func testConfig(t *testing.T, server *httptest.Server) *Config {
	t.Helper()
	cfg := &Config{
		Token:             "pd",
		APIURL:            server.URL,
		StartDate:         "2024-01-01T00:00:00Z",
		PageSize:          2,
		RequestsPerSecond: 1000,
		MaxRetries:        1,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func testSource() *abstract.AbstractSource {
	return abstract.NewAbstractSource(&PagerDuty{now: func() time.Time { return testNow }})
}

func readAll(t *testing.T, cfg *Config, name string, mode types.SyncMode, state types.State) []*types.Message {
	t.Helper()
	catalog := &types.ConfiguredCatalog{Streams: []*types.ConfiguredStream{{Stream: &types.Stream{Name: name}, SyncMode: mode}}}

	var messages []*types.Message
	for message, err := range testSource().Read(context.Background(), cfg, catalog, state) {
		require.NoError(t, err)
		messages = append(messages, message)
	}
	return messages
}

func recordIDs(messages []*types.Message) []string {
	var ids []string
	for _, message := range messages {
		if message.Type == types.RecordMessage {
			ids = append(ids, message.Record.Data["id"].(string))
		}
	}
	return ids
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Token: "pd"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultAPIURL, cfg.APIURL)
	assert.Equal(t, defaultWindowDays, cfg.WindowDays)
	assert.Equal(t, 30*24*time.Hour, cfg.window())

	err := (&Config{}).Validate()
	assert.ErrorIs(t, err, constants.ErrInvalidConfig)
	assert.ErrorContains(t, err, "token")

	err = (&Config{Token: "pd", WindowDays: 365}).Validate()
	assert.ErrorContains(t, err, "window_days")
}

func TestCheck(t *testing.T) {
	server := httptest.NewServer(newFakePagerDuty())
	defer server.Close()

	cfg := testConfig(t, server)
	status := testSource().Check(context.Background(), cfg)
	assert.Equal(t, types.ConnectionSucceed, status.ConnectionStatus.Status)

	cfg.Token = "revoked"
	status = testSource().Check(context.Background(), cfg)
	assert.Equal(t, types.ConnectionFailed, status.ConnectionStatus.Status)
	assert.Contains(t, status.ConnectionStatus.Message, "failed to verify api token")
	assert.Contains(t, status.ConnectionStatus.Message, "Unauthorized")
}

func TestDiscover(t *testing.T) {
	server := httptest.NewServer(newFakePagerDuty())
	defer server.Close()

	message, err := testSource().Discover(context.Background(), testConfig(t, server))
	require.NoError(t, err)
	require.Len(t, message.Catalog.Streams, 3)

	incidents := message.Catalog.Streams[2]
	assert.Equal(t, "Incidents", incidents.Name)
	assert.Equal(t, types.NewFieldPath("created_at"), incidents.DefaultCursorField)
	assert.Equal(t, types.NewPrimaryKey("id"), incidents.SourceDefinedPrimaryKey)
}

func TestReadUsersPaginates(t *testing.T) {
	server := httptest.NewServer(newFakePagerDuty())
	defer server.Close()

	messages := readAll(t, testConfig(t, server), "Users", types.FULLREFRESH, nil)
	assert.Equal(t, []string{"PU1", "PU2", "PU3"}, recordIDs(messages))
}

func TestIncidentWindows(t *testing.T) {
	server := httptest.NewServer(newFakePagerDuty())
	defer server.Close()

	source := &PagerDuty{now: func() time.Time { return testNow }}
	cfg := testConfig(t, server)
	client, err := source.newClient(context.Background(), cfg)
	require.NoError(t, err)
	stream := newIncidents(client, nil)

	var windows []string
	for slice, err := range stream.StreamSlices(context.Background(), types.FULLREFRESH, createdAt, nil) {
		require.NoError(t, err)
		windows = append(windows, slice.(window).String())
	}
	assert.Equal(t, []string{
		"[2024-01-01T00:00:00Z, 2024-01-31T00:00:00Z)",
		"[2024-01-31T00:00:00Z, 2024-03-01T00:00:00Z)",
		"[2024-03-01T00:00:00Z, 2024-03-15T00:00:00Z)",
	}, windows)

	// without a start date the lookback is used
	cfg.StartDate = ""
	windows = nil
	for slice := range stream.StreamSlices(context.Background(), types.FULLREFRESH, createdAt, nil) {
		windows = append(windows, slice.(window).String())
	}
	assert.Equal(t, []string{"[2024-02-14T00:00:00Z, 2024-03-15T00:00:00Z)"}, windows)
}

func TestReadIncidentsIncremental(t *testing.T) {
	fake := newFakePagerDuty()
	server := httptest.NewServer(fake)
	defer server.Close()
	cfg := testConfig(t, server)

	messages := readAll(t, cfg, "Incidents", types.INCREMENTAL, nil)
	assert.Equal(t, []string{"PI1", "PI2", "PI3"}, recordIDs(messages))
	assert.Len(t, fake.windows, 3)

	last := messages[len(messages)-1]
	require.Equal(t, types.StateMessage, last.Type)
	assert.Equal(t, map[string]any{"created_at": "2024-03-10T00:00:00Z", "ids_at_cursor": []any{"PI3"}}, last.State.Data["Incidents"])

	fake.incidents = append(fake.incidents, map[string]any{"id": "PI4", "created_at": "2024-03-12T08:00:00Z"})
	fake.windows = nil

	messages = readAll(t, cfg, "Incidents", types.INCREMENTAL, last.State.Data)
	assert.Equal(t, []string{"PI4"}, recordIDs(messages))
	assert.Equal(t, []string{"2024-03-10T00:00:00Z/2024-03-15T00:00:00Z"}, fake.windows)
}

func TestReadIncidentsCreatedAtCursor(t *testing.T) {
	fake := newFakePagerDuty()
	server := httptest.NewServer(fake)
	defer server.Close()
	cfg := testConfig(t, server)

	state := types.State{"Incidents": map[string]any{"created_at": "2024-03-10T00:00:00Z", "ids_at_cursor": []any{"PI3"}}}
	fake.incidents = append(fake.incidents, map[string]any{"id": "PI5", "title": "cert expiry", "created_at": "2024-03-10T00:00:00Z"})

	messages := readAll(t, cfg, "Incidents", types.INCREMENTAL, state)
	assert.Equal(t, []string{"PI5"}, recordIDs(messages))

	last := messages[len(messages)-1]
	require.Equal(t, types.StateMessage, last.Type)
	assert.Equal(t, map[string]any{"created_at": "2024-03-10T00:00:00Z", "ids_at_cursor": []any{"PI3", "PI5"}}, last.State.Data["Incidents"])

	// the stored list is left untouched
	assert.Equal(t, []any{"PI3"}, state["Incidents"].(map[string]any)["ids_at_cursor"])
}

func TestIncidentsUpdatedState(t *testing.T) {
	stream := newIncidents(nil, nil)

	state := stream.GetUpdatedState(nil, map[string]any{"id": "PI1", "created_at": "2024-01-05T00:00:00Z"})
	state = stream.GetUpdatedState(state, map[string]any{"id": "PI2", "created_at": "2024-01-05T00:00:00Z"})
	state = stream.GetUpdatedState(state, map[string]any{"id": "PI2", "created_at": "2024-01-05T00:00:00Z"})
	assert.Equal(t, map[string]any{"created_at": "2024-01-05T00:00:00Z", "ids_at_cursor": []any{"PI1", "PI2"}}, state)

	state = stream.GetUpdatedState(state, map[string]any{"id": "PI3", "created_at": "2024-02-01T00:00:00Z"})
	assert.Equal(t, map[string]any{"created_at": "2024-02-01T00:00:00Z", "ids_at_cursor": []any{"PI3"}}, state)

	state = stream.GetUpdatedState(state, map[string]any{"id": "PI0", "created_at": "2023-12-01T00:00:00Z"})
	assert.Equal(t, map[string]any{"created_at": "2024-02-01T00:00:00Z", "ids_at_cursor": []any{"PI3"}}, state)
}
