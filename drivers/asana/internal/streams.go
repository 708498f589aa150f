package driver

import (
	"context"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/datazip-inc/airlake/drivers/base"
	"github.com/datazip-inc/airlake/pkg/rest"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/datazip-inc/airlake/utils/typeutils"
)

const asanaTimestamp = "2006-01-02T15:04:05.000Z07:00"

var (
	workspaceFields = []string{"gid", "name", "is_organization", "email_domains"}
	userFields      = []string{"gid", "name", "email", "photo", "workspaces"}
	projectFields   = []string{"gid", "name", "archived", "color", "created_at", "modified_at", "owner", "team", "workspace", "public", "notes"}
	taskFields      = []string{
		"gid", "name", "resource_subtype", "assignee", "assignee_status", "completed", "completed_at",
		"created_at", "modified_at", "due_on", "due_at", "start_on", "notes", "parent", "projects",
		"memberships", "tags", "followers", "custom_fields", "num_subtasks", "workspace",
	}
)

var (
	workspacePartition = types.NewFieldPath("workspace", "gid")
	modifiedAt         = types.NewFieldPath("modified_at")
)

type workspaces struct {
	base.Stream
	client *client
}

func newWorkspaces(client *client, schema map[string]any) *workspaces {
	return &workspaces{
		Stream: base.Stream{StreamName: "Workspaces", Schema: schema, Key: types.NewPrimaryKey("gid")},
		client: client,
	}
}

func (w *workspaces) ReadRecords(ctx context.Context, _ types.SyncMode, _ types.FieldPath, _ any, _ any) iter.Seq2[map[string]any, error] {
	query := url.Values{"opt_fields": {strings.Join(workspaceFields, ",")}}
	return rest.Paginate(ctx, w.client.list("workspaces", query))
}

// workspaceSlices yields one slice per workspace gid
func workspaceSlices(ctx context.Context, client *client) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		gids, err := client.workspaces(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, gid := range gids {
			if !yield(gid, nil) {
				return
			}
		}
	}
}

type users struct {
	base.Stream
	client *client
}

func newUsers(client *client, schema map[string]any) *users {
	return &users{
		Stream: base.Stream{StreamName: "Users", Schema: schema, Key: types.NewPrimaryKey("gid")},
		client: client,
	}
}

func (u *users) StreamSlices(ctx context.Context, _ types.SyncMode, _ types.FieldPath, _ any) iter.Seq2[any, error] {
	return workspaceSlices(ctx, u.client)
}

func (u *users) ReadRecords(ctx context.Context, _ types.SyncMode, _ types.FieldPath, slice any, _ any) iter.Seq2[map[string]any, error] {
	query := url.Values{
		"workspace":  {typeutils.String(slice)},
		"opt_fields": {strings.Join(userFields, ",")},
	}
	return rest.Paginate(ctx, u.client.list("users", query))
}

type projects struct {
	base.Stream
	client *client
}

func newProjects(client *client, schema map[string]any) *projects {
	return &projects{
		Stream: base.Stream{StreamName: "Projects", Schema: schema, Key: types.NewPrimaryKey("gid")},
		client: client,
	}
}

func (p *projects) StreamSlices(ctx context.Context, _ types.SyncMode, _ types.FieldPath, _ any) iter.Seq2[any, error] {
	return workspaceSlices(ctx, p.client)
}

func (p *projects) ReadRecords(ctx context.Context, _ types.SyncMode, _ types.FieldPath, slice any, _ any) iter.Seq2[map[string]any, error] {
	query := url.Values{
		"workspace":  {typeutils.String(slice)},
		"opt_fields": {strings.Join(projectFields, ",")},
	}
	return rest.Paginate(ctx, p.client.list("projects", query))
}

// tasks is read per workspace through the search endpoint, sorted by
// modified_at; each workspace keeps its own cursor:
// {"<workspace gid>": {"modified_at": "..."}}
type tasks struct {
	base.Stream
	client *client
}

func newTasks(client *client, schema map[string]any) *tasks {
	return &tasks{
		Stream: base.Stream{
			StreamName:         "Tasks",
			Schema:             schema,
			Key:                types.NewPrimaryKey("gid"),
			Cursor:             modifiedAt,
			Incremental:        true,
			CheckpointInterval: defaultCheckpointInterval,
		},
		client: client,
	}
}

func (t *tasks) StreamSlices(ctx context.Context, _ types.SyncMode, _ types.FieldPath, _ any) iter.Seq2[any, error] {
	return workspaceSlices(ctx, t.client)
}

func (t *tasks) ReadRecords(ctx context.Context, mode types.SyncMode, _ types.FieldPath, slice any, streamState any) iter.Seq2[map[string]any, error] {
	workspace := typeutils.String(slice)

	since := t.client.config.StartDate
	if mode == types.INCREMENTAL {
		if cursor := base.CursorValue(modifiedAt, base.PartitionState(streamState, workspace)); cursor != nil {
			since = typeutils.String(cursor)
		}
	}

	return rest.Paginate(ctx, t.searchPage(workspace, since))
}

// searchPage pages through the search endpoint by moving modified_at.after
// just below the last modified_at of the previous page. The search api only
// filters strictly after a timestamp, so tasks tied with the last one of a
// page are fetched again and dropped by gid.
func (t *tasks) searchPage(workspace, since string) rest.PageFunc[map[string]any] {
	boundary := ""
	seen := map[string]bool{}

	return func(ctx context.Context, cursor string) ([]map[string]any, string, error) {
		after := since
		if cursor != "" {
			after = cursor
		}

		query := url.Values{
			"opt_fields":     {strings.Join(taskFields, ",")},
			"sort_by":        {"modified_at"},
			"sort_ascending": {"true"},
			"limit":          {typeutils.String(t.client.config.PageSize)},
		}
		if after != "" {
			query.Set("modified_at.after", after)
		}

		var out page
		if _, err := t.client.http.Get(ctx, "workspaces/"+url.PathEscape(workspace)+"/tasks/search", query, &out); err != nil {
			return nil, "", err
		}

		fresh := make([]map[string]any, 0, len(out.Data))
		for _, task := range out.Data {
			if modified, _ := task["modified_at"].(string); modified == boundary && seen[typeutils.String(task["gid"])] {
				continue
			}
			if _, found := task["workspace"]; !found {
				task["workspace"] = map[string]any{"gid": workspace}
			}
			fresh = append(fresh, task)
		}

		if len(out.Data) < t.client.config.PageSize {
			return fresh, "", nil
		}

		last, _ := out.Data[len(out.Data)-1]["modified_at"].(string)
		if last == boundary {
			// the whole page shares one modified_at, step strictly past it
			logger.Warnf("Workspace[%s] has at least %d tasks modified at %s, tasks past the page limit at that instant may be skipped", workspace, len(out.Data), last)
			boundary, seen = "", map[string]bool{}
			return fresh, last, nil
		}

		boundary, seen = last, map[string]bool{}
		for _, task := range out.Data {
			if modified, _ := task["modified_at"].(string); modified == last {
				seen[typeutils.String(task["gid"])] = true
			}
		}
		return fresh, justBefore(last), nil
	}
}

// justBefore returns the millisecond preceding an Asana timestamp, or the
// timestamp itself when it cannot be parsed
func justBefore(timestamp string) string {
	parsed, err := typeutils.ParseTimestamp(timestamp)
	if err != nil {
		return timestamp
	}
	return parsed.Add(-time.Millisecond).UTC().Format(asanaTimestamp)
}

func (t *tasks) GetUpdatedState(currentState any, latestRecord map[string]any) any {
	return base.PartitionedCursorState(workspacePartition, modifiedAt, currentState, latestRecord)
}
