package driver

import (
	"context"
	"iter"
	"net/url"

	"github.com/datazip-inc/airlake/drivers/base"
	"github.com/datazip-inc/airlake/pkg/rest"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/typeutils"
)

var (
	updatedAt        = types.NewFieldPath("updated_at")
	projectPartition = types.NewFieldPath("project_id")
)

func groupSlices(groups []string) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, group := range groups {
			if !yield(group, nil) {
				return
			}
		}
	}
}

func projectsOf(ctx context.Context, client *client, group string) iter.Seq2[map[string]any, error] {
	query := url.Values{
		"include_subgroups": {"true"},
		"with_shared":       {"false"},
		"order_by":          {"id"},
		"sort":              {"asc"},
	}
	return rest.Paginate(ctx, client.list("groups/"+url.PathEscape(group)+"/projects", query))
}

type groups struct {
	base.Stream
	client *client
}

func newGroups(client *client, schema map[string]any) *groups {
	return &groups{
		Stream: base.Stream{StreamName: "Groups", Schema: schema, Key: types.NewPrimaryKey("id")},
		client: client,
	}
}

func (g *groups) StreamSlices(_ context.Context, _ types.SyncMode, _ types.FieldPath, _ any) iter.Seq2[any, error] {
	return groupSlices(g.client.config.Groups)
}

func (g *groups) ReadRecords(ctx context.Context, _ types.SyncMode, _ types.FieldPath, slice any, _ any) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		var group map[string]any
		if _, err := g.client.http.Get(ctx, "groups/"+url.PathEscape(typeutils.String(slice)), url.Values{"with_projects": {"false"}}, &group); err != nil {
			yield(nil, err)
			return
		}
		yield(group, nil)
	}
}

type projects struct {
	base.Stream
	client *client
}

func newProjects(client *client, schema map[string]any) *projects {
	return &projects{
		Stream: base.Stream{StreamName: "Projects", Schema: schema, Key: types.NewPrimaryKey("id")},
		client: client,
	}
}

func (p *projects) StreamSlices(_ context.Context, _ types.SyncMode, _ types.FieldPath, _ any) iter.Seq2[any, error] {
	return groupSlices(p.client.config.Groups)
}

func (p *projects) ReadRecords(ctx context.Context, _ types.SyncMode, _ types.FieldPath, slice any, _ any) iter.Seq2[map[string]any, error] {
	return projectsOf(ctx, p.client, typeutils.String(slice))
}

// mergeRequests is sliced per project, each project keeps its own cursor:
// {"<project id>": {"updated_at": "..."}}
type mergeRequests struct {
	base.Stream
	client *client
}

func newMergeRequests(client *client, schema map[string]any) *mergeRequests {
	return &mergeRequests{
		Stream: base.Stream{
			StreamName:         "MergeRequests",
			Schema:             schema,
			Key:                types.NewPrimaryKey("id"),
			Cursor:             updatedAt,
			Incremental:        true,
			CheckpointInterval: client.config.PageSize,
		},
		client: client,
	}
}

// StreamSlices lists the projects of every configured group
func (m *mergeRequests) StreamSlices(ctx context.Context, _ types.SyncMode, _ types.FieldPath, _ any) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		seen := map[string]bool{}
		for _, group := range m.client.config.Groups {
			for project, err := range projectsOf(ctx, m.client, group) {
				if err != nil {
					yield(nil, err)
					return
				}

				id := typeutils.String(project["id"])
				if seen[id] {
					continue
				}
				seen[id] = true
				if !yield(id, nil) {
					return
				}
			}
		}
	}
}

func (m *mergeRequests) ReadRecords(ctx context.Context, mode types.SyncMode, _ types.FieldPath, slice any, streamState any) iter.Seq2[map[string]any, error] {
	project := typeutils.String(slice)
	query := url.Values{
		"state":    {"all"},
		"scope":    {"all"},
		"order_by": {"updated_at"},
		"sort":     {"asc"},
	}

	since := m.client.config.StartDate
	if mode == types.INCREMENTAL {
		if cursor := base.CursorValue(updatedAt, base.PartitionState(streamState, project)); cursor != nil {
			since = typeutils.String(cursor)
		}
	}
	if since != "" {
		query.Set("updated_after", since)
	}

	return rest.Paginate(ctx, m.client.list("projects/"+url.PathEscape(project)+"/merge_requests", query))
}

func (m *mergeRequests) GetUpdatedState(currentState any, latestRecord map[string]any) any {
	return base.PartitionedCursorState(projectPartition, updatedAt, currentState, latestRecord)
}
