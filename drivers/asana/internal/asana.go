package driver

import (
	"context"
	"embed"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/drivers/abstract"
	"github.com/datazip-inc/airlake/drivers/base"
	"github.com/datazip-inc/airlake/pkg/rest"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
)

//go:embed resources
var resources embed.FS

// Asana implements abstract.Source
type Asana struct {
	config *Config
}

func (a *Asana) Type() string {
	return "asana"
}

func (a *Asana) GetConfigRef() abstract.Config {
	a.config = &Config{}
	return a.config
}

func (a *Asana) Spec() *types.ConnectorSpecification {
	spec, err := base.LoadSpec(resources, "resources/spec.json")
	if err != nil {
		logger.Fatalf("failed to load asana spec: %s", err)
	}
	return spec
}

func (a *Asana) CheckConnection(ctx context.Context, cfg abstract.Config) (bool, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return false, err
	}

	var me struct {
		Data struct {
			GID   string `json:"gid"`
			Email string `json:"email"`
		} `json:"data"`
	}
	if _, err := client.http.Get(ctx, "users/me", nil, &me); err != nil {
		return false, fmt.Errorf("failed to verify the personal access token: %s", err)
	}
	logger.Infof("Authenticated to Asana as user[%s]", me.Data.GID)
	return true, nil
}

func (a *Asana) Streams(ctx context.Context, cfg abstract.Config) ([]abstract.Stream, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	schemas, err := base.LoadSchemas(resources, "resources/schemas")
	if err != nil {
		return nil, err
	}

	return []abstract.Stream{
		newWorkspaces(client, schemas["workspaces"]),
		newUsers(client, schemas["users"]),
		newProjects(client, schemas["projects"]),
		newTasks(client, schemas["tasks"]),
	}, nil
}

// client wraps the REST client with the Asana page envelope and the
// workspaces resolved for this command
type client struct {
	http     *rest.Client
	config   *Config
	mu       sync.Mutex
	resolved []string
}

func newClient(ctx context.Context, cfg abstract.Config) (*client, error) {
	config, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config type %T", constants.ErrInvalidConfig, cfg)
	}

	httpClient, err := rest.NewClient(ctx, rest.Config{
		BaseURL:    config.APIURL,
		Token:      config.Credentials.PersonalAccessToken,
		RateLimit:  config.RequestsPerSecond,
		MaxRetries: config.MaxRetries,
		Headers:    map[string]string{"Asana-Enable": "new_user_task_lists,new_goal_memberships"},
	})
	if err != nil {
		return nil, err
	}

	return &client{http: httpClient, config: config}, nil
}

type page struct {
	Data     []map[string]any `json:"data"`
	NextPage *struct {
		Offset string `json:"offset"`
	} `json:"next_page"`
}

// list walks an offset paginated collection
func (c *client) list(path string, query url.Values) rest.PageFunc[map[string]any] {
	return func(ctx context.Context, offset string) ([]map[string]any, string, error) {
		params := url.Values{}
		for key, values := range query {
			params[key] = values
		}
		params.Set("limit", strconv.Itoa(c.config.PageSize))
		if offset != "" {
			params.Set("offset", offset)
		}

		var out page
		if _, err := c.http.Get(ctx, path, params, &out); err != nil {
			return nil, "", err
		}
		if out.NextPage == nil {
			return out.Data, "", nil
		}
		return out.Data, out.NextPage.Offset, nil
	}
}

// workspaces returns the configured workspaces or lists the visible ones once
func (c *client) workspaces(ctx context.Context) ([]string, error) {
	if len(c.config.Workspaces) > 0 {
		return c.config.Workspaces, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved != nil {
		return c.resolved, nil
	}

	resolved := []string{}
	for workspace, err := range rest.Paginate(ctx, c.list("workspaces", url.Values{"opt_fields": {"gid"}})) {
		if err != nil {
			return nil, fmt.Errorf("failed to list workspaces: %w", err)
		}
		if gid, ok := workspace["gid"].(string); ok {
			resolved = append(resolved, gid)
		}
	}
	c.resolved = resolved
	return resolved, nil
}
