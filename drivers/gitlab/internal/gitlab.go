package driver

import (
	"context"
	"embed"
	"fmt"
	"net/url"
	"strconv"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/drivers/abstract"
	"github.com/datazip-inc/airlake/drivers/base"
	"github.com/datazip-inc/airlake/pkg/rest"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
)

//go:embed resources
var resources embed.FS

// GitLab implements abstract.Source
type GitLab struct {
	config *Config
}

func (g *GitLab) Type() string {
	return "gitlab"
}

func (g *GitLab) GetConfigRef() abstract.Config {
	g.config = &Config{}
	return g.config
}

func (g *GitLab) Spec() *types.ConnectorSpecification {
	spec, err := base.LoadSpec(resources, "resources/spec.json")
	if err != nil {
		logger.Fatalf("failed to load gitlab spec: %s", err)
	}
	return spec
}

func (g *GitLab) CheckConnection(ctx context.Context, cfg abstract.Config) (bool, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return false, err
	}

	// every configured group must be visible to the token
	for _, group := range client.config.Groups {
		var out map[string]any
		if _, err := client.http.Get(ctx, "groups/"+url.PathEscape(group), nil, &out); err != nil {
			return false, fmt.Errorf("failed to access group[%s]: %s", group, err)
		}
	}
	return true, nil
}

func (g *GitLab) Streams(ctx context.Context, cfg abstract.Config) ([]abstract.Stream, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	schemas, err := base.LoadSchemas(resources, "resources/schemas")
	if err != nil {
		return nil, err
	}

	return []abstract.Stream{
		newGroups(client, schemas["groups"]),
		newProjects(client, schemas["projects"]),
		newMergeRequests(client, schemas["merge_requests"]),
	}, nil
}

type client struct {
	http   *rest.Client
	config *Config
}

func newClient(ctx context.Context, cfg abstract.Config) (*client, error) {
	config, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config type %T", constants.ErrInvalidConfig, cfg)
	}

	httpClient, err := rest.NewClient(ctx, rest.Config{
		BaseURL:    config.APIURL,
		Token:      config.Token,
		RateLimit:  config.RequestsPerSecond,
		MaxRetries: config.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	return &client{http: httpClient, config: config}, nil
}

// list walks a page numbered collection following the X-Next-Page header
func (c *client) list(path string, query url.Values) rest.PageFunc[map[string]any] {
	return func(ctx context.Context, page string) ([]map[string]any, string, error) {
		params := url.Values{}
		for key, values := range query {
			params[key] = values
		}
		params.Set("per_page", strconv.Itoa(c.config.PageSize))
		if page != "" {
			params.Set("page", page)
		}

		var out []map[string]any
		resp, err := c.http.Get(ctx, path, params, &out)
		if err != nil {
			return nil, "", err
		}
		return out, resp.Header.Get("X-Next-Page"), nil
	}
}
