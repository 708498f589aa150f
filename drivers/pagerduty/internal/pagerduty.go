package driver

import (
	"context"
	"embed"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/drivers/abstract"
	"github.com/datazip-inc/airlake/drivers/base"
	"github.com/datazip-inc/airlake/pkg/rest"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
)

//go:embed resources
var resources embed.FS

const acceptHeader = "application/vnd.pagerduty+json;version=2"

// PagerDuty implements abstract.Source
type PagerDuty struct {
	config *Config
	// clock of incident windows
	now func() time.Time
}

func (p *PagerDuty) Type() string {
	return "pagerduty"
}

func (p *PagerDuty) GetConfigRef() abstract.Config {
	p.config = &Config{}
	return p.config
}

func (p *PagerDuty) Spec() *types.ConnectorSpecification {
	spec, err := base.LoadSpec(resources, "resources/spec.json")
	if err != nil {
		logger.Fatalf("failed to load pagerduty spec: %s", err)
	}
	return spec
}

func (p *PagerDuty) CheckConnection(ctx context.Context, cfg abstract.Config) (bool, error) {
	client, err := p.newClient(ctx, cfg)
	if err != nil {
		return false, err
	}

	var out map[string]any
	if _, err := client.http.Get(ctx, "abilities", nil, &out); err != nil {
		return false, fmt.Errorf("failed to verify api token: %s", err)
	}
	return true, nil
}

func (p *PagerDuty) Streams(ctx context.Context, cfg abstract.Config) ([]abstract.Stream, error) {
	client, err := p.newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	schemas, err := base.LoadSchemas(resources, "resources/schemas")
	if err != nil {
		return nil, err
	}

	return []abstract.Stream{
		newListStream(client, "Users", "users", schemas["users"]),
		newListStream(client, "Services", "services", schemas["services"]),
		newIncidents(client, schemas["incidents"]),
	}, nil
}

type client struct {
	http   *rest.Client
	config *Config
	now    func() time.Time
}

func (p *PagerDuty) newClient(ctx context.Context, cfg abstract.Config) (*client, error) {
	config, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected config type %T", constants.ErrInvalidConfig, cfg)
	}

	httpClient, err := rest.NewClient(ctx, rest.Config{
		BaseURL:    config.APIURL,
		Token:      "token=" + config.Token,
		TokenType:  "Token",
		Headers:    map[string]string{"Accept": acceptHeader},
		RateLimit:  config.RequestsPerSecond,
		MaxRetries: config.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	now := p.now
	if now == nil {
		now = time.Now
	}
	return &client{http: httpClient, config: config, now: now}, nil
}

// list walks an offset paginated collection; PagerDuty wraps items under
// the collection name and reports "more" while pages remain
func (c *client) list(path, collection string, query url.Values) rest.PageFunc[map[string]any] {
	return func(ctx context.Context, offset string) ([]map[string]any, string, error) {
		params := url.Values{}
		for key, values := range query {
			params[key] = values
		}
		params.Set("limit", strconv.Itoa(c.config.PageSize))
		params.Set("total", "false")
		if offset != "" {
			params.Set("offset", offset)
		}

		var page map[string]any
		if _, err := c.http.Get(ctx, path, params, &page); err != nil {
			return nil, "", err
		}

		raw, _ := page[collection].([]any)
		items := make([]map[string]any, 0, len(raw))
		for _, item := range raw {
			if record, ok := item.(map[string]any); ok {
				items = append(items, record)
			}
		}
		more, _ := page["more"].(bool)
		return items, rest.NextOffset(offset, c.config.PageSize, more && len(items) > 0), nil
	}
}
