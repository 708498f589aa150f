package driver

import (
	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/utils"
)

const (
	defaultAPIURL             = "https://app.asana.com/api/1.0"
	defaultPageSize           = 100
	defaultCheckpointInterval = 100
)

type Credentials struct {
	PersonalAccessToken string `json:"personal_access_token" validate:"required"`
}

// Config holds Asana connection configuration
type Config struct {
	Credentials Credentials `json:"credentials"`
	APIURL      string      `json:"api_url,omitempty" validate:"omitempty,url"`
	// restricts the sync to these workspace gids; all visible workspaces otherwise
	Workspaces []string `json:"workspaces,omitempty" validate:"dive,required"`
	// lower bound of the first incremental Tasks sync (RFC3339)
	StartDate         string  `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	PageSize          int     `json:"page_size,omitempty" validate:"gte=0,lte=100"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" validate:"gte=0"`
	MaxRetries        int     `json:"max_retries,omitempty" validate:"gte=0"`
}

func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}

	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	if c.PageSize == 0 {
		c.PageSize = defaultPageSize
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = constants.DefaultRateLimit
	}
	return nil
}
