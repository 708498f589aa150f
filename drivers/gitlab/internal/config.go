package driver

import (
	"github.com/datazip-inc/airlake/utils"
)

const (
	defaultAPIURL   = "https://gitlab.com/api/v4"
	defaultPageSize = 100
)

// Config holds GitLab connection configuration
type Config struct {
	Token  string `json:"token" validate:"required"`
	APIURL string `json:"api_url,omitempty" validate:"omitempty,url"`
	// group ids or full paths, subgroups are included
	Groups            []string `json:"groups" validate:"required,min=1,dive,required"`
	StartDate         string   `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	PageSize          int      `json:"page_size,omitempty" validate:"gte=0,lte=100"`
	RequestsPerSecond float64  `json:"requests_per_second,omitempty" validate:"gte=0"`
	MaxRetries        int      `json:"max_retries,omitempty" validate:"gte=0"`
}

func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}

	c.APIURL = utils.Ternary(c.APIURL == "", defaultAPIURL, c.APIURL)
	c.PageSize = utils.Ternary(c.PageSize == 0, defaultPageSize, c.PageSize)
	return nil
}
