package driver

import (
	"time"

	"github.com/datazip-inc/airlake/utils"
)

const (
	defaultAPIURL   = "https://api.pagerduty.com"
	defaultPageSize = 100
	// the incidents api rejects ranges longer than six months, windows stay well below
	defaultWindowDays = 30
	defaultLookback   = 30 * 24 * time.Hour
)

// Config holds PagerDuty connection configuration
type Config struct {
	Token      string `json:"token" validate:"required"`
	APIURL     string `json:"api_url,omitempty" validate:"omitempty,url"`
	StartDate  string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	WindowDays int    `json:"window_days,omitempty" validate:"gte=0,lte=180"`
	PageSize   int    `json:"page_size,omitempty" validate:"gte=0,lte=100"`

	RequestsPerSecond float64 `json:"requests_per_second,omitempty" validate:"gte=0"`
	MaxRetries        int     `json:"max_retries,omitempty" validate:"gte=0"`
}

func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}

	c.APIURL = utils.Ternary(c.APIURL == "", defaultAPIURL, c.APIURL)
	c.PageSize = utils.Ternary(c.PageSize == 0, defaultPageSize, c.PageSize)
	c.WindowDays = utils.Ternary(c.WindowDays == 0, defaultWindowDays, c.WindowDays)
	return nil
}

func (c *Config) window() time.Duration {
	return time.Duration(c.WindowDays) * 24 * time.Hour
}
