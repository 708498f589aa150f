package local

import (
	"github.com/datazip-inc/airlake/utils"
)

const (
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// Config of the local file destination:
// <path>/<namespace>/<stream>/<ulid>.<format>
type Config struct {
	Path   string `json:"path" validate:"required"`
	Format string `json:"format,omitempty" validate:"omitempty,oneof=jsonl parquet"`
	// parquet only
	Compression string `json:"compression,omitempty" validate:"omitempty,oneof=snappy gzip zstd none"`
}

func (c *Config) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}

	c.Format = utils.Ternary(c.Format == "", FormatJSONL, c.Format)
	c.Compression = utils.Ternary(c.Compression == "", "snappy", c.Compression)
	return nil
}
