package destination

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/utils"
)

type NewFunc func() Writer

// RegisteredWriters holds the destination writers linked into the binary,
// writers register themselves from init
var RegisteredWriters = map[string]NewFunc{}

// WriterConfig selects a registered writer and carries its own configuration
type WriterConfig struct {
	Type         string `json:"type" validate:"required"`
	WriterConfig any    `json:"writer"`
}

func (c *WriterConfig) Validate() error {
	if err := utils.Validate(c); err != nil {
		return err
	}
	if _, found := RegisteredWriters[c.Type]; !found {
		return fmt.Errorf("%w: invalid destination type has been passed [%s]; available are %s", constants.ErrInvalidConfig, c.Type, AvailableWriters())
	}
	return nil
}

// AvailableWriters lists registered writer types in sorted order
func AvailableWriters() string {
	names := make([]string, 0, len(RegisteredWriters))
	for name := range RegisteredWriters {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// LookupWriter returns a fresh unconfigured writer of the given type
func LookupWriter(writerType string) (Writer, error) {
	newFunc, found := RegisteredWriters[writerType]
	if !found {
		return nil, fmt.Errorf("%w: invalid destination type has been passed [%s]; available are %s", constants.ErrInvalidConfig, writerType, AvailableWriters())
	}
	return newFunc(), nil
}

// NewWriter initializes the configured writer and tests the destination
func NewWriter(ctx context.Context, config *WriterConfig) (Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	writer, err := LookupWriter(config.Type)
	if err != nil {
		return nil, err
	}

	writerConfig := writer.GetConfigRef()
	if err := utils.Unmarshal(config.WriterConfig, writerConfig); err != nil {
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidConfig, err)
	}
	if err := writerConfig.Validate(); err != nil {
		return nil, err
	}

	if err := writer.Check(ctx); err != nil {
		return nil, fmt.Errorf("failed to test destination: %s", err)
	}
	return writer, nil
}
