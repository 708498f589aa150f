package abstract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
)

// AbstractSource drives every source connector: discovery, connection checks
// and reads are implemented once here on top of the Source and Stream contracts.
type AbstractSource struct { //nolint:revive
	source Source
}

func NewAbstractSource(source Source) *AbstractSource {
	return &AbstractSource{source: source}
}

func (a *AbstractSource) GetConfigRef() Config {
	return a.source.GetConfigRef()
}

func (a *AbstractSource) Type() string {
	return a.source.Type()
}

func (a *AbstractSource) Spec() *types.Message {
	return types.NewSpecMessage(a.source.Spec())
}

func (a *AbstractSource) Discover(ctx context.Context, cfg Config) (*types.Message, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	streams, err := a.source.Streams(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	catalog := &types.Catalog{Streams: make([]*types.Stream, 0, len(streams))}
	for _, stream := range streams {
		catalog.Streams = append(catalog.Streams, describe(stream))
	}
	logger.Infof("Discovered %d streams for source[%s]", len(catalog.Streams), a.source.Type())

	return types.NewCatalogMessage(catalog), nil
}

// describe maps a stream to its public catalog entry
func describe(stream Stream) *types.Stream {
	modes := []types.SyncMode{types.FULLREFRESH}
	if stream.SupportsIncremental() {
		modes = append(modes, types.INCREMENTAL)
	}

	cursor := stream.CursorField()
	return &types.Stream{
		Name:                    stream.Name(),
		JSONSchema:              stream.JSONSchema(),
		SupportedSyncModes:      modes,
		SourceDefinedCursor:     stream.SupportsIncremental() && !cursor.IsZero(),
		DefaultCursorField:      cursor,
		SourceDefinedPrimaryKey: stream.PrimaryKey(),
	}
}

// streamsByName resolves the streams of the source once and indexes them
func (a *AbstractSource) streamsByName(ctx context.Context, cfg Config) (map[string]Stream, error) {
	streams, err := a.source.Streams(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	byName := make(map[string]Stream, len(streams))
	for _, stream := range streams {
		byName[stream.Name()] = stream
	}
	return byName, nil
}

func availableStreams(byName map[string]Stream) string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func validateConfig(cfg Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config not provided", constants.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, constants.ErrInvalidConfig) {
			return err
		}
		return fmt.Errorf("%w: %w", constants.ErrInvalidConfig, err)
	}
	return nil
}
