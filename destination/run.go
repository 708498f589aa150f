package destination

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
)

// MessageWriter emits a protocol message to the platform, logger.LogMessage
// in production
type MessageWriter func(message any) error

// Summary counts what a write run consumed
type Summary struct {
	Records map[string]int64
	States  int
	Logs    int
	Ignored int
}

// Run consumes newline delimited protocol messages from in. Records are
// routed to the writer, every STATE message is echoed through out once the
// records before it are flushed. With dryRun the writer is never touched.
func Run(ctx context.Context, writer Writer, catalog *types.ConfiguredCatalog, in io.Reader, out MessageWriter, dryRun bool) (summary *Summary, err error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: configured catalog is required", constants.ErrInvalidConfig)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidConfig, err)
	}
	if !dryRun && writer == nil {
		return nil, fmt.Errorf("%w: no destination writer", constants.ErrInvalidConfig)
	}

	summary = &Summary{Records: map[string]int64{}}
	if !dryRun {
		for _, stream := range catalog.Streams {
			if err := writer.Setup(ctx, stream); err != nil {
				return nil, fmt.Errorf("failed to setup stream[%s]: %s", stream.Name(), err)
			}
		}
		defer func() {
			if closeErr := writer.Close(ctx); closeErr != nil {
				err = multierror.Append(err, fmt.Errorf("failed to close destination: %s", closeErr)).ErrorOrNil()
			}
		}()
	}

	reader := bufio.NewReader(in)
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		raw, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return summary, fmt.Errorf("failed to read input: %s", readErr)
		}

		if raw = bytes.TrimSpace(raw); len(raw) > 0 {
			if err := consume(ctx, writer, catalog, raw, out, dryRun, summary); err != nil {
				return summary, fmt.Errorf("line %d: %w", line, err)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	if !dryRun {
		if err := writer.Flush(ctx); err != nil {
			return summary, fmt.Errorf("failed to flush destination: %s", err)
		}
	}

	logSummary(summary, dryRun)
	return summary, nil
}

func consume(ctx context.Context, writer Writer, catalog *types.ConfiguredCatalog, raw []byte, out MessageWriter, dryRun bool, summary *Summary) error {
	message := &types.Message{}
	if err := json.Unmarshal(raw, message); err != nil {
		return fmt.Errorf("failed to parse message: %s", err)
	}
	if err := message.Validate(); err != nil {
		return err
	}

	switch message.Type {
	case types.RecordMessage:
		record, err := message.Record.UnpackRaw()
		if err != nil {
			return err
		}
		if _, found := catalog.Lookup(record.Stream); !found {
			return fmt.Errorf("%w: record of stream[%s] is not in the configured catalog (%s)", constants.ErrUnknownStream, record.Stream, catalog.StreamNames())
		}

		if !dryRun {
			if err := writer.Write(ctx, record); err != nil {
				return fmt.Errorf("failed to write record of stream[%s]: %s", record.Stream, err)
			}
		}
		summary.Records[record.Stream]++
	case types.StateMessage:
		if !dryRun {
			if err := writer.Flush(ctx); err != nil {
				return fmt.Errorf("failed to flush before state: %s", err)
			}
		}
		if err := out(message); err != nil {
			return fmt.Errorf("failed to emit state: %s", err)
		}
		summary.States++
	case types.LogMessage:
		forwardLog(message.Log)
		summary.Logs++
	default:
		logger.Debugf("Ignoring %s message", message.Type)
		summary.Ignored++
	}
	return nil
}

func forwardLog(log *types.Log) {
	switch log.Level {
	case types.LogLevelFatal, types.LogLevelError:
		logger.Errorf("source: %s", log.Message)
	case types.LogLevelWarn:
		logger.Warnf("source: %s", log.Message)
	case types.LogLevelDebug, types.LogLevelTrace:
		logger.Debugf("source: %s", log.Message)
	default:
		logger.Infof("source: %s", log.Message)
	}
}

func logSummary(summary *Summary, dryRun bool) {
	streams := make([]string, 0, len(summary.Records))
	for stream := range summary.Records {
		streams = append(streams, stream)
	}
	sort.Strings(streams)

	for _, stream := range streams {
		logger.Infof("Stream[%s]: %d records", stream, summary.Records[stream])
	}
	logger.Infof("Write finished (dry run: %t): %d states, %d logs, %d ignored messages", dryRun, summary.States, summary.Logs, summary.Ignored)
}
