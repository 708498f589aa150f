package local

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/datazip-inc/airlake/destination"
	"github.com/datazip-inc/airlake/drivers/base"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/hashstructure"
)

//go:embed resources
var resources embed.FS

// Local writes every stream into its own directory on the local disk, one
// file per run
type Local struct {
	config  *Config
	streams map[string]*streamFile
}

// streamFile is the open output of one stream
type streamFile struct {
	stream  *types.ConfiguredStream
	path    string
	file    *os.File
	jsonl   *bufio.Writer
	parquet *parquetFile
	records int64
}

func (l *Local) GetConfigRef() destination.Config {
	l.config = &Config{}
	return l.config
}

func (l *Local) Spec() *types.ConnectorSpecification {
	spec, err := base.LoadSpec(resources, "resources/spec.json")
	if err != nil {
		logger.Fatalf("failed to load local destination spec: %s", err)
	}
	return spec
}

func (l *Local) Type() string {
	return "local"
}

// Check creates the destination directory and probes it with a temporary file
func (l *Local) Check(_ context.Context) error {
	if err := os.MkdirAll(l.config.Path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create destination path: %s", err)
	}

	tempFile, err := os.CreateTemp(l.config.Path, "check-*.tmp")
	if err != nil {
		return fmt.Errorf("destination path is not writable: %s", err)
	}
	_ = tempFile.Close()
	return os.Remove(tempFile.Name())
}

func (l *Local) Setup(_ context.Context, stream *types.ConfiguredStream) error {
	if l.streams == nil {
		l.streams = map[string]*streamFile{}
	}

	dir := filepath.Join(l.config.Path, stream.Namespace(), stream.Name())
	if stream.DestinationSyncMode == types.DestinationOverwrite {
		logger.Infof("Clearing %s before overwriting stream[%s]", dir, stream.Name())
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear %s: %s", dir, err)
		}
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directories[%s]: %s", dir, err)
	}

	l.streams[stream.Name()] = &streamFile{
		stream: stream,
		path:   filepath.Join(dir, fmt.Sprintf("%s.%s", utils.ULID(), l.config.Format)),
	}
	return nil
}

func (l *Local) Write(_ context.Context, record *types.Record) error {
	output, found := l.streams[record.Stream]
	if !found {
		return fmt.Errorf("stream[%s] was not set up", record.Stream)
	}

	row, err := rowOf(output.stream, record)
	if err != nil {
		return err
	}

	// files are created lazily so streams without records leave no empty file
	if output.file == nil {
		if err := l.open(output); err != nil {
			return err
		}
	}

	if output.parquet != nil {
		err = output.parquet.write(row)
	} else {
		err = json.NewEncoder(output.jsonl).Encode(row)
	}
	if err != nil {
		return fmt.Errorf("failed to write record: %s", err)
	}
	output.records++
	return nil
}

func (l *Local) open(output *streamFile) error {
	file, err := os.Create(output.path)
	if err != nil {
		return fmt.Errorf("failed to create file[%s]: %s", output.path, err)
	}
	output.file = file

	if l.config.Format == FormatParquet {
		output.parquet = newParquetFile(file, output.stream.Stream.JSONSchema, l.config.Compression)
		return nil
	}
	output.jsonl = bufio.NewWriter(file)
	return nil
}

func (l *Local) Flush(_ context.Context) error {
	for _, name := range l.sortedStreams() {
		output := l.streams[name]
		if output.file == nil {
			continue
		}

		var err error
		if output.parquet != nil {
			err = output.parquet.flush()
		} else {
			err = output.jsonl.Flush()
		}
		if err != nil {
			return fmt.Errorf("failed to flush stream[%s]: %s", name, err)
		}
		if err := output.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync file[%s]: %s", output.path, err)
		}
	}
	return nil
}

// Close flushes and closes every stream file, collecting all failures
func (l *Local) Close(_ context.Context) error {
	var result *multierror.Error
	for _, name := range l.sortedStreams() {
		output := l.streams[name]
		if output.file == nil {
			continue
		}

		if output.parquet != nil {
			if err := output.parquet.close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("stream[%s]: %s", name, err))
			}
		} else if err := output.jsonl.Flush(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stream[%s]: %s", name, err))
		}
		if err := output.file.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stream[%s]: %s", name, err))
		}
		logger.Infof("Wrote %d records of stream[%s] to %s", output.records, name, output.path)
		output.file = nil
	}
	return result.ErrorOrNil()
}

func (l *Local) sortedStreams() []string {
	names := make([]string, 0, len(l.streams))
	for name := range l.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// rowOf copies the record data and stamps the raw columns. The id hashes the
// primary key values, or the whole record when the stream has none.
func rowOf(stream *types.ConfiguredStream, record *types.Record) (map[string]any, error) {
	row := make(map[string]any, len(record.Data)+2)
	for key, value := range record.Data {
		row[key] = value
	}

	var identity any = record.Data
	if key := primaryKeyOf(stream); !key.IsZero() {
		values, err := key.Values(record.Data)
		if err != nil {
			return nil, fmt.Errorf("stream[%s]: %s", record.Stream, err)
		}
		identity = values
	}

	hash, err := hashstructure.Hash(identity, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to hash record of stream[%s]: %s", record.Stream, err)
	}
	row[types.RawIDColumn] = fmt.Sprintf("%016x", hash)
	row[types.RawEmittedAtColumn] = record.EmittedAt
	return row, nil
}

func primaryKeyOf(stream *types.ConfiguredStream) types.PrimaryKey {
	if !stream.PrimaryKey.IsZero() {
		return stream.PrimaryKey
	}
	return stream.Stream.SourceDefinedPrimaryKey
}

func init() {
	destination.RegisteredWriters["local"] = func() destination.Writer {
		return new(Local)
	}
}
