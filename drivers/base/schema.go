package base

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/datazip-inc/airlake/types"
	"github.com/goccy/go-json"
)

// LoadSchemas reads every <stream>.json file of dir into a map keyed by the
// file name without extension
func LoadSchemas(fsys fs.FS, dir string) (map[string]map[string]any, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory[%s]: %s", dir, err)
	}

	schemas := make(map[string]map[string]any, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}

		schema, err := LoadJSON(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		schemas[strings.TrimSuffix(entry.Name(), ".json")] = schema
	}

	return schemas, nil
}

// LoadJSON decodes a single JSON object file, e.g. an embedded spec.json
func LoadJSON(fsys fs.FS, file string) (map[string]any, error) {
	raw, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file[%s]: %s", file, err)
	}

	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse file[%s]: %s", file, err)
	}
	return out, nil
}

// LoadSpec decodes an embedded connector specification
func LoadSpec(fsys fs.FS, file string) (*types.ConnectorSpecification, error) {
	raw, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec[%s]: %s", file, err)
	}

	spec := &types.ConnectorSpecification{}
	if err := json.Unmarshal(raw, spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec[%s]: %s", file, err)
	}
	return spec, nil
}
