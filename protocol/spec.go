package protocol

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/datazip-inc/airlake/destination"
	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// OrderedProperties marshals schema properties in the order of their "order"
// attribute
type OrderedProperties struct {
	Properties map[string]any
	Order      []string
}

func (op OrderedProperties) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("{")
	for idx, key := range op.Order {
		if idx > 0 {
			b.WriteString(",")
		}

		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal property key %s: %w", key, err)
		}
		b.Write(keyBytes)
		b.WriteString(":")

		valBytes, err := json.Marshal(op.Properties[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal property value for key %s: %w", key, err)
		}
		b.Write(valBytes)
	}
	b.WriteString("}")
	return b.Bytes(), nil
}

type propertyEntry struct {
	Key   string
	Value any
	Order int
}

// sortSchemaProperties recursively orders the properties of a JSON schema:
// explicit "order" first (ascending), then the rest alphabetically. Nested
// objects, oneOf/anyOf/allOf alternatives and array items are sorted too.
func sortSchemaProperties(schemaMap map[string]any) {
	if propertiesMap, ok := schemaMap["properties"].(map[string]any); ok {
		entries := make([]propertyEntry, 0, len(propertiesMap))
		for key, val := range propertiesMap {
			order := -1
			if propVal, isMap := val.(map[string]any); isMap {
				if floatOrder, ok := propVal["order"].(float64); ok {
					order = int(floatOrder)
				}
			}
			entries = append(entries, propertyEntry{Key: key, Value: val, Order: order})
		}

		sort.Slice(entries, func(i, j int) bool {
			if (entries[i].Order == -1) != (entries[j].Order == -1) {
				return entries[i].Order != -1
			}
			if entries[i].Order != entries[j].Order {
				return entries[i].Order < entries[j].Order
			}
			return entries[i].Key < entries[j].Key
		})

		sorted := OrderedProperties{Properties: make(map[string]any, len(entries)), Order: make([]string, 0, len(entries))}
		for _, entry := range entries {
			if nested, isMap := entry.Value.(map[string]any); isMap {
				sortSchemaProperties(nested)
			}
			sorted.Properties[entry.Key] = entry.Value
			sorted.Order = append(sorted.Order, entry.Key)
		}
		schemaMap["properties"] = sorted
	}

	for _, keyword := range []string{"oneOf", "anyOf", "allOf", "items"} {
		switch value := schemaMap[keyword].(type) {
		case map[string]any:
			sortSchemaProperties(value)
		case []any:
			for _, item := range value {
				if subSchema, isMap := item.(map[string]any); isMap {
					sortSchemaProperties(subSchema)
				}
			}
		}
	}
}

func specCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spec",
		Short: "spec command",
		RunE: func(_ *cobra.Command, _ []string) error {
			var spec *types.ConnectorSpecification
			if connector != nil {
				spec = connector.Spec().Spec
			} else {
				writer, err := destination.LookupWriter(destinationType)
				if err != nil {
					return err
				}
				spec = writer.Spec()
			}

			// sort a copy, the spec may be shared with the connector
			ordered := *spec
			ordered.ConnectionSpecification = types.DeepClone(spec.ConnectionSpecification).(map[string]any)
			sortSchemaProperties(ordered.ConnectionSpecification)
			return logger.LogMessage(types.NewSpecMessage(&ordered))
		},
	}
}
