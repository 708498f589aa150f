package logger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datazip-inc/airlake/types"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

var levels = map[zerolog.Level]types.LogLevel{
	zerolog.TraceLevel: types.LogLevelTrace,
	zerolog.DebugLevel: types.LogLevelDebug,
	zerolog.InfoLevel:  types.LogLevelInfo,
	zerolog.WarnLevel:  types.LogLevelWarn,
	zerolog.ErrorLevel: types.LogLevelError,
	zerolog.FatalLevel: types.LogLevelFatal,
	zerolog.PanicLevel: types.LogLevelFatal,
}

// protocolWriter turns zerolog JSON events into LOG messages
type protocolWriter struct {
	out *syncWriter
}

func (p *protocolWriter) Write(event []byte) (int, error) {
	return p.WriteLevel(zerolog.NoLevel, event)
}

func (p *protocolWriter) WriteLevel(level zerolog.Level, event []byte) (int, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(event, &fields); err != nil {
		return 0, fmt.Errorf("failed to decode log event: %s", err)
	}

	message, _ := fields[zerolog.MessageFieldName].(string)
	delete(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.LevelFieldName)
	delete(fields, zerolog.TimestampFieldName)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := []string{message}
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", key, fields[key]))
		}
		message = strings.Join(parts, " ")
	}

	protocolLevel, found := levels[level]
	if !found {
		protocolLevel = types.LogLevelInfo
	}

	if err := LogMessage(types.NewLogMessage(protocolLevel, message)); err != nil {
		return 0, err
	}
	return len(event), nil
}

// LogMessage writes a protocol message as a single JSON line
func LogMessage(message any) error {
	raw, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %s", err)
	}

	_, err = out.Write(append(raw, '\n'))
	return err
}
