package abstract

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/datazip-inc/airlake/utils/safego"
)

const defaultCheckFailure = "connection check failed"

// Check runs the source's connection check and reports the outcome as a
// CONNECTION_STATUS message. Failures, including panics, are returned as data.
func (a *AbstractSource) Check(ctx context.Context, cfg Config) *types.Message {
	if err := validateConfig(cfg); err != nil {
		return failedStatus(err.Error())
	}

	succeeded := false
	err := safego.Call(func() error {
		var err error
		succeeded, err = a.source.CheckConnection(ctx, cfg)
		return err
	})
	if err != nil {
		return failedStatus(failureMessage(err))
	}
	if !succeeded {
		return failedStatus(defaultCheckFailure)
	}

	logger.Infof("Connection check succeeded for source[%s]", a.source.Type())
	return types.NewConnectionStatusMessage(types.ConnectionSucceed, "")
}

func failedStatus(message string) *types.Message {
	logger.Warnf("Connection check failed: %s", message)
	return types.NewConnectionStatusMessage(types.ConnectionFailed, message)
}

// failureMessage extracts a human readable message from a check failure. A
// recovered panic may carry any value, so well known shapes are tried first.
func failureMessage(err error) string {
	var panicErr *safego.PanicError
	if !errors.As(err, &panicErr) {
		return err.Error()
	}

	switch value := panicErr.Value.(type) {
	case error:
		return value.Error()
	case map[string]any:
		if message, found := value["message"]; found && message != nil {
			return fmt.Sprint(message)
		}
	case map[string]string:
		if message, found := value["message"]; found {
			return message
		}
	case fmt.Stringer:
		return value.String()
	case string:
		return value
	}

	if message, found := messageField(panicErr.Value); found {
		return message
	}
	return fmt.Sprint(panicErr.Value)
}

// messageField reads an exported string Message field of a struct or pointer
func messageField(value any) (string, bool) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", false
	}

	field := rv.FieldByName("Message")
	if !field.IsValid() || field.Kind() != reflect.String {
		return "", false
	}
	return field.String(), true
}
