package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

var ErrInvalidMessage = errors.New("message type and payload are invalid")

// Message is a dto for a single line of the connector protocol
type Message struct {
	Type             MessageType             `json:"type"`
	Log              *Log                    `json:"log,omitempty"`
	ConnectionStatus *StatusRow              `json:"connectionStatus,omitempty"`
	State            *StateRow               `json:"state,omitempty"`
	Catalog          *Catalog                `json:"catalog,omitempty"`
	Record           *Record                 `json:"record,omitempty"`
	Spec             *ConnectorSpecification `json:"spec,omitempty"`
}

// Log is a dto for protocol logs serialization
type Log struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// StatusRow is a dto for connection check result serialization
type StatusRow struct {
	Status  ConnectionStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// StateRow wraps the complete connector state
type StateRow struct {
	Data State `json:"data"`
}

// Record is a single data point emitted for a stream
type Record struct {
	Stream    string         `json:"stream"`
	Namespace string         `json:"namespace,omitempty"`
	EmittedAt int64          `json:"emitted_at"`
	Data      map[string]any `json:"data"`
}

func NewRecordMessage(stream, namespace string, data map[string]any) *Message {
	return &Message{
		Type: RecordMessage,
		Record: &Record{
			Stream:    stream,
			Namespace: namespace,
			EmittedAt: time.Now().UnixMilli(),
			Data:      data,
		},
	}
}

// NewStateMessage snapshots the given state; later mutations of state are
// not visible through the returned message.
func NewStateMessage(state State) *Message {
	return &Message{
		Type:  StateMessage,
		State: &StateRow{Data: state.Clone()},
	}
}

func NewLogMessage(level LogLevel, message string) *Message {
	return &Message{
		Type: LogMessage,
		Log:  &Log{Level: level, Message: message},
	}
}

func NewCatalogMessage(catalog *Catalog) *Message {
	return &Message{Type: CatalogMessage, Catalog: catalog}
}

func NewConnectionStatusMessage(status ConnectionStatus, message string) *Message {
	return &Message{
		Type:             ConnectionStatusMessage,
		ConnectionStatus: &StatusRow{Status: status, Message: message},
	}
}

func NewSpecMessage(spec *ConnectorSpecification) *Message {
	return &Message{Type: SpecMessage, Spec: spec}
}

// Validate checks that exactly one payload is set and that it matches Type
func (m *Message) Validate() error {
	payloads := map[MessageType]bool{
		LogMessage:              m.Log != nil,
		ConnectionStatusMessage: m.ConnectionStatus != nil,
		StateMessage:            m.State != nil,
		CatalogMessage:          m.Catalog != nil,
		RecordMessage:           m.Record != nil,
		SpecMessage:             m.Spec != nil,
	}

	present, known := payloads[m.Type]
	if !known {
		return fmt.Errorf("%w: unknown type [%s]", ErrInvalidMessage, m.Type)
	}
	if !present {
		return fmt.Errorf("%w: %s message without payload", ErrInvalidMessage, m.Type)
	}
	for typ, set := range payloads {
		if set && typ != m.Type {
			return fmt.Errorf("%w: %s message carries a %s payload", ErrInvalidMessage, m.Type, typ)
		}
	}

	return nil
}

// MarshalJSON refuses to serialize envelopes whose payload does not match the type
func (m *Message) MarshalJSON() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	type alias Message
	return json.Marshal((*alias)(m))
}
