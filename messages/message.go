package messages

import (
	"fmt"
	"slices"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var messageJSON = []byte(`{"type":"message"}`)

// ToolCallData is one tool invocation as accumulated in a message snapshot.
// Arguments grows as argument fragments stream in.
type ToolCallData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is the assistant turn being built from the event stream. While the
// stream is live it is a partial view; once the stream is exhausted it holds
// the complete turn.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Sender    string          `json:"sender,omitempty"`
	Content   string          `json:"content"`
	Refusal   string          `json:"refusal,omitempty"`
	ToolCalls []ToolCallData  `json:"tool_calls,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

// Clone returns a copy that does not share the tool call slice with the
// receiver.
func (m Message) Clone() Message {
	m.ToolCalls = slices.Clone(m.ToolCalls)
	return m
}

// MarshalJSON implements custom JSON marshaling for Message
func (m Message) MarshalJSON() ([]byte, error) {
	result := messageJSON

	var err error
	result, err = sjson.SetBytes(result, "id", m.ID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "content", m.Content)
	if err != nil {
		return nil, err
	}

	if m.Sender != "" {
		result, err = sjson.SetBytes(result, "sender", m.Sender)
		if err != nil {
			return nil, err
		}
	}

	if m.Refusal != "" {
		result, err = sjson.SetBytes(result, "refusal", m.Refusal)
		if err != nil {
			return nil, err
		}
	}

	if len(m.ToolCalls) > 0 {
		callBytes, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		result, err = sjson.SetRawBytes(result, "tool_calls", callBytes)
		if err != nil {
			return nil, err
		}
	}

	if !m.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", m.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "message" {
		return fmt.Errorf("missing or invalid type, expected 'message'")
	}

	id := gjson.GetBytes(data, "id")
	if !id.Exists() {
		return fmt.Errorf("missing required field 'id'")
	}
	if err := m.ID.UnmarshalText([]byte(id.String())); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}

	m.Content = gjson.GetBytes(data, "content").String()
	m.Sender = gjson.GetBytes(data, "sender").String()
	m.Refusal = gjson.GetBytes(data, "refusal").String()

	if calls := gjson.GetBytes(data, "tool_calls"); calls.Exists() {
		if err := json.Unmarshal([]byte(calls.Raw), &m.ToolCalls); err != nil {
			return fmt.Errorf("invalid tool_calls: %w", err)
		}
	}

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := m.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}
