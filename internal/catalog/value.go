package catalog

import (
	"encoding/json"
	"fmt"
)

// Value is a sealed interface over the answer/context value types.
// Only StringValue, IntValue, and BoolValue implement it.
// There is deliberately no float type: floats break deterministic
// serialization and have no place in legal answer values (amounts are
// modeled as integer minor units).
type Value interface {
	value() // sealed

	// Type returns the value's declared type.
	Type() ValueType
}

// ValueType names the type of an answer value.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "int"
	TypeBool   ValueType = "bool"
)

// ValidValueType reports whether t is a known value type.
func ValidValueType(t ValueType) bool {
	return t == TypeString || t == TypeInt || t == TypeBool
}

// StringValue is a string answer value.
type StringValue string

func (StringValue) value()          {}
func (StringValue) Type() ValueType { return TypeString }

// IntValue is an integer answer value. Always int64.
type IntValue int64

func (IntValue) value()          {}
func (IntValue) Type() ValueType { return TypeInt }

// BoolValue is a boolean answer value.
type BoolValue bool

func (BoolValue) value()          {}
func (BoolValue) Type() ValueType { return TypeBool }

// valueJSON is the wire form of a Value: a type tag plus raw payload.
type valueJSON struct {
	Type  ValueType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalValue encodes a Value in its tagged wire form.
func MarshalValue(v Value) ([]byte, error) {
	var raw []byte
	var err error
	switch val := v.(type) {
	case StringValue:
		raw, err = json.Marshal(string(val))
	case IntValue:
		raw, err = json.Marshal(int64(val))
	case BoolValue:
		raw, err = json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("marshal value: unsupported type %T", v)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return json.Marshal(valueJSON{Type: v.Type(), Value: raw})
}

// UnmarshalValue decodes a Value from its tagged wire form.
func UnmarshalValue(data []byte) (Value, error) {
	var wire valueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	switch wire.Type {
	case TypeString:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return nil, fmt.Errorf("unmarshal string value: %w", err)
		}
		return StringValue(s), nil
	case TypeInt:
		var n int64
		if err := json.Unmarshal(wire.Value, &n); err != nil {
			return nil, fmt.Errorf("unmarshal int value: %w", err)
		}
		return IntValue(n), nil
	case TypeBool:
		var b bool
		if err := json.Unmarshal(wire.Value, &b); err != nil {
			return nil, fmt.Errorf("unmarshal bool value: %w", err)
		}
		return BoolValue(b), nil
	default:
		return nil, fmt.Errorf("unmarshal value: unknown type %q", wire.Type)
	}
}

// AnswerMap maps interview questions to their typed answers.
// It round-trips through tagged JSON so stored answers keep their types.
type AnswerMap map[QuestionID]Value

// MarshalJSON implements json.Marshaler.
func (m AnswerMap) MarshalJSON() ([]byte, error) {
	wire := make(map[QuestionID]json.RawMessage, len(m))
	for q, v := range m {
		raw, err := MarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", q, err)
		}
		wire[q] = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *AnswerMap) UnmarshalJSON(data []byte) error {
	var wire map[QuestionID]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := make(AnswerMap, len(wire))
	for q, raw := range wire {
		v, err := UnmarshalValue(raw)
		if err != nil {
			return fmt.Errorf("answer %q: %w", q, err)
		}
		out[q] = v
	}
	*m = out
	return nil
}

// ContextMap maps evaluation-context keys (tenant, jurisdiction) to
// typed values, with the same tagged JSON encoding as answers.
type ContextMap map[string]Value

// MarshalJSON implements json.Marshaler.
func (m ContextMap) MarshalJSON() ([]byte, error) {
	wire := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		raw, err := MarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("context %q: %w", k, err)
		}
		wire[k] = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ContextMap) UnmarshalJSON(data []byte) error {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := make(ContextMap, len(wire))
	for k, raw := range wire {
		v, err := UnmarshalValue(raw)
		if err != nil {
			return fmt.Errorf("context %q: %w", k, err)
		}
		out[k] = v
	}
	*m = out
	return nil
}

// Clone returns an independent copy of the map. Values are immutable,
// so a shallow copy of the entries suffices.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for q, v := range m {
		out[q] = v
	}
	return out
}

// Equal reports whether two values have the same type and content.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b
}
