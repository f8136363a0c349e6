// Package codec translates between JSON documents on the wire and the
// values the arena works with. It is built on the protobuf Struct/Value
// well-known types so that any JSON document has a typed representation.
package codec

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/golang/protobuf/jsonpb"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/arena.go/pkg/command"
)

var (
	// ErrNotCommand indicates the document is not a JSON array.
	ErrNotCommand = errors.New("expecting a JSON array")
	// ErrNotObject indicates the document is not a JSON object.
	ErrNotObject = errors.New("expecting a JSON object")
)

// Decode parses a JSON document.
func Decode(data []byte) (*structpb.Value, error) {
	val := &structpb.Value{}
	if err := jsonpb.UnmarshalString(string(data), val); err != nil {
		return nil, err
	}
	return val, nil
}

// IsCommand tells if the decoded document is a command array.
func IsCommand(val *structpb.Value) bool {
	_, ok := val.GetKind().(*structpb.Value_ListValue)
	return ok
}

// IsObject tells if the decoded document is an object.
func IsObject(val *structpb.Value) bool {
	_, ok := val.GetKind().(*structpb.Value_StructValue)
	return ok
}

// Tokens converts a list value into command tokens. Nested arrays and
// objects are not valid command arguments.
func Tokens(val *structpb.Value) (command.Tokens, error) {
	lst := val.GetListValue()
	if lst == nil {
		return nil, ErrNotCommand
	}
	tokens := make(command.Tokens, len(lst.Values))
	for n, v := range lst.Values {
		switch k := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			tokens[n] = command.StringToken(k.StringValue)
		case *structpb.Value_NumberValue:
			tokens[n] = command.NumberToken(k.NumberValue)
		case *structpb.Value_BoolValue:
			tokens[n] = command.BoolToken(k.BoolValue)
		case *structpb.Value_NullValue, nil:
			tokens[n] = command.NullToken()
		default:
			return nil, fmt.Errorf("element %d: unsupported argument type", n)
		}
	}
	return tokens, nil
}

// Object converts an object value into a plain map.
func Object(val *structpb.Value) (map[string]interface{}, error) {
	st := val.GetStructValue()
	if st == nil {
		return nil, ErrNotObject
	}
	return structToMap(st), nil
}

// Interface converts a value to plain Go values: nil, float64, string,
// bool, []interface{} and map[string]interface{}.
func Interface(val *structpb.Value) interface{} {
	switch k := val.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return k.NumberValue
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_BoolValue:
		return k.BoolValue
	case *structpb.Value_ListValue:
		items := make([]interface{}, len(k.ListValue.GetValues()))
		for n, v := range k.ListValue.GetValues() {
			items[n] = Interface(v)
		}
		return items
	case *structpb.Value_StructValue:
		return structToMap(k.StructValue)
	}
	return nil
}

func structToMap(st *structpb.Struct) map[string]interface{} {
	m := make(map[string]interface{}, len(st.GetFields()))
	for key, v := range st.GetFields() {
		m[key] = Interface(v)
	}
	return m
}

// ValueOf converts a plain Go value into a protobuf Value.
func ValueOf(v interface{}) (*structpb.Value, error) {
	switch x := v.(type) {
	case nil:
		return nullValue(), nil
	case *structpb.Value:
		return x, nil
	case bool:
		return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: x}}, nil
	case string:
		return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: x}}, nil
	case int:
		return numberValue(float64(x)), nil
	case int32:
		return numberValue(float64(x)), nil
	case int64:
		return numberValue(float64(x)), nil
	case uint32:
		return numberValue(float64(x)), nil
	case uint64:
		return numberValue(float64(x)), nil
	case float32:
		return numberValue(float64(x)), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nullValue(), nil
		}
		return numberValue(x), nil
	case *float64:
		if x == nil {
			return nullValue(), nil
		}
		return ValueOf(*x)
	case []*float64:
		lst := &structpb.ListValue{Values: make([]*structpb.Value, len(x))}
		for n, item := range x {
			lst.Values[n], _ = ValueOf(item)
		}
		return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: lst}}, nil
	case []float64:
		lst := &structpb.ListValue{Values: make([]*structpb.Value, len(x))}
		for n, item := range x {
			lst.Values[n], _ = ValueOf(item)
		}
		return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: lst}}, nil
	case []int:
		lst := &structpb.ListValue{Values: make([]*structpb.Value, len(x))}
		for n, item := range x {
			lst.Values[n] = numberValue(float64(item))
		}
		return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: lst}}, nil
	case []interface{}:
		lst := &structpb.ListValue{Values: make([]*structpb.Value, len(x))}
		for n, item := range x {
			val, err := ValueOf(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", n, err)
			}
			lst.Values[n] = val
		}
		return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: lst}}, nil
	case map[string]interface{}:
		st, err := StructOf(x)
		if err != nil {
			return nil, err
		}
		return &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: st}}, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

// StructOf converts a map into a protobuf Struct.
func StructOf(m map[string]interface{}) (*structpb.Struct, error) {
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(m))}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		val, err := ValueOf(m[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		st.Fields[key] = val
	}
	return st, nil
}

// Encode marshals a plain Go value to compact JSON.
func Encode(v interface{}) (string, error) {
	val, err := ValueOf(v)
	if err != nil {
		return "", err
	}
	var m jsonpb.Marshaler
	return m.MarshalToString(val)
}

// EncodeValueReport encodes the payload of a value report: {name: value}.
func EncodeValueReport(name string, v interface{}) (string, error) {
	val, err := ValueOf(v)
	if err != nil {
		return "", err
	}
	st := &structpb.Struct{Fields: map[string]*structpb.Value{name: val}}
	var m jsonpb.Marshaler
	return m.MarshalToString(st)
}

// EncodeTokens encodes command tokens as a JSON array.
func EncodeTokens(tokens command.Tokens) (string, error) {
	items := make([]interface{}, len(tokens))
	for n, tok := range tokens {
		items[n] = tok.Interface()
	}
	return Encode(items)
}

func numberValue(f float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: f}}
}

func nullValue() *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}}
}
