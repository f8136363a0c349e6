package device

import (
	"fmt"
	"math"

	fx "github.com/robotalks/arena.go/pkg/framework"
)

// Record is the configuration record of one device as decoded from JSON or
// YAML. Numbers may be float64 (JSON) or int (YAML).
type Record map[string]interface{}

// Well-known record keys.
const (
	KeyName = "name"
	KeyType = "type"
)

// Name returns the device name.
func (r Record) Name() (string, bool) {
	return r.String(KeyName)
}

// Type returns the device kind.
func (r Record) Type() (string, bool) {
	return r.String(KeyType)
}

// Has tells if key is present.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns a string value.
func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// Bool returns a boolean value.
func (r Record) Bool(key string) (bool, bool) {
	b, ok := r[key].(bool)
	return b, ok
}

// Int returns an integral number.
func (r Record) Int(key string) (int, bool) {
	return asInt(r[key])
}

// Float returns any number.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// Ints returns an array of integers.
func (r Record) Ints(key string) ([]int, bool) {
	switch v := r[key].(type) {
	case []int:
		return v, true
	case []interface{}:
		ints := make([]int, len(v))
		for n, item := range v {
			i, ok := asInt(item)
			if !ok {
				return nil, false
			}
			ints[n] = i
		}
		return ints, true
	}
	return nil, false
}

// IntOr returns an integer or the default when the key is absent.
func (r Record) IntOr(key string, def int) int {
	if v, ok := r.Int(key); ok {
		return v
	}
	return def
}

// BoolOr returns a boolean or the default when the key is absent.
func (r Record) BoolOr(key string, def bool) bool {
	if v, ok := r.Bool(key); ok {
		return v
	}
	return def
}

func asInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	}
	return 0, false
}

// FieldType is the expected type of a record value.
type FieldType int

// Field types.
const (
	IntField FieldType = iota
	FloatField
	BoolField
	StringField
	IntArrayField
)

// Field constrains one record key.
type Field struct {
	Key      string
	Type     FieldType
	Required bool
	// Len is the exact length of an IntArrayField, 0 for any non-empty.
	Len int
	// Check validates the value once the type is correct.
	Check func(Record) error
}

// Schema is the set of constraints of a device kind.
type Schema []Field

// Validate checks the record and returns one error per violated constraint.
func (s Schema) Validate(r Record) error {
	var errs fx.AggregatedError
	for _, f := range s {
		if !r.Has(f.Key) {
			if f.Required {
				errs.Add(fmt.Errorf("Missing '%s' key in config", f.Key))
			}
			continue
		}
		if err := f.validateType(r); err != nil {
			errs.Add(err)
			continue
		}
		if f.Check != nil {
			errs.Add(f.Check(r))
		}
	}
	return errs.Aggregate()
}

func (f *Field) validateType(r Record) error {
	switch f.Type {
	case IntField:
		if _, ok := r.Int(f.Key); !ok {
			return fmt.Errorf("%s: Expecting an integer", f.Key)
		}
	case FloatField:
		if _, ok := r.Float(f.Key); !ok {
			return fmt.Errorf("%s: Expecting a float value", f.Key)
		}
	case BoolField:
		if _, ok := r.Bool(f.Key); !ok {
			return fmt.Errorf("%s: Expecting a boolean value", f.Key)
		}
	case StringField:
		if _, ok := r.String(f.Key); !ok {
			return fmt.Errorf("%s: Expecting a string", f.Key)
		}
	case IntArrayField:
		switch r[f.Key].(type) {
		case []interface{}, []int:
		default:
			return fmt.Errorf("%s: Expecting an array", f.Key)
		}
		ints, ok := r.Ints(f.Key)
		if !ok {
			return fmt.Errorf("%s: Each element should be an integer", f.Key)
		}
		if f.Len > 0 && len(ints) != f.Len {
			return fmt.Errorf("%s: Expecting exactly %d pin indices", f.Key, f.Len)
		}
		if len(ints) == 0 {
			return fmt.Errorf("%s: Expecting at least one element", f.Key)
		}
	}
	return nil
}

// Violations splits an error returned by Validate or a builder into
// individual errors.
func Violations(err error) []error {
	if err == nil {
		return nil
	}
	if agg, ok := err.(*fx.AggregatedError); ok {
		return agg.Errors
	}
	return []error{err}
}
