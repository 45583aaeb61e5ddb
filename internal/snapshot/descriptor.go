package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Kind is the value type a descriptor round-trips.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindJSON:
		return "json"
	}
	return "unknown"
}

var errNilValue = errors.New("nil value")

// Descriptor maps one configuration field to a storage key. Values are kept
// as decimal strings (numbers), plain strings, or serialized JSON.
type Descriptor struct {
	Key        string
	Section    Section
	StorageKey string
	Kind       Kind

	def   string // serialized default, parsed fresh on each use
	check func(v any) error
}

// Int describes an integer setting.
func Int(key string, sec Section, storageKey string, def int) Descriptor {
	return Descriptor{Key: key, Section: sec, StorageKey: storageKey, Kind: KindInt, def: strconv.Itoa(def)}
}

// Float describes a floating point setting.
func Float(key string, sec Section, storageKey string, def float64) Descriptor {
	return Descriptor{Key: key, Section: sec, StorageKey: storageKey, Kind: KindFloat, def: formatFloat(def)}
}

// String describes a plain string setting.
func String(key string, sec Section, storageKey string, def string) Descriptor {
	return Descriptor{Key: key, Section: sec, StorageKey: storageKey, Kind: KindString, def: def}
}

// JSON describes a structured setting stored as serialized JSON. def must be
// valid JSON text.
func JSON(key string, sec Section, storageKey string, def string) Descriptor {
	return Descriptor{Key: key, Section: sec, StorageKey: storageKey, Kind: KindJSON, def: def}
}

// Range restricts a numeric setting to [lo, hi].
func (d Descriptor) Range(lo, hi float64) Descriptor {
	d.check = func(v any) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		if f < lo || f > hi {
			return fmt.Errorf("%v out of range [%v, %v]", v, lo, hi)
		}
		return nil
	}
	return d
}

// OneOf restricts a string setting to the given values.
func (d Descriptor) OneOf(values ...string) Descriptor {
	d.check = func(v any) error {
		s, _ := v.(string)
		for _, allowed := range values {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %s", s, strings.Join(values, ", "))
	}
	return d
}

// Default returns a fresh copy of the descriptor's default value.
func (d Descriptor) Default() any {
	v, err := d.decode(d.def)
	if err != nil {
		// Defaults are compile-time constants; a bad one is a programming error.
		panic(fmt.Sprintf("snapshot: bad default for %s: %v", d.Key, err))
	}
	return v
}

// Parse converts a raw stored value to its typed form.
func (d Descriptor) Parse(raw string) (any, error) {
	v, err := d.decode(raw)
	if err != nil {
		return nil, err
	}
	if d.check != nil {
		if err := d.check(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Serialize converts a value to its stored form. Loosely typed input is
// coerced: JSON numbers, numeric strings and ints are all accepted for
// numeric settings. Int settings reject fractions, booleans and strings that
// are not plain decimal integers.
func (d Descriptor) Serialize(v any) (string, error) {
	if v == nil {
		return "", errNilValue
	}
	var raw string
	switch d.Kind {
	case KindInt:
		n, err := toInt(v)
		if err != nil {
			return "", err
		}
		raw = strconv.Itoa(n)
	case KindFloat:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return "", err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("non-finite value %v", f)
		}
		raw = formatFloat(f)
	case KindString:
		s, err := cast.ToStringE(v)
		if err != nil {
			return "", err
		}
		raw = s
	case KindJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		raw = string(data)
	default:
		return "", fmt.Errorf("unsupported kind %v", d.Kind)
	}
	// Validate the normalized form, the one that will be read back.
	if _, err := d.Parse(raw); err != nil {
		return "", err
	}
	return raw, nil
}

func (d Descriptor) decode(raw string) (any, error) {
	switch d.Kind {
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return n, nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite value %q", raw)
		}
		return f, nil
	case KindString:
		return raw, nil
	case KindJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		if v == nil {
			return nil, errNilValue
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported kind %v", d.Kind)
}

// toInt converts v without truncating or reinterpreting it.
func toInt(v any) (int, error) {
	switch x := v.(type) {
	case bool:
		return 0, fmt.Errorf("boolean %v is not an integer", x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("%q is not a decimal integer", x)
		}
		return n, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return cast.ToIntE(n)
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x.String())
		}
		return integral(f)
	case float32:
		return integral(float64(x))
	case float64:
		return integral(x)
	}
	return cast.ToIntE(v)
}

func integral(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%v is out of range", f)
	}
	return int(f), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
