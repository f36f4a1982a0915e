package capture

import (
	"fmt"
	"reflect"
	"time"
)

// Canonical is implemented by values that know how to render themselves in
// JSON-safe form, mirroring the original encoder's `__json__` duck-typed
// hook and envelope.Canonicalizer.
type Canonical interface {
	Canonical() interface{}
}

const (
	maxStringLen = 255
	maxElements  = 20
)

// Transform turns an arbitrary runtime value graph into a JSON-safe tree:
// maps, slices, strings, integers, float64, bool, and nil. It never panics; an
// unencodable scalar becomes "(Error decoding value)", and a revisited
// object identity becomes the literal string "<...>" so the function stays
// total even over cyclic graphs.
func Transform(value interface{}) (result interface{}) {
	return transform(value, map[uintptr]bool{})
}

func transform(value interface{}, seen map[uintptr]bool) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			result = "(Error decoding value)"
		}
	}()

	if value == nil {
		return nil
	}

	if ptr, ok := identity(value); ok {
		if seen[ptr] {
			return "<...>"
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	switch v := value.(type) {
	case Canonical:
		return transform(v.Canonical(), seen)
	case bool:
		return v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v
	case float32:
		return float64(v)
	case float64:
		return v
	case string:
		return v
	case time.Time:
		return v.UTC().Format("2006-01-02T15:04:05.000000")
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = transform(rv.Index(i).Interface(), seen)
		}
		return out
	case reflect.Map:
		out := make(map[string]interface{}, rv.Len())
		for _, key := range rv.MapKeys() {
			out[stringifyKey(key.Interface())] = transform(rv.MapIndex(key).Interface(), seen)
		}
		return out
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return transform(rv.Elem().Interface(), seen)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// stringifyKey coerces a non-string map key to its printable representation,
// matching the original's "key if str else repr(key)" rule.
func stringifyKey(key interface{}) string {
	if s, ok := key.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", key)
}

// identity returns a stable pointer-sized identity for reference-like
// values (maps, slices, pointers), the Go analogue of Python's id(). Value
// types (strings, ints, structs passed by value) have no stable identity
// and are exempt from cycle tracking, which is safe because cycles can only
// be formed through reference types.
func identity(value interface{}) (uintptr, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Ptr:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	default:
		return 0, false
	}
}

// Shorten truncates a canonicalized value: strings beyond 255 characters are
// cut with a trailing "...", and sequences beyond 20 elements are cut to
// their first 20 plus a two-element summary tail. Maps are left untouched.
func Shorten(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if r := []rune(v); len(r) > maxStringLen {
			return string(r[:maxStringLen]) + "..."
		}
		return v
	case []interface{}:
		if len(v) > maxElements {
			more := len(v) - maxElements
			out := make([]interface{}, 0, maxElements+2)
			out = append(out, v[:maxElements]...)
			out = append(out, "...", fmt.Sprintf("(%d more elements)", more))
			return out
		}
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = Shorten(elem)
		}
		return out
	default:
		return value
	}
}

// ShortenMap applies Shorten to every value in m, leaving keys untouched and
// copying the values of the keys listed in exempt whole. Capture passes
// traceback, frames and versions as exempt for event data.
func ShortenMap(m map[string]interface{}, exempt ...string) map[string]interface{} {
	isExempt := make(map[string]bool, len(exempt))
	for _, k := range exempt {
		isExempt[k] = true
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if isExempt[k] {
			out[k] = v
			continue
		}
		out[k] = Shorten(v)
	}
	return out
}
