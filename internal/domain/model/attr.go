package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ErrNoAttribute is returned when a record has no attribute of the requested name.
var ErrNoAttribute = errors.New("no such attribute")

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// tagIndex caches db tag name -> field path per struct type.
var tagIndex sync.Map // map[reflect.Type]map[string][]int

// Attr reads attribute name from record.
//
// Lookup order: db-tagged struct field, Go field name, zero-argument method,
// map key. Func-valued fields and methods are invoked; a trailing error
// return is honored.
func Attr(record any, name string) (any, error) {
	if record == nil {
		return nil, fmt.Errorf("attribute %q of nil record: %w", name, ErrNoAttribute)
	}
	if row, ok := record.(map[string]any); ok {
		v, ok := row[name]
		if !ok {
			return nil, fmt.Errorf("attribute %q: %w", name, ErrNoAttribute)
		}
		return call(reflect.ValueOf(v), name)
	}

	rv := reflect.ValueOf(record)
	sv := rv
	for sv.Kind() == reflect.Pointer || sv.Kind() == reflect.Interface {
		if sv.IsNil() {
			return nil, fmt.Errorf("attribute %q of nil record: %w", name, ErrNoAttribute)
		}
		sv = sv.Elem()
	}

	switch sv.Kind() {
	case reflect.Struct:
		if idx, ok := tagFields(sv.Type())[name]; ok {
			return fieldValue(sv, idx, name)
		}
		if f, ok := sv.Type().FieldByName(name); ok && f.IsExported() {
			return fieldValue(sv, f.Index, name)
		}
	case reflect.Map:
		if sv.Type().Key().Kind() == reflect.String {
			v := sv.MapIndex(reflect.ValueOf(name).Convert(sv.Type().Key()))
			if v.IsValid() {
				return call(v, name)
			}
		}
	}

	if m := rv.MethodByName(methodName(name)); m.IsValid() {
		return call(m, name)
	}
	if m := rv.MethodByName(name); m.IsValid() {
		return call(m, name)
	}
	return nil, fmt.Errorf("attribute %q of %T: %w", name, record, ErrNoAttribute)
}

func fieldValue(sv reflect.Value, idx []int, name string) (any, error) {
	v, err := sv.FieldByIndexErr(idx)
	if err != nil {
		// nil embedded pointer on the path
		return nil, nil
	}
	return call(v, name)
}

// call unwraps v, invoking it when it is a zero-argument func. Results
// pass through Normalize.
func call(v reflect.Value, name string) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Func {
		return Normalize(v.Interface()), nil
	}
	if v.IsNil() {
		return nil, nil
	}
	t := v.Type()
	if t.NumIn() != 0 {
		return nil, fmt.Errorf("attribute %q: callable takes %d arguments", name, t.NumIn())
	}
	switch {
	case t.NumOut() == 1:
		return Normalize(v.Call(nil)[0].Interface()), nil
	case t.NumOut() == 2 && t.Out(1).Implements(errorType):
		out := v.Call(nil)
		if !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return Normalize(out[0].Interface()), nil
	default:
		return nil, fmt.Errorf("attribute %q: callable must return one value", name)
	}
}

func tagFields(t reflect.Type) map[string][]int {
	if cached, ok := tagIndex.Load(t); ok {
		return cached.(map[string][]int)
	}
	out := make(map[string][]int)
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		col, _, _ := strings.Cut(tag, ",")
		out[col] = f.Index
	}
	tagIndex.Store(t, out)
	return out
}

// methodName maps snake_case attribute names to exported Go method names:
// "full_name" -> "FullName".
func methodName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}
