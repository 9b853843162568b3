package expr

import (
	"fmt"
	"reflect"
	"strings"
)

type builtin struct {
	arity int // -1 = variadic
	call  func(args []any) (any, error)
}

// funcs is the complete set of callable names; nothing else is reachable.
var funcs = map[string]builtin{
	"len": {arity: 1, call: func(a []any) (any, error) {
		if s, ok := a[0].(string); ok {
			return int64(len([]rune(s))), nil
		}
		rv := reflect.ValueOf(a[0])
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return int64(rv.Len()), nil
		}
		return nil, fmt.Errorf("len of %T", a[0])
	}},
	"lower": {arity: 1, call: stringFunc(strings.ToLower)},
	"upper": {arity: 1, call: stringFunc(strings.ToUpper)},
	"trim":  {arity: 1, call: stringFunc(strings.TrimSpace)},
	"str": {arity: 1, call: func(a []any) (any, error) {
		return str(a[0]), nil
	}},
	"coalesce": {arity: -1, call: func(a []any) (any, error) {
		for _, v := range a {
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	}},
}

func stringFunc(f func(string) string) func([]any) (any, error) {
	return func(a []any) (any, error) {
		if a[0] == nil {
			return nil, nil
		}
		return f(str(a[0])), nil
	}
}
