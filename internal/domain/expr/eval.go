package expr

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

// RecordVar is the variable a record is bound to.
const RecordVar = "obj"

// Env holds the variables visible to an expression.
// Bare identifiers not found in Env resolve as attributes of RecordVar.
type Env map[string]any

// Eval evaluates the program against env.
func (p *Program) Eval(env Env) (any, error) {
	return p.root.eval(env)
}

// EvalRecord evaluates with rec bound as obj.
func (p *Program) EvalRecord(rec any) (any, error) {
	return p.root.eval(Env{RecordVar: rec})
}

type node interface {
	eval(env Env) (any, error)
}

type litNode struct{ v any }

func (n *litNode) eval(Env) (any, error) { return n.v, nil }

type identNode struct{ name string }

func (n *identNode) eval(env Env) (any, error) {
	if v, ok := env[n.name]; ok {
		return v, nil
	}
	rec, ok := env[RecordVar]
	if !ok {
		return nil, fmt.Errorf("undefined name %q", n.name)
	}
	return model.Attr(rec, n.name)
}

type attrNode struct {
	x    node
	name string
}

func (n *attrNode) eval(env Env) (any, error) {
	v, err := n.x.eval(env)
	if err != nil {
		return nil, err
	}
	return model.Attr(v, n.name)
}

type callNode struct {
	name string
	fn   builtin
	args []node
}

func (n *callNode) eval(env Env) (any, error) {
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := n.fn.call(args)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", n.name, err)
	}
	return v, nil
}

type condNode struct{ cond, then, els node }

func (n *condNode) eval(env Env) (any, error) {
	c, err := n.cond.eval(env)
	if err != nil {
		return nil, err
	}
	if truthy(c) {
		return n.then.eval(env)
	}
	return n.els.eval(env)
}

type logicNode struct {
	and         bool
	left, right node
}

// eval short-circuits and yields the deciding operand.
func (n *logicNode) eval(env Env) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	if truthy(l) != n.and {
		return l, nil
	}
	return n.right.eval(env)
}

type notNode struct{ x node }

func (n *notNode) eval(env Env) (any, error) {
	v, err := n.x.eval(env)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type negNode struct{ x node }

func (n *negNode) eval(env Env) (any, error) {
	v, err := n.x.eval(env)
	if err != nil {
		return nil, err
	}
	if i, ok := toInt(v); ok {
		return -i, nil
	}
	if f, ok := toFloat(v); ok {
		return -f, nil
	}
	return nil, fmt.Errorf("cannot negate %T", v)
}

type arithNode struct {
	op          string
	left, right node
}

func (n *arithNode) eval(env Env) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	if li, ok := toInt(l); ok {
		if ri, ok := toInt(r); ok {
			if n.op == "-" {
				return li - ri, nil
			}
			return li + ri, nil
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok {
		if n.op == "-" {
			return lf - rf, nil
		}
		return lf + rf, nil
	}
	if n.op == "+" && (isString(l) || isString(r)) {
		return str(l) + str(r), nil
	}
	return nil, fmt.Errorf("unsupported operands for %s: %T and %T", n.op, l, r)
}

type cmpNode struct {
	op          string
	left, right node
}

func (n *cmpNode) eval(env Env) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	if n.op == "==" || n.op == "!=" {
		eq := equal(l, r)
		return eq == (n.op == "=="), nil
	}
	c, err := compare(l, r)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func toInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func equal(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if lf, ok := toFloat(l); ok {
		rf, ok := toFloat(r)
		return ok && lf == rf
	}
	if lt, ok := l.(time.Time); ok {
		rt, ok := r.(time.Time)
		return ok && lt.Equal(rt)
	}
	return reflect.DeepEqual(l, r)
}

func compare(l, r any) (int, error) {
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			switch {
			case lf < rf:
				return -1, nil
			case lf > rf:
				return 1, nil
			}
			return 0, nil
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return strings.Compare(ls, rs), nil
		}
	}
	if lt, ok := l.(time.Time); ok {
		if rt, ok := r.(time.Time); ok {
			return lt.Compare(rt), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T and %T", l, r)
}
