package field

import (
	"bytes"
	"fmt"
	"maps"
	"strconv"
	"text/template"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/domain/expr"
	"github.com/kailas-cloud/indexsync/internal/domain/model"
)

// Core is the index-side type of a field.
type Core string

// Core types.
const (
	StringType  Core = "string"
	LongType    Core = "long"
	IntegerType Core = "integer"
	ShortType   Core = "short"
	FloatType   Core = "float"
	DoubleType  Core = "double"
	BooleanType Core = "boolean"
	DateType    Core = "date"
)

// Class groups core types sharing an attribute set.
type Class string

// Field classes.
const (
	StringClass  Class = "string"
	NumberClass  Class = "number"
	DateClass    Class = "date"
	BooleanClass Class = "boolean"
)

// Value-source attribute keys. They select how a value is read and never
// reach the index schema.
const (
	AttrModelAttr = "model_attr"
	AttrEvalAs    = "eval_as"
	AttrTemplate  = "template"
)

var commonAttrs = set("index_name", "store", "index", "boost", "null_value", "copy_to")

var classAttrs = map[Class]map[string]bool{
	StringClass: set("doc_values", "term_vector", "norms", "index_options", "analyzer",
		"index_analyzer", "search_analyzer", "include_in_all", "ignore_above",
		"position_offset_gap", "fielddata", "similarity"),
	NumberClass:  set("doc_values", "precision_step", "include_in_all", "ignore_malformed", "coerce"),
	DateClass:    set("format", "doc_values", "precision_step", "include_in_all", "ignore_malformed"),
	BooleanClass: {},
}

var classDefaults = map[Class]map[string]any{
	StringClass: {"analyzer": "snowball"},
}

var coreClass = map[Core]Class{
	StringType:  StringClass,
	LongType:    NumberClass,
	IntegerType: NumberClass,
	ShortType:   NumberClass,
	FloatType:   NumberClass,
	DoubleType:  NumberClass,
	BooleanType: BooleanClass,
	DateType:    DateClass,
}

// Source is where a field's value comes from: NamedAttribute, Expression or Template.
type Source interface {
	// Text is the declared attribute name, expression or template body.
	Text() string
	source()
}

// NamedAttribute reads a record attribute through model.Attr.
type NamedAttribute string

// Text implements Source.
func (n NamedAttribute) Text() string { return string(n) }
func (NamedAttribute) source()        {}

// Expression evaluates a compiled formula with the record bound as obj.
type Expression struct{ program *expr.Program }

// Text implements Source.
func (e Expression) Text() string { return e.program.Source() }
func (Expression) source()        {}

// Template renders a text/template with the record as dot.
type Template struct {
	text string
	tmpl *template.Template
}

// Text implements Source.
func (t Template) Text() string { return t.text }
func (Template) source()        {}

// Field is an immutable index field: its core type, schema attributes and value source.
type Field struct {
	core   Core
	class  Class
	src    Source
	attrs  map[string]any
	loader TemplateLoader
}

// TemplateLoader resolves a template name to its body. When nil, the
// template attribute is the body itself.
type TemplateLoader func(name string) (string, error)

// Option customizes field construction.
type Option func(*Field)

// WithTemplateLoader resolves template names through load.
func WithTemplateLoader(load TemplateLoader) Option {
	return func(f *Field) { f.loader = load }
}

// New validates attrs for core and builds a Field.
// attrs must contain exactly one of model_attr, eval_as, template.
func New(core Core, attrs map[string]any, opts ...Option) (*Field, error) {
	class, ok := coreClass[core]
	if !ok {
		return nil, domain.Configf("unknown core type %q", core)
	}
	f := &Field{core: core, class: class, attrs: make(map[string]any, len(attrs)+1)}
	for _, o := range opts {
		o(f)
	}

	var sources []string
	for _, key := range []string{AttrModelAttr, AttrEvalAs, AttrTemplate} {
		if v, ok := attrs[key]; ok && v != nil && v != "" {
			sources = append(sources, key)
		}
	}
	if len(sources) != 1 {
		return nil, domain.Configf("%s field needs exactly one of model_attr, eval_as, template; got %v", core, sources)
	}
	if err := f.setSource(sources[0], attrs[sources[0]]); err != nil {
		return nil, err
	}

	allowed := classAttrs[class]
	for k, v := range attrs {
		switch k {
		case AttrModelAttr, AttrEvalAs, AttrTemplate:
			continue
		}
		if !allowed[k] && !commonAttrs[k] {
			return nil, domain.Configf("attribute %q is not allowed for core type %s", k, core)
		}
		f.attrs[k] = v
	}
	for k, v := range classDefaults[class] {
		if _, set := f.attrs[k]; !set {
			f.attrs[k] = v
		}
	}
	return f, nil
}

func (f *Field) setSource(key string, raw any) error {
	text, ok := raw.(string)
	if !ok {
		return domain.Configf("%s must be a string, got %T", key, raw)
	}
	switch key {
	case AttrModelAttr:
		f.src = NamedAttribute(text)
	case AttrEvalAs:
		p, err := expr.Compile(text)
		if err != nil {
			return domain.Configf("eval_as %q: %v", text, err)
		}
		f.src = Expression{program: p}
	case AttrTemplate:
		body := text
		if f.loader != nil {
			var err error
			if body, err = f.loader(text); err != nil {
				return domain.Configf("template %q: %v", text, err)
			}
		}
		t, err := template.New(text).Option("missingkey=zero").Parse(body)
		if err != nil {
			return domain.Configf("template %q: %v", text, err)
		}
		f.src = Template{text: text, tmpl: t}
	}
	return nil
}

// String builds a string field.
func String(attrs map[string]any, opts ...Option) (*Field, error) {
	return New(StringType, attrs, opts...)
}

// Number builds a numeric field of the given subtype.
func Number(subtype Core, attrs map[string]any, opts ...Option) (*Field, error) {
	if coreClass[subtype] != NumberClass {
		return nil, domain.Configf("numeric subtype %q is not one of integer, long, short, float, double", subtype)
	}
	return New(subtype, attrs, opts...)
}

// Date builds a date field.
func Date(attrs map[string]any, opts ...Option) (*Field, error) {
	return New(DateType, attrs, opts...)
}

// Boolean builds a boolean field.
func Boolean(attrs map[string]any, opts ...Option) (*Field, error) {
	return New(BooleanType, attrs, opts...)
}

// Core returns the field's core type.
func (f *Field) Core() Core { return f.core }

// Class returns the field's attribute class.
func (f *Field) Class() Class { return f.class }

// Source returns the value source.
func (f *Field) Source() Source { return f.src }

// Attr returns a schema attribute.
func (f *Field) Attr(name string) (any, bool) {
	v, ok := f.attrs[name]
	return v, ok
}

// Attrs returns a copy of the schema attributes.
func (f *Field) Attrs() map[string]any {
	return maps.Clone(f.attrs)
}

// Value computes the field's value from record.
func (f *Field) Value(record any) (any, error) {
	return f.NamedValue(string(f.core)+" field", record)
}

// NamedValue is Value with name reported as the field in evaluation errors.
func (f *Field) NamedValue(name string, record any) (any, error) {
	switch src := f.src.(type) {
	case Template:
		var buf bytes.Buffer
		if err := src.tmpl.Execute(&buf, record); err != nil {
			return nil, fmt.Errorf("render template %q: %w", src.text, err)
		}
		return buf.String(), nil
	case Expression:
		v, err := src.program.EvalRecord(record)
		if err != nil {
			return nil, &domain.EvalError{Field: name, Expr: src.Text(), Err: err}
		}
		return v, nil
	case NamedAttribute:
		v, err := model.Attr(record, string(src))
		if err != nil {
			return nil, err
		}
		switch {
		case v == nil:
		case f.class == StringClass:
			return StripTags(fmt.Sprint(v)), nil
		case f.class == NumberClass:
			// decimal columns arrive as text
			if s, ok := v.(string); ok {
				if n, err := strconv.ParseFloat(s, 64); err == nil {
					return n, nil
				}
			}
		}
		return v, nil
	}
	return nil, domain.Configf("field has no value source")
}

// JSON returns the schema representation {"type": core, attrs...}.
func (f *Field) JSON() map[string]any {
	out := make(map[string]any, len(f.attrs)+1)
	out["type"] = string(f.core)
	for k, v := range f.attrs {
		if j, ok := v.(interface{ JSON() any }); ok {
			out[k] = j.JSON()
			continue
		}
		out[k] = v
	}
	return out
}

// Analyzers returns the custom analyzers referenced by this field.
func (f *Field) Analyzers() []*Analyzer {
	var out []*Analyzer
	for _, key := range []string{"analyzer", "index_analyzer", "search_analyzer"} {
		if a, ok := f.attrs[key].(*Analyzer); ok {
			out = append(out, a)
		}
	}
	return out
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}
