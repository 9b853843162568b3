package field

import "strings"

// columnTypes maps normalized storage column types to core types.
// Types not listed fall back to StringType.
var columnTypes = map[string]Core{
	"date":                        DateType,
	"datetime":                    DateType,
	"timestamp":                   DateType,
	"timestamptz":                 DateType,
	"timestamp without time zone": DateType,
	"timestamp with time zone":    DateType,

	"boolean": BooleanType,
	"bool":    BooleanType,

	"numeric":          DoubleType,
	"decimal":          DoubleType,
	"real":             DoubleType,
	"float":            DoubleType,
	"float4":           DoubleType,
	"float8":           DoubleType,
	"double precision": DoubleType,
	"money":            DoubleType,

	"smallint":    ShortType,
	"int2":        ShortType,
	"smallserial": ShortType,

	"integer": IntegerType,
	"int":     IntegerType,
	"int4":    IntegerType,
	"serial":  IntegerType,

	"bigint":    LongType,
	"int8":      LongType,
	"bigserial": LongType,
}

// CoreForColumn returns the core type for a storage column type.
func CoreForColumn(storageType string) Core {
	if c, ok := columnTypes[normalize(storageType)]; ok {
		return c
	}
	return StringType
}

// ForColumn builds the default field for a storage column type.
func ForColumn(storageType string, attrs map[string]any, opts ...Option) (*Field, error) {
	return New(CoreForColumn(storageType), attrs, opts...)
}

// normalize lowercases and strips modifiers: "NUMERIC(10, 2)" -> "numeric",
// "timestamp(3) with time zone" -> "timestamp with time zone".
func normalize(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	for {
		open := strings.IndexByte(t, '(')
		if open < 0 {
			break
		}
		end := strings.IndexByte(t[open:], ')')
		if end < 0 {
			t = t[:open]
			break
		}
		t = t[:open] + t[open+end+1:]
	}
	return strings.Join(strings.Fields(t), " ")
}
