package model

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Normalize turns storage-level values into plain Go values. Non-nil pointers
// to scalars are dereferenced, 16-byte uuids become canonical text and
// driver.Valuer types (pgtype.Numeric, sql.NullString, ...) yield their
// driver value. Pointers to other structs are records and stay as they are.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		if e := rv.Elem(); e.Kind() != reflect.Struct || e.Type() == timeType {
			return Normalize(e.Interface())
		}
	}

	switch x := v.(type) {
	case string, bool, int64, float64, time.Time:
		return v
	case [16]byte:
		return FormatUUID(x)
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return v
		}
		return Normalize(dv)
	}
	return v
}

// FormatID renders an id value the way engine document ids carry it.
func FormatID(v any) string {
	return fmt.Sprint(Normalize(v))
}

// FormatUUID renders b as 8-4-4-4-12 lowercase hex.
func FormatUUID(b [16]byte) string {
	var buf [36]byte
	hex.Encode(buf[0:8], b[0:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], b[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], b[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], b[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:], b[10:])
	return string(buf[:])
}

// ParseUUID parses canonical (hyphenated) or bare hex uuid text.
func ParseUUID(s string) ([16]byte, error) {
	var out [16]byte
	raw := strings.ReplaceAll(s, "-", "")
	if len(raw) != 32 {
		return out, fmt.Errorf("parse uuid %q: invalid length", s)
	}
	if _, err := hex.Decode(out[:], []byte(raw)); err != nil {
		return out, fmt.Errorf("parse uuid %q: %w", s, err)
	}
	return out, nil
}
