package securedata

import (
	"reflect"
	"strings"
)

// Field names removed from non-elevated reads, matched case-insensitively
// against struct field names, json tags, and map keys.
var sensitiveFields = map[string]bool{
	"password":     true,
	"passwordhash": true,
	"mfasecret":    true,
	"sessiontoken": true,
	"tokenhash":    true,
	"ipwhitelist":  true,
}

// Redact walks an arbitrary value and strips sensitive fields. Structs come
// back as map[string]any keyed by json tag (or lowered field name); maps and
// slices are filtered recursively; scalars pass through.
func Redact(v any) any {
	return redactValue(reflect.ValueOf(v))
}

func redactValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return redactValue(rv.Elem())

	case reflect.Struct:
		// time.Time and friends are opaque scalars
		if rv.Type().PkgPath() != "" && rv.Type().String() == "time.Time" {
			return rv.Interface()
		}
		out := make(map[string]any, rv.NumField())
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := jsonFieldName(field)
			if name == "-" {
				continue
			}
			if sensitiveFields[normalizeFieldName(field.Name)] || sensitiveFields[normalizeFieldName(name)] {
				continue
			}
			out[name] = redactValue(rv.Field(i))
		}
		return out

	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, key := range rv.MapKeys() {
			keyStr, ok := key.Interface().(string)
			if !ok {
				keyStr = key.String()
			}
			if sensitiveFields[normalizeFieldName(keyStr)] {
				continue
			}
			out[keyStr] = redactValue(rv.MapIndex(key))
		}
		return out

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		// Byte slices are opaque values, not containers
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface()
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = redactValue(rv.Index(i))
		}
		return out

	default:
		return rv.Interface()
	}
}

func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func normalizeFieldName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}
