package env

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// MarshalEnv reflects over the struct and creates .env content from tags.
// Zero values are skipped unless they would be overridden by a non-empty
// envDefault.
func MarshalEnv(c any) (string, error) {
	v := reflect.ValueOf(c)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return "", fmt.Errorf("env: expected pointer to struct, got %T", c)
	}
	v = v.Elem()
	t := v.Type()

	var lines []string
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("env")

		// Skip fields without env tag or unexported fields
		if tag == "" || !field.IsExported() {
			continue
		}

		// Parse tag: "KEY,required,notEmpty" or "KEY"
		key := strings.Split(tag, ",")[0]
		if key == "" {
			continue
		}

		val := v.Field(i)
		def, hasDefault := field.Tag.Lookup("envDefault")
		if isZeroValue(val) && (!hasDefault || def == "") {
			continue
		}

		sep := field.Tag.Get("envSeparator")
		if sep == "" {
			sep = ","
		}
		lines = append(lines, fmt.Sprintf("%s=%s", key, formatValue(val, sep)))
	}

	result := strings.Join(lines, "\n")
	if result != "" {
		result += "\n"
	}
	return result, nil
}

// isZeroValue checks if a reflect.Value is the zero value for its type
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

// formatValue converts a reflect.Value to the representation caarlos0/env
// parses back.
func formatValue(v reflect.Value, sep string) string {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Slice:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i), sep)
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
