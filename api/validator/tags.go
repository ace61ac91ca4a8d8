package validator

import (
	"reflect"
	"strings"
)

// jsonName returns the JSON name of a field, so that errors refer to request
// keys rather than Go field names.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
