package reconcile

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"asset-sync/core/utils"
)

// ErrInvalidFPS is returned by ConvertFPS for values that are not a frame rate.
var ErrInvalidFPS = errors.New("invalid fps value")

var stringNumberRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

func isStringNumber(s string) bool {
	if s == "." {
		return false
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	} else if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return stringNumberRe.MatchString(s)
}

// ConvertFPS converts a frame rate value to float64.
// Numbers are converted directly. Strings accept a decimal comma and a
// "dividend/divisor" form such as "24000/1001". Other types are returned untouched.
func ConvertFPS(v Value) (Value, error) {
	s, isString := v.(string)
	if !isString {
		if utils.IsNumber(v) {
			f, _ := utils.ToFloat(v)
			return f, nil
		}
		return v, nil
	}

	value := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if value == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidFPS)
	}

	parts := strings.Split(value, "/")
	switch len(parts) {
	case 1:
		if !isStringNumber(parts[0]) {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidFPS, s)
		}
		return parseLooseFloat(parts[0]), nil
	case 2:
		dividend, divisor := parts[0], parts[1]
		if dividend == "" || !isStringNumber(dividend) {
			return nil, fmt.Errorf("%w: dividend %q is not a number", ErrInvalidFPS, dividend)
		}
		if divisor == "" || !isStringNumber(divisor) {
			return nil, fmt.Errorf("%w: divisor %q is not a number", ErrInvalidFPS, divisor)
		}
		d := parseLooseFloat(divisor)
		if d == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrInvalidFPS)
		}
		return parseLooseFloat(dividend) / d, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidFPS, s)
}

func parseLooseFloat(s string) float64 {
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// convertValue coerces v to the declared attribute type.
// The second return value is false when v cannot represent that type.
func convertValue(def AttributeDefinition, v Value) (Value, bool) {
	if v == nil {
		return nil, true
	}
	switch def.Type {
	case AttrText:
		switch v.(type) {
		case []any, []string, map[string]any:
			return nil, false
		}
		return utils.ToString(v), true

	case AttrBoolean:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "1":
				return true, true
			case "false", "0", "":
				return false, true
			}
			return nil, false
		}
		if f, ok := utils.ToFloat(v); ok && (f == 0 || f == 1) {
			return f == 1, true
		}
		return nil, false

	case AttrNumber:
		f, ok := utils.ToFloat(v)
		if !ok {
			return nil, false
		}
		if def.IsDecimal {
			return f, true
		}
		return int(f), true

	case AttrEnumerator:
		items := utils.ToStringSlice(v)
		if def.MultiSelect {
			out := make([]any, 0, len(items))
			for _, it := range items {
				out = append(out, it)
			}
			return out, true
		}
		if len(items) == 0 {
			return nil, true
		}
		return items[0], true
	}
	return normalizeValue(v), true
}

// isUnset reports whether a resolved value should keep inheriting.
// Empty lists count as unset so an empty multi-select never masks an ancestor.
func isUnset(v Value) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}
