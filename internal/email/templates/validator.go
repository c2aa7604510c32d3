package templates

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"capdev_portal/platform/sanitize"
	"capdev_portal/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

type valueKind int

const (
	kindAny valueKind = iota
	kindString
	kindInteger
	kindBoolean
	kindNumeric
	kindArray
)

// fieldRule is the parsed form of a rule string such as "required|email|max:255".
type fieldRule struct {
	required   bool
	html       bool
	kind       valueKind
	tags       []string
	stringOnly bool
	sized      bool
}

func parseRule(raw string) fieldRule {
	var r fieldRule
	tokens := strings.FieldsFunc(raw, func(c rune) bool { return c == '|' || c == ',' })
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		switch {
		case tok == "required":
			r.required = true
		case tok == "optional", tok == "nullable", tok == "sometimes":
			// absent or nil values are skipped for every field that is not required
		case tok == "string":
			r.kind = kindString
		case tok == "html":
			r.kind = kindString
			r.html = true
		case tok == "int", tok == "integer":
			r.kind = kindInteger
		case tok == "bool", tok == "boolean":
			r.kind = kindBoolean
		case tok == "numeric":
			r.kind = kindNumeric
		case tok == "array":
			r.kind = kindArray
		case tok == "date":
			r.tags = append(r.tags, "datetime="+dateLayout)
			r.stringOnly = true
		case tok == "datetime":
			r.tags = append(r.tags, "datetime="+datetimeLayout)
			r.stringOnly = true
		case tok == "url":
			r.tags = append(r.tags, "url")
			r.stringOnly = true
		case tok == "email":
			r.tags = append(r.tags, "email")
			r.stringOnly = true
		case strings.HasPrefix(tok, "max:"), strings.HasPrefix(tok, "min:"):
			name, param, _ := strings.Cut(tok, ":")
			if _, err := strconv.Atoi(param); err == nil {
				r.tags = append(r.tags, name+"="+param)
				r.sized = true
			}
		}
	}
	return r
}

// Validator checks template variables against their rules and returns a
// sanitized copy ready for the provider.
type Validator struct {
	v *validator.Validator
}

func NewValidator(v *validator.Validator) *Validator {
	return &Validator{v: v}
}

// Validate runs the missing-variable check first, then structural checks that
// accumulate every failure, then sanitization.
func (x *Validator) Validate(event string, vars map[string]any, rules map[string]string) (map[string]any, error) {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	parsed := make(map[string]fieldRule, len(rules))
	var missing []string
	for _, name := range names {
		r := parseRule(rules[name])
		parsed[name] = r
		if v, ok := vars[name]; r.required && (!ok || v == nil) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingVariablesError{Event: event, Missing: missing}
	}

	verr := &ValidationError{Event: event}
	for _, name := range names {
		v, ok := vars[name]
		if !ok || v == nil {
			continue
		}
		x.check(name, v, parsed[name], verr)
	}
	if len(verr.Failures) > 0 {
		return nil, verr
	}

	out := make(map[string]any, len(vars))
	for name, v := range vars {
		out[name] = sanitizeValue(v, parsed[name].html)
	}
	return out, nil
}

func (x *Validator) check(name string, v any, r fieldRule, verr *ValidationError) {
	switch r.kind {
	case kindString:
		s, ok := v.(string)
		if !ok {
			verr.add(name, "must be a string")
			return
		}
		if r.required && strings.TrimSpace(s) == "" {
			verr.add(name, "is required")
			return
		}
	case kindInteger:
		n, ok := toInteger(v)
		if !ok {
			verr.add(name, "must be an integer")
			return
		}
		v = n
	case kindNumeric:
		n, ok := toNumber(v)
		if !ok {
			verr.add(name, "must be numeric")
			return
		}
		v = n
	case kindBoolean:
		if !isBoolean(v) {
			verr.add(name, "must be a boolean")
			return
		}
	case kindArray:
		if !isArray(v) {
			verr.add(name, "must be an array")
			return
		}
	}

	if len(r.tags) == 0 {
		return
	}
	if _, isString := v.(string); r.stringOnly && !isString {
		verr.add(name, "must be a string")
		return
	}
	if r.sized && !sizeable(v) {
		verr.add(name, "has no size")
		return
	}

	err := x.v.Var(v, strings.Join(r.tags, ","))
	if err == nil {
		return
	}
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add(name, err.Error())
		return
	}
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			verr.add(name, fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param()))
			continue
		}
		verr.add(name, "failed "+fe.Tag())
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInteger(v any) (int64, bool) {
	f, ok := toNumber(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func isBoolean(v any) bool {
	switch b := v.(type) {
	case bool:
		return true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "false", "1", "0":
			return true
		}
	case int, int64, float64:
		n, _ := toNumber(b)
		return n == 0 || n == 1
	}
	return false
}

func isArray(v any) bool {
	switch v.(type) {
	case []any, []string, []map[string]any, map[string]any:
		return true
	default:
		return false
	}
}

func sizeable(v any) bool {
	switch v.(type) {
	case string, int, int32, int64, float32, float64, []any, []string, []map[string]any, map[string]any:
		return true
	default:
		return false
	}
}

// sanitizeValue trims strings and strips or filters markup, descending into
// lists and maps with the same html allowance.
func sanitizeValue(v any, html bool) any {
	switch t := v.(type) {
	case string:
		if html {
			return sanitize.HTML(t)
		}
		return sanitize.Text(t)
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = sanitizeValue(s, html).(string)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sanitizeValue(item, html)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, item := range t {
			out[i] = sanitizeValue(item, html).(map[string]any)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = sanitizeValue(item, html)
		}
		return out
	default:
		return v
	}
}
