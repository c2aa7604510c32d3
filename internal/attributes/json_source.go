package attributes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"capdev_portal/internal/preferences"
)

type keySet struct {
	fields     map[preferences.AttributeType]string
	fundingMin string
	fundingMax string
}

// Legacy JSON field names per entity kind.
var legacyKeys = map[EntityKind]keySet{
	KindRequest: {
		fields: map[preferences.AttributeType]string{
			preferences.TypeSubtheme:               "subthemes",
			preferences.TypeCoverageActivity:       "coverage_activity",
			preferences.TypeImplementationLocation: "implementation_location",
			preferences.TypeTargetAudience:         "target_audience",
			preferences.TypeSupportType:            "support_types",
			preferences.TypePriorityLevel:          "priority_level",
		},
		fundingMin: "funding_min",
		fundingMax: "funding_max",
	},
	KindOpportunity: {
		fields: map[preferences.AttributeType]string{
			preferences.TypeSubtheme:               "target_subthemes",
			preferences.TypeCoverageActivity:       "coverage_activity",
			preferences.TypeImplementationLocation: "implementation_location",
			preferences.TypeTargetAudience:         "target_audience",
			preferences.TypeSupportType:            "support_types",
			preferences.TypePriorityLevel:          "priority_level",
		},
		fundingMin: "budget_min",
		fundingMax: "budget_max",
	},
}

// JSONSource serves attributes from the legacy JSON column. Values may be
// a string, a list of strings or, for funding, a number or numeric string.
type JSONSource struct {
	keys keySet
	data map[string]any
}

// NewJSONSource decodes raw for the given kind. Empty input yields an empty source.
func NewJSONSource(kind EntityKind, raw []byte) (*JSONSource, error) {
	keys, ok := legacyKeys[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	src := &JSONSource{keys: keys, data: map[string]any{}}
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return src, nil
	}
	if err := json.Unmarshal(raw, &src.data); err != nil {
		return nil, fmt.Errorf("decode legacy attributes: %w", err)
	}
	return src, nil
}

func (s *JSONSource) Lookup(t preferences.AttributeType) []string {
	if s == nil {
		return nil
	}
	key, ok := s.keys.fields[t]
	if !ok {
		return nil
	}
	switch v := s.data[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if text, ok := item.(string); ok {
				out = append(out, text)
			}
		}
		return out
	default:
		return nil
	}
}

func (s *JSONSource) FundingRange() (float64, float64, bool) {
	if s == nil {
		return 0, 0, false
	}
	hi, ok := number(s.data[s.keys.fundingMax])
	if !ok {
		return 0, 0, false
	}
	lo, _ := number(s.data[s.keys.fundingMin])
	return lo, hi, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
