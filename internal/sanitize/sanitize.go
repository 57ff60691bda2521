// Package sanitize applies regex-based sanitization to result row field
// values before they leave the server.
package sanitize

import (
	"fmt"
	"regexp"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Rule defines a single pattern/replacement pair.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Sanitizer applies the configured rules to each field value.
type Sanitizer struct {
	rules []compiledRule
}

// NewSanitizer creates a new Sanitizer. Returns an error on invalid regex patterns.
func NewSanitizer(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Sanitizer{rules: compiled}, nil
}

// HasRules returns true if the sanitizer has any rules configured.
func (s *Sanitizer) HasRules() bool {
	return len(s.rules) > 0
}

// SanitizeRows applies sanitization to each field value in the result rows,
// in place. Rows are ordered maps; field order is untouched because Set on an
// existing key keeps its position.
func (s *Sanitizer) SanitizeRows(rows []*orderedmap.OrderedMap[string, any]) []*orderedmap.OrderedMap[string, any] {
	if len(s.rules) == 0 {
		return rows
	}
	for _, row := range rows {
		if row == nil {
			continue
		}
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			row.Set(pair.Key, s.sanitizeValue(pair.Value))
		}
	}
	return rows
}

func (s *Sanitizer) sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		result := val
		for _, rule := range s.rules {
			result = rule.pattern.ReplaceAllString(result, rule.replacement)
		}
		return result
	case *orderedmap.OrderedMap[string, any]:
		for pair := val.Oldest(); pair != nil; pair = pair.Next() {
			val.Set(pair.Key, s.sanitizeValue(pair.Value))
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = s.sanitizeValue(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = s.sanitizeValue(item)
		}
		return val
	default:
		// Numeric, bool, nil, json.Number — return as-is.
		// json.Number is a string underneath but does NOT match
		// `case string:` in a type switch, so it passes through unmodified.
		return v
	}
}
