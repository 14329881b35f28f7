package satchel

import (
	"fmt"
	"strings"
)

// Rule is a composable predicate over documents. Rules implement
// fmt.Stringer so queries can be fingerprinted for caching.
type Rule interface {
	Match(doc Document) bool
	String() string
}

type ruleOp int

const (
	opEq ruleOp = iota
	opNotEq
	opLt
	opLte
	opGt
	opGte
	opIn
	opContains
	opHasPrefix
	opExists
)

var ruleOpNames = map[ruleOp]string{
	opEq:        "eq",
	opNotEq:     "ne",
	opLt:        "lt",
	opLte:       "lte",
	opGt:        "gt",
	opGte:       "gte",
	opIn:        "in",
	opContains:  "contains",
	opHasPrefix: "prefix",
	opExists:    "exists",
}

type fieldRule struct {
	field  string
	op     ruleOp
	value  any
	values []any
}

func (r *fieldRule) Match(doc Document) bool {
	v, ok := doc.Field(r.field)

	switch r.op {
	case opExists:
		return ok
	case opEq:
		return ok && equalValues(v, r.value)
	case opNotEq:
		return !ok || !equalValues(v, r.value)
	case opIn:
		if !ok {
			return false
		}
		for _, want := range r.values {
			if equalValues(v, want) {
				return true
			}
		}
		return false
	case opContains:
		s, sok := v.(string)
		want, wok := r.value.(string)
		return ok && sok && wok && strings.Contains(s, want)
	case opHasPrefix:
		s, sok := v.(string)
		want, wok := r.value.(string)
		return ok && sok && wok && strings.HasPrefix(s, want)
	}

	// Ordering operators require both sides in the same comparable class.
	if !ok || valueClass(v) != valueClass(r.value) || valueClass(v) >= 4 {
		return false
	}
	c := compareValues(v, r.value)
	switch r.op {
	case opLt:
		return c < 0
	case opLte:
		return c <= 0
	case opGt:
		return c > 0
	case opGte:
		return c >= 0
	}
	return false
}

func (r *fieldRule) String() string {
	if r.op == opIn {
		return fmt.Sprintf("%s(%s,%v)", ruleOpNames[r.op], r.field, r.values)
	}
	if r.op == opExists {
		return fmt.Sprintf("exists(%s)", r.field)
	}
	return fmt.Sprintf("%s(%s,%v)", ruleOpNames[r.op], r.field, r.value)
}

// Eq matches documents whose field equals v.
func Eq(field string, v any) Rule { return &fieldRule{field: field, op: opEq, value: v} }

// NotEq matches documents whose field is absent or differs from v.
func NotEq(field string, v any) Rule { return &fieldRule{field: field, op: opNotEq, value: v} }

// Lt matches documents whose field is strictly less than v.
func Lt(field string, v any) Rule { return &fieldRule{field: field, op: opLt, value: v} }

// Lte matches documents whose field is at most v.
func Lte(field string, v any) Rule { return &fieldRule{field: field, op: opLte, value: v} }

// Gt matches documents whose field is strictly greater than v.
func Gt(field string, v any) Rule { return &fieldRule{field: field, op: opGt, value: v} }

// Gte matches documents whose field is at least v.
func Gte(field string, v any) Rule { return &fieldRule{field: field, op: opGte, value: v} }

// In matches documents whose field equals any of the given values.
func In(field string, values ...any) Rule {
	return &fieldRule{field: field, op: opIn, values: values}
}

// Contains matches documents whose string field contains substr.
func Contains(field, substr string) Rule {
	return &fieldRule{field: field, op: opContains, value: substr}
}

// HasPrefix matches documents whose string field starts with prefix.
func HasPrefix(field, prefix string) Rule {
	return &fieldRule{field: field, op: opHasPrefix, value: prefix}
}

// Exists matches documents where the field path resolves.
func Exists(field string) Rule { return &fieldRule{field: field, op: opExists} }

type allRule struct{ rules []Rule }

func (r *allRule) Match(doc Document) bool {
	for _, rule := range r.rules {
		if !rule.Match(doc) {
			return false
		}
	}
	return true
}

func (r *allRule) String() string { return composite("all", r.rules) }

// All matches documents satisfying every rule. With no rules it matches
// everything.
func All(rules ...Rule) Rule { return &allRule{rules: rules} }

type anyRule struct{ rules []Rule }

func (r *anyRule) Match(doc Document) bool {
	for _, rule := range r.rules {
		if rule.Match(doc) {
			return true
		}
	}
	return false
}

func (r *anyRule) String() string { return composite("any", r.rules) }

// Any matches documents satisfying at least one rule.
func Any(rules ...Rule) Rule { return &anyRule{rules: rules} }

type notRule struct{ rule Rule }

func (r *notRule) Match(doc Document) bool { return !r.rule.Match(doc) }

func (r *notRule) String() string { return "not(" + r.rule.String() + ")" }

// Not inverts a rule.
func Not(rule Rule) Rule { return &notRule{rule: rule} }

type funcRule struct {
	name string
	fn   func(Document) bool
}

func (r *funcRule) Match(doc Document) bool { return r.fn(doc) }

func (r *funcRule) String() string { return "func(" + r.name + ")" }

// MatchFunc wraps an arbitrary predicate as a Rule. The name identifies the
// predicate for query fingerprinting; distinct predicates need distinct
// names for the query cache to stay correct.
func MatchFunc(name string, fn func(Document) bool) Rule {
	return &funcRule{name: name, fn: fn}
}

func composite(kind string, rules []Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = r.String()
	}
	return kind + "(" + strings.Join(parts, ",") + ")"
}
