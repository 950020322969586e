// Package validation evaluates ordered, conditional rule chains over named
// input fields and collects one human-readable message per failing field.
//
// Each field owns a chain of rules. A rule runs only when its predicate holds;
// the first rule that fails records its message and ends the chain for that
// field. String checks are expressed as go-playground/validator tags.
package validation

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Input exposes submitted values by field name.
type Input interface {
	Lookup(name string) (string, bool)
}

// Values adapts url.Values (query string or parsed form) to Input.
type Values url.Values

// Lookup returns the first value for name and whether the field was sent.
func (v Values) Lookup(name string) (string, bool) {
	vs, ok := v[name]
	if !ok || len(vs) == 0 {
		return "", ok
	}
	return vs[0], true
}

// Predicate gates a rule. It sees the raw input, not the sanitized value.
type Predicate func(in Input) bool

// Sanitizer rewrites a value before its rules run.
type Sanitizer func(string) string

// Rule is one (predicate, check, message) step of a field chain. Exactly one
// of Tag or Func should be set.
type Rule struct {
	When    Predicate
	Tag     string
	Func    func(value string) bool
	Message string
}

// Field is the chain evaluated for one input name.
type Field struct {
	Name     string
	When     Predicate
	Sanitize []Sanitizer
	Rules    []Rule
}

// Schema is the ordered set of field chains for one route.
type Schema []Field

// Result holds per-field violations and the sanitized values that were checked.
type Result struct {
	Violations Violations
	Sanitized  map[string]string
}

// Violations maps a field name to its messages. Absent means valid.
type Violations map[string][]string

// Has reports whether field has at least one violation.
func (v Violations) Has(field string) bool {
	return len(v[field]) > 0
}

// First returns the first message for field, or "".
func (v Violations) First(field string) string {
	if msgs := v[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Mapped flattens the violations to the first message per field, the shape
// the views consume.
func (v Violations) Mapped() map[string]string {
	out := make(map[string]string, len(v))
	for field, msgs := range v {
		if len(msgs) > 0 {
			out[field] = msgs[0]
		}
	}
	return out
}

// Engine runs schemas. It is safe for concurrent use.
type Engine struct {
	validate *validator.Validate
}

// New returns an Engine with the custom tags strong_password and us_phone
// registered.
func New() *Engine {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("strong_password", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("us_phone", func(fl validator.FieldLevel) bool {
		return IsUSPhone(fl.Field().String())
	})
	return &Engine{validate: v}
}

// Run evaluates every field of schema against in.
func (e *Engine) Run(schema Schema, in Input) Result {
	res := Result{
		Violations: Violations{},
		Sanitized:  make(map[string]string, len(schema)),
	}
	for _, field := range schema {
		raw, _ := in.Lookup(field.Name)
		value := raw
		for _, s := range field.Sanitize {
			value = s(value)
		}
		res.Sanitized[field.Name] = value

		if field.When != nil && !field.When(in) {
			continue
		}
		for _, rule := range field.Rules {
			if rule.When != nil && !rule.When(in) {
				continue
			}
			if !e.check(rule, value) {
				res.Violations[field.Name] = append(res.Violations[field.Name], rule.Message)
				break
			}
		}
	}
	return res
}

// Check runs a single validator tag against value.
func (e *Engine) Check(tag, value string) bool {
	return e.validate.Var(value, tag) == nil
}

func (e *Engine) check(rule Rule, value string) bool {
	if rule.Func != nil {
		return rule.Func(value)
	}
	if rule.Tag == "" {
		return true
	}
	return e.Check(rule.Tag, value)
}

// Exists is a predicate that holds when name was sent, even if empty.
func Exists(name string) Predicate {
	return func(in Input) bool {
		_, ok := in.Lookup(name)
		return ok
	}
}

// NotEmpty is a predicate that holds when name was sent with a non-blank value.
func NotEmpty(name string) Predicate {
	return func(in Input) bool {
		v, _ := in.Lookup(name)
		return strings.TrimSpace(v) != ""
	}
}

// Trim strips surrounding whitespace.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail lower-cases an address and canonicalizes gmail addresses
// (dots and +tags removed from the local part, googlemail.com folded into
// gmail.com). Values without exactly one "@" are returned unchanged.
func NormalizeEmail(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return s
	}
	local = strings.ToLower(local)
	domain = strings.ToLower(domain)
	if domain == "gmail.com" || domain == "googlemail.com" {
		if i := strings.IndexByte(local, '+'); i >= 0 {
			local = local[:i]
		}
		local = strings.ReplaceAll(local, ".", "")
		domain = "gmail.com"
	}
	return local + "@" + domain
}

// IsStrongPassword requires at least 8 characters with one lowercase letter,
// one uppercase letter and one digit. Symbols are not required.
func IsStrongPassword(s string) bool {
	var lower, upper, digit bool
	n := 0
	for _, r := range s {
		n++
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return n >= 8 && lower && upper && digit
}
