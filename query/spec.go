package query

import (
	"fmt"
	"strings"
	"time"
)

// ParamKind describes how a parameter value is interpreted.
type ParamKind int

const (
	// KindString values are passed through verbatim.
	KindString ParamKind = iota
	// KindDate values are parsed and rewritten in DateLayout.
	KindDate
)

// DateLayout is the canonical rendering of date parameters. Cache keys for
// date-ranged queries are derived from this form.
const DateLayout = "2006-01-02 15:04:05"

// Param declares one query parameter.
type Param struct {
	Name       string
	Kind       ParamKind
	Default    string
	HasDefault bool
}

// String declares a required string parameter.
func String(name string) Param {
	return Param{Name: name, Kind: KindString}
}

// Date declares a required date parameter.
func Date(name string) Param {
	return Param{Name: name, Kind: KindDate}
}

// WithDefault makes the parameter optional.
func (p Param) WithDefault(value string) Param {
	p.Default = value
	p.HasDefault = true
	return p
}

// Spec describes a query's signature and documentation.
type Spec struct {
	Name     string
	Doc      string
	Params   []Param
	Examples []string // example query strings, e.g. "&rows=5&cols=1"
}

// Param returns the declaration for name.
func (s Spec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Bind normalizes a call into named parameters.
//
// Positional args are assigned in declaration order. Defaults fill absent
// optional parameters, date parameters are canonicalized, and undeclared or
// missing parameters are rejected. Bind is idempotent: binding its own output
// again yields the same map.
func (s Spec) Bind(args []string, named Params) (Params, error) {
	if len(args) > len(s.Params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrTooManyArgs, s.Name, len(s.Params), len(args))
	}

	out := make(Params, len(s.Params))
	for i, v := range args {
		out[s.Params[i].Name] = v
	}
	for k, v := range named {
		if _, ok := s.Param(k); !ok {
			return nil, fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParam, s.Name, k)
		}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParam, k)
		}
		out[k] = v
	}

	for _, p := range s.Params {
		v, ok := out[p.Name]
		if !ok {
			if !p.HasDefault {
				return nil, fmt.Errorf("%w: %s requires %q", ErrMissingParam, s.Name, p.Name)
			}
			v = p.Default
		}
		if p.Kind == KindDate && v != "" {
			t, err := ParseTime(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q", ErrInvalidDate, p.Name, v)
			}
			v = t.Format(DateLayout)
		}
		out[p.Name] = v
	}
	return out, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"20060102",
	"2006/01/02",
}

// ParseTime parses a date or timestamp. Values without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
