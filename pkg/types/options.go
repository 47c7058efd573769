package types

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
)

var (
	// ErrUnknownOption is returned when setting an option that was never declared
	ErrUnknownOption = errors.New("unknown option")

	// ErrInvalidOptionValue is returned when a value is outside the declared set
	ErrInvalidOptionValue = errors.New("invalid option value")
)

// Well-known recipe options
const (
	OptionShared = "shared"
	OptionFPIC   = "fPIC"
)

// OptionDecl declares an option and the values it accepts
type OptionDecl struct {
	Name    string
	Allowed []string
	Default string
}

// Options is the resolved option set of a recipe. Declarations are fixed at
// construction; values can only be set to one of the declared values and
// options can only ever be removed, never re-added.
type Options struct {
	decls  map[string]OptionDecl
	values map[string]string
}

// NewOptions builds an option set from declarations, applying defaults
func NewOptions(decls ...OptionDecl) (*Options, error) {
	o := &Options{
		decls:  make(map[string]OptionDecl, len(decls)),
		values: make(map[string]string, len(decls)),
	}
	for _, d := range decls {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: empty option name", ErrUnknownOption)
		}
		if len(d.Allowed) == 0 {
			d.Allowed = []string{"True", "False"}
		}
		o.decls[d.Name] = d
		if d.Default != "" {
			if err := o.Set(d.Name, d.Default); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

// Set assigns a value to a declared, present option
func (o *Options) Set(name, value string) error {
	decl, ok := o.decls[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	canonical, ok := canonicalValue(decl.Allowed, value)
	if !ok {
		return fmt.Errorf("%w: %s=%s (allowed: %v)", ErrInvalidOptionValue, name, value, decl.Allowed)
	}
	o.values[name] = canonical
	return nil
}

// Get returns the value of an option and whether it is present
func (o *Options) Get(name string) (string, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Has reports whether the option is present in the resolved set
func (o *Options) Has(name string) bool {
	_, ok := o.values[name]
	return ok
}

// Bool returns the boolean value of an option; absent options are false
func (o *Options) Bool(name string) bool {
	v, ok := o.values[name]
	if !ok {
		return false
	}
	b, err := ParseBool(v)
	return err == nil && b
}

// Remove deletes an option from the resolved set. Removing an absent
// option is a no-op.
func (o *Options) Remove(name string) {
	delete(o.values, name)
	delete(o.decls, name)
}

// Decl returns the declaration of a present option
func (o *Options) Decl(name string) (OptionDecl, bool) {
	if !o.Has(name) {
		return OptionDecl{}, false
	}
	d, ok := o.decls[name]
	return d, ok
}

// Names returns the present option names in sorted order
func (o *Options) Names() []string {
	names := make([]string, 0, len(o.values))
	for name := range o.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the resolved option values
func (o *Options) Values() map[string]string {
	out := make(map[string]string, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

// canonicalValue matches a value against the allowed set. Boolean-like
// values are compared by meaning so "true" matches "True".
func canonicalValue(allowed []string, value string) (string, bool) {
	if slices.Contains(allowed, value) {
		return value, true
	}
	want, err := ParseBool(value)
	if err != nil {
		return "", false
	}
	for _, a := range allowed {
		if b, err := ParseBool(a); err == nil && b == want {
			return a, true
		}
	}
	return "", false
}

// FormatBool renders a bool as a declared option value
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}
