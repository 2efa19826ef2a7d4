package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/source"
)

// Kind of a positional operation parameter
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	// KindPath is a path to a video opened as a secondary source
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindPath:
		return "path"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Param is a positional operation parameter. Parameters without Required
// must have a Default of the Go type for their kind (int, float64 or string).
type Param struct {
	Name     string
	Kind     Kind
	Required bool
	Default  interface{}
}

func (p Param) String() string {
	if p.Required {
		return "<" + p.Name + ">"
	}
	return fmt.Sprintf("[%s=%v]", p.Name, p.Default)
}

// Args are resolved parameter values by name
type Args map[string]interface{}

// Int value of an int parameter
func (a Args) Int(name string) int {
	v, _ := a[name].(int)
	return v
}

// Float value of a float parameter
func (a Args) Float(name string) float64 {
	v, _ := a[name].(float64)
	return v
}

// String value of a string or path parameter
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Call is what an operation runs with
type Call struct {
	Source source.Source
	Args   Args
	// Inputs are opened sources for path parameters by parameter name
	Inputs map[string]source.Source
	Log    logrus.FieldLogger
}

// Output of an operation. Either Frames to encode or an Image to write.
type Output struct {
	Frames frame.Sequence
	// Rate overrides the source frame rate when > 0
	Rate  int
	Image *image.RGBA
	// NotFound is set when a requested frame does not exist, nothing is written
	NotFound bool
}

// Operation is a named edit operation
type Operation struct {
	Name   string
	Usage  string
	Params []Param
	Run    func(ctx context.Context, c *Call) (Output, error)
}

// Synopsis is the name followed by the parameters, ex "freeze [index=0] [duration=30]"
func (o *Operation) Synopsis() string {
	parts := []string{o.Name}
	for _, p := range o.Params {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " ")
}

// Registry maps operation names to operations
type Registry struct {
	ops map[string]*Operation
}

// NewRegistry validates ops and builds a registry
func NewRegistry(ops ...Operation) (*Registry, error) {
	r := &Registry{ops: map[string]*Operation{}}
	for i := range ops {
		o := ops[i]
		if err := validateOperation(o); err != nil {
			return nil, err
		}
		if _, ok := r.ops[o.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate operation", o.Name)
		}
		r.ops[o.Name] = &o
	}
	return r, nil
}

func validateOperation(o Operation) error {
	if o.Name == "" {
		return errors.New("operation without name")
	}
	if o.Run == nil {
		return fmt.Errorf("%s: no run function", o.Name)
	}
	seen := map[string]bool{}
	optional := false
	for _, p := range o.Params {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("%s: empty or duplicate parameter name %q", o.Name, p.Name)
		}
		seen[p.Name] = true
		if p.Required {
			if optional {
				return fmt.Errorf("%s: required parameter %s after optional", o.Name, p.Name)
			}
			if p.Default != nil {
				return fmt.Errorf("%s: required parameter %s has a default", o.Name, p.Name)
			}
			continue
		}
		optional = true
		if _, err := convertArg(p, p.Default); err != nil {
			return fmt.Errorf("%s: parameter %s default: %w", o.Name, p.Name, err)
		}
	}
	return nil
}

// Lookup operation by name
func (r *Registry) Lookup(name string) (*Operation, bool) {
	o, ok := r.ops[name]
	return o, ok
}

// Operations sorted by name
func (r *Registry) Operations() []*Operation {
	var ops []*Operation
	for _, o := range r.ops {
		ops = append(ops, o)
	}
	slices.SortFunc(ops, func(a, b *Operation) int { return strings.Compare(a.Name, b.Name) })
	return ops
}

// convertArg checks v against the parameter kind, ints are accepted for floats
func convertArg(p Param, v interface{}) (interface{}, error) {
	switch p.Kind {
	case KindInt:
		if i, ok := v.(int); ok {
			return i, nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
	case KindString, KindPath:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%s: expected %s got %T: %w", p.Name, p.Kind, v, ErrArgument)
}

// ResolveArgs matches positional values to parameters and fills in defaults
func (o *Operation) ResolveArgs(values []interface{}) (Args, error) {
	if len(values) > len(o.Params) {
		return nil, fmt.Errorf("%s: expected at most %d arguments got %d: %w", o.Name, len(o.Params), len(values), ErrArgument)
	}
	args := Args{}
	for i, p := range o.Params {
		if i >= len(values) {
			if p.Required {
				return nil, fmt.Errorf("%s: missing %s: %w", o.Name, p, ErrArgument)
			}
			v, _ := convertArg(p, p.Default)
			args[p.Name] = v
			continue
		}
		v, err := convertArg(p, values[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.Name, err)
		}
		args[p.Name] = v
	}
	return args, nil
}
