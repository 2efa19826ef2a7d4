package main

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/wader/ffedit/internal/pipeline"
)

// convertArgs converts positional command line strings to the types of params.
// Arguments past the last parameter are kept as strings and rejected by the
// dispatcher.
func convertArgs(params []pipeline.Param, raw []string) ([]interface{}, error) {
	values := make([]interface{}, 0, len(raw))
	for i, s := range raw {
		if i >= len(params) {
			values = append(values, s)
			continue
		}
		p := params[i]
		switch p.Kind {
		case pipeline.KindInt:
			v, err := cast.ToIntE(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not an integer: %w", p.Name, s, pipeline.ErrArgument)
			}
			values = append(values, v)
		case pipeline.KindFloat:
			v, err := cast.ToFloat64E(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not a number: %w", p.Name, s, pipeline.ErrArgument)
			}
			values = append(values, v)
		default:
			values = append(values, s)
		}
	}
	return values, nil
}
