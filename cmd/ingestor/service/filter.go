package service

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// ArchiveFilter selects batch entries with a CEL expression over the
// archive locator, e.g.
//
//	archive.bucket == "prod" && archive.key.endsWith(".car")
type ArchiveFilter struct {
	program cel.Program
}

// NewArchiveFilter compiles a filter expression
func NewArchiveFilter(expr string) (*ArchiveFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("archive", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &ArchiveFilter{program: program}, nil
}

// Match reports whether the locator passes the filter
func (f *ArchiveFilter) Match(loc Locator) (bool, error) {
	out, _, err := f.program.Eval(map[string]interface{}{
		"archive": map[string]interface{}{
			"bucket": loc.Bucket,
			"key":    loc.Key,
		},
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}
