// Package filtering selects repositories by directory name using include and
// exclude glob patterns.
package filtering

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// NameFilter decides whether a repository name passes a set of include and exclude patterns
type NameFilter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewNameFilter compiles the include and exclude patterns.
// An empty include list matches every name.
func NewNameFilter(include, exclude []string) (*NameFilter, error) {
	inc, err := compileAll(include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exc, err := compileAll(exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return &NameFilter{include: inc, exclude: exc}, nil
}

// IsEmpty reports whether the filter has no patterns and therefore matches everything
func (f *NameFilter) IsEmpty() bool {
	return f == nil || (len(f.include) == 0 && len(f.exclude) == 0)
}

// ShouldInclude reports whether name passes the filter.
//
// Exclude patterns take precedence. When include patterns are present the
// name must match at least one of them.
func (f *NameFilter) ShouldInclude(name string) bool {
	if f.IsEmpty() {
		return true
	}
	for _, g := range f.exclude {
		if g.Match(name) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		// filepath.Match catches malformed bracket expressions glob accepts silently
		if _, err := filepath.Match(pattern, "test"); err != nil {
			return nil, fmt.Errorf("%q: %w", pattern, err)
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}
